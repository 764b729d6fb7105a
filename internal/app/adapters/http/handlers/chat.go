package handlers

import (
	"net/http"
	"strings"
	"twitchtts/internal/app/infrastructure/config"

	"github.com/gin-gonic/gin"
)

type joinRequest struct {
	Channel string `json:"channel" binding:"required"`
}

// Join asks the session to join a channel and remembers it for the next start.
func (h *Handlers) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx, cancel := h.commandContext(c)
	defer cancel()

	if err := h.deps.Session.Join(ctx, req.Channel); err != nil {
		h.fail(c, err)
		return
	}

	channel := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.Channel), "#"))
	if err := h.manager.Update(func(cfg *config.Config) {
		cfg.App.Channel = channel
	}); err != nil {
		h.log.Error("Failed to save channel to config", err)
	}

	c.JSON(http.StatusAccepted, gin.H{"channel": channel})
}

type sayRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handlers) Say(c *gin.Context) {
	var req sayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx, cancel := h.commandContext(c)
	defer cancel()

	if err := h.deps.Session.Say(ctx, req.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pending": h.deps.Session.Status().Pending})
}

func (h *Handlers) History(c *gin.Context) {
	channel := "#" + strings.ToLower(strings.TrimPrefix(c.Param("channel"), "#"))
	c.JSON(http.StatusOK, gin.H{"channel": channel, "messages": h.deps.Feed.History(channel)})
}

func (h *Handlers) Feed(c *gin.Context) {
	h.deps.Feed.ServeWS(c.Writer, c.Request)
}
