package handlers

import (
	"net/http"
	"time"
	"twitchtts/internal/app/infrastructure/config"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) Mutes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"muted": h.deps.Reader.Muted()})
}

type muteRequest struct {
	User string `json:"user" binding:"required"`
}

func (h *Handlers) Mute(c *gin.Context) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.deps.Reader.Mute(req.User); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": h.deps.Reader.Muted()})
}

func (h *Handlers) Unmute(c *gin.Context) {
	if err := h.deps.Reader.Unmute(c.Param("user")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": h.deps.Reader.Muted()})
}

type readerRequest struct {
	Enabled   *bool `json:"enabled"`
	FilterAt  *bool `json:"filter_at"`
	MaxLength *int  `json:"max_length"`
}

// UpdateReader changes the reader settings that are present in the body
// and stores them in the config file.
func (h *Handlers) UpdateReader(c *gin.Context) {
	var req readerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	r := h.deps.Reader
	if req.MaxLength != nil {
		if err := r.SetMaxLength(*req.MaxLength); err != nil {
			h.fail(c, err)
			return
		}
	}
	if req.Enabled != nil {
		r.SetEnabled(*req.Enabled)
	}
	if req.FilterAt != nil {
		r.SetFilterAt(*req.FilterAt)
	}

	state := r.State()
	if err := h.manager.Update(func(cfg *config.Config) {
		cfg.Reader.Enabled = state.Enabled
		cfg.Reader.FilterAt = state.FilterAt
		cfg.Reader.MaxLength = state.MaxLength
	}); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type announcerRequest struct {
	Enabled         *bool   `json:"enabled"`
	IntervalSeconds *int    `json:"interval_seconds"`
	Text            *string `json:"text"`
}

func (h *Handlers) UpdateAnnouncer(c *gin.Context) {
	var req announcerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	a := h.deps.Announcer
	if req.Text != nil {
		if err := a.SetText(*req.Text); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	var interval time.Duration
	if req.IntervalSeconds != nil {
		interval = a.SetInterval(time.Duration(*req.IntervalSeconds) * time.Second)
	}

	if req.Enabled != nil {
		if *req.Enabled {
			a.Start()
		} else {
			a.Stop()
		}
	}

	var saved config.Announcer
	if err := h.manager.Update(func(cfg *config.Config) {
		if req.Text != nil {
			cfg.Announcer.Text = *req.Text
		}
		if interval > 0 {
			cfg.Announcer.IntervalSeconds = int(interval / time.Second)
		}
		if req.Enabled != nil {
			cfg.Announcer.Enabled = *req.Enabled
		}
		saved = cfg.Announcer
	}); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
