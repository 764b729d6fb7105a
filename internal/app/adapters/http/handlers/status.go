package handlers

import (
	"net/http"
	"twitchtts/internal/app/infrastructure/config"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/cpu"
)

func cpuPercent() float64 {
	percent, err := cpu.Percent(0, false)
	if err != nil || len(percent) == 0 {
		return 0
	}
	return percent[0]
}

func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session":      h.deps.Session.Status(),
		"reader":       h.deps.Reader.State(),
		"stats":        h.deps.Stats.Summary(),
		"feed_clients": h.deps.Feed.Clients(),
		"cpu_percent":  h.cpu(),
		"log_level":    h.log.GetLogLevel(),
	})
}

type logLevelRequest struct {
	Level string `json:"level" binding:"required,oneof=trace debug info warn error"`
}

func (h *Handlers) SetLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	h.log.SetLogLevel(req.Level)
	if err := h.manager.Update(func(cfg *config.Config) {
		cfg.App.LogLevel = req.Level
	}); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": h.log.GetLogLevel()})
}
