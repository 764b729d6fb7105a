package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"
	"twitchtts/internal/app/adapters/platform/twitch/irc"
	"twitchtts/internal/app/adapters/session"
	"twitchtts/internal/app/adapters/stats"
	"twitchtts/internal/app/domain/reader"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"

	"github.com/gin-gonic/gin"
)

const commandTimeout = 5 * time.Second

type Reader interface {
	Mute(user string) error
	Unmute(user string) error
	Muted() []string
	State() reader.State
	SetEnabled(v bool)
	SetFilterAt(v bool)
	SetMaxLength(n int) error
}

type Announcer interface {
	Start()
	Stop()
	SetInterval(d time.Duration) time.Duration
	SetText(text string) error
}

type Feed interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	History(channel string) []ports.ChatMessage
	Clients() int
}

type Deps struct {
	Session   ports.SessionPort
	Reader    Reader
	Announcer Announcer
	Feed      Feed
	Stats     *stats.Stats
}

type Handlers struct {
	log     logger.Logger
	manager *config.Manager
	deps    Deps
	cpu     func() float64
}

func New(log logger.Logger, manager *config.Manager, deps Deps) *Handlers {
	return &Handlers{
		log:     log,
		manager: manager,
		deps:    deps,
		cpu:     cpuPercent,
	}
}

func (h *Handlers) commandContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), commandTimeout)
}

// statusFor maps session and stream errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, irc.ErrInvalidChannel), errors.Is(err, reader.ErrEmptyUser),
		errors.Is(err, reader.ErrInvalidMaxLength):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotInChannel):
		return http.StatusConflict
	case errors.Is(err, irc.ErrNotConnected), errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("Request failed", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
