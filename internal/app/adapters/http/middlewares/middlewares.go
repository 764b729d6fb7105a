package middlewares

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"twitchtts/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Middlewares struct {
	log logger.Logger
}

func New(log logger.Logger) *Middlewares {
	return &Middlewares{log: log}
}

// Auth requires "Authorization: Bearer <expected>". An empty expected token
// leaves the route open.
func (m *Middlewares) Auth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(expected)) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func (m *Middlewares) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		m.log.Debug("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
