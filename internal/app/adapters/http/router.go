package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"twitchtts/internal/app/adapters/http/handlers"
	"twitchtts/internal/app/adapters/http/middlewares"
	"twitchtts/internal/app/infrastructure/config"
	"twitchtts/pkg/logger"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type Router struct {
	router      *gin.Engine
	handlers    *handlers.Handlers
	middlewares *middlewares.Middlewares

	log     logger.Logger
	manager *config.Manager
}

func NewRouter(log logger.Logger, manager *config.Manager, deps handlers.Deps) *Router {
	cfg := manager.Get()
	gin.SetMode(cfg.App.GinMode)

	r := &Router{
		router:      gin.New(),
		handlers:    handlers.New(log, manager, deps),
		middlewares: middlewares.New(log),
		log:         log,
		manager:     manager,
	}
	r.router.Use(gin.Recovery(), r.middlewares.Logger())

	auth := r.middlewares.Auth(cfg.App.AuthToken)

	if cfg.App.AuthToken != "" {
		pprofGroup := r.router.Group("/", gin.BasicAuth(gin.Accounts{
			"admin": cfg.App.AuthToken,
		}))
		pprof.Register(pprofGroup)
	}

	r.router.GET("/metrics", auth, gin.WrapH(promhttp.Handler()))

	r.router.GET("/status", r.handlers.Status)
	r.router.GET("/history/:channel", r.handlers.History)
	r.router.GET("/ws", r.handlers.Feed)

	api := r.router.Group("/", auth)
	api.POST("/join", r.handlers.Join)
	api.POST("/say", r.handlers.Say)
	api.GET("/mutes", r.handlers.Mutes)
	api.POST("/mutes", r.handlers.Mute)
	api.DELETE("/mutes/:user", r.handlers.Unmute)
	api.PUT("/reader", r.handlers.UpdateReader)
	api.PUT("/announcer", r.handlers.UpdateAnnouncer)
	api.PUT("/log-level", r.handlers.SetLogLevel)

	return r
}

func (r *Router) Handler() http.Handler {
	return r.router
}

// Run serves until ctx is done, then shuts the server down gracefully.
func (r *Router) Run(ctx context.Context) error {
	addr := r.manager.Get().HTTP.Address
	srv := r.newServer(addr, r.router)

	errCh := make(chan error, 1)
	go func() {
		r.log.Info("HTTP server listening", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (r *Router) newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
