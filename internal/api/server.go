package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/complaint-engine/internal/config"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/server"
)

// ServerOptions carries the optional backend probes surfaced on /health.
type ServerOptions struct {
	Metrics           http.Handler
	DatabasePing      func() error
	RedisPing         func() error
	ElasticsearchPing func() error
}

// NewServer builds the engine's HTTP server: standard middleware, health
// endpoints with backend probes, and the complaint API routes.
func NewServer(handler *Handler, cfg *config.Config, log logging.Logger, opts ServerOptions) *server.Server {
	builder := server.NewBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithTimeouts(server.DefaultReadTimeout, server.DefaultWriteTimeout, server.DefaultIdleTimeout).
		WithRoutes(func(router *gin.Engine) {
			SetupServiceRoutes(router, handler, cfg.Auth.JWTSecret, opts.Metrics)
		})

	if opts.DatabasePing != nil {
		builder = builder.WithDatabaseHealthCheck(opts.DatabasePing)
	}
	if opts.RedisPing != nil {
		builder = builder.WithRedisHealthCheck(opts.RedisPing)
	}
	if opts.ElasticsearchPing != nil {
		builder = builder.WithElasticsearchHealthCheck(opts.ElasticsearchPing)
	}

	return builder.Build()
}
