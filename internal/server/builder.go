package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/complaint-engine/internal/auth"
	"github.com/jonesrussell/complaint-engine/internal/logging"
)

// Builder provides a fluent API for building HTTP servers.
type Builder struct {
	config       *Config
	logger       logging.Logger
	setupRoutes  func(*gin.Engine)
	healthChecks map[string]HealthChecker
}

// NewBuilder creates a new server builder with the given configuration.
func NewBuilder(serviceName string, port int) *Builder {
	return &Builder{
		config:       NewConfig(serviceName, port),
		healthChecks: make(map[string]HealthChecker),
	}
}

// WithConfig sets a custom configuration.
func (b *Builder) WithConfig(cfg *Config) *Builder {
	b.config = cfg
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(log logging.Logger) *Builder {
	b.logger = log
	return b
}

// WithDebug enables or disables debug mode.
func (b *Builder) WithDebug(debug bool) *Builder {
	b.config.Debug = debug
	return b
}

// WithVersion sets the service version.
func (b *Builder) WithVersion(version string) *Builder {
	b.config.ServiceVersion = version
	return b
}

// WithCORS configures CORS settings.
func (b *Builder) WithCORS(cfg CORSConfig) *Builder {
	b.config.CORS = cfg
	return b
}

// WithCORSOrigins sets allowed CORS origins.
func (b *Builder) WithCORSOrigins(origins []string) *Builder {
	b.config.CORS.AllowedOrigins = origins
	return b
}

// WithTimeouts sets all timeout values for the HTTP server.
func (b *Builder) WithTimeouts(read, write, idle time.Duration) *Builder {
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	b.config.IdleTimeout = idle
	return b
}

// WithHealthCheck adds a named health check.
func (b *Builder) WithHealthCheck(name string, checker HealthChecker) *Builder {
	b.healthChecks[name] = checker
	return b
}

// WithDatabaseHealthCheck adds a database health check.
func (b *Builder) WithDatabaseHealthCheck(pingFunc func() error) *Builder {
	b.healthChecks["database"] = DatabaseHealthChecker(pingFunc)
	return b
}

// WithRedisHealthCheck adds a Redis health check.
func (b *Builder) WithRedisHealthCheck(pingFunc func() error) *Builder {
	b.healthChecks["redis"] = RedisHealthChecker(pingFunc)
	return b
}

// WithElasticsearchHealthCheck adds an Elasticsearch health check.
func (b *Builder) WithElasticsearchHealthCheck(pingFunc func() error) *Builder {
	b.healthChecks["elasticsearch"] = ElasticsearchHealthChecker(pingFunc)
	return b
}

// WithRoutes sets the route setup function.
func (b *Builder) WithRoutes(setupRoutes func(*gin.Engine)) *Builder {
	b.setupRoutes = setupRoutes
	return b
}

// Build creates the server with all configured options.
func (b *Builder) Build() *Server {
	// Ensure we have a logger
	if b.logger == nil {
		b.logger = logging.Must(logging.Config{
			Level:       "info",
			Development: b.config.Debug,
		})
	}

	// Create wrapper that adds health routes before service routes
	wrappedSetup := func(router *gin.Engine) {
		if len(b.healthChecks) > 0 {
			RegisterHealthRoutesWithChecks(router, HealthOptions{
				ServiceName:    b.config.ServiceName,
				ServiceVersion: b.config.ServiceVersion,
				Checks:         b.healthChecks,
			})
		} else {
			RegisterHealthRoutes(router, b.config.ServiceName, b.config.ServiceVersion)
		}

		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	}

	return NewServer(b.config, b.logger, wrappedSetup)
}

// ProtectedGroup creates a router group with JWT authentication middleware.
// An empty secret leaves the group open; deployments without issued staff
// tokens still get a working API.
func ProtectedGroup(router *gin.Engine, path, jwtSecret string) *gin.RouterGroup {
	group := router.Group(path)
	if jwtSecret != "" {
		group.Use(auth.Middleware(jwtSecret))
	}
	return group
}

// PublicGroup creates a router group without authentication.
// Use this for public routes like health checks or citizen-facing APIs.
func PublicGroup(router *gin.Engine, path string) *gin.RouterGroup {
	return router.Group(path)
}
