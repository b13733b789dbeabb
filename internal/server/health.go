package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the status of a health check.
type HealthStatus string

const (
	// HealthStatusHealthy indicates the service is healthy.
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusDegraded indicates the service is degraded but functional.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusUnhealthy indicates the service is unhealthy.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the standardized health check response format.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of an individual health check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker is a function that performs a health check and returns the result.
type HealthChecker func() CheckResult

// HealthOptions configures the health endpoint behavior.
type HealthOptions struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// StartTime is when the service started (for uptime calculation).
	StartTime time.Time
	// Checks is a map of named health checkers.
	Checks map[string]HealthChecker
}

// healthState tracks server start time for uptime reporting.
var healthState = struct {
	sync.Once
	startTime time.Time
}{}

// RegisterHealthRoutes adds standardized health endpoints to a Gin router.
// Endpoints:
//   - GET /health - Basic health check with status, service name, version
//   - GET /health/memory - Memory statistics from runtime
//   - HEAD /health - Lightweight health check for load balancers
func RegisterHealthRoutes(router *gin.Engine, serviceName, version string) {
	initStartTime()

	router.GET("/health", healthHandler(serviceName, version, nil))
	router.HEAD("/health", headHealthHandler())
	router.GET("/health/memory", memoryHealthHandler())
}

// RegisterHealthRoutesWithChecks adds health endpoints with custom health checks.
func RegisterHealthRoutesWithChecks(router *gin.Engine, opts HealthOptions) {
	if opts.StartTime.IsZero() {
		initStartTime()
		opts.StartTime = healthState.startTime
	}

	router.GET("/health", healthHandler(opts.ServiceName, opts.ServiceVersion, opts.Checks))
	router.HEAD("/health", headHealthHandler())
	router.GET("/health/memory", memoryHealthHandler())
}

// initStartTime initializes the server start time (only once).
func initStartTime() {
	healthState.Do(func() {
		healthState.startTime = time.Now()
	})
}

// healthHandler returns a Gin handler for the health endpoint.
func healthHandler(serviceName, version string, checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: serviceName,
			Version: version,
			Uptime:  formatUptime(time.Since(healthState.startTime)),
		}

		// Run health checks if any are configured
		if len(checks) > 0 {
			response.Checks = make(map[string]CheckResult, len(checks))
			for name, checker := range checks {
				result := checker()
				response.Checks[name] = result

				// Update overall status based on check results
				if result.Status == HealthStatusUnhealthy {
					response.Status = HealthStatusUnhealthy
				} else if result.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy {
					response.Status = HealthStatusDegraded
				}
			}
		}

		statusCode := http.StatusOK
		if response.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}

// headHealthHandler returns a Gin handler for HEAD /health requests.
func headHealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
	}
}

// memoryHealth holds runtime memory statistics for the memory endpoint.
type memoryHealth struct {
	Timestamp     time.Time `json:"timestamp"`
	HeapAllocMB   float64   `json:"heap_alloc_mb"`
	HeapInuseMB   float64   `json:"heap_inuse_mb"`
	HeapIdleMB    float64   `json:"heap_idle_mb"`
	StackInuseMB  float64   `json:"stack_inuse_mb"`
	NumGC         uint32    `json:"num_gc"`
	NumGoroutine  int       `json:"num_goroutine"`
	GOMaxProcs    int       `json:"gomaxprocs"`
	LastGCPauseMs float64   `json:"last_gc_pause_ms,omitempty"`
}

// memoryHealthHandler returns a Gin handler for the memory health endpoint.
func memoryHealthHandler() gin.HandlerFunc {
	const bytesPerMB = 1024 * 1024

	return func(c *gin.Context) {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)

		health := memoryHealth{
			Timestamp:    time.Now().UTC(),
			HeapAllocMB:  float64(stats.Alloc) / bytesPerMB,
			HeapInuseMB:  float64(stats.HeapInuse) / bytesPerMB,
			HeapIdleMB:   float64(stats.HeapIdle) / bytesPerMB,
			StackInuseMB: float64(stats.StackInuse) / bytesPerMB,
			NumGC:        stats.NumGC,
			NumGoroutine: runtime.NumGoroutine(),
			GOMaxProcs:   runtime.GOMAXPROCS(0),
		}

		// Add last GC pause if any GC has occurred
		if stats.NumGC > 0 {
			health.LastGCPauseMs = float64(stats.PauseNs[(stats.NumGC+255)%256]) / 1e6
		}

		c.Header("Content-Type", "application/json")
		c.Status(http.StatusOK)
		if err := json.NewEncoder(c.Writer).Encode(health); err != nil {
			c.String(http.StatusInternalServerError, "Failed to encode response")
		}
	}
}

// formatUptime formats a duration as a human-readable string.
func formatUptime(d time.Duration) string {
	const (
		hoursPerDay    = 24
		minutesPerHour = 60
		secondsPerMin  = 60
	)

	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	minutes := int(d.Minutes()) % minutesPerHour
	seconds := int(d.Seconds()) % secondsPerMin

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// DatabaseHealthChecker creates a health checker for database connectivity.
// The pingFunc should attempt to ping the database and return an error if it fails.
func DatabaseHealthChecker(pingFunc func() error) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := pingFunc()
		latency := time.Since(start)

		if err != nil {
			return CheckResult{
				Status:  HealthStatusUnhealthy,
				Message: "Database connection failed",
				Latency: latency.String(),
			}
		}

		return CheckResult{
			Status:  HealthStatusHealthy,
			Message: "Database connection OK",
			Latency: latency.String(),
		}
	}
}

// RedisHealthChecker creates a health checker for Redis connectivity.
// Redis only accelerates duplicate detection, so a failed ping degrades the
// service rather than marking it unhealthy.
func RedisHealthChecker(pingFunc func() error) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := pingFunc()
		latency := time.Since(start)

		if err != nil {
			return CheckResult{
				Status:  HealthStatusDegraded,
				Message: "Redis connection failed",
				Latency: latency.String(),
			}
		}

		return CheckResult{
			Status:  HealthStatusHealthy,
			Message: "Redis connection OK",
			Latency: latency.String(),
		}
	}
}

// ElasticsearchHealthChecker creates a health checker for Elasticsearch
// connectivity. The search index is a read model, so a failed ping degrades
// the service rather than marking it unhealthy.
func ElasticsearchHealthChecker(pingFunc func() error) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := pingFunc()
		latency := time.Since(start)

		if err != nil {
			return CheckResult{
				Status:  HealthStatusDegraded,
				Message: "Elasticsearch connection failed",
				Latency: latency.String(),
			}
		}

		return CheckResult{
			Status:  HealthStatusHealthy,
			Message: "Elasticsearch connection OK",
			Latency: latency.String(),
		}
	}
}
