package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/complaint-engine/internal/logging"
)

const (
	// requestIDBytes is the number of random bytes in a generated request ID.
	requestIDBytes = 16

	// maxRequestIDLength caps inbound X-Request-ID values. Longer values are
	// replaced with a generated ID so upstream callers cannot bloat log lines.
	maxRequestIDLength = 128
)

// RequestIDLoggerMiddleware tags each request with an ID and stores a logger
// enriched with that ID in the request context. The ID is taken from the
// X-Request-ID header when present and sane, generated otherwise, and always
// echoed back on the response.
func RequestIDLoggerMiddleware(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = generateRequestID()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		reqLog := log.With(logging.String("request_id", requestID))
		ctx := logging.WithContext(c.Request.Context(), reqLog)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// generateRequestID returns a fresh random ID as 32 hex characters.
func generateRequestID() string {
	buf := make([]byte, requestIDBytes)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a timestamp; collisions are acceptable for log
		// correlation when the CSPRNG is unreadable.
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}

// LoggerMiddleware creates a Gin middleware for structured HTTP request logging.
// It logs method, path, status, duration, and client IP.
func LoggerMiddleware(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		method := c.Request.Method

		// Process request
		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []logging.Field{
			logging.String("method", method),
			logging.String("path", path),
			logging.Int("status", statusCode),
			logging.Duration("duration", duration),
			logging.String("client_ip", c.ClientIP()),
		}

		if requestID := c.GetString("request_id"); requestID != "" {
			fields = append(fields, logging.String("request_id", requestID))
		}

		if query != "" {
			fields = append(fields, logging.String("query", query))
		}

		// User agent is noise on health probes
		if !strings.HasPrefix(path, "/health") {
			fields = append(fields, logging.String("user_agent", c.Request.UserAgent()))
		}

		// Fold handler errors into the single request log entry
		if len(c.Errors) > 0 {
			errorMessages := make([]string, len(c.Errors))
			for i, err := range c.Errors {
				errorMessages[i] = err.Err.Error()
			}
			fields = append(fields, logging.Strings("errors", errorMessages))
		}

		if len(c.Errors) > 0 {
			log.Error("HTTP request with errors", fields...)
		} else {
			log.Info("HTTP request", fields...)
		}
	}
}

// CORSMiddleware creates a Gin middleware for handling Cross-Origin Resource Sharing.
// It supports configurable origins, methods, and headers.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	cfg.SetDefaults()

	// Pre-compute joined strings for headers
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	allowedHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	allowCredentials := "false"
	if cfg.AllowCredentials {
		allowCredentials = "true"
	}
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		origin := c.Request.Header.Get("Origin")

		allowedOrigin := determineAllowedOrigin(origin, cfg.AllowedOrigins)
		if allowedOrigin == "" {
			// Origin not allowed, continue without CORS headers
			c.Next()
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", allowCredentials)
		c.Writer.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		c.Writer.Header().Set("Access-Control-Max-Age", maxAge)

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// determineAllowedOrigin checks if the origin is in the allowed list.
// Returns the origin to use in the response, or empty string if not allowed.
func determineAllowedOrigin(origin string, allowedOrigins []string) string {
	// If no origin header, allow the request (same-origin)
	if origin == "" {
		return "*"
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == origin {
			return origin
		}
	}

	return ""
}

// RecoveryMiddleware creates a Gin middleware for panic recovery with logging.
// It catches panics, logs them, and returns a 500 error.
func RecoveryMiddleware(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered",
					logging.Any("error", err),
					logging.String("path", c.Request.URL.Path),
					logging.String("method", c.Request.Method),
					logging.String("client_ip", c.ClientIP()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "Internal server error",
					"code":    "INTERNAL_ERROR",
					"message": "An unexpected error occurred",
				})
			}
		}()

		c.Next()
	}
}
