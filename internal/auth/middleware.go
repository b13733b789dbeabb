// Package auth provides JWT bearer-token authentication for the API.
// Municipal staff endpoints (status transitions, category overrides, model
// reloads) run behind it when a secret is configured.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by engine tokens.
type Claims struct {
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

// Middleware creates a JWT authentication middleware validating HMAC-signed
// bearer tokens against the given secret.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Health probes stay reachable without credentials
		if c.Request.URL.Path == "/health" || strings.HasPrefix(c.Request.URL.Path, "/health/") {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		// Expect "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := parts[1]

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		// Store claims in context for use in handlers
		c.Set("claims", claims)
		c.Next()
	}
}

// GetClaims extracts claims from the gin context.
func GetClaims(c *gin.Context) (*Claims, bool) {
	claims, exists := c.Get("claims")
	if !exists {
		return nil, false
	}

	cl, ok := claims.(*Claims)
	return cl, ok
}
