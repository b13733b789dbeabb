package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/complaint-engine/internal/auth"
)

const testSecret = "engine-test-secret"

func signedToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()

	claims := &auth.Claims{
		Sub: "clerk-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(auth.Middleware(testSecret))
	r.GET("/staff/ping", func(c *gin.Context) {
		claims, ok := auth.GetClaims(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no claims in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sub": claims.Sub})
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/staff/ping", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ValidToken(t *testing.T) {
	router := protectedRouter()
	token := signedToken(t, testSecret, time.Now().Add(time.Hour))

	w := doRequest(router, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clerk-1")
}

func TestMiddleware_RejectsBadRequests(t *testing.T) {
	router := protectedRouter()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"bearer without token", "Bearer"},
		{"garbage token", "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestMiddleware_RejectsWrongSecret(t *testing.T) {
	router := protectedRouter()
	token := signedToken(t, "some-other-secret", time.Now().Add(time.Hour))

	w := doRequest(router, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_RejectsExpiredToken(t *testing.T) {
	router := protectedRouter()
	token := signedToken(t, testSecret, time.Now().Add(-time.Minute))

	w := doRequest(router, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_HealthStaysOpen(t *testing.T) {
	router := protectedRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
