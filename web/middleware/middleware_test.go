package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
	})
	return r
}

func get(r http.Handler, remoteAddr, auth string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := newRouter(rl.Middleware())

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1000", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1001", "").Code)
	w := get(r, "10.0.0.1:1002", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2:1000", "").Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.limiter("a")
	now = now.Add(time.Minute)
	rl.limiter("b")

	assert.Equal(t, 1, rl.Cleanup(30*time.Second))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "b")
}

func TestJwtAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	r := newRouter(JwtAuthMiddleware(secret))

	valid, _ := GenerateToken("ops", secret, time.Hour)
	expired, _ := GenerateToken("ops", secret, -time.Hour)
	wrongKey, _ := GenerateToken("ops", "other-secret", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "ops"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name       string
		authHeader string
		status     int
		body       string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, `"subject":"ops"`},
		{"missing", "", http.StatusUnauthorized, "Authorization header is required"},
		{"bad format", "Token " + valid, http.StatusUnauthorized, "Invalid authorization header format"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "Token has expired"},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized, "Invalid token"},
		{"alg none", "Bearer " + none, http.StatusUnauthorized, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, "10.0.0.1:1", tt.authHeader)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestJwtAuthMiddlewareDisabled(t *testing.T) {
	r := newRouter(JwtAuthMiddleware(""))
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1", "").Code)
}
