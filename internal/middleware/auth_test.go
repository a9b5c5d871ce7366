package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coachhub/config"
	"coachhub/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret: "test-secret",
		AccessExpiry: time.Minute,
		Issuer:       "coachhub",
	}
}

func authTestRouter(cfg *config.JWTConfig) *gin.Engine {
	r := gin.New()
	r.GET("/protected", AuthRequired(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	return r
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	cfg := testJWTConfig()
	token, err := auth.GenerateAccessToken(cfg, 42, "athlete@example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authTestRouter(cfg).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	authTestRouter(testJWTConfig()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsBadScheme(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	authTestRouter(testJWTConfig()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsTokenSignedWithOtherSecret(t *testing.T) {
	otherCfg := &config.JWTConfig{AccessSecret: "other-secret", AccessExpiry: time.Minute}
	token, err := auth.GenerateAccessToken(otherCfg, 42, "athlete@example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authTestRouter(testJWTConfig()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessExpiry = -time.Minute
	token, err := auth.GenerateAccessToken(cfg, 42, "athlete@example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authTestRouter(cfg).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
