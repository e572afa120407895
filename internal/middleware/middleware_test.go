package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roadassist/config"
	"roadassist/internal/auth"
	"roadassist/internal/domain"
	"roadassist/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var jwtCfg = &config.JWTConfig{
	AccessSecret:  "access",
	RefreshSecret: "refresh",
	AccessExpiry:  time.Hour,
	RefreshExpiry: time.Hour,
	Issuer:        "test",
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(jwtCfg, userID, userID+"@example.com", role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/x", AuthRequired(jwtCfg), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c)+"|"+GetRole(c))
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer garbage").Code)

	w := serve(r, token(t, "u1", domain.RoleVendor))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1|VENDOR", w.Body.String())
}

func TestRequireRoleAndAdmin(t *testing.T) {
	r := gin.New()
	r.GET("/x", AuthRequired(jwtCfg), RequireRole(domain.RoleServiceProvider), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusForbidden, serve(r, token(t, "u1", domain.RoleUser)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, token(t, "p1", domain.RoleServiceProvider)).Code)

	admin := gin.New()
	admin.GET("/x", AuthRequired(jwtCfg), AdminRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(admin, token(t, "a1", domain.RoleAdmin)).Code)
}

type users map[string]*models.User

func (u users) GetByID(id string) (*models.User, error) {
	if x, ok := u[id]; ok {
		return x, nil
	}
	return nil, errors.New("record not found")
}

func TestActiveAccount(t *testing.T) {
	store := users{
		"ok":     {ID: "ok"},
		"banned": {ID: "banned", IsBanned: true},
	}
	r := gin.New()
	r.GET("/x", AuthRequired(jwtCfg), ActiveAccount(store), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c).ID)
	})

	assert.Equal(t, http.StatusOK, serve(r, token(t, "ok", domain.RoleUser)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, token(t, "banned", domain.RoleUser)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, token(t, "gone", domain.RoleUser)).Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(NewKeyedRateLimiter(0.001, 2)), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "").Code)
}

func TestMetricsPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	assert.Equal(t, http.StatusAccepted, serve(r, "").Code)
}
