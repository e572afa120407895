package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"roadassist/config"
	"roadassist/internal/models"
	"roadassist/internal/repository"
	"roadassist/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

type GoogleOAuthHandler struct {
	cfg       *config.Config
	authSvc   *service.AuthService
	auditRepo *repository.AuditLogRepository
	// tokenInfoURL is overridden in tests.
	tokenInfoURL string
}

func NewGoogleOAuthHandler(cfg *config.Config, authSvc *service.AuthService, auditRepo *repository.AuditLogRepository) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		cfg:          cfg,
		authSvc:      authSvc,
		auditRepo:    auditRepo,
		tokenInfoURL: "https://oauth2.googleapis.com/tokeninfo",
	}
}

func (h *GoogleOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.GoogleClientID,
		ClientSecret: h.cfg.OAuth.GoogleClientSecret,
		RedirectURL:  h.cfg.OAuth.GoogleRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

// Redirect sends the browser to the Google consent screen.
func (h *GoogleOAuthHandler) Redirect(c *gin.Context) {
	if h.cfg.OAuth.GoogleClientID == "" {
		fail(c, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}
	state := uuid.NewString()
	c.SetCookie(oauthStateCookie, state, 600, "/", "", false, true)
	c.Redirect(http.StatusFound, h.OAuth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline))
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Callback exchanges the code, fetches the Google profile and signs the user in.
func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if h.cfg.OAuth.GoogleClientID == "" {
		fail(c, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}
	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "missing code")
		return
	}
	if state, err := c.Cookie(oauthStateCookie); err != nil || state != c.Query("state") {
		fail(c, http.StatusBadRequest, "invalid oauth state")
		return
	}
	ctx := c.Request.Context()
	conf := h.OAuth2Config()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		fail(c, http.StatusBadRequest, "code exchange failed")
		return
	}
	resp, err := conf.Client(ctx, tok).Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		internalError(c, "oauth", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		internalError(c, "oauth", fmt.Errorf("userinfo status %d", resp.StatusCode))
		return
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		internalError(c, "oauth", err)
		return
	}
	h.signIn(c, info)
}

// Token accepts an ID token obtained by a mobile client and signs the user in.
func (h *GoogleOAuthHandler) Token(c *gin.Context) {
	var req struct {
		IDToken string `json:"idToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "idToken is required")
		return
	}
	resp, err := http.Get(h.tokenInfoURL + "?id_token=" + url.QueryEscape(req.IDToken))
	if err != nil {
		internalError(c, "oauth", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fail(c, http.StatusUnauthorized, "invalid idToken")
		return
	}
	var claims struct {
		Sub     string `json:"sub"`
		Aud     string `json:"aud"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		internalError(c, "oauth", err)
		return
	}
	if claims.Sub == "" || claims.Email == "" {
		fail(c, http.StatusUnauthorized, "invalid idToken")
		return
	}
	if h.cfg.OAuth.GoogleClientID != "" && claims.Aud != h.cfg.OAuth.GoogleClientID {
		fail(c, http.StatusUnauthorized, "idToken was issued for another client")
		return
	}
	h.signIn(c, googleUserInfo{ID: claims.Sub, Email: claims.Email, Name: claims.Name, Picture: claims.Picture})
}

func (h *GoogleOAuthHandler) signIn(c *gin.Context, info googleUserInfo) {
	u, tokens, isNew, err := h.authSvc.LoginWithGoogle(info.ID, info.Email, info.Name, info.Picture)
	if err != nil {
		if errors.Is(err, service.ErrBanned) {
			fail(c, http.StatusForbidden, err.Error())
			return
		}
		internalError(c, "oauth", err)
		return
	}
	if h.auditRepo != nil {
		_ = h.auditRepo.Create(&models.AuditLog{
			ActorID:    &u.ID,
			Action:     fmt.Sprintf("google_login new=%v", isNew),
			Resource:   "user",
			ResourceID: u.ID,
			IP:         c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
	}
	respond(c, http.StatusOK, "Login successful", gin.H{
		"user":         u,
		"accessToken":  tokens.Access,
		"refreshToken": tokens.Refresh,
		"isNewUser":    isNew,
	})
}
