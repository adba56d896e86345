package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"memberhub/config"
	"memberhub/internal/apperr"
	"memberhub/internal/models"
	"memberhub/internal/repository"
	"memberhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const (
	facebookGraphURL    = "https://graph.facebook.com/v19.0"
	facebookStateCookie = "fb_oauth_state"
	facebookUserFields  = "id,name,email,picture.type(large)"
)

type FacebookOAuthHandler struct {
	cfg       *config.Config
	authSvc   *service.AuthService
	auditRepo *repository.AuditRepository
	graphURL  string
	client    *http.Client
}

func NewFacebookOAuthHandler(cfg *config.Config, authSvc *service.AuthService, auditRepo *repository.AuditRepository) *FacebookOAuthHandler {
	return &FacebookOAuthHandler{
		cfg:       cfg,
		authSvc:   authSvc,
		auditRepo: auditRepo,
		graphURL:  facebookGraphURL,
		client:    http.DefaultClient,
	}
}

func (h *FacebookOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.FacebookClientID,
		ClientSecret: h.cfg.OAuth.FacebookClientSecret,
		RedirectURL:  h.cfg.OAuth.FacebookRedirectURL,
		Scopes:       []string{"email", "public_profile"},
		Endpoint:     facebook.Endpoint,
	}
}

func (h *FacebookOAuthHandler) configured(c *gin.Context) bool {
	if h.cfg.OAuth.FacebookClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Facebook login not configured", "code": "NOT_CONFIGURED"})
		return false
	}
	return true
}

// Redirect sends the browser to the Facebook consent dialog. An optional ?ref= referral code
// rides along in the state cookie.
func (h *FacebookOAuthHandler) Redirect(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(facebookStateCookie, state+"|"+c.Query("ref"), 600, "/", "", h.cfg.IsProduction(), true)
	c.Redirect(http.StatusFound, h.OAuth2Config().AuthCodeURL(state))
}

type facebookProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// fetchProfile reads the Graph API profile for accessToken. appsecret_proof binds the call to this app.
func (h *FacebookOAuthHandler) fetchProfile(ctx context.Context, accessToken string) (*facebookProfile, error) {
	mac := hmac.New(sha256.New, []byte(h.cfg.OAuth.FacebookClientSecret))
	mac.Write([]byte(accessToken))
	q := url.Values{
		"fields":          {facebookUserFields},
		"access_token":    {accessToken},
		"appsecret_proof": {hex.EncodeToString(mac.Sum(nil))},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.graphURL+"/me?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph api status %d: %s", resp.StatusCode, gjson.GetBytes(body, "error.message").String())
	}
	res := gjson.ParseBytes(body)
	p := &facebookProfile{
		ID:      res.Get("id").String(),
		Email:   res.Get("email").String(),
		Name:    res.Get("name").String(),
		Picture: res.Get("picture.data.url").String(),
	}
	if p.ID == "" {
		return nil, fmt.Errorf("graph api returned no id")
	}
	return p, nil
}

func (h *FacebookOAuthHandler) login(c *gin.Context, accessToken, referralCode string) {
	p, err := h.fetchProfile(c.Request.Context(), accessToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid Facebook token", "code": apperr.CodeUnauthorized})
		return
	}
	a, access, refresh, isNew, err := h.authSvc.LoginWithFacebook(p.ID, p.Email, p.Name, p.Picture, referralCode)
	if err != nil {
		respondError(c, err, "login failed")
		return
	}
	if h.auditRepo != nil {
		_ = h.auditRepo.Create(&models.AuditLog{
			AccountID: &a.ID,
			Action:    "facebook_login",
			Resource:  "auth",
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"account":       a,
		"access_token":  access,
		"refresh_token": refresh,
		"is_new":        isNew,
	})
}

// Callback exchanges the authorization code and signs the account in.
func (h *FacebookOAuthHandler) Callback(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	cookie, _ := c.Cookie(facebookStateCookie)
	state, ref, _ := strings.Cut(cookie, "|")
	if state == "" || c.Query("state") != state {
		badRequest(c, "invalid oauth state")
		return
	}
	code := c.Query("code")
	if code == "" {
		badRequest(c, "missing code")
		return
	}
	tok, err := h.OAuth2Config().Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "code exchange failed", "code": apperr.CodeUnauthorized})
		return
	}
	c.SetCookie(facebookStateCookie, "", -1, "/", "", h.cfg.IsProduction(), true)
	h.login(c, tok.AccessToken, ref)
}

// Token signs in with a user access token obtained by a mobile or SPA Facebook SDK.
func (h *FacebookOAuthHandler) Token(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	var req struct {
		AccessToken  string `json:"access_token" binding:"required"`
		ReferralCode string `json:"referral_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "access_token required")
		return
	}
	h.login(c, req.AccessToken, req.ReferralCode)
}
