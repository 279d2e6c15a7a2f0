package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http/dto"
	appsvc "github.com/Miraines/MoonyAndStarry/telegram-service/internal/app/auth/service"
	authErrors "github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/model"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

type AuthHandler struct {
	svc          appsvc.Service
	cookieDomain string
	log          *zap.Logger
}

func NewAuthHandler(svc appsvc.Service, cookieDomain string, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{svc: svc, cookieDomain: cookieDomain, log: log}
}

func (h *AuthHandler) issueTokens(c *gin.Context, pair model.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		accessCookie,
		pair.AccessToken,
		int(pair.AccessTTL.Seconds()),
		"/",
		h.cookieDomain,
		true, // secure
		true, // httpOnly
	)

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		refreshCookie,
		pair.RefreshToken,
		int(pair.RefreshTTL.Seconds()),
		"/auth",
		h.cookieDomain,
		true,
		true,
	)

	c.JSON(http.StatusOK, gin.H{
		"expiresIn": int(pair.AccessTTL.Seconds()),
		"userId":    pair.UserId.String(),
	})
}

func (h *AuthHandler) clearTokens(c *gin.Context) {
	c.SetCookie(accessCookie, "", -1, "/", h.cookieDomain, true, true)
	c.SetCookie(refreshCookie, "", -1, "/auth", h.cookieDomain, true, true)
}

// TelegramLogin accepts JSON or form data.
func (h *AuthHandler) TelegramLogin(c *gin.Context) {
	var body dto.TelegramAuthDTO
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.log.Info("telegram_login",
		zap.Int64("telegram_id", body.TelegramID),
		zap.Int("init_data_len", len(body.InitData)),
		zap.Bool("widget", body.Hash != ""),
		zap.String("origin", c.GetHeader("Origin")),
	)

	pair, err := h.svc.TelegramAuth(c.Request.Context(), body)
	if err != nil {
		handleError(c, err)
		return
	}
	h.issueTokens(c, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var body dto.RefreshDTO
	_ = c.ShouldBindJSON(&body)
	if body.RefreshToken == "" {
		body.RefreshToken, _ = c.Cookie(refreshCookie)
	}
	if body.AccessToken == "" {
		body.AccessToken, _ = c.Cookie(accessCookie)
	}

	pair, err := h.svc.Refresh(c.Request.Context(), body)
	if err != nil {
		handleError(c, err)
		return
	}
	h.issueTokens(c, pair)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var body dto.LogoutDTO
	_ = c.ShouldBindJSON(&body)
	if body.RefreshToken == "" {
		body.RefreshToken, _ = c.Cookie(refreshCookie)
	}
	if body.AccessToken == "" {
		body.AccessToken = bearer(c)
	}

	if err := h.svc.Logout(c.Request.Context(), body); err != nil {
		handleError(c, err)
		return
	}
	h.clearTokens(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.Validate(c.Request.Context(), dto.ValidateDTO{AccessToken: bearer(c)})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID.String(),
		"telegram_id":   user.TelegramID,
		"username":      user.Username,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"photo_url":     user.PhotoURL,
		"language_code": user.LanguageCode,
	})
}

// bearer takes the access token from the Authorization header, falling
// back to the access cookie.
func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	tok, _ := c.Cookie(accessCookie)
	return tok
}

func handleError(c *gin.Context, err error) {
	reason := appsvc.Reason(err)
	switch {
	case authErrors.IsInvalidArgument(err):
		body := gin.H{"error": err.Error()}
		if reason != "" {
			body["reason"] = reason
		}
		c.JSON(http.StatusBadRequest, body)
	case authErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials", "reason": reason})
	case authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case authErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case authErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case authErrors.IsUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telegram auth unavailable"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
