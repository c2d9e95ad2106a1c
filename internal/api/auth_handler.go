package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"stockpot/internal/accounts"
	"stockpot/internal/api/middleware"
	"stockpot/internal/auth"
	"stockpot/internal/recipes"
)

const refreshTokenCookieName = "refresh_token"

// AuthHandler handles registration, login, token refresh, logout and password changes.
type AuthHandler struct {
	accounts     *accounts.Service
	tokens       *auth.Service
	guard        loginGuard
	revocations  refreshRevocations
	logger       *slog.Logger
	cookieDomain string
}

// NewAuthHandler constructs an AuthHandler. redisClient backs login throttling
// and refresh token revocation.
func NewAuthHandler(accountService *accounts.Service, tokens *auth.Service, redisClient redis.UniversalClient, logger *slog.Logger, protection LoginProtection, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		accounts:     accountService,
		tokens:       tokens,
		guard:        loginGuard{redis: redisClient, limits: protection},
		revocations:  refreshRevocations{redis: redisClient, fallback: tokens.RefreshTTL()},
		logger:       logger,
		cookieDomain: strings.TrimSpace(cookieDomain),
	}
}

type credentials struct {
	Username string `json:"username" binding:"required,min=3,max=150"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type registerResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Register creates an account and its empty profile.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	logger := h.requestLogger(c).With(slog.String("username", req.Username))

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Username, hash)
	if verrs, ok := recipes.AsValidation(err); ok {
		ValidationFailed(c, verrs)
		return
	}
	switch {
	case errors.Is(err, accounts.ErrUsernameTaken):
		Conflict(c, "username already taken")
		return
	case err != nil:
		logger.Error("register failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.Header("Location", "/v1/profiles/"+user.Username)
	c.JSON(http.StatusCreated, registerResponse{ID: user.ID, Username: user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and returns an access token, setting the refresh cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.requestLogger(c).With(slog.String("username", req.Username))

	blocked, storeErr := h.guard.admit(ctx, c.ClientIP(), req.Username)
	if storeErr != nil {
		logger.Warn("login guard unavailable", slog.Any("error", storeErr))
	}
	if blocked != nil {
		TooManyRequests(c, blocked.Error())
		return
	}

	user, err := h.accounts.FindUser(ctx, strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, recipes.ErrNotFound) {
		logger.Error("login lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if user == nil || !auth.PasswordMatches(user.PasswordHash, req.Password) {
		logger.Info("login rejected")
		if err := h.guard.fail(ctx, req.Username); err != nil {
			logger.Warn("record login failure", slog.Any("error", err))
		}
		Unauthorized(c)
		return
	}

	if err := h.guard.succeed(ctx, req.Username); err != nil {
		logger.Warn("reset login failures", slog.Any("error", err))
	}
	logger.Info("user logged in", slog.Uint64("user_id", uint64(user.ID)))
	h.issueTokens(c, user.ID, user.Username)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair. The old token is revoked.
func (h *AuthHandler) Refresh(c *gin.Context) {
	claims, ok := h.presentedRefreshToken(c)
	if !ok {
		Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.requestLogger(c).With(slog.Uint64("user_id", uint64(claims.UserID)))

	revoked, err := h.revocations.revoked(ctx, claims)
	if err != nil {
		logger.Error("revocation lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if revoked {
		logger.Info("revoked refresh token presented", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	}

	user, err := h.accounts.GetUser(ctx, claims.UserID)
	if err != nil {
		logger.Info("refresh for missing user", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if err := h.revocations.revoke(ctx, claims); err != nil {
		logger.Error("revoke refresh token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.issueTokens(c, user.ID, user.Username)
}

// Logout revokes the refresh token and clears its cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := h.presentedRefreshToken(c)
	if !ok {
		BadRequest(c, "refresh token missing or invalid")
		return
	}

	if err := h.revocations.revoke(c.Request.Context(), claims); err != nil {
		h.requestLogger(c).Error("logout revoke failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.writeRefreshCookie(c, "", -1)
	c.Status(http.StatusOK)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// ChangePassword verifies the current password, stores the new one and issues fresh tokens.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.NewPassword == req.CurrentPassword {
		BadRequest(c, "new password must differ from the current one")
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		middleware.AbortUnauthenticated(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.requestLogger(c).With(slog.Uint64("user_id", uint64(userID)))

	user, err := h.accounts.GetUser(ctx, userID)
	if err != nil || !auth.PasswordMatches(user.PasswordHash, req.CurrentPassword) {
		logger.Info("change password rejected")
		Unauthorized(c)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if err := h.accounts.SetPasswordHash(ctx, user.ID, hash); err != nil {
		logger.Error("store password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if raw, err := c.Cookie(refreshTokenCookieName); err == nil {
		if claims, err := h.tokens.Verify(raw, auth.TokenTypeRefresh); err == nil {
			if err := h.revocations.revoke(ctx, claims); err != nil {
				logger.Error("revoke refresh token failed", slog.Any("error", err))
				Internal(c, "internal error")
				return
			}
		}
	}

	logger.Info("password changed")
	h.issueTokens(c, user.ID, user.Username)
}

// presentedRefreshToken reads the refresh token from the cookie, or from the JSON body.
func (h *AuthHandler) presentedRefreshToken(c *gin.Context) (*auth.Claims, bool) {
	raw, err := c.Cookie(refreshTokenCookieName)
	if err != nil || raw == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, false
		}
		raw = req.RefreshToken
	}

	claims, err := h.tokens.Verify(raw, auth.TokenTypeRefresh)
	if err != nil {
		h.requestLogger(c).Info("refresh token rejected", slog.Any("error", err))
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) issueTokens(c *gin.Context, userID uint, username string) {
	pair, err := h.tokens.IssuePair(userID, username)
	if err != nil {
		h.requestLogger(c).Error("issue tokens failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.writeRefreshCookie(c, pair.RefreshToken, int(h.tokens.RefreshTTL()/time.Second))
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokens.AccessTTL() / time.Second),
	})
}

// writeRefreshCookie sets the HttpOnly refresh cookie. A negative maxAge deletes it.
func (h *AuthHandler) writeRefreshCookie(c *gin.Context, value string, maxAge int) {
	secure := c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) requestLogger(c *gin.Context) *slog.Logger {
	if logger, ok := middleware.RequestLogger(c); ok {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
