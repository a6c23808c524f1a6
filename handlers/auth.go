package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lacuina/content-service/internal/identity"
	"github.com/lacuina/content-service/internal/profiles"
	"github.com/lacuina/content-service/internal/sessions"
	"github.com/lacuina/content-service/internal/tokens"
	"github.com/lacuina/content-service/pkg/logger"
	"github.com/lacuina/content-service/pkg/middleware"
)

// IdentityProvider is the subset of the identity client the auth routes use.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*identity.Credentials, error)
	SendPasswordReset(ctx context.Context, email string) error
	Refresh(ctx context.Context, refreshToken string) (*identity.Credentials, error)
}

// LoginRequest is the admin sign-in form.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	idp         IdentityProvider
	verifier    middleware.Verifier
	sessionsSvc *sessions.Service
	profilesSvc *profiles.Service
}

func NewAuthHandler(idp IdentityProvider, ver middleware.Verifier, s *sessions.Service, p *profiles.Service) *AuthHandler {
	return &AuthHandler{idp: idp, verifier: ver, sessionsSvc: s, profilesSvc: p}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/password-reset", h.PasswordReset)
	a.POST("/logout", h.Logout)
}

func providerStatus(err error) int {
	if identity.IsCredentialError(err) {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// Login signs in against the identity provider and opens a server-side
// session holding the provider refresh token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	creds, err := h.idp.SignIn(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		logger.Infof("login failed for %q: %v", req.Email, err)
		c.JSON(providerStatus(err), gin.H{"error": identity.UserMessage(err)})
		return
	}
	claims, err := h.verify(ctx, creds.IDToken)
	if err != nil {
		logger.Errorf("login: provider issued an unverifiable token: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "invalid id token"})
		return
	}
	uid := creds.UID
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if creds.DisplayName != "" {
		if _, ok := claims["name"]; !ok {
			claims["name"] = creds.DisplayName
		}
	}
	profile, err := h.profilesSvc.SeedFromClaims(ctx, uid, claims)
	if err != nil {
		// the profile is cosmetic, sign-in still succeeds
		logger.Warnf("login: seed profile %s: %v", uid, err)
	}
	sess, err := h.sessionsSvc.Open(ctx, uid, creds.Email, creds.RefreshToken)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"idToken":     creds.IDToken,
		"sessionId":   sess.ID,
		"expiresIn":   int(creds.ExpiresIn / time.Second),
		"uid":         uid,
		"email":       creds.Email,
		"displayName": profile.DisplayName,
	})
}

// Refresh trades a session id for a fresh ID token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	sess, err := h.sessionsSvc.Lookup(ctx, req.SessionID)
	if errors.Is(err, sessions.ErrSessionNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	creds, err := h.idp.Refresh(ctx, sess.ProviderRefresh)
	if err != nil {
		if identity.IsCredentialError(err) {
			// revoked or disabled upstream; the session is useless now
			_ = h.sessionsSvc.Close(ctx, sess.ID)
		}
		c.JSON(providerStatus(err), gin.H{"error": identity.UserMessage(err)})
		return
	}
	if err := h.sessionsSvc.Rotate(ctx, sess, creds.RefreshToken); err != nil {
		logger.Warnf("refresh: rotate session %s: %v", sess.UID, err)
	}
	c.JSON(http.StatusOK, gin.H{"idToken": creds.IDToken, "expiresIn": int(creds.ExpiresIn / time.Second)})
}

// PasswordReset asks the provider to email a reset link.
func (h *AuthHandler) PasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.idp.SendPasswordReset(c.Request.Context(), strings.TrimSpace(req.Email)); err != nil {
		status := http.StatusBadGateway
		if identity.IsCredentialError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": identity.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "T'hem enviat un correu per restablir la contrasenya."})
}

// Logout closes the session and blacklists the presented ID token until it
// expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && raw != "" {
		if ttl, err := tokens.RemainingTTL(raw, time.Now()); err == nil {
			if err := sessions.BlacklistIDToken(ctx, raw, ttl); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist id token"})
				return
			}
		}
	}
	if err := h.sessionsSvc.Close(ctx, req.SessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) verify(ctx context.Context, raw string) (map[string]interface{}, error) {
	tok, err := h.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	if claims == nil {
		claims = map[string]interface{}{}
	}
	return claims, nil
}
