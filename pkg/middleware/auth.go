package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lacuina/content-service/internal/sessions"
	"github.com/lacuina/content-service/pkg/logger"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

const (
	claimsKey  = "claims"
	idTokenKey = "idToken"
)

// AuthMiddleware returns a Gin middleware that verifies Bearer ID tokens
// using the provided verifier and rejects tokens revoked by logout.
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		revoked, err := sessions.IsIDTokenBlacklisted(c.Request.Context(), token)
		if err != nil {
			logger.Warnf("auth: blacklist lookup failed: %v", err)
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		// Extract claims
		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}
		if claimString(claims, "user_id") == "" && claimString(claims, "sub") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(idTokenKey, token)
		c.Next()
	}
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// Claims returns the verified claims of the request, if any.
func Claims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	cm, _ := v.(map[string]interface{})
	return cm
}

// UID is the identity-provider user id of the caller ("" when anonymous).
func UID(c *gin.Context) string {
	cm := Claims(c)
	if uid := claimString(cm, "user_id"); uid != "" {
		return uid
	}
	return claimString(cm, "sub")
}

func Email(c *gin.Context) string { return claimString(Claims(c), "email") }

// IDToken is the raw bearer token the caller authenticated with.
func IDToken(c *gin.Context) string { return c.GetString(idTokenKey) }
