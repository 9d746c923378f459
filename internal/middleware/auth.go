package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/prize-arena-payments/internal/auth"
)

const (
	// ContextUserID is the key for the caller uid in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the caller email in gin context.
	ContextUserEmail = "user_email"
	// ContextUserRole is the key for the caller role in gin context.
	ContextUserRole = "user_role"
	identityKey     = "identity"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
	IsAdmin(id *auth.Identity) bool
}

// RequireAuth validates the bearer token and stores the caller in context.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "invalid authorization header")
			return
		}
		id, err := v.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}
		if v.IsAdmin(id) {
			id.Role = auth.RoleAdmin
		}
		c.Set(identityKey, id)
		c.Set(ContextUserID, id.UID)
		c.Set(ContextUserEmail, id.Email)
		c.Set(ContextUserRole, id.Role)
		c.Next()
	}
}

// RequireAdmin allows only admins. Place after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id == nil {
			unauthorized(c, "missing user context")
			return
		}
		if id.Role != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller stored by RequireAuth, or nil.
func IdentityFrom(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return nil
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
}
