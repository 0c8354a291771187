package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity header names. Authentication happens upstream; the resolved caller
// arrives on these headers.
const (
	HeaderUserID  = "X-User-Id"
	HeaderRole    = "X-User-Role"
	HeaderSubrole = "X-User-Subrole"
)

// Context keys set by the access guard.
const (
	ctxUserID = "userID"
	ctxRole   = "userRole"
)

// RoleRequirement is one acceptable caller shape for a route: either a bare
// role, or a role narrowed to a set of subroles.
type RoleRequirement struct {
	role     string
	subroles []string
}

// Simple accepts any caller holding the role, whatever their subrole.
func Simple(role string) RoleRequirement {
	return RoleRequirement{role: role}
}

// WithSubroles accepts a caller holding the role only when their subrole is
// one of the listed ones.
func WithSubroles(role string, subroles ...string) RoleRequirement {
	return RoleRequirement{role: role, subroles: subroles}
}

// Allows reports whether a caller with the given role and subrole satisfies
// this requirement.
func (r RoleRequirement) Allows(role, subrole string) bool {
	if role != r.role {
		return false
	}
	if len(r.subroles) == 0 {
		return true
	}
	for _, s := range r.subroles {
		if s == subrole {
			return true
		}
	}
	return false
}

// RequireRole guards a route with a set of acceptable requirements; any match
// admits the caller. The resolved identity lands in the request context.
func RequireRole(requirements ...RoleRequirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		role := c.GetHeader(HeaderRole)
		subrole := c.GetHeader(HeaderSubrole)

		if userID == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing caller identity",
			})
			return
		}

		for _, req := range requirements {
			if req.Allows(role, subrole) {
				c.Set(ctxUserID, userID)
				c.Set(ctxRole, role)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "insufficient role",
		})
	}
}

// Identified resolves the caller without imposing a role, for routes any
// signed-in user may call.
func Identified() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing caller identity",
			})
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxRole, c.GetHeader(HeaderRole))
		c.Next()
	}
}
