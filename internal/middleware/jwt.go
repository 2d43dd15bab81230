package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-attendance/backend/internal/auth"
	"github.com/campus-attendance/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID (uuid.UUID) in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUsername is the key for the login handle in gin context.
	ContextUsername = "username"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
// The token is read from the Authorization header, or from the "token" query
// parameter when allowQuery is set (browsers cannot set headers on websocket upgrades).
func JWT(jwtService *auth.JWTService, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, msg := bearer(c, allowQuery)
		if raw == "" {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

func bearer(c *gin.Context, allowQuery bool) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if allowQuery {
			if t := c.Query("token"); t != "" {
				return t, ""
			}
		}
		return "", "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "invalid authorization header"
	}
	return parts[1], ""
}
