package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"robotics_club_services/auth"
)

const ctxAdminKey = "admin"

// AdminOnly lets through requests carrying a valid admin bearer token and
// puts the token subject in the context.
func AdminOnly(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.JWTSecret == "" {
			Fail(c, http.StatusServiceUnavailable, "admin_disabled", "admin access is not configured")
			return
		}
		claims, err := auth.ParseAdmin(c.GetHeader("Authorization"), cfg.JWTSecret)
		switch {
		case errors.Is(err, auth.ErrNotAdmin):
			Fail(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		case err != nil:
			Fail(c, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}
		c.Set(ctxAdminKey, claims.Subject)
		c.Next()
	}
}

// AdminName is the subject of the admin token on this request, if any.
func AdminName(c *gin.Context) string { return c.GetString(ctxAdminKey) }
