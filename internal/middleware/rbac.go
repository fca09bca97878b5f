// rbac.go implements role-based authorization middleware.
//
// Roles are checked against the database-resolved identity at request time
// rather than being trusted from the JWT. When a user's role is changed, the
// change takes effect immediately on their next request without needing to
// invalidate or reissue their token.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// RequireRoles aborts the request unless the authenticated caller's role is in
// the allow-set. A missing identity is 401; a known identity outside the set
// is 403.
func RequireRoles(allowed []models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CurrentIdentity(c)

		if err := auth.Authorize(identity, allowed); err != nil {
			if errors.Is(err, apperr.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Not authenticated",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}
