package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicreport-be/models"
)

// RequireAdmin composes after AuthMiddleware and rejects non-admin
// callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("user_role") != string(models.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden: admin only"})
			c.Abort()
			return
		}
		c.Next()
	}
}
