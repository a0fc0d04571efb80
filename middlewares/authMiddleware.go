package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"civicreport-be/utils"
)

// AuthMiddleware extracts the bearer token from the Authorization header,
// verifies it and exposes the caller's identity and role to the handler.
// The "Bearer" scheme is required.
func AuthMiddleware(tokens *utils.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized: missing token"})
			c.Abort()
			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized: invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}
