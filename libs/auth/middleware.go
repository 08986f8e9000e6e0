package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const ContextStaffIDKey = "staff_id"

// RequireRole rejects requests without a valid staff token carrying role.
func RequireRole(secret []byte, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "missing token"})
			return
		}

		claims, err := ParseJWT(token, secret)
		if err != nil || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}
		if role != "" && !claims.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "missing role " + role})
			return
		}

		c.Set(ContextStaffIDKey, claims.Subject)
		c.Next()
	}
}

func StaffID(c *gin.Context) string {
	return c.GetString(ContextStaffIDKey)
}
