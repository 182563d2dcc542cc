package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eventsapi/utils"
)

// Authenticate verifies the bearer token and stores "userId" in the context.
// Accepts both "Bearer <token>" and a bare token.
func Authenticate(c *gin.Context) {
	raw := c.GetHeader("Authorization")
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
		return
	}

	token := raw
	if parts := strings.SplitN(raw, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		token = parts[1]
	}

	userId, err := utils.VerifyToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
		return
	}

	c.Set("userId", userId)
	c.Next()
}
