package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"plancosmique/utils"

	"github.com/gin-gonic/gin"
)

// JWTAuthUserMiddleware authenticates the request and stores the user ID in
// the context. Revoked tokens are tracked in the auth cache by hash.
func JWTAuthUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}

		// Reject tokens that were explicitly revoked.
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		revoked, err := utils.GetAuthCacheClient().
			Exists(ctx, utils.AuthCachePrefix+"revoked:"+utils.HashToken(tokenString)).Result()
		if err == nil && revoked > 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Token revoked",
				"code":  1,
			})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
