package middleware

import (
	"net/http"

	"seorocket/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 是后台接口的门禁，必须在 AuthMiddleware 或 OptionalAuth 之后执行。
// 后台没有角色体系，只检查上下文中是否有会话。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ClaimsKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Admin session required",
			})
			return
		}
		if claims, ok := v.(*token.SessionClaims); !ok || claims == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "Failed to read session",
			})
			return
		}
		c.Next()
	}
}
