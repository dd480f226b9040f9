package middleware

import (
	"errors"
	"net/http"
	"strings"

	"seorocket/internal/service"
	"seorocket/pkg/log"
	"seorocket/pkg/token"

	"github.com/gin-gonic/gin"
)

// ClaimsKey 是会话 claims 在 gin 上下文中的 key，handler 通过 c.Get("claims") 读取
const ClaimsKey = "claims"

var (
	errNoToken      = errors.New("no bearer token")
	errInvalidToken = errors.New("invalid or expired access token")
	errRevoked      = errors.New("token has been revoked")
)

// OptionalAuth 有合法 access token 时把会话注入上下文，否则按匿名请求放行。
// 公开接口靠它决定是否返回草稿。
func OptionalAuth(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticate(c, jwtManager, userService)
		if err == nil {
			c.Set(ClaimsKey, claims)
		} else if !errors.Is(err, errNoToken) {
			log.Debugf("OptionalAuth: ignoring session: %v", err)
		}
		c.Next()
	}
}

// AuthMiddleware 要求请求带有合法会话：
//  1. 从 Authorization 头提取 Bearer Token
//  2. 校验签名、有效期和 token 类型（只接受 access token）
//  3. 检查 jti 是否已被登出拉黑
//  4. 注入 claims
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtManager == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "Internal server error",
			})
			return
		}

		claims, err := authenticate(c, jwtManager, userService)
		switch {
		case err == nil:
		case errors.Is(err, errNoToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Invalid authorization header",
			})
			return
		case errors.Is(err, errInvalidToken), errors.Is(err, errRevoked):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Invalid or expired access token",
			})
			return
		default:
			log.Errorf("AuthMiddleware: failed to check session: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "Internal server error",
			})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func authenticate(c *gin.Context, jwtManager *token.JWTManager, userService service.UserService) (*token.SessionClaims, error) {
	header := c.GetHeader("Authorization")
	if strings.TrimSpace(header) == "" {
		return nil, errNoToken
	}
	tokenString, err := extractBearerToken(header)
	if err != nil {
		return nil, errNoToken
	}
	if jwtManager == nil {
		return nil, errInvalidToken
	}

	claims, err := jwtManager.VerifyToken(tokenString)
	if err != nil || claims == nil {
		return nil, errInvalidToken
	}
	// refresh token 不能冒充 access token 访问接口
	if claims.TokenType != token.TokenTypeAccess {
		return nil, errInvalidToken
	}

	if userService != nil {
		revoked, err := userService.IsRevoked(c.Request.Context(), claims)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errRevoked
		}
	}
	return claims, nil
}

// extractBearerToken 从 Authorization 请求头中提取 Bearer Token。
// 期望格式：Authorization: Bearer <token>
func extractBearerToken(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}
