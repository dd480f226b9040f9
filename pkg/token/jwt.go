package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType 区分访问令牌和刷新令牌，防止 refresh token 被当作 access token 使用
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const issuer = "seorocket"

// JWTManager 负责签发与校验管理后台会话令牌
type JWTManager struct {
	secretKey            []byte
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
}

// SessionClaims 是管理员会话的 Claims。
// 后台没有角色体系：持有合法 access token 即视为管理员会话。
type SessionClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func NewJWTManager(secretKey string, accessTokenDuration, refreshTokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:            []byte(secretKey),
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
	}
}

// GenerateToken 生成一对 access / refresh 令牌，每个令牌带独立的 jti，登出时按 jti 拉黑。
func (manager *JWTManager) GenerateToken(userID uint, username string) (string, string, error) {
	now := time.Now()
	accessToken, err := manager.sign(userID, username, TokenTypeAccess, now, manager.accessTokenDuration)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := manager.sign(userID, username, TokenTypeRefresh, now, manager.refreshTokenDuration)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (manager *JWTManager) sign(userID uint, username, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := &SessionClaims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        GenerateRandomString(16),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(manager.secretKey)
}

// VerifyToken 校验签名与有效期，只接受 HS256。
func (manager *JWTManager) VerifyToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return manager.secretKey, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	return claims, nil
}

// Remaining 返回令牌剩余有效期，用作黑名单 key 的 TTL。
func Remaining(claims *SessionClaims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	d := time.Until(claims.ExpiresAt.Time)
	if d < 0 {
		return 0
	}
	return d
}

// GenerateRandomString 生成 length 字节的随机数并做 hex 编码
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
