package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"seorocket/internal/model"
	"seorocket/internal/repository"
	"seorocket/pkg/hash"
	"seorocket/pkg/log"
	"seorocket/pkg/token"

	"gorm.io/gorm"
)

// UserService 负责管理员登录、登出与会话校验。
type UserService interface {
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error)
	Logout(ctx context.Context, claims *token.SessionClaims) error
	IsRevoked(ctx context.Context, claims *token.SessionClaims) (bool, error)
	GetProfile(ctx context.Context, username string) (*model.User, error)
	// EnsureAdmin 在用户表为空时创建初始管理员账号
	EnsureAdmin(ctx context.Context, username, password string) error
}

type userService struct {
	userRepo   repository.UserRepository
	blacklist  repository.TokenBlacklist
	JWTManager *token.JWTManager
}

// NewUserService blacklist 可以为 nil（未配置 Redis），此时登出只依赖令牌自然过期。
func NewUserService(userRepo repository.UserRepository, blacklist repository.TokenBlacklist, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		blacklist:  blacklist,
		JWTManager: jwtManager,
	}
}

func (s *userService) Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error) {
	if s.JWTManager == nil {
		return "", "", ErrInternal
	}
	if s.userRepo == nil {
		return "", "", ErrNotConfigured
	}
	// 1. 检查用户是否存在
	existingUser, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在，返回统一的凭证错误，防止用户枚举
			return "", "", ErrInvalidCredentials
		}
		log.Errorf("Login: failed to query user %q: %v", username, err)
		return "", "", ErrInternal
	}
	if existingUser == nil {
		return "", "", ErrInvalidCredentials
	}

	// 2. 检查密码
	if !hash.CheckPasswordHash(password, existingUser.Password) {
		return "", "", ErrInvalidCredentials
	}

	// 3. 生成令牌（使用数据库中的 Username）
	accessToken, refreshToken, err = s.JWTManager.GenerateToken(existingUser.ID, existingUser.Username)
	if err != nil {
		log.Errorf("Login: failed to generate token for user %q: %v", existingUser.Username, err)
		return "", "", ErrInternal
	}
	return accessToken, refreshToken, nil
}

// Logout 把 access token 的 jti 写入黑名单直到其过期
func (s *userService) Logout(ctx context.Context, claims *token.SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidInput
	}
	if s.blacklist == nil {
		log.Warnf("Logout: token blacklist not configured, token of %q stays valid until expiry", claims.Username)
		return nil
	}
	if err := s.blacklist.Add(ctx, claims.ID, token.Remaining(claims)); err != nil {
		log.Errorf("Logout: failed to blacklist token of %q: %v", claims.Username, err)
		return ErrInternal
	}
	return nil
}

func (s *userService) IsRevoked(ctx context.Context, claims *token.SessionClaims) (bool, error) {
	if s.blacklist == nil || claims == nil {
		return false, nil
	}
	return s.blacklist.Contains(ctx, claims.ID)
}

func (s *userService) GetProfile(ctx context.Context, username string) (*model.User, error) {
	if s.userRepo == nil {
		return nil, ErrNotConfigured
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Errorf("GetProfile: failed to query user %q: %v", username, err)
		return nil, ErrInternal
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, username, password string) error {
	if s.userRepo == nil {
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		log.Warn("EnsureAdmin: bootstrap admin credentials not configured, skipping")
		return nil
	}
	n, err := s.userRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	hashed, err := hash.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.Create(ctx, &model.User{Username: username, Password: hashed}); err != nil {
		return fmt.Errorf("failed to create admin %q: %w", username, err)
	}
	log.Infof("EnsureAdmin: created bootstrap admin %q", username)
	return nil
}
