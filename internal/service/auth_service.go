package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-rag-be/internal/config"
	"campus-rag-be/internal/dto"
	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/internal/repository/contract"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const refreshKeyPrefix = "rt:"

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUserInactive       = errors.New("user is inactive")
	ErrRefreshRevoked     = errors.New("refresh token expired or revoked")
)

type IAuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.RefreshResponse, error)
	Logout(ctx context.Context, req *dto.RefreshRequest) error
}

type authService struct {
	userRepo contract.UserRepository
	rdb      *redis.Client
	cfg      config.AuthConfig
	log      logger.ILogger
}

func NewAuthService(userRepo contract.UserRepository, rdb *redis.Client, cfg config.AuthConfig, log logger.ILogger) IAuthService {
	return &authService{
		userRepo: userRepo,
		rdb:      rdb,
		cfg:      cfg,
		log:      log,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	dept := ""
	if user.DeptId != nil {
		dept = *user.DeptId
	}
	accessToken, refreshToken, expiresIn, err := s.issueTokens(user.Id.String(), user.FullName, user.Role, dept)
	if err != nil {
		return nil, err
	}

	// Refresh tokens are whitelisted: only tokens still present in Redis
	// can mint new access tokens.
	refreshTTL := time.Duration(s.cfg.RefreshTokenDays) * 24 * time.Hour
	if err := s.rdb.Set(ctx, refreshKeyPrefix+refreshToken, user.Id.String(), refreshTTL).Err(); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.log.Info("auth", "user logged in", map[string]interface{}{
		"user_id": user.Id.String(),
		"role":    user.Role,
	})

	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
		UserInfo: map[string]interface{}{
			"name": user.FullName,
			"role": user.Role,
		},
	}, nil
}

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.RefreshResponse, error) {
	userIDStr, err := s.rdb.Get(ctx, refreshKeyPrefix+req.RefreshToken).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshRevoked
		}
		return nil, err
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, ErrRefreshRevoked
	}

	// Re-read the directory so a role change since login takes effect.
	user, err := s.userRepo.FindById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrRefreshRevoked
	}

	dept := ""
	if user.DeptId != nil {
		dept = *user.DeptId
	}
	accessToken, _, expiresIn, err := s.issueTokens(user.Id.String(), user.FullName, user.Role, dept)
	if err != nil {
		return nil, err
	}

	return &dto.RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    expiresIn,
		UserInfo: map[string]interface{}{
			"name": user.FullName,
		},
	}, nil
}

func (s *authService) Logout(ctx context.Context, req *dto.RefreshRequest) error {
	return s.rdb.Del(ctx, refreshKeyPrefix+req.RefreshToken).Err()
}

func (s *authService) issueTokens(userID, name, role, dept string) (accessToken, refreshToken string, expiresIn int, err error) {
	now := time.Now().UTC()
	accessExpire := now.Add(time.Duration(s.cfg.AccessTokenMinutes) * time.Minute)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"role": role,
		"dept": dept,
		"type": "access",
		"exp":  accessExpire.Unix(),
	})
	accessToken, err = access.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", 0, err
	}

	refreshExpire := now.Add(time.Duration(s.cfg.RefreshTokenDays) * 24 * time.Hour)
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"type": "refresh",
		"jti":  uuid.NewString(),
		"exp":  refreshExpire.Unix(),
	})
	refreshToken, err = refresh.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", 0, err
	}

	return accessToken, refreshToken, s.cfg.AccessTokenMinutes * 60, nil
}
