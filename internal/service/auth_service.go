package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/lab-order-service/internal/auth"
	"github.com/spec-kit/lab-order-service/internal/config"
	"github.com/spec-kit/lab-order-service/internal/domain"
	"github.com/spec-kit/lab-order-service/internal/repository"
	apperrors "github.com/spec-kit/lab-order-service/pkg/util"
)

// UserSummary is the caller-facing view of a user. The password hash never
// leaves the service layer.
type UserSummary struct {
	ID    string
	Email string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLHours),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates a new account. The existence check runs before the insert;
// the unique index on email is the backstop for concurrent registrations.
func (s *AuthService) Register(ctx context.Context, email, password string) (*UserSummary, error) {
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("user already exists", nil)
	} else if err != pgx.ErrNoRows {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return &UserSummary{ID: user.ID, Email: user.Email}, nil
}

// Login authenticates a user and issues a signed token. Unknown email and
// wrong password fail identically so callers cannot probe for accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	if email == "" || password == "" {
		return "", time.Time{}, apperrors.NewValidationError("email and password required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// VerifyToken checks a token's signature and expiry. Pure verification, no
// store access.
func (s *AuthService) VerifyToken(token string) (string, error) {
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return "", apperrors.NewUnauthorized("invalid or expired token")
	}
	return claims.UserID, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
