package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/bumpstory/internal/models"
	"github.com/terra-clan/bumpstory/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Revoker keeps a denylist of token IDs until they expire
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Service handles registration, login, logout and token checks
type Service struct {
	repo        storage.Repository
	jwt         *JWTManager
	hasher      *PasswordHasher
	revocations Revoker
	minPassword int
	logger      *slog.Logger
}

// NewService creates the auth service; revocations may be nil
func NewService(repo storage.Repository, jwt *JWTManager, hasher *PasswordHasher, revocations Revoker, minPassword int) *Service {
	return &Service{
		repo:        repo,
		jwt:         jwt,
		hasher:      hasher,
		revocations: revocations,
		minPassword: minPassword,
		logger:      slog.Default().With("component", "auth"),
	}
}

// Register creates a new member account and signs it in
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(req.Password) < s.minPassword {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, s.minPassword)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		Role:         models.RoleMember,
		CreatedAt:    now,
		LastLoginAt:  &now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.MaskedEmail())
	return s.issue(user)
}

// Login verifies credentials and returns a fresh access token
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Warn("failed login", "email", user.MaskedEmail())
		}
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	return s.issue(user)
}

func (s *Service) issue(user *models.User) (*models.AuthResponse, error) {
	token, expiresAt, err := s.jwt.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes the presented token for the rest of its lifetime.
// revoked is false when no denylist is configured: the token stays valid
// until it expires and only the client can forget it.
func (s *Service) Logout(ctx context.Context, claims *Claims) (revoked bool, err error) {
	if s.revocations == nil {
		s.logger.Warn("token revocation disabled, logout is client-side only",
			"user_id", claims.UserID,
			"expires_at", claims.ExpiresAt,
		)
		return false, nil
	}
	ttl := claims.TTL(time.Now())
	if ttl == 0 {
		return true, nil
	}
	if err := s.revocations.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info("user logged out", "user_id", claims.UserID)
	return true, nil
}

// Authenticate validates a bearer token and checks it was not revoked.
// A denylist outage is logged and does not lock users out.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			s.logger.Warn("revocation check failed", "error", err)
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}
