// Package identity is the auth provider behind the API: account creation,
// password sign-in, JWT sessions with revocation, and profile updates.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/pkg/auth"
	"github.com/ryzan/ryzan_service/pkg/crypto"
	"github.com/ryzan/ryzan_service/pkg/security"
)

const defaultRole = "user"

// UserStore is the persistence the identity service needs
type UserStore interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	GetByPhone(ctx context.Context, phone string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

// TokenStore tracks revoked access tokens and single-use refresh tokens
type TokenStore interface {
	Blacklist(ctx context.Context, tokenHash string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, tokenHash string) (bool, error)
	StoreRefreshToken(ctx context.Context, tokenHash, userID string, ttl time.Duration) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

// SessionDropper releases per-user wallet state on sign-out
type SessionDropper interface {
	Drop(userID uuid.UUID)
}

// Config holds the password policy
type Config struct {
	BcryptCost        int
	PasswordMinLength int
}

// Service handles sign-up, sign-in and session management
type Service struct {
	users    UserStore
	issuer   *auth.Issuer
	tokens   TokenStore
	sessions SessionDropper
	hasher   *crypto.PasswordHasher
	minLen   int
	logger   *zap.Logger
}

// NewService creates an identity service. tokens and sessions may be nil,
// which disables revocation and wallet session cleanup respectively.
func NewService(users UserStore, issuer *auth.Issuer, tokens TokenStore, sessions SessionDropper, cfg Config, logger *zap.Logger) *Service {
	if cfg.PasswordMinLength <= 0 {
		cfg.PasswordMinLength = 8
	}
	return &Service{
		users:    users,
		issuer:   issuer,
		tokens:   tokens,
		sessions: sessions,
		hasher:   crypto.NewPasswordHasher(cfg.BcryptCost),
		minLen:   cfg.PasswordMinLength,
		logger:   logger,
	}
}

// SignUp registers a user and signs them in
func (s *Service) SignUp(ctx context.Context, req entities.SignUpRequest) (*entities.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, apperrors.ValidationError("email", "email is required")
	}
	if len(req.Password) < s.minLen {
		return nil, apperrors.ValidationError("password", fmt.Sprintf("password must be at least %d characters", s.minLen))
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.AlreadyExistsError("user")
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &entities.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        req.Phone,
		Metadata:     json.RawMessage("{}"),
		Role:         defaultRole,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User signed up", zap.String("user_id", user.ID.String()))
	return s.issue(ctx, user)
}

// SignIn verifies credentials and returns a fresh token pair
func (s *Service) SignIn(ctx context.Context, req entities.SignInRequest) (*entities.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.ValidatePassword(req.Password, user.PasswordHash) {
		s.logger.Warn("Sign-in failed", zap.String("email", security.MaskEmail(req.Email)))
		return nil, apperrors.InvalidCredentialsError()
	}
	if !user.IsActive {
		return nil, apperrors.UnauthorizedError("account is inactive")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to update last login", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
	return s.issue(ctx, user)
}

// GetSession validates an access token and reports its session
func (s *Service) GetSession(ctx context.Context, accessToken string) (*entities.Session, error) {
	claims, err := s.issuer.ValidateToken(accessToken)
	if err != nil {
		return nil, apperrors.UnauthorizedError("invalid or expired token")
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsBlacklisted(ctx, auth.HashToken(accessToken))
		if err != nil {
			return nil, apperrors.ServiceUnavailableError("session store", err)
		}
		if revoked {
			return nil, apperrors.UnauthorizedError("session has been revoked")
		}
	}

	return &entities.Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignOut revokes the access token, the optional refresh token and the
// user's wallet session
func (s *Service) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.issuer.ValidateToken(accessToken)
	if err != nil {
		return apperrors.UnauthorizedError("invalid or expired token")
	}

	if s.tokens != nil {
		if err := s.tokens.Blacklist(ctx, auth.HashToken(accessToken), claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("failed to revoke access token: %w", err)
		}
		if refreshToken != "" {
			if err := s.tokens.RevokeRefreshToken(ctx, auth.HashToken(refreshToken)); err != nil {
				s.logger.Warn("Failed to revoke refresh token", zap.Error(err))
			}
		}
	}

	if s.sessions != nil {
		s.sessions.Drop(claims.UserID)
	}
	s.logger.Info("User signed out", zap.String("user_id", claims.UserID.String()))
	return nil
}

// Refresh exchanges a single-use refresh token for a new token pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*entities.AuthResponse, error) {
	claims, err := s.issuer.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.UnauthorizedError("invalid refresh token")
	}

	if s.tokens != nil {
		owner, err := s.tokens.ConsumeRefreshToken(ctx, auth.HashToken(refreshToken))
		if err != nil || owner != claims.UserID.String() {
			return nil, apperrors.UnauthorizedError("refresh token not found or already used")
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.UnauthorizedError("account is inactive")
	}
	return s.issue(ctx, user)
}

// GetUser returns the public profile of id
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*entities.UserInfo, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToUserInfo(), nil
}

// UpdateUser applies profile attributes; metadata keys are merged and a
// null value removes a key
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req entities.UpdateUserRequest) (*entities.UserInfo, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = emptyToNil(*req.Phone)
	}
	if req.WalletAddress != nil {
		user.WalletAddress = emptyToNil(*req.WalletAddress)
	}
	if len(req.Metadata) > 0 {
		merged, err := mergeMetadata(user.Metadata, req.Metadata)
		if err != nil {
			return nil, err
		}
		user.Metadata = merged
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user.ToUserInfo(), nil
}

// ResolveRecipientByPhone finds the wallet of the user registered with phone
func (s *Service) ResolveRecipientByPhone(ctx context.Context, phone string) (*entities.ResolvedRecipient, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperrors.ValidationError("phone", "phone is required")
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFoundError("user")
	}
	if user.WalletAddress == nil || *user.WalletAddress == "" {
		return nil, apperrors.WalletNotConfiguredError()
	}

	name := user.FullName()
	if name == "" {
		name = "Unknown"
	}
	return &entities.ResolvedRecipient{Address: *user.WalletAddress, Name: name}, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFoundError("user")
	}
	return user, nil
}

func (s *Service) issue(ctx context.Context, user *entities.User) (*entities.AuthResponse, error) {
	pair, err := s.issuer.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	if s.tokens != nil {
		ttl := time.Until(pair.RefreshExpiresAt)
		if err := s.tokens.StoreRefreshToken(ctx, auth.HashToken(pair.RefreshToken), user.ID.String(), ttl); err != nil {
			return nil, fmt.Errorf("failed to store refresh token: %w", err)
		}
	}

	return &entities.AuthResponse{
		User:         user.ToUserInfo(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}

func mergeMetadata(current json.RawMessage, patch map[string]interface{}) (json.RawMessage, error) {
	merged := map[string]interface{}{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, fmt.Errorf("failed to decode user metadata: %w", err)
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user metadata: %w", err)
	}
	return out, nil
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
