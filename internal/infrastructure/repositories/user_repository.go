package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/pkg/security"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone_number, wallet_address,
	metadata, role, is_active, last_login_at, created_at, updated_at`

// UserRepository implements the user store using PostgreSQL
type UserRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if len(user.Metadata) == 0 {
		user.Metadata = []byte("{}")
	}
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :password_hash, :first_name, :last_name, :phone_number, :wallet_address,
			:metadata, :role, :is_active, :last_login_at, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.AlreadyExistsError("user")
		}
		r.logger.Error("Failed to create user", zap.Error(err), zap.String("email", security.MaskEmail(user.Email)))
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("User created successfully", zap.String("user_id", user.ID.String()))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

// GetByPhone retrieves a user by phone number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*entities.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*entities.User, error) {
	var user entities.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Update persists the profile fields of user
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	user.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE users
		SET first_name = :first_name, last_name = :last_name, phone_number = :phone_number,
			wallet_address = :wallet_address, metadata = :metadata, updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.AlreadyExistsError("phone number")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res, "user")
}

// UpdateLastLogin stamps the last successful sign-in
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`, now, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
