package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

const recipientColumns = `id, user_id, name, wallet_address, email, country, note, is_favorite, created_at, updated_at`

// RecipientRepository stores users' address books
type RecipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// Create stores a new recipient
func (r *RecipientRepository) Create(ctx context.Context, rec *entities.Recipient) error {
	query := `
		INSERT INTO recipients (` + recipientColumns + `)
		VALUES (:id, :user_id, :name, :wallet_address, :email, :country, :note, :is_favorite, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

// GetByID retrieves a recipient owned by userID
func (r *RecipientRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*entities.Recipient, error) {
	var rec entities.Recipient
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1 AND user_id = $2`

	if err := r.db.GetContext(ctx, &rec, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &rec, nil
}

// ListByUser returns favorites first, then by name
func (r *RecipientRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Recipient, error) {
	recipients := make([]*entities.Recipient, 0)
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE user_id = $1 ORDER BY is_favorite DESC, name ASC`

	if err := r.db.SelectContext(ctx, &recipients, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get recipients: %w", err)
	}
	return recipients, nil
}

// Update overwrites the writable fields of a recipient
func (r *RecipientRepository) Update(ctx context.Context, rec *entities.Recipient) error {
	rec.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE recipients
		SET name = :name, wallet_address = :wallet_address, email = :email, country = :country,
			note = :note, is_favorite = :is_favorite, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`

	res, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("failed to update recipient: %w", err)
	}
	return requireRow(res, "recipient")
}

// ToggleFavorite flips the favorite flag and returns the new value
func (r *RecipientRepository) ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	var favorite bool
	query := `UPDATE recipients SET is_favorite = NOT is_favorite, updated_at = $1
		WHERE id = $2 AND user_id = $3 RETURNING is_favorite`

	if err := r.db.GetContext(ctx, &favorite, query, time.Now().UTC(), id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, apperrors.NotFoundError("recipient")
		}
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorite, nil
}

// Delete removes a recipient owned by userID
func (r *RecipientRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete recipient: %w", err)
	}
	return requireRow(res, "recipient")
}

func requireRow(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundError(resource)
	}
	return nil
}
