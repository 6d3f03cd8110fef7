package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

const ledgerColumns = `id, user_id, type, status, amount, currency, to_address, tx_hash, chain_id,
	recipient_name, recipient_country, exchange_rate, received_amount, received_currency,
	block_number, created_at, updated_at`

// LedgerRepository stores the off-chain transaction ledger
type LedgerRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sqlx.DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{db: db, logger: logger}
}

// Create inserts a ledger record, filling ID and timestamps when unset
func (r *LedgerRepository) Create(ctx context.Context, rec *entities.LedgerRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query := `
		INSERT INTO transactions (` + ledgerColumns + `)
		VALUES (:id, :user_id, :type, :status, :amount, :currency, :to_address, :tx_hash, :chain_id,
			:recipient_name, :recipient_country, :exchange_rate, :received_amount, :received_currency,
			:block_number, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.AlreadyExistsError("transaction")
		}
		r.logger.Error("Failed to create ledger record", zap.Error(err), zap.String("user_id", rec.UserID.String()))
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	r.logger.Debug("Ledger record created",
		zap.String("id", rec.ID.String()),
		zap.String("status", string(rec.Status)))
	return nil
}

// UpdateStatus sets status (and tx hash when given) on a record owned by userID.
// A nil userID updates regardless of owner; used by reconciliation.
func (r *LedgerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, userID *uuid.UUID, status entities.TransactionStatus, txHash *string) (*entities.LedgerRecord, error) {
	args := []interface{}{status, time.Now().UTC(), id}
	query := `UPDATE transactions SET status = $1, updated_at = $2`
	if txHash != nil {
		args = append(args, *txHash)
		query += fmt.Sprintf(", tx_hash = $%d", len(args))
	}
	query += ` WHERE id = $3`
	if userID != nil {
		args = append(args, *userID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	query += ` RETURNING ` + ledgerColumns

	var rec entities.LedgerRecord
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundError("transaction")
		}
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}
	return &rec, nil
}

// GetByID retrieves a record by ID
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.LedgerRecord, error) {
	var rec entities.LedgerRecord
	query := `SELECT ` + ledgerColumns + ` FROM transactions WHERE id = $1`

	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &rec, nil
}

// GetByHash retrieves a record by on-chain transaction hash
func (r *LedgerRepository) GetByHash(ctx context.Context, txHash string) (*entities.LedgerRecord, error) {
	var rec entities.LedgerRecord
	query := `SELECT ` + ledgerColumns + ` FROM transactions WHERE LOWER(tx_hash) = LOWER($1)`

	if err := r.db.GetContext(ctx, &rec, query, txHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction by hash: %w", err)
	}
	return &rec, nil
}

// Exists reports whether a record with txHash is already stored
func (r *LedgerRepository) Exists(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE LOWER(tx_hash) = LOWER($1))`
	if err := r.db.GetContext(ctx, &exists, query, txHash); err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

// List returns a user's records newest first
func (r *LedgerRepository) List(ctx context.Context, userID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerRecord, error) {
	filter = filter.Normalize()

	conds := []string{"user_id = $1"}
	args := []interface{}{userID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	records := make([]*entities.LedgerRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return records, nil
}

// Recent returns the user's latest n records
func (r *LedgerRepository) Recent(ctx context.Context, userID uuid.UUID, n int) ([]*entities.LedgerRecord, error) {
	return r.List(ctx, userID, entities.TransactionFilter{Limit: n})
}

// ListRecentWithHash returns every record carrying a tx hash created after
// since, newest first. Settled records are included so a reorg or a late
// revert can still be detected.
func (r *LedgerRepository) ListRecentWithHash(ctx context.Context, since time.Time, limit int) ([]*entities.LedgerRecord, error) {
	query := `SELECT ` + ledgerColumns + ` FROM transactions
		WHERE tx_hash IS NOT NULL AND created_at >= $1
		ORDER BY created_at DESC LIMIT $2`

	records := make([]*entities.LedgerRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}
	return records, nil
}

// SetBlockNumber records the block a transaction was mined in
func (r *LedgerRepository) SetBlockNumber(ctx context.Context, id uuid.UUID, block int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET block_number = $1, updated_at = $2 WHERE id = $3`,
		block, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set block number: %w", err)
	}
	return nil
}

type statsRow struct {
	TotalSent       decimal.Decimal `db:"total_sent"`
	TotalReceived   decimal.Decimal `db:"total_received"`
	Total           int             `db:"total"`
	Pending         int             `db:"pending"`
	ThisMonthVolume decimal.Decimal `db:"this_month_volume"`
}

// Stats aggregates a user's ledger. Sent covers TRANSFER and WITHDRAWAL,
// received covers DEPOSIT; failed records are excluded from volumes.
func (r *LedgerRepository) Stats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (*entities.TransactionStats, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type IN ('TRANSFER', 'WITHDRAWAL') AND status <> 'FAILED'), 0) AS total_sent,
			COALESCE(SUM(amount) FILTER (WHERE type = 'DEPOSIT' AND status <> 'FAILED'), 0) AS total_received,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
			COALESCE(SUM(amount) FILTER (WHERE created_at >= $2 AND status <> 'FAILED'), 0) AS this_month_volume
		FROM transactions
		WHERE user_id = $1`

	var row statsRow
	if err := r.db.GetContext(ctx, &row, query, userID, monthStart); err != nil {
		return nil, fmt.Errorf("failed to compute transaction stats: %w", err)
	}
	return &entities.TransactionStats{
		TotalSent:         row.TotalSent,
		TotalReceived:     row.TotalReceived,
		TotalTransactions: row.Total,
		PendingCount:      row.Pending,
		ThisMonthVolume:   row.ThisMonthVolume,
	}, nil
}
