package transaction

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

// RecentLimit is how many records Recent returns.
const RecentLimit = 5

// Repository defines ledger persistence operations
type Repository interface {
	Create(ctx context.Context, rec *entities.LedgerRecord) error
	UpdateStatus(ctx context.Context, id uuid.UUID, userID *uuid.UUID, status entities.TransactionStatus, txHash *string) (*entities.LedgerRecord, error)
	GetByHash(ctx context.Context, txHash string) (*entities.LedgerRecord, error)
	Exists(ctx context.Context, txHash string) (bool, error)
	List(ctx context.Context, userID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerRecord, error)
	Recent(ctx context.Context, userID uuid.UUID, n int) ([]*entities.LedgerRecord, error)
	Stats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (*entities.TransactionStats, error)
}

// Service owns the off-chain transaction ledger
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new transaction service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create validates and stores a ledger record. Status defaults to COMPLETED.
func (s *Service) Create(ctx context.Context, rec *entities.LedgerRecord) error {
	if rec.Status == "" {
		rec.Status = entities.TransactionStatusCompleted
	}
	if !rec.Type.Valid() {
		return apperrors.ValidationError("type", "type must be TRANSFER, DEPOSIT or WITHDRAWAL")
	}
	if !rec.Status.Valid() {
		return apperrors.ValidationError("status", "status must be PENDING, COMPLETED or FAILED")
	}
	if !rec.Amount.IsPositive() {
		return apperrors.ValidationError("amount", "amount must be greater than zero")
	}
	if rec.Currency == "" {
		return apperrors.ValidationError("currency", "currency is required")
	}
	rec.Currency = strings.ToUpper(rec.Currency)

	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}
	s.logger.Info("Transaction recorded",
		zap.String("id", rec.ID.String()),
		zap.String("user_id", rec.UserID.String()),
		zap.String("type", string(rec.Type)),
		zap.String("status", string(rec.Status)))
	return nil
}

// UpdateStatus changes the status of a user's record, optionally setting its hash
func (s *Service) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status entities.TransactionStatus, txHash *string) (*entities.LedgerRecord, error) {
	if !status.Valid() {
		return nil, apperrors.ValidationError("status", "status must be PENDING, COMPLETED or FAILED")
	}
	if txHash != nil && *txHash == "" {
		txHash = nil
	}
	rec, err := s.repo.UpdateStatus(ctx, id, &userID, status, txHash)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Transaction status updated", zap.String("id", id.String()), zap.String("status", string(status)))
	return rec, nil
}

// List returns a user's records, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerRecord, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperrors.ValidationError("type", "unknown transaction type")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.ValidationError("status", "unknown transaction status")
	}
	return s.repo.List(ctx, userID, filter.Normalize())
}

// Recent returns the user's latest records
func (s *Service) Recent(ctx context.Context, userID uuid.UUID) ([]*entities.LedgerRecord, error) {
	return s.repo.Recent(ctx, userID, RecentLimit)
}

// GetByHash returns the record for a transaction hash owned by userID
func (s *Service) GetByHash(ctx context.Context, userID uuid.UUID, txHash string) (*entities.LedgerRecord, error) {
	rec, err := s.repo.GetByHash(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID != userID {
		return nil, apperrors.NotFoundError("transaction")
	}
	return rec, nil
}

// Exists reports whether a record with txHash has been written
func (s *Service) Exists(ctx context.Context, txHash string) (bool, error) {
	return s.repo.Exists(ctx, txHash)
}

// Stats summarises the user's ledger; the month is the current UTC calendar month
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*entities.TransactionStats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.Stats(ctx, userID, monthStart)
}
