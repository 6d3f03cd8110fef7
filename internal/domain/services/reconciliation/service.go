// Package reconciliation re-checks recorded transfers against the chain and
// corrects ledger statuses that drifted from their on-chain outcome.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/evm"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/metrics"
	"github.com/ryzan/ryzan_service/pkg/tracing"
)

// Outcomes recorded per checked record
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReverted  = "reverted"
	OutcomeWaiting   = "waiting"
	OutcomeMissing   = "missing"
	OutcomeError     = "error"
)

// LedgerStore is the subset of the ledger repository reconciliation needs
type LedgerStore interface {
	ListRecentWithHash(ctx context.Context, since time.Time, limit int) ([]*entities.LedgerRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, userID *uuid.UUID, status entities.TransactionStatus, txHash *string) (*entities.LedgerRecord, error)
	SetBlockNumber(ctx context.Context, id uuid.UUID, block int64) error
}

// ReceiptFetcher looks up transaction receipts
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config holds reconciliation configuration
type Config struct {
	Lookback    time.Duration
	GracePeriod time.Duration
	BatchSize   int
}

// Report summarises one reconciliation run
type Report struct {
	RunType   string         `json:"run_type"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Checked   int            `json:"checked"`
	Corrected int            `json:"corrected"`
	Outcomes  map[string]int `json:"outcomes"`
}

// Service handles reconciliation operations
type Service struct {
	ledger   LedgerStore
	receipts ReceiptFetcher
	config   Config
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new reconciliation service
func NewService(ledger LedgerStore, receipts ReceiptFetcher, config Config, logger *logger.Logger) *Service {
	if config.Lookback <= 0 {
		config.Lookback = 72 * time.Hour
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = 30 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}
	return &Service{
		ledger:   ledger,
		receipts: receipts,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// RunReconciliation re-checks every hashed record in the lookback window
func (s *Service) RunReconciliation(ctx context.Context, runType string) (report *Report, err error) {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.run", attribute.String("run_type", runType))
	defer func() { tracing.EndSpan(span, err) }()

	report = &Report{
		RunType:   runType,
		StartedAt: s.now().UTC(),
		Outcomes:  make(map[string]int),
	}

	records, err := s.ledger.ListRecentWithHash(ctx, report.StartedAt.Add(-s.config.Lookback), s.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list recent records: %w", err)
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		outcome, corrected := s.check(ctx, rec)
		report.Checked++
		report.Outcomes[outcome]++
		if corrected {
			report.Corrected++
		}
		metrics.RecordReconciled(outcome)
	}

	report.Duration = s.now().Sub(report.StartedAt)
	span.SetAttributes(attribute.Int("checked", report.Checked), attribute.Int("corrected", report.Corrected))
	return report, nil
}

func (s *Service) check(ctx context.Context, rec *entities.LedgerRecord) (outcome string, corrected bool) {
	if rec.TxHash == nil {
		return OutcomeError, false
	}
	hash := common.HexToHash(*rec.TxHash)

	receipt, err := s.receipts.TransactionReceipt(ctx, hash)
	switch {
	case evm.IsNotFound(err):
		if s.now().Sub(rec.CreatedAt) < s.config.GracePeriod {
			return OutcomeWaiting, false
		}
		s.logger.Warn("Recorded transaction has no receipt, flagged for review",
			"id", rec.ID, "tx_hash", *rec.TxHash, "status", rec.Status, "age", s.now().Sub(rec.CreatedAt))
		return OutcomeMissing, s.setStatus(ctx, rec, entities.TransactionStatusPending)
	case err != nil:
		s.logger.Error("Receipt lookup failed", "id", rec.ID, "tx_hash", *rec.TxHash, "error", err)
		return OutcomeError, false
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return OutcomeReverted, s.setStatus(ctx, rec, entities.TransactionStatusFailed)
	}

	corrected = s.setStatus(ctx, rec, entities.TransactionStatusCompleted)
	// a reorg can move a transaction into a different block
	if receipt.BlockNumber != nil && (rec.BlockNumber == nil || *rec.BlockNumber != receipt.BlockNumber.Int64()) {
		if err := s.ledger.SetBlockNumber(ctx, rec.ID, receipt.BlockNumber.Int64()); err != nil {
			s.logger.Error("Failed to record block number", "id", rec.ID, "error", err)
		}
	}
	return OutcomeConfirmed, corrected
}

// setStatus moves rec to status if it differs and reports whether it changed
func (s *Service) setStatus(ctx context.Context, rec *entities.LedgerRecord, status entities.TransactionStatus) bool {
	if rec.Status == status {
		return false
	}
	if _, err := s.ledger.UpdateStatus(ctx, rec.ID, nil, status, nil); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("Failed to correct ledger status", "id", rec.ID, "to", status, "error", err)
		}
		return false
	}
	s.logger.Info("Ledger status corrected", "id", rec.ID, "tx_hash", *rec.TxHash, "from", rec.Status, "to", status)
	return true
}
