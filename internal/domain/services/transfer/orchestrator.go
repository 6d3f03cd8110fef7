package transfer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/pkg/logger"
	"github.com/ryzan/ryzan_service/pkg/metrics"
)

const completionTimeout = 15 * time.Second

// LedgerWriter persists confirmed transfers.
type LedgerWriter interface {
	Create(ctx context.Context, record *entities.LedgerRecord) error
}

// ReceiptNotifier tells the sender that a transfer completed.
type ReceiptNotifier interface {
	TransferCompleted(ctx context.Context, userID uuid.UUID, record *entities.LedgerRecord) error
}

// Orchestrator runs the post-confirmation steps of a send: recipient
// conversion, the ledger write and the receipt notification. None of them
// can turn a confirmed transfer into a failure.
type Orchestrator struct {
	ledger   LedgerWriter
	rates    RateConverter
	notifier ReceiptNotifier
	chain    entities.ChainConfig
	logger   *logger.Logger
}

func NewOrchestrator(ledger LedgerWriter, rates RateConverter, notifier ReceiptNotifier, chain entities.ChainConfig, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:   ledger,
		rates:    rates,
		notifier: notifier,
		chain:    chain,
		logger:   logger,
	}
}

// Complete records a confirmed transfer. It runs detached from ctx's
// cancellation so a dropped client cannot lose the ledger entry.
func (o *Orchestrator) Complete(ctx context.Context, userID uuid.UUID, req entities.TransferRequest, res entities.TransferResult) *entities.SendMoneyResult {
	out := &entities.SendMoneyResult{TransferResult: res}
	if !res.Success {
		return out
	}
	out.ExplorerURL = o.chain.GetExplorerURL(entities.ExplorerTx, res.TxHash)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completionTimeout)
	defer cancel()

	conv := o.convert(ctx, req)
	out.ReceivedAmount = &conv.Amount
	out.ReceivedCurrency = conv.Currency
	out.ExchangeRate = conv.Rate

	record := o.buildRecord(userID, req, res, conv)
	if err := o.ledger.Create(ctx, record); err != nil {
		metrics.RecordLedgerWriteFailure()
		o.logger.Error("Failed to record confirmed transfer",
			"user_id", userID, "tx_hash", res.TxHash, "error", err)
		return out
	}
	out.SavedToLedger = true
	out.LedgerRecordID = record.ID.String()

	if o.notifier != nil {
		if err := o.notifier.TransferCompleted(ctx, userID, record); err != nil {
			o.logger.Warn("Transfer receipt not sent", "user_id", userID, "tx_hash", res.TxHash, "error", err)
		}
	}
	return out
}

func (o *Orchestrator) convert(ctx context.Context, req entities.TransferRequest) entities.ConvertedAmount {
	fiat := entities.FiatForToken(req.Currency)
	identity := entities.ConvertedAmount{Amount: req.Amount, Currency: fiat, Rate: 1, Source: entities.RateSourceIdentity}
	if req.RecipientCountry == "" || o.rates == nil {
		return identity
	}
	conv, err := o.rates.CalculateReceived(ctx, req.Amount, fiat, req.RecipientCountry)
	if err != nil {
		o.logger.Warn("Recipient conversion unavailable", "country", req.RecipientCountry, "error", err)
		return identity
	}
	return *conv
}

func (o *Orchestrator) buildRecord(userID uuid.UUID, req entities.TransferRequest, res entities.TransferResult, conv entities.ConvertedAmount) *entities.LedgerRecord {
	txHash := res.TxHash
	rate := decimal.NewFromFloat(conv.Rate)
	received := conv.Amount
	receivedCurrency := conv.Currency

	record := &entities.LedgerRecord{
		ID:               uuid.New(),
		UserID:           userID,
		Type:             entities.TransactionTypeTransfer,
		Status:           entities.TransactionStatusCompleted,
		Amount:           req.Amount,
		Currency:         strings.ToUpper(req.Currency),
		ToAddress:        req.ToAddress,
		TxHash:           &txHash,
		ChainID:          int64(o.chain.ChainID),
		ExchangeRate:     &rate,
		ReceivedAmount:   &received,
		ReceivedCurrency: &receivedCurrency,
	}
	if res.BlockNumber > 0 {
		block := int64(res.BlockNumber)
		record.BlockNumber = &block
	}
	if req.RecipientName != "" {
		name := req.RecipientName
		record.RecipientName = &name
	}
	if req.RecipientCountry != "" {
		country := strings.ToUpper(req.RecipientCountry)
		record.RecipientCountry = &country
	}
	return record
}
