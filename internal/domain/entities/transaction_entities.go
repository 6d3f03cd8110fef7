package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger record
type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// Valid reports whether t is a known type
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeTransfer, TransactionTypeDeposit, TransactionTypeWithdrawal:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a ledger record
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Valid reports whether s is a known status
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

// LedgerRecord is the off-chain mirror of a transfer. The chain stays the
// source of truth; this record is written after confirmation.
type LedgerRecord struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	UserID           uuid.UUID         `json:"user_id" db:"user_id"`
	Type             TransactionType   `json:"type" db:"type"`
	Status           TransactionStatus `json:"status" db:"status"`
	Amount           decimal.Decimal   `json:"amount" db:"amount"`
	Currency         string            `json:"currency" db:"currency"`
	ToAddress        string            `json:"to_address" db:"to_address"`
	TxHash           *string           `json:"tx_hash,omitempty" db:"tx_hash"`
	ChainID          int64             `json:"chain_id" db:"chain_id"`
	RecipientName    *string           `json:"recipient_name,omitempty" db:"recipient_name"`
	RecipientCountry *string           `json:"recipient_country,omitempty" db:"recipient_country"`
	ExchangeRate     *decimal.Decimal  `json:"exchange_rate,omitempty" db:"exchange_rate"`
	ReceivedAmount   *decimal.Decimal  `json:"received_amount,omitempty" db:"received_amount"`
	ReceivedCurrency *string           `json:"received_currency,omitempty" db:"received_currency"`
	BlockNumber      *int64            `json:"block_number,omitempty" db:"block_number"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// TransactionFilter narrows a ledger listing
type TransactionFilter struct {
	Limit  int
	Offset int
	Type   TransactionType
	Status TransactionStatus
}

// DefaultTransactionLimit is used when a listing does not specify a limit
const DefaultTransactionLimit = 50

// Normalize applies listing defaults
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultTransactionLimit
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// TransactionStats summarises a user's ledger
type TransactionStats struct {
	TotalSent         decimal.Decimal `json:"total_sent"`
	TotalReceived     decimal.Decimal `json:"total_received"`
	TotalTransactions int             `json:"total_transactions"`
	PendingCount      int             `json:"pending_count"`
	ThisMonthVolume   decimal.Decimal `json:"this_month_volume"`
}
