package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRequest is the input to an estimate or send.
type TransferRequest struct {
	ToAddress        string          `json:"to_address" validate:"required,eth_addr"`
	Amount           decimal.Decimal `json:"amount" validate:"required"`
	Currency         string          `json:"currency" validate:"required"`
	RecipientName    string          `json:"recipient_name,omitempty"`
	RecipientCountry string          `json:"recipient_country,omitempty" validate:"omitempty,len=2"`
}

// TransferResult is the normalized outcome of a send. Exactly one of
// Success with TxHash, or failure with Error, holds.
type TransferResult struct {
	Success     bool       `json:"success"`
	TxHash      string     `json:"tx_hash,omitempty"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	GasUsed     string     `json:"gas_used,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorCode   string     `json:"error_code,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	// SubmittedTxHash is set on a failure whose transaction reached the
	// network (unconfirmed or reverted) so it can still be tracked on-chain.
	SubmittedTxHash string `json:"submitted_tx_hash,omitempty"`
}

// TransferSucceeded builds a successful result.
func TransferSucceeded(txHash string, blockNumber, gasUsed uint64, at time.Time) TransferResult {
	return TransferResult{
		Success:     true,
		TxHash:      txHash,
		BlockNumber: blockNumber,
		GasUsed:     decimal.NewFromInt(int64(gasUsed)).String(),
		Timestamp:   &at,
	}
}

// TransferFailed builds a failed result. An empty message is replaced so the
// result never ends up with neither a hash nor an error.
func TransferFailed(code, message string) TransferResult {
	if message == "" {
		message = "transfer failed"
	}
	return TransferResult{Success: false, Error: message, ErrorCode: code}
}

// Consistent reports whether the result satisfies the success/error exclusivity rule.
func (r TransferResult) Consistent() bool {
	if r.Success {
		return r.TxHash != "" && r.Error == ""
	}
	return r.Error != "" && r.TxHash == ""
}

// TransferEstimate is advisory and not binding on the final cost.
type TransferEstimate struct {
	GasLimit          uint64           `json:"gas_limit"`
	GasPriceWei       string           `json:"gas_price_wei"`
	GasCost           string           `json:"gas_cost"`
	GasCostFiatApprox string           `json:"gas_cost_fiat_approx"`
	NetworkFee        string           `json:"network_fee"`
	EstimatedTime     string           `json:"estimated_time"`
	ExchangeRate      *float64         `json:"exchange_rate,omitempty"`
	RecipientReceives *decimal.Decimal `json:"recipient_receives,omitempty"`
	ReceivedCurrency  string           `json:"received_currency,omitempty"`
	RateSource        string           `json:"rate_source,omitempty"`
}

// TokenBalance is a formatted ERC-20 balance read from the contract.
type TokenBalance struct {
	Symbol    string `json:"symbol"`
	Balance   string `json:"balance"`
	Decimals  uint8  `json:"decimals"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Balances groups the native coin and every configured token for one owner.
type Balances struct {
	Owner  string                  `json:"owner"`
	Native TokenBalance            `json:"native"`
	Tokens map[string]TokenBalance `json:"tokens"`
}

// TransferEvent is an observed ERC-20 Transfer log.
type TransferEvent struct {
	Token       string `json:"token"`
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// SendMoneyResult is what the facade reports after a full send flow.
type SendMoneyResult struct {
	TransferResult
	SavedToLedger    bool             `json:"saved_to_ledger"`
	LedgerRecordID   string           `json:"ledger_record_id,omitempty"`
	ReceivedAmount   *decimal.Decimal `json:"received_amount,omitempty"`
	ReceivedCurrency string           `json:"received_currency,omitempty"`
	ExchangeRate     float64          `json:"exchange_rate,omitempty"`
	ExplorerURL      string           `json:"explorer_url,omitempty"`
}
