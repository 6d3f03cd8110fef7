package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// RatePoint is one observation of a currency's rate
type RatePoint struct {
	Time time.Time `json:"time"`
	Rate float64   `json:"rate"`
}

// Rate trend labels
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// RateChange compares the two most recent observations of a currency
type RateChange struct {
	Currency      string  `json:"currency"`
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	ChangePercent float64 `json:"change_percent"`
	Trend         string  `json:"trend"`
}

// Rate sources
const (
	RateSourceLive     = "live"
	RateSourceFallback = "fallback"
	RateSourceIdentity = "identity"
)

// ConvertedAmount is the amount a recipient receives in their local currency
type ConvertedAmount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Rate     float64         `json:"rate"`
	Source   string          `json:"source"`
}
