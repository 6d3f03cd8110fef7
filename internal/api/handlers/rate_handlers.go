package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

const maxHistoryDays = 365

// RateService exposes exchange rates to clients
type RateService interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
	GetCurrentRates(ctx context.Context, symbols []string) (map[string]float64, error)
	GetHistory(ctx context.Context, currencyCode string, days int) ([]entities.RatePoint, error)
	GetRateChange(ctx context.Context, currencyCode string) (*entities.RateChange, error)
	CalculateReceived(ctx context.Context, amount decimal.Decimal, fromFiat, country string) (*entities.ConvertedAmount, error)
}

// RateResponse is a single exchange rate
type RateResponse struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

// ConvertRequest asks what a recipient in Country receives for Amount
type ConvertRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	From    string          `json:"from" validate:"required,len=3"`
	Country string          `json:"country" validate:"required,len=2"`
}

// RateHandlers serves exchange rate lookups
type RateHandlers struct {
	rates  RateService
	logger *zap.Logger
}

// NewRateHandlers creates a new instance of RateHandlers
func NewRateHandlers(rates RateService, logger *zap.Logger) *RateHandlers {
	return &RateHandlers{rates: rates, logger: logger}
}

// Latest returns the rate between two currencies
// @Summary Latest rate
// @Tags rates
// @Produce json
// @Param from query string true "Source currency"
// @Param to query string true "Target currency"
// @Success 200 {object} RateResponse
// @Failure 503 {object} entities.ErrorResponse
// @Router /api/v1/rates/latest [get]
func (h *RateHandlers) Latest(c *gin.Context) {
	from := strings.ToUpper(c.Query("from"))
	to := strings.ToUpper(c.Query("to"))
	if len(from) != 3 || len(to) != 3 {
		SendBadRequest(c, ErrCodeValidationError, "from and to must be ISO 4217 codes")
		return
	}

	rate, err := h.rates.GetRate(c.Request.Context(), from, to)
	if err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, RateResponse{From: from, To: to, Rate: rate})
}

// Current returns EUR-based rates for a list of currencies
// @Summary Current rates
// @Tags rates
// @Produce json
// @Param symbols query string false "Comma separated currency codes"
// @Success 200 {object} map[string]float64
// @Failure 503 {object} entities.ErrorResponse
// @Router /api/v1/rates/current [get]
func (h *RateHandlers) Current(c *gin.Context) {
	symbols := lo.Compact(lo.Map(strings.Split(c.Query("symbols"), ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))

	rates, err := h.rates.GetCurrentRates(c.Request.Context(), symbols)
	if err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"base": "EUR", "rates": rates})
}

// History returns the EUR-based rate of a currency over recent days
// @Summary Rate history
// @Tags rates
// @Produce json
// @Param currency query string true "Currency code"
// @Param days query int false "Days of history" default(7)
// @Success 200 {array} entities.RatePoint
// @Failure 503 {object} entities.ErrorResponse
// @Router /api/v1/rates/history [get]
func (h *RateHandlers) History(c *gin.Context) {
	currency := c.Query("currency")
	if len(currency) != 3 {
		SendBadRequest(c, ErrCodeValidationError, "currency must be an ISO 4217 code")
		return
	}
	days := queryInt(c, "days", 7)
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	points, err := h.rates.GetHistory(c.Request.Context(), currency, days)
	if err != nil {
		h.unavailable(c, err)
		return
	}
	if points == nil {
		points = []entities.RatePoint{}
	}
	c.JSON(http.StatusOK, points)
}

// Change compares today's rate of a currency with the previous business day
// @Summary Rate change
// @Tags rates
// @Produce json
// @Param currency query string true "Currency code"
// @Success 200 {object} entities.RateChange
// @Failure 503 {object} entities.ErrorResponse
// @Router /api/v1/rates/change [get]
func (h *RateHandlers) Change(c *gin.Context) {
	currency := c.Query("currency")
	if len(currency) != 3 {
		SendBadRequest(c, ErrCodeValidationError, "currency must be an ISO 4217 code")
		return
	}

	change, err := h.rates.GetRateChange(c.Request.Context(), currency)
	if err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

// Convert computes what a recipient abroad receives
// @Summary Convert amount for recipient
// @Description Falls back to a static rate table when the live feed is unavailable
// @Tags rates
// @Accept json
// @Produce json
// @Param request body ConvertRequest true "Amount and destination"
// @Success 200 {object} entities.ConvertedAmount
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/v1/rates/convert [post]
func (h *RateHandlers) Convert(c *gin.Context) {
	var req ConvertRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		respondError(c, h.logger, apperrors.ValidationError("amount", "amount must be positive"))
		return
	}

	conv, err := h.rates.CalculateReceived(c.Request.Context(), req.Amount, req.From, req.Country)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *RateHandlers) unavailable(c *gin.Context, err error) {
	h.logger.Warn("Exchange rate lookup failed", zap.String("path", c.FullPath()), zap.Error(err))
	respondError(c, h.logger, apperrors.ServiceUnavailableError("exchange rate", err))
}
