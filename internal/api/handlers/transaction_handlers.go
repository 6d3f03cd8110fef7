package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

// TransactionService reads and updates a user's ledger
type TransactionService interface {
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, status entities.TransactionStatus, txHash *string) (*entities.LedgerRecord, error)
	List(ctx context.Context, userID uuid.UUID, filter entities.TransactionFilter) ([]*entities.LedgerRecord, error)
	Recent(ctx context.Context, userID uuid.UUID) ([]*entities.LedgerRecord, error)
	GetByHash(ctx context.Context, userID uuid.UUID, txHash string) (*entities.LedgerRecord, error)
	Stats(ctx context.Context, userID uuid.UUID) (*entities.TransactionStats, error)
}

// UpdateStatusRequest changes the status of a ledger record
type UpdateStatusRequest struct {
	Status entities.TransactionStatus `json:"status" validate:"required,oneof=PENDING COMPLETED FAILED"`
	TxHash *string                    `json:"tx_hash,omitempty" validate:"omitempty,len=66,startswith=0x,hexadecimal"`
}

// TransactionListResponse is a page of ledger records
type TransactionListResponse struct {
	Transactions []*entities.LedgerRecord `json:"transactions"`
	Limit        int                      `json:"limit"`
	Offset       int                      `json:"offset"`
}

// TransactionHandlers serves the user's transaction history
type TransactionHandlers struct {
	transactions TransactionService
	logger       *zap.Logger
}

// NewTransactionHandlers creates a new instance of TransactionHandlers
func NewTransactionHandlers(transactions TransactionService, logger *zap.Logger) *TransactionHandlers {
	return &TransactionHandlers{transactions: transactions, logger: logger}
}

// List returns the user's transactions, newest first
// @Summary List transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Param type query string false "TRANSFER, DEPOSIT or WITHDRAWAL"
// @Param status query string false "PENDING, COMPLETED or FAILED"
// @Success 200 {object} TransactionListResponse
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/v1/transactions [get]
func (h *TransactionHandlers) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter := entities.TransactionFilter{
		Limit:  queryInt(c, "limit", entities.DefaultTransactionLimit),
		Offset: queryInt(c, "offset", 0),
		Type:   entities.TransactionType(strings.ToUpper(c.Query("type"))),
		Status: entities.TransactionStatus(strings.ToUpper(c.Query("status"))),
	}.Normalize()

	records, err := h.transactions.List(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if records == nil {
		records = []*entities.LedgerRecord{}
	}
	c.JSON(http.StatusOK, TransactionListResponse{Transactions: records, Limit: filter.Limit, Offset: filter.Offset})
}

// Recent returns the user's latest transactions
// @Summary Recent transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} entities.LedgerRecord
// @Router /api/v1/transactions/recent [get]
func (h *TransactionHandlers) Recent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	records, err := h.transactions.Recent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if records == nil {
		records = []*entities.LedgerRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// Stats summarises the user's ledger
// @Summary Transaction statistics
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} entities.TransactionStats
// @Router /api/v1/transactions/stats [get]
func (h *TransactionHandlers) Stats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.transactions.Stats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetByHash returns the record of a transaction hash
// @Summary Transaction by hash
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param hash path string true "Transaction hash"
// @Success 200 {object} entities.LedgerRecord
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/transactions/hash/{hash} [get]
func (h *TransactionHandlers) GetByHash(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rec, err := h.transactions.GetByHash(c.Request.Context(), userID, c.Param("hash"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UpdateStatus changes the status of one of the user's records
// @Summary Update transaction status
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Record ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} entities.LedgerRecord
// @Failure 400 {object} entities.ErrorResponse
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/transactions/{id}/status [patch]
func (h *TransactionHandlers) UpdateStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	rec, err := h.transactions.UpdateStatus(c.Request.Context(), userID, id, req.Status, req.TxHash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
