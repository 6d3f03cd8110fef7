package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	"github.com/ryzan/ryzan_service/internal/domain/services/transfer"
)

// TransferSession is the per-user transfer facade
type TransferSession interface {
	State() transfer.State
	Connect(ctx context.Context) transfer.InitResult
	AutoConnect(ctx context.Context) (bool, error)
	Disconnect()
	Estimate(ctx context.Context, req entities.TransferRequest) (*entities.TransferEstimate, error)
	SendMoney(ctx context.Context, req entities.TransferRequest) (*entities.SendMoneyResult, error)
	Balances(ctx context.Context) (*entities.Balances, error)
	ResetError()
	ResetLastTx()
}

// SessionLookup returns the transfer session of a user, creating it on demand
type SessionLookup func(userID uuid.UUID) TransferSession

// TransferHandlers serves transfer estimation and submission
type TransferHandlers struct {
	sessions SessionLookup
	logger   *zap.Logger
}

// NewTransferHandlers creates a new instance of TransferHandlers
func NewTransferHandlers(sessions SessionLookup, logger *zap.Logger) *TransferHandlers {
	return &TransferHandlers{sessions: sessions, logger: logger}
}

// Estimate prices a transfer without submitting it
// @Summary Estimate a transfer
// @Description Returns the network fee and, when a recipient country is given, the amount the recipient receives
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body entities.TransferRequest true "Transfer"
// @Success 200 {object} entities.TransferEstimate
// @Failure 400 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/transfers/estimate [post]
func (h *TransferHandlers) Estimate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req entities.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	est, err := h.sessions(userID).Estimate(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// Send connects the wallet if needed and submits a transfer. The call
// returns once the transaction is confirmed or has failed.
// @Summary Send a transfer
// @Description Honors the Idempotency-Key header. A failed transfer returns the result with a status derived from its error code.
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client generated key"
// @Param request body entities.TransferRequest true "Transfer"
// @Success 200 {object} entities.SendMoneyResult
// @Success 202 {object} entities.SendMoneyResult "Submitted but not confirmed"
// @Failure 400 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Failure 422 {object} entities.SendMoneyResult
// @Router /api/v1/transfers [post]
func (h *TransferHandlers) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req entities.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.sessions(userID).SendMoney(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if !res.Success {
		h.logger.Info("Transfer failed",
			zap.String("user_id", userID.String()),
			zap.String("error_code", res.ErrorCode),
			zap.String("submitted_tx_hash", res.SubmittedTxHash))
		c.JSON(StatusForCode(res.ErrorCode), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResetError clears the session's last error
// @Summary Clear transfer error
// @Tags transfers
// @Security BearerAuth
// @Success 200 {object} transfer.State
// @Router /api/v1/transfers/reset-error [post]
func (h *TransferHandlers) ResetError(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	session := h.sessions(userID)
	session.ResetError()
	c.JSON(http.StatusOK, session.State())
}

// ResetLastTx clears the session's last transaction result
// @Summary Clear last transaction
// @Tags transfers
// @Security BearerAuth
// @Success 200 {object} transfer.State
// @Router /api/v1/transfers/reset-last [post]
func (h *TransferHandlers) ResetLastTx(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	session := h.sessions(userID)
	session.ResetLastTx()
	c.JSON(http.StatusOK, session.State())
}
