package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/services/reconciliation"
)

// ReconciliationRunner triggers an out-of-schedule reconciliation run
type ReconciliationRunner interface {
	RunManualReconciliation(ctx context.Context) (*reconciliation.Report, error)
}

// ReconciliationHandlers exposes reconciliation to operators
type ReconciliationHandlers struct {
	runner ReconciliationRunner
	logger *zap.Logger
}

// NewReconciliationHandlers creates a new instance of ReconciliationHandlers
func NewReconciliationHandlers(runner ReconciliationRunner, logger *zap.Logger) *ReconciliationHandlers {
	return &ReconciliationHandlers{runner: runner, logger: logger}
}

// Run re-checks recent ledger records against their on-chain receipts
// @Summary Run reconciliation
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} reconciliation.Report
// @Failure 403 {object} entities.ErrorResponse
// @Router /api/v1/admin/reconciliation/run [post]
func (h *ReconciliationHandlers) Run(c *gin.Context) {
	report, err := h.runner.RunManualReconciliation(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Manual reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("corrected", report.Corrected))
	c.JSON(http.StatusOK, report)
}
