package transfer

import (
	"errors"
	"strings"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
	"github.com/ryzan/ryzan_service/internal/infrastructure/adapters/wallet"
)

// classify maps a provider, node or domain error onto the user-facing
// transfer error taxonomy. Unrecognized errors keep their message.
func classify(err error) *apperrors.DomainError {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return de
	}
	if wallet.IsUserRejection(err) {
		return apperrors.UserRejectedError("transaction")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return apperrors.InsufficientGasError()
	case strings.Contains(msg, "transfer amount exceeds balance"):
		return &apperrors.DomainError{
			Err:     apperrors.ErrInsufficientBalance,
			Code:    apperrors.CodeInsufficientBalance,
			Message: "insufficient token balance",
		}
	}
	return &apperrors.DomainError{
		Err:     err,
		Code:    apperrors.CodeTransferFailed,
		Message: err.Error(),
	}
}

func failed(err error) entities.TransferResult {
	de := classify(err)
	return entities.TransferFailed(de.Code, de.Message)
}

// outcome labels a result for metrics.
func outcome(r entities.TransferResult) string {
	if r.Success {
		return "success"
	}
	return strings.ToLower(r.ErrorCode)
}
