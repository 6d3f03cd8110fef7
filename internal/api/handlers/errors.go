package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

// Error codes produced by the HTTP layer itself
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidationError = apperrors.CodeValidation
	ErrCodeInvalidID       = "INVALID_ID"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
)

const (
	MsgInvalidRequest = "Invalid request payload"
	MsgUnauthorized   = "Authentication required"
	MsgInternalError  = "Internal server error"
)

// codeStatus maps domain error codes whose HTTP status cannot be derived from
// the error category alone
var codeStatus = map[string]int{
	apperrors.CodeValidation:          http.StatusBadRequest,
	apperrors.CodeUnsupportedCurrency: http.StatusBadRequest,
	apperrors.CodeNoProvider:          http.StatusServiceUnavailable,
	apperrors.CodeUserRejected:        http.StatusConflict,
	apperrors.CodeChainSwitch:         http.StatusBadGateway,
	apperrors.CodeNotInitialized:      http.StatusConflict,
	apperrors.CodeInsufficientBalance: http.StatusUnprocessableEntity,
	apperrors.CodeInsufficientGas:     http.StatusUnprocessableEntity,
	apperrors.CodeUnconfirmed:         http.StatusAccepted,
	apperrors.CodeReverted:            http.StatusUnprocessableEntity,
	apperrors.CodeInProgress:          http.StatusConflict,
	apperrors.CodeTransferFailed:      http.StatusUnprocessableEntity,
	"INVALID_CREDENTIALS":             http.StatusUnauthorized,
}

// StatusForCode returns the HTTP status for a domain error code
func StatusForCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusForError picks the HTTP status for err
func StatusForError(err error) int {
	if status, ok := codeStatus[apperrors.GetErrorCode(err)]; ok {
		return status
	}
	switch {
	case apperrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case apperrors.IsUnauthorized(err):
		return http.StatusUnauthorized
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsConflict(err):
		return http.StatusConflict
	case apperrors.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as an ErrorResponse. Errors that are not domain
// errors are logged and reported as a generic internal error.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusForError(err)
	code := apperrors.GetErrorCode(err)

	if status >= http.StatusInternalServerError && code == "UNKNOWN_ERROR" {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		sendError(c, http.StatusInternalServerError, ErrCodeInternalError, MsgInternalError, nil)
		return
	}

	sendError(c, status, code, err.Error(), apperrors.GetErrorDetails(err))
}

func sendError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string) {
	sendError(c, http.StatusBadRequest, code, message, nil)
}

// SendUnauthorized sends a 401 Unauthorized error
func SendUnauthorized(c *gin.Context, message string) {
	sendError(c, http.StatusUnauthorized, ErrCodeUnauthorized, message, nil)
}

// SendValidationError sends a validation error with field details
func SendValidationError(c *gin.Context, message string, fieldErrors map[string]string) {
	sendError(c, http.StatusBadRequest, ErrCodeValidationError, message, map[string]interface{}{
		"validation_errors": fieldErrors,
	})
}
