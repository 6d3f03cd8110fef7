// Package errors provides standardized error types for the domain layer.
// Transfer failures are expressed as DomainErrors with stable codes so the
// API layer can map them to responses without string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error categories
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrConflict indicates a conflict with the current state
	ErrConflict = errors.New("conflict")

	// ErrServiceUnavailable indicates a dependency is temporarily unavailable
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Wallet and transfer categories
var (
	ErrNoProvider          = errors.New("no wallet provider available")
	ErrUserRejected        = errors.New("rejected by user")
	ErrChainSwitch         = errors.New("chain switch failed")
	ErrNotInitialized      = errors.New("wallet not initialized")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInsufficientGas     = errors.New("insufficient funds for network fee")
	ErrUnconfirmed         = errors.New("transaction not confirmed")
	ErrReverted            = errors.New("transaction reverted")
	ErrOperationInProgress = errors.New("operation already in progress")
)

// Error codes surfaced to API clients
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNoProvider          = "NO_WALLET_PROVIDER"
	CodeUserRejected        = "USER_REJECTED"
	CodeChainSwitch         = "CHAIN_SWITCH_FAILED"
	CodeNotInitialized      = "WALLET_NOT_INITIALIZED"
	CodeUnsupportedCurrency = "UNSUPPORTED_CURRENCY"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInsufficientGas     = "INSUFFICIENT_GAS"
	CodeUnconfirmed         = "TRANSACTION_UNCONFIRMED"
	CodeReverted            = "TRANSACTION_REVERTED"
	CodeInProgress          = "OPERATION_IN_PROGRESS"
	CodeTransferFailed      = "TRANSFER_FAILED"
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// NotFoundError creates a not found error
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", strings.ToUpper(resource)),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// AlreadyExistsError creates an already exists error
func AlreadyExistsError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrAlreadyExists,
		Code:    fmt.Sprintf("%s_ALREADY_EXISTS", strings.ToUpper(strings.ReplaceAll(resource, " ", "_"))),
		Message: fmt.Sprintf("%s already exists", resource),
	}
}

// ValidationError creates a validation error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    CodeValidation,
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// UnauthorizedError creates an unauthorized error
func UnauthorizedError(message string) *DomainError {
	return &DomainError{
		Err:     ErrUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// ServiceUnavailableError creates a service unavailable error
func ServiceUnavailableError(service string, err error) *DomainError {
	de := &DomainError{
		Err:       ErrServiceUnavailable,
		Code:      "SERVICE_UNAVAILABLE",
		Message:   fmt.Sprintf("%s service is temporarily unavailable", service),
		Retryable: true,
	}
	if err != nil {
		de.Details = map[string]interface{}{
			"cause": err.Error(),
		}
	}
	return de
}

// NoProviderError reports that no wallet capability could be detected.
func NoProviderError(reason string) *DomainError {
	return &DomainError{
		Err:     ErrNoProvider,
		Code:    CodeNoProvider,
		Message: "no wallet detected, install a wallet or configure a signer",
		Details: map[string]interface{}{"reason": reason},
	}
}

// UserRejectedError reports a user declining a wallet prompt.
func UserRejectedError(action string) *DomainError {
	return &DomainError{
		Err:     ErrUserRejected,
		Code:    CodeUserRejected,
		Message: fmt.Sprintf("%s cancelled by user", action),
	}
}

// ChainSwitchError wraps a failed switch or add-chain request.
func ChainSwitchError(chainID uint64, err error) *DomainError {
	return &DomainError{
		Err:     fmt.Errorf("%w: %v", ErrChainSwitch, err),
		Code:    CodeChainSwitch,
		Message: fmt.Sprintf("could not switch wallet to chain %d: %v", chainID, err),
	}
}

// NotInitializedError is returned when an operation needs a wallet session.
func NotInitializedError() *DomainError {
	return &DomainError{
		Err:     ErrNotInitialized,
		Code:    CodeNotInitialized,
		Message: "wallet not initialized, connect your wallet first",
	}
}

// UnsupportedCurrencyError reports a currency with no token on the active network.
func UnsupportedCurrencyError(currency string) *DomainError {
	return &DomainError{
		Err:     ErrUnsupportedCurrency,
		Code:    CodeUnsupportedCurrency,
		Message: fmt.Sprintf("unsupported currency %q on this network", currency),
	}
}

// InsufficientBalanceError carries the human readable balance and shortfall.
func InsufficientBalanceError(symbol, balance, shortfall string) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientBalance,
		Code:    CodeInsufficientBalance,
		Message: fmt.Sprintf("insufficient balance: you have %s %s, short by %s", balance, symbol, shortfall),
		Details: map[string]interface{}{
			"balance":   balance,
			"shortfall": shortfall,
			"currency":  symbol,
		},
	}
}

// InsufficientGasError reports that the sender cannot pay the network fee.
func InsufficientGasError() *DomainError {
	return &DomainError{
		Err:     ErrInsufficientGas,
		Code:    CodeInsufficientGas,
		Message: "insufficient funds for network fee",
	}
}

// UnconfirmedTransactionError is distinct from a revert: the transaction may still land.
func UnconfirmedTransactionError(txHash string) *DomainError {
	return &DomainError{
		Err:       ErrUnconfirmed,
		Code:      CodeUnconfirmed,
		Message:   "transaction not confirmed",
		Details:   map[string]interface{}{"tx_hash": txHash},
		Retryable: true,
	}
}

// RevertedTransactionError reports a mined transaction with a failed status.
func RevertedTransactionError(txHash string) *DomainError {
	return &DomainError{
		Err:     ErrReverted,
		Code:    CodeReverted,
		Message: "transaction reverted on-chain",
		Details: map[string]interface{}{"tx_hash": txHash},
	}
}

// InProgressError rejects a second concurrent operation on the same session.
func InProgressError(operation string) *DomainError {
	return &DomainError{
		Err:     ErrOperationInProgress,
		Code:    CodeInProgress,
		Message: fmt.Sprintf("%s already in progress", operation),
	}
}

// WalletNotConfiguredError reports a user that exists but has no wallet address.
func WalletNotConfiguredError() *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    "WALLET_NOT_CONFIGURED",
		Message: "wallet not configured",
	}
}

// InvalidCredentialsError is returned for any failed sign-in.
func InvalidCredentialsError() *DomainError {
	return &DomainError{
		Err:     ErrUnauthorized,
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
	}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsServiceUnavailable checks if an error reports an unavailable dependency
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrNoProvider)
}
