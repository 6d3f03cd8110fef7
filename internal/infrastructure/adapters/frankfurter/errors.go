package frankfurter

import (
	"errors"
	"fmt"
)

// APIError represents a Frankfurter API error response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("frankfurter API error [%d]", e.StatusCode)
	}
	return fmt.Sprintf("frankfurter API error [%d]: %s", e.StatusCode, e.Message)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

var (
	ErrMalformedResponse = errors.New("malformed rates response")
	ErrRateNotFound      = errors.New("rate not present in response")
)
