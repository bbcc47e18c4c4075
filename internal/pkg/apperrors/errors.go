package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrValidation ErrorType = "VALIDATION_ERROR"
	ErrNetwork    ErrorType = "NETWORK_ERROR"
	ErrReverted   ErrorType = "TX_REVERTED"
	ErrConfig     ErrorType = "CONFIG_ERROR"
	ErrAuthFailed ErrorType = "AUTH_FAILED"
	ErrInternal   ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application. TxHash is set
// whenever a transaction reached the chain so callers can inspect it on a
// block explorer. Detail mirrors Message under the field name minimal
// clients key on; code/suggestion are additive.
type AppError struct {
	Type       ErrorType `json:"code"`
	Detail     string    `json:"detail"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Detail:     msg,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewValidation(msg string) *AppError {
	return New(ErrValidation, msg, nil)
}

func NewNetwork(msg string, cause error) *AppError {
	return New(ErrNetwork, msg, cause)
}

// NewReverted reports the chain's authoritative rejection of a transaction.
// The same signed authorization must never be retried: its nonce is consumed.
func NewReverted(msg string, txHash string) *AppError {
	e := New(ErrReverted, msg, nil)
	e.TxHash = txHash
	return e
}

func NewConfig(msg string) *AppError {
	return New(ErrConfig, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrValidation, ErrReverted:
		return http.StatusBadRequest
	case ErrNetwork:
		return http.StatusServiceUnavailable
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrValidation:
		return "Fix the rejected fields and retry; no gas was spent."
	case ErrNetwork:
		return "Outcome may be ambiguous. Re-query by transaction hash before retrying."
	case ErrReverted:
		return "Inspect the transaction on a block explorer. Do not resubmit the same signed authorization."
	case ErrConfig:
		return "Operator action required: check facilitator configuration."
	case ErrAuthFailed:
		return "Check the API key."
	default:
		return ""
	}
}
