package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"

	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Transport and protocol failures talking to the WhatsApp bridge.
	ErrCodeBridgeUnavailable ErrorCode = "BRIDGE_UNAVAILABLE"
	ErrCodeBridgeProtocol    ErrorCode = "BRIDGE_PROTOCOL"

	// Pairing outcomes reported by the bridge.
	ErrCodeSessionBlocked ErrorCode = "SESSION_BLOCKED"
	ErrCodePairingExpired ErrorCode = "PAIRING_EXPIRED"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

var codeStatus = map[ErrorCode]int{
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeInvalidToken:      http.StatusUnauthorized,
	ErrCodeForbidden:         http.StatusForbidden,
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeMissingRequired:   http.StatusBadRequest,
	ErrCodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodePairingExpired:    http.StatusGone,
	ErrCodeSessionBlocked:    http.StatusLocked,
	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	ErrCodeBridgeProtocol:    http.StatusBadGateway,
	ErrCodeBridgeUnavailable: http.StatusServiceUnavailable,
}

// AppError carries a stable code and a client-facing message. The cause is
// kept for logs and errors.Is, never serialized.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// HTTPStatus is the response status for the code, 500 when unmapped.
func (e *AppError) HTTPStatus() int {
	if status, ok := codeStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, resource+" not found")
}

func InvalidInput(field, reason string) *AppError {
	err := New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
	err.Details = map[string]string{"field": field}
	return err
}

func MissingRequired(field string) *AppError {
	err := New(ErrCodeMissingRequired, field+" is required")
	err.Details = map[string]string{"field": field}
	return err
}

func PayloadTooLarge(limit int64) *AppError {
	err := New(ErrCodePayloadTooLarge, "Request body too large")
	err.Details = map[string]int64{"maxBytes": limit}
	return err
}

func BridgeUnavailable(cause error) *AppError {
	return Wrap(ErrCodeBridgeUnavailable, "Bridge unreachable", cause)
}

func BridgeProtocol(message string) *AppError {
	return New(ErrCodeBridgeProtocol, message)
}

func SessionBlocked(reason string) *AppError {
	return New(ErrCodeSessionBlocked, reason)
}

func PairingExpired() *AppError {
	return New(ErrCodePairingExpired, "Pairing code has expired")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// As finds the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, ErrCodeInternal for plain errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
