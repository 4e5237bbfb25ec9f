package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorCode string

const (
	ErrInternalServer             ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidInput               ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData         ErrorCode = "INVALID_REQUEST_DATA"
	ErrUnauthorized               ErrorCode = "UNAUTHORIZED"
	ErrForbidden                  ErrorCode = "FORBIDDEN"
	ErrNotFound                   ErrorCode = "NOT_FOUND"
	ErrTokenExpired               ErrorCode = "TOKEN_EXPIRED"
	ErrInvalidTokenFormat         ErrorCode = "INVALID_TOKEN_FORMAT"
	ErrMissingAuthorizationHeader ErrorCode = "MISSING_AUTHORIZATION_HEADER"
	ErrUnknownAction              ErrorCode = "UNKNOWN_ACTION"

	// Configuration
	ErrConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrInvalidConfig  ErrorCode = "INVALID_CONFIG"

	// Contention
	ErrLockNotAcquired       ErrorCode = "LOCK_NOT_ACQUIRED"
	ErrSlotUnavailable       ErrorCode = "SLOT_UNAVAILABLE"
	ErrAlreadyHasAppointment ErrorCode = "ALREADY_HAS_APPOINTMENT"
	ErrTooManyRequests       ErrorCode = "TOO_MANY_REQUESTS"

	// Store
	ErrSlotNotFound  ErrorCode = "SLOT_NOT_FOUND"
	ErrSlotIntegrity ErrorCode = "SLOT_INTEGRITY"
	ErrStoreWrite    ErrorCode = "STORE_WRITE_FAILED"
	ErrGetFailed     ErrorCode = "GET_FAILED"

	// Reservation state
	ErrNotReserved       ErrorCode = "NOT_RESERVED"
	ErrPastAppointment   ErrorCode = "PAST_APPOINTMENT"
	ErrInvalidCancelLink ErrorCode = "INVALID_CANCEL_LINK"
	ErrReportDisabled    ErrorCode = "REPORT_DISABLED"
)

// Kind groups error codes into the classes the dispatch boundary reacts to.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindContention    Kind = "contention"
	KindIntegrity     Kind = "integrity"
	KindStoreWrite    Kind = "store_write"
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind classifies the error code.
func (e *AppError) Kind() Kind {
	switch e.Code {
	case ErrConfigNotFound, ErrInvalidConfig:
		return KindConfiguration
	case ErrLockNotAcquired, ErrSlotUnavailable, ErrAlreadyHasAppointment, ErrTooManyRequests:
		return KindContention
	case ErrSlotIntegrity:
		return KindIntegrity
	case ErrStoreWrite:
		return KindStoreWrite
	case ErrUnauthorized, ErrForbidden, ErrPastAppointment, ErrTokenExpired,
		ErrInvalidTokenFormat, ErrMissingAuthorizationHeader, ErrInvalidCancelLink:
		return KindAuthorization
	case ErrInvalidInput, ErrInvalidRequestData, ErrNotReserved, ErrUnknownAction, ErrReportDisabled:
		return KindValidation
	case ErrNotFound, ErrSlotNotFound:
		return KindNotFound
	default:
		return KindInternal
	}
}

// Retryable reports whether the same call may succeed if the caller tries again.
// The engine itself never retries.
func (e *AppError) Retryable() bool {
	return e.Code == ErrLockNotAcquired || e.Code == ErrTooManyRequests
}

// Is matches another *AppError by code so errors.Is works against sentinels built with NewAppError.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if stderrors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Code == code
}
