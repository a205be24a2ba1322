package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound              = errors.New("resource not found")
	ErrAlreadyExists         = errors.New("resource already exists")
	ErrInvalidInput          = errors.New("invalid input")
	ErrBadRequest            = errors.New("bad request")
	ErrAlreadyQueued         = errors.New("address already queued for sweep")
	ErrPendingUnresolved     = errors.New("address has an unresolved pending sweep")
	ErrSweepDisabled         = errors.New("sweeping disabled for tenant")
	ErrSeedDecryptionFailed  = errors.New("master seed decryption failed")
	ErrDerivationMismatch    = errors.New("derived address does not match stored address")
	ErrInsufficientResources = errors.New("insufficient energy or fee capacity")
	ErrBelowMinimum          = errors.New("sweepable amount below configured minimum")
	ErrEmergencyStopped      = errors.New("emergency stop active")
	ErrSignatureRejected     = errors.New("transaction signature rejected")
	ErrNotRequeueable        = errors.New("entry is not in a requeueable state")
	ErrIndexContention       = errors.New("derivation index contention, retry")
)

// AppError represents application error with HTTP status
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, ErrInvalidInput)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, message, ErrAlreadyExists)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "internal server error", err)
}
