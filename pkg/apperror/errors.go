package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

const (
	CodeListingUnavailable       = "MKT_001"
	CodeNotOwner                 = "MKT_002"
	CodeAlreadyFinalized         = "MKT_003"
	CodeSelfPurchase             = "MKT_004"
	CodeDuplicateListing         = "MKT_005"
	CodeInsufficientFunds        = "LED_001"
	CodeInsufficientAfterReserve = "LED_002"
	CodeChainSubmissionFailed    = "CHN_001"
	CodeChainTimeout             = "CHN_002"
	CodeBatchNotFound            = "BAT_001"
	CodeInvalidBatch             = "BAT_002"
	CodeValidation               = "PAY_002"
	CodeNotFound                 = "PAY_004"
	CodeInvalidToken             = "AUTH_003"
	CodeRateLimitExceeded        = "RATE_001"
	CodeInternal                 = "SYS_001"
	CodeLockTimeout              = "SYS_002"
	CodeChainUnavailable         = "SYS_004"
)

// ---- Marketplace (MKT) ----

func ErrListingUnavailable() *AppError {
	return New(CodeListingUnavailable, "Listing is no longer available", http.StatusConflict)
}

func ErrNotOwner() *AppError {
	return New(CodeNotOwner, "Requester does not own this item", http.StatusForbidden)
}

func ErrAlreadyFinalized() *AppError {
	return New(CodeAlreadyFinalized, "Listing is already sold or cancelled", http.StatusConflict)
}

func ErrSelfPurchase() *AppError {
	return New(CodeSelfPurchase, "Cannot purchase your own listing", http.StatusBadRequest)
}

func ErrDuplicateListing() *AppError {
	return New(CodeDuplicateListing, "Item already has an active listing", http.StatusConflict)
}

// ---- Ledger (LED) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance", http.StatusPaymentRequired)
}

// ErrInsufficientBalanceAfterReservation is returned when the debit failed and the
// listing could not be released; the settlement is flagged for reconciliation.
func ErrInsufficientBalanceAfterReservation(err error) *AppError {
	return Wrap(CodeInsufficientAfterReserve, "Insufficient balance; listing held for reconciliation", http.StatusPaymentRequired, err)
}

// ---- Chain (CHN) ----

func ErrChainSubmissionFailed(err error) *AppError {
	return Wrap(CodeChainSubmissionFailed, "On-chain settlement failed; purchase reverted", http.StatusBadGateway, err)
}

func ErrChainTimeout() *AppError {
	return New(CodeChainTimeout, "On-chain confirmation timed out; settlement pending", http.StatusAccepted)
}

// ---- Batch (BAT) ----

func ErrBatchNotFound() *AppError {
	return New(CodeBatchNotFound, "Batch operation not found", http.StatusNotFound)
}

func ErrInvalidBatch(message string) *AppError {
	return New(CodeInvalidBatch, message, http.StatusBadRequest)
}

// ---- Generic ----

func ErrInvalidAmount() *AppError {
	return New(CodeValidation, "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrChainUnavailable(err error) *AppError {
	return Wrap(CodeChainUnavailable, "Blockchain node unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
