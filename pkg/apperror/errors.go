package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Category groups error codes by the kind of rejection.
type Category string

const (
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryAuthorization  Category = "AUTHORIZATION"
	CategoryValidation     Category = "VALIDATION"
	CategoryState          Category = "STATE"
	CategoryEconomic       Category = "ECONOMIC"
	CategoryNotFound       Category = "NOT_FOUND"
	CategoryRate           Category = "RATE"
	CategorySystem         Category = "SYSTEM"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string   `json:"error_code"`
	Message    string   `json:"message"`
	Category   Category `json:"category"`
	HTTPStatus int      `json:"-"`
	Err        error    `json:"-"` // Wrapped internal error (not exposed to client)
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

// Is matches another *AppError by code, so errors.Is(err, apperror.ErrStreamPaused())
// works on freshly constructed values.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, category Category, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Category:   category,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, category Category, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Category:   category,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CategoryOf returns the category of err, or CategorySystem for foreign errors.
func CategoryOf(err error) Category {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}
	return CategorySystem
}

// ---- Authorization (AUTHZ) ----

// ErrNotEmployer is returned when someone other than the stream's employer
// calls an employer-only operation.
func ErrNotEmployer() *AppError {
	return New("AUTHZ_001", CategoryAuthorization, "Only the stream employer may perform this operation", http.StatusForbidden)
}

// ErrNotWorker is returned when someone other than the stream's worker withdraws.
func ErrNotWorker() *AppError {
	return New("AUTHZ_002", CategoryAuthorization, "Only the stream worker may perform this operation", http.StatusForbidden)
}

// ---- Validation (VAL) ----

func ErrInvalidWorker() *AppError {
	return New("VAL_001", CategoryValidation, "Invalid worker address", http.StatusBadRequest)
}

func ErrSelfStream() *AppError {
	return New("VAL_002", CategoryValidation, "Cannot stream to yourself", http.StatusBadRequest)
}

func ErrInvalidRate() *AppError {
	return New("VAL_003", CategoryValidation, "Rate must be a positive integer", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_004", CategoryValidation, "Amount must be a positive integer", http.StatusBadRequest)
}

// Validation returns a generic request validation error.
func Validation(message string) *AppError {
	return New("VAL_000", CategoryValidation, message, http.StatusBadRequest)
}

// ---- Lifecycle state (STATE) ----

func ErrStreamPaused() *AppError {
	return New("STATE_001", CategoryState, "Stream not active", http.StatusConflict)
}

func ErrStreamAlreadyActive() *AppError {
	return New("STATE_002", CategoryState, "Stream is already active", http.StatusConflict)
}

func ErrStreamTerminated() *AppError {
	return New("STATE_003", CategoryState, "Stream has been terminated", http.StatusConflict)
}

// ---- Economic (ECON) ----

func ErrNothingToWithdraw() *AppError {
	return New("ECON_001", CategoryEconomic, "Nothing to withdraw", http.StatusUnprocessableEntity)
}

func ErrInsufficientFunds() *AppError {
	return New("ECON_002", CategoryEconomic, "Insufficient available balance", http.StatusPaymentRequired)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", CategoryNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", CategoryAuthentication, "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", CategoryAuthentication, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrFundingDisabled() *AppError {
	return New("AUTH_003", CategoryAuthorization, "Account funding is disabled", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", CategoryRate, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", CategorySystem, "Internal database error", http.StatusInternalServerError, err)
}

func ErrTransferFailed(err error) *AppError {
	return Wrap("SYS_002", CategorySystem, "Asset transfer failed", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_000 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", CategorySystem, "Internal server error", http.StatusInternalServerError, err)
}
