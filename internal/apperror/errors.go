package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Category groups errors by who is at fault
type Category string

const (
	CategoryClient   Category = "client"
	CategoryServer   Category = "server"
	CategoryExternal Category = "external"
)

// Error codes
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
	CodeForbidden       = "FORBIDDEN"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeAnalyzerTimeout = "ANALYZER_TIMEOUT"
	CodeInternal        = "SERVICE_ERROR"
)

// AppError is a classified application error
type AppError struct {
	Code       string
	Message    string
	Category   Category
	HTTPStatus int
	Cause      error
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

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func New(code, message string, category Category, status int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: status,
	}
}

func Validation(message string) *AppError {
	return New(CodeValidation, message, CategoryClient, http.StatusBadRequest)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, CategoryClient, http.StatusConflict)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message, CategoryClient, http.StatusNotFound)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, CategoryClient, http.StatusForbidden)
}

// External wraps a failure of storage, analysis or transcoding.
func External(message string, cause error) *AppError {
	return New(CodeExternalService, message, CategoryExternal, http.StatusBadGateway).WithCause(cause)
}

func AnalyzerTimeout(message string) *AppError {
	return New(CodeAnalyzerTimeout, message, CategoryExternal, http.StatusGatewayTimeout)
}

func Internal(message string, cause error) *AppError {
	return New(CodeInternal, message, CategoryServer, http.StatusInternalServerError).WithCause(cause)
}

// From extracts an AppError from the chain, if any.
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	appErr, ok := From(err)
	return ok && appErr.Code == code
}
