package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates the resource changed concurrently or is in a state that forbids the operation.
var ErrConflict = errors.New("conflict")

// ErrInvalidStateTransition indicates a status change that the lifecycle does not allow.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// ErrInsufficientFunds indicates the available balance cannot cover the requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrLockTimeout indicates a keyed critical section could not be entered before the context ended.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// ErrInternal indicates an unexpected failure in storage or infrastructure.
var ErrInternal = errors.New("internal error")

// AppError carries an HTTP-ish status code and a user facing message next to the cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError wraps err with a status code and message.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// HTTPStatus maps an error chain to the status code the API responds with.
func HTTPStatus(err error) int {
	var appErr *AppError
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.As(err, &appErr) && appErr.Code != 0:
		return appErr.Code
	default:
		return http.StatusInternalServerError
	}
}
