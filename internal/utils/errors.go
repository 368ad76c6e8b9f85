package utils

import (
	"errors"
	"net/http"
)

// Domain-level sentinel errors used by the repository layer to provide
// fine-grained failure reasons.
var (
	// For optimistic-lock conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")

	ErrNoRowsUpdated = errors.New("no_rows_updated")

	// Raised inside ConvertToJobAtomic when the request already has a job.
	ErrAlreadyConverted = errors.New("already_converted")
)

// AppError is the structured error carried from services to controllers.
// StatusCode and Code are stable; Message is the human-readable copy.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewValidationError(msg string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Code: ErrCodeValidation, Message: msg}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Code: ErrCodeForbidden, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Code: ErrCodeNotFound, Message: msg}
}

// NewConflictError takes an explicit status: terminal-state violations are
// reported as 400 per the public API contract, concurrent double-conversion
// as 409.
func NewConflictError(status int, msg string) *AppError {
	return &AppError{StatusCode: status, Code: ErrCodeConflict, Message: msg}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrCodeInternal,
		Message:    "An unexpected error occurred",
		Err:        err,
	}
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
