package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error and decides how the
// orchestrator reacts to it.
type ErrorClass string

const (
	// ErrorClassCorruption indicates persisted progress could not be read.
	// Always fatal: the run aborts before any handler is invoked.
	ErrorClassCorruption ErrorClass = "corruption"

	// ErrorClassHandler indicates a handler returned an error or panicked.
	// The handler's eligible targets become failed and the run continues.
	ErrorClassHandler ErrorClass = "handler"

	// ErrorClassUnavailable indicates a handler could not run at all, for
	// example because a required capability is missing. Targets are skipped.
	ErrorClassUnavailable ErrorClass = "unavailable"

	// ErrorClassValidation indicates an invalid catalog, registry or
	// configuration definition. Fatal at startup.
	ErrorClassValidation ErrorClass = "validation"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Achievement is the achievement id involved, if any.
	Achievement string `json:"achievement,omitempty"`

	// Handler is the handler name involved, if any.
	Handler string `json:"handler,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var ctx string
	switch {
	case e.Handler != "" && e.Achievement != "":
		ctx = fmt.Sprintf(" (handler=%s, achievement=%s)", e.Handler, e.Achievement)
	case e.Handler != "":
		ctx = fmt.Sprintf(" (handler=%s)", e.Handler)
	case e.Achievement != "":
		ctx = fmt.Sprintf(" (achievement=%s)", e.Achievement)
	}

	if e.Err != nil {
		return fmt.Sprintf("[%s] %s%s: %s", e.Class, e.Message, ctx, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, ctx)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewCorruptionError creates a new corruption error.
func NewCorruptionError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassCorruption,
		Message: message,
		Code:    ErrCodeCorruptState,
		Err:     err,
	}
}

// NewHandlerError creates a new handler error.
func NewHandlerError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassHandler,
		Message: message,
		Code:    ErrCodeHandlerFailed,
		Err:     err,
	}
}

// NewUnavailableError creates a new unavailable error.
func NewUnavailableError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassUnavailable,
		Message: message,
		Code:    ErrCodeCapabilityUnavailable,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassValidation,
		Message: message,
		Code:    ErrCodeValidation,
		Err:     err,
	}
}

// WithAchievement adds achievement context to an error.
func (e *EngineError) WithAchievement(id string) *EngineError {
	e.Achievement = id
	return e
}

// WithHandler adds handler context to an error.
func (e *EngineError) WithHandler(name string) *EngineError {
	e.Handler = name
	return e
}

// WithCode sets the error code.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// IsCorruption returns true if the error is classified as corruption.
func IsCorruption(err error) bool {
	return hasClass(err, ErrorClassCorruption)
}

// IsHandler returns true if the error is classified as a handler failure.
func IsHandler(err error) bool {
	return hasClass(err, ErrorClassHandler)
}

// IsUnavailable returns true if the error is classified as unavailable.
func IsUnavailable(err error) bool {
	return hasClass(err, ErrorClassUnavailable)
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	return hasClass(err, ErrorClassValidation)
}

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// Common error codes.
const (
	ErrCodeCorruptState          = "CORRUPT_STATE"
	ErrCodeHandlerFailed         = "HANDLER_FAILED"
	ErrCodeHandlerPanic          = "HANDLER_PANIC"
	ErrCodeCapabilityUnavailable = "CAPABILITY_UNAVAILABLE"
	ErrCodeGateFailed            = "GATE_FAILED"
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeUnknownAchievement    = "UNKNOWN_ACHIEVEMENT"
	ErrCodeInvalidStatus         = "INVALID_STATUS"
)
