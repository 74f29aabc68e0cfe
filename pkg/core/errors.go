package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. Every typed error below matches
// exactly one of them.
var (
	// ErrValidation is matched by *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is matched by *ConflictError.
	ErrConflict = errors.New("id conflict")

	// ErrNotFound is matched by *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrEngine is matched by *EngineError.
	ErrEngine = errors.New("engine failure")

	// ErrStore is matched by *StoreError.
	ErrStore = errors.New("store failure")
)

// ValidationError reports malformed or missing user input.
// Nothing was mutated.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Is implements errors.Is matching against ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Unwrap returns the underlying cause, if any.
func (e *ValidationError) Unwrap() error { return e.Cause }

// ConflictError reports an id collision that the caller declined to resolve.
type ConflictError struct {
	ID string
	// Builtin is set when the id belongs to a built-in language.
	Builtin bool
}

func (e *ConflictError) Error() string {
	if e.Builtin {
		return fmt.Sprintf("language %q is a built-in language", e.ID)
	}
	return fmt.Sprintf("language %q already exists", e.ID)
}

// Is implements errors.Is matching against ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports an operation on an id that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("language %q not found", e.ID)
}

// Is implements errors.Is matching against ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// EngineError reports a failed tokenize, list or register call.
type EngineError struct {
	Op    string
	ID    string
	Cause error
}

func (e *EngineError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("engine %s %q: %v", e.Op, e.ID, e.Cause)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Cause)
}

// Is implements errors.Is matching against ErrEngine.
func (e *EngineError) Is(target error) bool { return target == ErrEngine }

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error { return e.Cause }

// StoreError reports a persistence read or write failure.
type StoreError struct {
	Op    string // "read" or "write"
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("plugin store %s: %v", e.Op, e.Cause)
}

// Is implements errors.Is matching against ErrStore.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error { return e.Cause }
