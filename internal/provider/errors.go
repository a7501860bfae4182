package provider

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when a tool is executed on a connection that
// is not in the Ready state.
var ErrNotInitialized = errors.New("provider not initialized")

// ErrToolNotFound is returned when the requested tool is absent from the
// connection's local catalog; no provider call is attempted.
var ErrToolNotFound = errors.New("tool not found")

// ValidationError reports arguments that failed the tool's input schema
// check. It is immediate and non-retryable.
type ValidationError struct {
	Tool string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExecutionError reports a provider call that kept failing until the retry
// budget was exhausted. Err is the failure of the last attempt.
type ExecutionError struct {
	Tool     string
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed after %d attempts: %v", e.Tool, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// InitializationError reports a spawn, handshake, or catalog-fetch failure.
// The provider is excluded from the registry; other providers proceed.
type InitializationError struct {
	Provider string
	Stage    string // "spawn", "handshake", "catalog"
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize provider %q: %s: %v", e.Provider, e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
