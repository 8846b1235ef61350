// Package errors provides centralized error definitions for the discovery engine.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import (
	"errors"
	"fmt"
)

// Iteration-level errors. These confine a failure to one iteration; the
// orchestrator downgrades them to a NO_PROGRESS decision.
var (
	// ErrTransientIO indicates a network or store timeout that may succeed on retry.
	ErrTransientIO = errors.New("transient io failure")

	// ErrJudgeParse indicates the LLM returned a response that could not be
	// parsed into a decision.
	ErrJudgeParse = errors.New("judge response unparseable")

	// ErrNoResults indicates a search returned no usable results.
	ErrNoResults = errors.New("no results")

	// ErrScrapeFailed indicates content could not be fetched from a URL.
	ErrScrapeFailed = errors.New("scrape failed")
)

// Run-level errors. These terminate an entity run.
var (
	// ErrStoreFailure indicates a store write failed after retry.
	ErrStoreFailure = errors.New("store failure")
)

// Batch-level errors.
var (
	// ErrInvalidEntity indicates an entity is missing required fields.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrConfigInvalid indicates the budget or template configuration is invalid.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Lookup errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrHypothesisNotFound indicates a hypothesis id does not exist.
	ErrHypothesisNotFound = errors.New("hypothesis not found")

	// ErrBindingNotFound indicates no binding exists for (entity, template).
	// It wraps ErrNotFound so callers checking the generic sentinel still match.
	ErrBindingNotFound = fmt.Errorf("%w: binding", ErrNotFound)
)

// Cache errors.
var (
	// ErrCacheNotFound indicates a cache entry was not found.
	ErrCacheNotFound = errors.New("cache entry not found")

	// ErrCacheExpired indicates a cache entry has expired.
	ErrCacheExpired = errors.New("cache entry expired")
)

// Provider errors.
var (
	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrNoProvidersAvailable indicates every provider in a registry is down or disabled.
	ErrNoProvidersAvailable = errors.New("no providers available")

	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
