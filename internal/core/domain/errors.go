package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates a stub arena or missing functionality.
	ErrNotImplemented = errors.New("not implemented")

	// ErrCredential indicates a credential was rejected by the platform.
	ErrCredential = errors.New("credential rejected")

	// ErrTransient indicates a network or connection failure that may
	// succeed on retry.
	ErrTransient = errors.New("transient failure")

	// ErrTimeout indicates the task's wall-clock budget expired.
	ErrTimeout = errors.New("task budget exceeded")

	// ErrRunTerminal indicates a mutation was attempted on a terminal run.
	ErrRunTerminal = errors.New("run is in a terminal state")

	// ErrCollectorClosed indicates the collector has been closed.
	ErrCollectorClosed = errors.New("collector closed")
)

// UnknownArenaError is returned when a platform id is not registered.
// It is a typed error rather than a bare "not found" so callers never
// have to probe the catalog with existence checks first.
type UnknownArenaError struct {
	Platform string
}

func (e *UnknownArenaError) Error() string {
	return fmt.Sprintf("unknown arena %q", e.Platform)
}

// DuplicateArenaError is returned when a platform id is registered twice.
type DuplicateArenaError struct {
	Platform string
}

func (e *DuplicateArenaError) Error() string {
	return fmt.Sprintf("arena %q is already registered", e.Platform)
}

// NoCredentialAvailableError is returned when no active credential exists
// for the exact (platform, tier) pair. The resolver never falls back to a
// lower tier; graceful degradation is an orchestrator decision.
type NoCredentialAvailableError struct {
	Platform string
	Tier     Tier
}

func (e *NoCredentialAvailableError) Error() string {
	return fmt.Sprintf("no active credential for %s at tier %s", e.Platform, e.Tier)
}

// UnsupportedModeError is returned when an arena is asked for a collection
// method it does not declare.
type UnsupportedModeError struct {
	Platform string
	Mode     CollectionMethod
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("arena %s does not support %s-based collection", e.Platform, e.Mode)
}

// RateLimitError is returned when a platform rejects a request for quota
// reasons. RetryAfter is the platform's hint, zero if none was given.
type RateLimitError struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Platform, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Platform)
}

// ClassifyError maps any error to the task error taxonomy. Collector
// errors are converted at the executor boundary so raw third-party
// errors never reach the orchestrator or a user-facing surface.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}

	var (
		noCred      *NoCredentialAvailableError
		rateLimited *RateLimitError
		unsupported *UnsupportedModeError
	)
	switch {
	case errors.As(err, &noCred), errors.Is(err, ErrCredential):
		return ErrorClassCredential
	case errors.As(err, &rateLimited):
		return ErrorClassRateLimit
	case errors.As(err, &unsupported):
		return ErrorClassUnsupportedMode
	case errors.Is(err, ErrNotImplemented):
		return ErrorClassNotImplemented
	case errors.Is(err, ErrTimeout):
		return ErrorClassTimeout
	case errors.Is(err, ErrTransient):
		return ErrorClassTransient
	default:
		return ErrorClassInternal
	}
}

// Retryable reports whether a task failure class is retried by the
// executor. Credential, mode, and timeout failures surface immediately.
func (c ErrorClass) Retryable() bool {
	return c == ErrorClassRateLimit || c == ErrorClassTransient
}
