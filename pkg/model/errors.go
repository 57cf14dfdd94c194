package model

import "errors"

// Error kinds surfaced by the matching engine. Callers classify failures
// with errors.Is; the concrete messages carry context.
var (
	// ErrValidation marks malformed inputs: bad radius, mismatched
	// embedding dimension, filter values that cannot be dropped.
	ErrValidation = errors.New("validation error")

	// ErrTransientDB marks retryable database failures such as connection
	// resets and server-side timeouts.
	ErrTransientDB = errors.New("transient database error")

	// ErrFatalDB marks non-retryable database failures: syntax,
	// constraint, privilege.
	ErrFatalDB = errors.New("fatal database error")

	// ErrResourceExhausted marks pool acquisition timeouts.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrCacheFault marks cache faults; the pipeline proceeds without
	// caching when it sees one.
	ErrCacheFault = errors.New("cache fault")
)
