// Package errs defines the error taxonomy shared across the support relay.
// Callers classify failures with errors.Is against these sentinels; layers
// add context with fmt.Errorf("...: %w", ...) wrapping.
package errs

import "errors"

var (
	// ErrValidation marks synchronously rejected input (empty body,
	// unknown status value). Surfaced to the caller with a message.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks lookups of entities that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks requests rejected before any processing:
	// non-admin callers on admin endpoints, webhook secret mismatch.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrCommandParse marks ill-formed /reply command text. Reported back
	// to the originating Telegram chat, never silently dropped.
	ErrCommandParse = errors.New("malformed command")
)
