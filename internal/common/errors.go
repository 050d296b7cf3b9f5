// Package common defines shared constants and sentinel errors used across
// the client, the gateway and the repositories. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal        = errors.New("internal error")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVersionConflict   = errors.New("version conflict")

	// Request validation errors.
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")

	// Archive and packaging errors, detected before any I/O.
	ErrCorruptArchive        = errors.New("corrupt archive")
	ErrMultipleFilesPerField = errors.New("multiple files supplied for one field")

	// Prefetch errors.
	ErrMetadataMissing = errors.New("documents metadata missing")
	ErrHashMismatch    = errors.New("archive hash mismatch")

	// Network or storage SDK failure.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)
