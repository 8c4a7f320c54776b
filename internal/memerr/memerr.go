// Package memerr defines the sentinel error kinds shared across the memory
// core. Read paths never panic; they return these via errors.Is/As or report
// absence directly (see spec §7). Write-path failures are wrapped with
// fmt.Errorf("...: %w", err) at the call site, not converted to a sentinel.
package memerr

import "errors"

var (
	// ErrNotFound indicates a requested id or path does not exist. Read paths
	// return this (or a zero value + false) rather than panicking.
	ErrNotFound = errors.New("not found")

	// ErrBlockedPath indicates a mutation targeted a path this core refuses
	// to touch (the self-knowledge subsystem's safeguarded directories).
	ErrBlockedPath = errors.New("blocked path")

	// ErrCorrupt indicates a malformed on-disk record was encountered and
	// skipped; it is informational, logged by the caller, never fatal to the
	// surrounding read.
	ErrCorrupt = errors.New("corrupt record")

	// ErrDimensionMismatch indicates an embedding vector's length does not
	// match the index's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
