// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotAllowed indicates the caller may not act on the requested entity.
var ErrNotAllowed = errors.New("not allowed")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrStaleResume indicates a resume request carried an executionId that does
// not match the stored context. Stored state is left untouched.
var ErrStaleResume = errors.New("stale resume: execution id mismatch")

// ErrReconstruction indicates a serialized context references an LLM or tool
// identifier that cannot be resolved. Reconstruction fails closed; a
// half-restored context is never returned.
var ErrReconstruction = errors.New("reconstruction failed")

// ErrValidation indicates invalid input supplied by the caller.
var ErrValidation = errors.New("validation failed")
