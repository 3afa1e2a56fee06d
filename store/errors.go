package store

import "errors"

// Sentinel errors returned by store operations. Callers match them with
// errors.Is; the concrete message carries the composite key that failed.
var (
	// ErrNotFound indicates no row matches the full composite key.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a create collided with an existing row
	// under the same composite key.
	ErrAlreadyExists = errors.New("already exists")

	// ErrReferenceViolation indicates a write referenced a parent or sibling
	// outside its own tenant/workspace scope. The write is rejected before
	// any row is touched.
	ErrReferenceViolation = errors.New("reference violation")

	// ErrCollisionExhausted indicates id allocation gave up after the retry
	// ceiling. The commit that triggered allocation fails; nothing persists.
	ErrCollisionExhausted = errors.New("id allocation exhausted")

	// ErrPermissionDenied indicates the actor may not mutate the row, e.g.
	// editing a comment written by somebody else.
	ErrPermissionDenied = errors.New("permission denied")
)
