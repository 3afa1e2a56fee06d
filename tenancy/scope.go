// Package tenancy defines the tenant/workspace scope that every persistence
// and generation operation is bound to. A bare human-readable id is never
// unique on its own; the Scope supplies the rest of the composite key.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for scope validation.
var (
	ErrTenantRequired    = errors.New("tenant id is required")
	ErrWorkspaceRequired = errors.New("workspace id is required")
	ErrInvalidID         = errors.New("invalid id: must be alphanumeric with hyphens, no path separators")
)

// idPattern validates human-readable ids: alphanumeric with hyphens, 1-64 chars.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,62}[A-Za-z0-9])?$`)

// Scope identifies one workspace within one tenant. All store lookups and
// generation calls carry a Scope; there is no operation keyed on a bare id.
type Scope struct {
	TenantID    string `json:"tenant_id" yaml:"tenant_id"`
	WorkspaceID string `json:"workspace_id" yaml:"workspace_id"`
}

// Validate checks that both scope components are present and well-formed.
func (s Scope) Validate() error {
	if s.TenantID == "" {
		return ErrTenantRequired
	}
	if s.WorkspaceID == "" {
		return ErrWorkspaceRequired
	}
	if err := ValidateID(s.WorkspaceID); err != nil {
		return err
	}
	return nil
}

// String returns the scope in tenant/workspace form for logging.
func (s Scope) String() string {
	return s.TenantID + "/" + s.WorkspaceID
}

// ValidateID checks that a human-readable id is safe for use in composite
// keys and file names.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	// Prevent path traversal through ids embedded in derived identifiers
	if strings.Contains(id, "..") || strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	return nil
}

// ctxKey is an unexported type used as the context key for Scope.
type ctxKey struct{}

// WithScope returns a new context with the given Scope attached.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// ScopeFromContext retrieves the Scope from the context.
// Returns the zero value and false if no scope is set.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}
