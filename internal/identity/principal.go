package identity

import (
	"github.com/google/uuid"
)

// Kind discriminates the two classes of authenticated callers.
type Kind string

const (
	// SystemOperator operates only against the tenant registry and
	// carries no tenant claim.
	SystemOperator Kind = "system_operator"
	// TenantUser is bound to exactly one tenant for its whole lifetime.
	TenantUser Kind = "tenant_user"
)

// Principal is the authenticated actor behind a request. TenantID is set
// iff Kind == TenantUser. Kind is derived from the credential's own claims
// and never from request parameters.
type Principal struct {
	Kind     Kind
	TenantID uuid.UUID
	Subject  string
	Role     string // free-form role label, resolved later by the permission engine
}
