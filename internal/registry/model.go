package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Lifecycle statuses for a tenant record.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
	StatusDeleting     Status = "deleting"
	StatusDeleted      Status = "deleted"
)

var (
	ErrNotFound = errors.New("registry: tenant not found")
	ErrConflict = errors.New("registry: conflict")
	// ErrProvision wraps store-provisioning failures surfaced by CreateTenant
	// and DeleteTenant. Never retried automatically; the record is left in a
	// state an operator can act on.
	ErrProvision = errors.New("registry: provision failed")
)

// Tenant is one isolated customer organization. The store descriptor and
// blob namespace are exclusive to this identity and never reused, even
// after deletion.
type Tenant struct {
	ID             uuid.UUID
	Name           string
	ContactEmail   string
	StoreDSN       string // opaque descriptor, sufficient to open the tenant's store
	BlobNamespace  string
	Status         Status
	CreatedAt      time.Time
	LastVerifiedAt time.Time // zero until the first successful health touch
}

// StoreDescriptor is what the provisioner hands back for a fresh store.
type StoreDescriptor struct {
	DSN           string
	Database      string
	BlobNamespace string
}

// AuditEntry is one row of the append-only operation log.
type AuditEntry struct {
	ID       int64
	TenantID uuid.UUID
	Op       string
	Actor    string
	Outcome  string
	Detail   string
	At       time.Time
}

// Provisioner creates and destroys the physical per-tenant resources.
// Implemented by internal/provision.
type Provisioner interface {
	Provision(ctx context.Context, t Tenant) (StoreDescriptor, error)
	Deprovision(ctx context.Context, t Tenant) error
}

// Invalidator evicts any live cached connection for a tenant. Implemented
// by the connection router; wired after construction to keep the registry
// free of router imports.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}
