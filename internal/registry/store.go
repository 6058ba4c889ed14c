package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract for tenant records and the operation
// log. Records are tombstoned on deletion, never removed, so identities
// are never reassigned.
type Store interface {
	Insert(ctx context.Context, t Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	// Activate records the provisioned descriptor and flips the tenant to
	// active in one write.
	Activate(ctx context.Context, id uuid.UUID, desc StoreDescriptor) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	TouchVerified(ctx context.Context, id uuid.UUID, at time.Time) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, tenantID *uuid.UUID, limit int) ([]AuditEntry, error)
}
