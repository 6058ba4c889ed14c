// internal/registry/memory.go
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is the dev fallback when no registry database is configured.
// It honors the same invariants as the Postgres store, including the
// one-descriptor-per-identity rule.
type memStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]Tenant
	dsnSeen map[string]uuid.UUID
	audit   []AuditEntry
	nextID  int64
}

func NewMemoryStore() Store {
	return &memStore{byID: map[uuid.UUID]Tenant{}, dsnSeen: map[string]uuid.UUID{}}
}

func (m *memStore) Insert(_ context.Context, t Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; ok {
		return ErrConflict
	}
	m.byID[t.ID] = t
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (m *memStore) List(_ context.Context) ([]Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tenant, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) Activate(_ context.Context, id uuid.UUID, desc StoreDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if owner, seen := m.dsnSeen[desc.DSN]; seen && owner != id {
		return ErrConflict
	}
	m.dsnSeen[desc.DSN] = id
	t.StoreDSN = desc.DSN
	t.BlobNamespace = desc.BlobNamespace
	t.Status = StatusActive
	m.byID[id] = t
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	m.byID[id] = t
	return nil
}

func (m *memStore) TouchVerified(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.LastVerifiedAt = at
	m.byID[id] = t
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.audit = append(m.audit, e)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, tenantID *uuid.UUID, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []AuditEntry
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.audit[i]
		if tenantID != nil && e.TenantID != *tenantID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
