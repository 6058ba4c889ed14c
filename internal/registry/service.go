// internal/registry/service.go
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Service owns the tenant lifecycle. Every transition is written to the
// append-only audit log. Provisioning is synchronous: CreateTenant does
// not return an active tenant until its store exists.
type Service struct {
	store Store
	prov  Provisioner
	inval Invalidator
	cache *recordCache
	log   *zap.SugaredLogger
}

func NewService(store Store, prov Provisioner, rdb *redis.Client, cacheTTL time.Duration, log *zap.SugaredLogger) *Service {
	s := &Service{store: store, prov: prov, log: log}
	if rdb != nil {
		s.cache = &recordCache{rdb: rdb, ttl: cacheTTL}
	}
	return s
}

// SetInvalidator wires the connection router's eviction hook. Wired after
// construction because the router itself needs the registry for lookups.
func (s *Service) SetInvalidator(inv Invalidator) { s.inval = inv }

// CreateTenant allocates an identity, provisions the tenant's store and
// blob namespace, and activates the record. On provisioning failure the
// record is moved to deleting and cleanup is attempted best-effort; it is
// never left in provisioning.
func (s *Service) CreateTenant(ctx context.Context, name, contactEmail, actor string) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, fmt.Errorf("%w: empty tenant name", ErrConflict)
	}
	t := Tenant{
		ID:           uuid.New(),
		Name:         name,
		ContactEmail: contactEmail,
		Status:       StatusProvisioning,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return Tenant{}, err
	}
	s.audit(ctx, t.ID, "tenant_create", actor, "ok", "status=provisioning")

	desc, err := s.prov.Provision(ctx, t)
	if err != nil {
		s.log.Errorw("provision failed", "tenant", t.ID, "err", err)
		s.audit(ctx, t.ID, "tenant_provision", actor, "error", err.Error())
		s.failProvisioning(ctx, t, actor)
		return Tenant{}, fmt.Errorf("%w: %v", ErrProvision, err)
	}
	if err := s.store.Activate(ctx, t.ID, desc); err != nil {
		s.audit(ctx, t.ID, "tenant_activate", actor, "error", err.Error())
		s.failProvisioning(ctx, t, actor)
		return Tenant{}, fmt.Errorf("%w: activate: %v", ErrProvision, err)
	}
	s.audit(ctx, t.ID, "tenant_activate", actor, "ok", "status=active")

	out, err := s.store.GetByID(ctx, t.ID)
	if err != nil {
		return Tenant{}, err
	}
	s.cache.set(ctx, out)
	return out, nil
}

// failProvisioning is the cleanup path for a half-created tenant: mark it
// deleting, try teardown once, and tombstone on success. No automatic
// retries; partial external side effects need an operator.
func (s *Service) failProvisioning(ctx context.Context, t Tenant, actor string) {
	if err := s.store.UpdateStatus(ctx, t.ID, StatusDeleting); err != nil {
		s.log.Errorw("mark deleting", "tenant", t.ID, "err", err)
		return
	}
	s.audit(ctx, t.ID, "tenant_status", actor, "ok", "status=deleting")
	if err := s.prov.Deprovision(ctx, t); err != nil {
		s.log.Warnw("cleanup after failed provision", "tenant", t.ID, "err", err)
		return
	}
	if err := s.store.UpdateStatus(ctx, t.ID, StatusDeleted); err == nil {
		s.audit(ctx, t.ID, "tenant_status", actor, "ok", "status=deleted")
	}
	s.cache.drop(ctx, t.ID)
}

func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	if t, ok := s.cache.get(ctx, id); ok {
		return t, nil
	}
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	s.cache.set(ctx, t)
	return t, nil
}

// ListTenants is an operator-only operation; the HTTP layer enforces that.
func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.store.List(ctx)
}

// DeleteTenant tears a tenant down: deleting -> router invalidation ->
// deprovision -> deleted. The identity is never reassigned. Calling it on
// an already-deleted tenant is a no-op.
func (s *Service) DeleteTenant(ctx context.Context, id uuid.UUID, actor string) error {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == StatusDeleted {
		return nil
	}
	if err := s.store.UpdateStatus(ctx, id, StatusDeleting); err != nil {
		return err
	}
	s.cache.drop(ctx, id)
	s.audit(ctx, id, "tenant_status", actor, "ok", "status=deleting")

	s.invalidateConnections(ctx, id)
	if err := s.prov.Deprovision(ctx, t); err != nil {
		s.audit(ctx, id, "tenant_deprovision", actor, "error", err.Error())
		return fmt.Errorf("%w: %v", ErrProvision, err)
	}
	if err := s.store.UpdateStatus(ctx, id, StatusDeleted); err != nil {
		return err
	}
	s.cache.drop(ctx, id)
	s.audit(ctx, id, "tenant_status", actor, "ok", "status=deleted")
	return nil
}

// SuspendTenant pauses routing for an active tenant.
func (s *Service) SuspendTenant(ctx context.Context, id uuid.UUID, actor string) error {
	return s.transition(ctx, id, StatusActive, StatusSuspended, actor, true)
}

// ResumeTenant re-activates a suspended tenant.
func (s *Service) ResumeTenant(ctx context.Context, id uuid.UUID, actor string) error {
	return s.transition(ctx, id, StatusSuspended, StatusActive, actor, false)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to Status, actor string, evict bool) error {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != from {
		return fmt.Errorf("%w: cannot move %s tenant to %s", ErrConflict, t.Status, to)
	}
	if err := s.store.UpdateStatus(ctx, id, to); err != nil {
		return err
	}
	s.cache.drop(ctx, id)
	s.audit(ctx, id, "tenant_status", actor, "ok", "status="+string(to))
	if evict {
		s.invalidateConnections(ctx, id)
	}
	return nil
}

// invalidateConnections evicts live connections for a tenant, both in this
// process and, via the redis channel, in every other router process.
func (s *Service) invalidateConnections(ctx context.Context, id uuid.UUID) {
	if s.inval != nil {
		if err := s.inval.Invalidate(ctx, id); err != nil {
			s.log.Warnw("invalidate cached connection", "tenant", id, "err", err)
		}
	}
	s.cache.publishInvalidate(ctx, id)
}

// TouchVerified records a successful health check against the tenant's
// store. Called by the router after a connection open succeeds.
func (s *Service) TouchVerified(ctx context.Context, id uuid.UUID) {
	if err := s.store.TouchVerified(ctx, id, time.Now().UTC()); err != nil {
		s.log.Debugw("touch last_verified_at", "tenant", id, "err", err)
	}
}

// RecordInference logs a fallback role classification so operators can
// promote the label to an explicit custom profile later.
func (s *Service) RecordInference(ctx context.Context, tenantID uuid.UUID, label, tier string) {
	s.audit(ctx, tenantID, "role_inferred", "permission-engine", "ok", "label="+label+" tier="+tier)
}

func (s *Service) Audit(ctx context.Context, tenantID *uuid.UUID, limit int) ([]AuditEntry, error) {
	return s.store.ListAudit(ctx, tenantID, limit)
}

func (s *Service) audit(ctx context.Context, id uuid.UUID, op, actor, outcome, detail string) {
	e := AuditEntry{TenantID: id, Op: op, Actor: actor, Outcome: outcome, Detail: detail, At: time.Now().UTC()}
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Errorw("audit append", "tenant", id, "op", op, "err", err)
	}
}
