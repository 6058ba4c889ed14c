// internal/esign/store.go
package esign

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProfileNotFound = errors.New("esign: role profile not found")

// CustomProfile is an administrator-defined role profile, persisted per
// tenant.
type CustomProfile struct {
	TenantID     uuid.UUID
	Label        string
	Capabilities CapabilitySet
	CreatedAt    time.Time
}

// ProfileStore persists custom role profiles.
type ProfileStore interface {
	Get(ctx context.Context, tenantID uuid.UUID, label string) (CustomProfile, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]CustomProfile, error)
	Put(ctx context.Context, p CustomProfile) error
	Delete(ctx context.Context, tenantID uuid.UUID, label string) error
}

// pgProfileStore implements ProfileStore on the registry database; custom
// profiles are registry-level configuration, not tenant-store data.
type pgProfileStore struct {
	dbPool *pgxpool.Pool
}

func NewPostgresProfileStore(dbPool *pgxpool.Pool) ProfileStore {
	return &pgProfileStore{dbPool: dbPool}
}

// EnsureProfileSchema creates the custom profile table. Idempotent.
func EnsureProfileSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS esign_role_profiles (
  tenant_id uuid NOT NULL,
  label text NOT NULL,
  capabilities text[] NOT NULL DEFAULT '{}',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (tenant_id, label)
);
`)
	return err
}

func (s *pgProfileStore) Get(ctx context.Context, tenantID uuid.UUID, label string) (CustomProfile, error) {
	row := s.dbPool.QueryRow(ctx,
		`SELECT tenant_id, label, capabilities, created_at FROM esign_role_profiles WHERE tenant_id=$1 AND lower(label)=lower($2)`,
		tenantID, label)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomProfile{}, ErrProfileNotFound
		}
		return CustomProfile{}, err
	}
	return p, nil
}

func (s *pgProfileStore) List(ctx context.Context, tenantID uuid.UUID) ([]CustomProfile, error) {
	rows, err := s.dbPool.Query(ctx,
		`SELECT tenant_id, label, capabilities, created_at FROM esign_role_profiles WHERE tenant_id=$1 ORDER BY label`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CustomProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgProfileStore) Put(ctx context.Context, p CustomProfile) error {
	_, err := s.dbPool.Exec(ctx, `
INSERT INTO esign_role_profiles(tenant_id, label, capabilities, created_at) VALUES ($1,$2,$3,NOW())
ON CONFLICT (tenant_id, label) DO UPDATE SET capabilities=EXCLUDED.capabilities`,
		p.TenantID, strings.ToLower(p.Label), p.Capabilities.Sorted())
	return err
}

func (s *pgProfileStore) Delete(ctx context.Context, tenantID uuid.UUID, label string) error {
	tag, err := s.dbPool.Exec(ctx,
		`DELETE FROM esign_role_profiles WHERE tenant_id=$1 AND lower(label)=lower($2)`, tenantID, label)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (CustomProfile, error) {
	var p CustomProfile
	var caps []string
	if err := row.Scan(&p.TenantID, &p.Label, &caps, &p.CreatedAt); err != nil {
		return CustomProfile{}, err
	}
	p.Capabilities = CapabilitySet{}
	for _, c := range caps {
		if parsed, err := ParseCapability(c); err == nil {
			p.Capabilities[parsed] = struct{}{}
		}
	}
	return p, nil
}

// memProfileStore is the dev/test fallback.
type memProfileStore struct {
	mu       sync.Mutex
	profiles map[string]CustomProfile // key: tenantID + ":" + lower(label)
}

func NewMemoryProfileStore() ProfileStore {
	return &memProfileStore{profiles: map[string]CustomProfile{}}
}

func memKey(tenantID uuid.UUID, label string) string {
	return tenantID.String() + ":" + strings.ToLower(label)
}

func (m *memProfileStore) Get(_ context.Context, tenantID uuid.UUID, label string) (CustomProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[memKey(tenantID, label)]
	if !ok {
		return CustomProfile{}, ErrProfileNotFound
	}
	return p, nil
}

func (m *memProfileStore) List(_ context.Context, tenantID uuid.UUID) ([]CustomProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CustomProfile
	for _, p := range m.profiles {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProfileStore) Put(_ context.Context, p CustomProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Label = strings.ToLower(p.Label)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.profiles[memKey(p.TenantID, p.Label)] = p
	return nil
}

func (m *memProfileStore) Delete(_ context.Context, tenantID uuid.UUID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(tenantID, label)
	if _, ok := m.profiles[k]; !ok {
		return ErrProfileNotFound
	}
	delete(m.profiles, k)
	return nil
}
