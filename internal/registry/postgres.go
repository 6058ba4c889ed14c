// internal/registry/postgres.go
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed registry store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id uuid PRIMARY KEY,
  name text NOT NULL,
  contact_email text,
  store_dsn text UNIQUE,
  blob_namespace text,
  status text NOT NULL DEFAULT 'provisioning',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  last_verified_at timestamptz
);
CREATE TABLE IF NOT EXISTS tenant_audit (
  id BIGSERIAL PRIMARY KEY,
  tenant_id uuid NOT NULL,
  op text NOT NULL,
  actor text,
  outcome text,
  detail text,
  at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS tenant_audit_tenant_idx ON tenant_audit(tenant_id, at DESC);
`)
	return err
}

const tenantCols = `id, name, COALESCE(contact_email,''), COALESCE(store_dsn,''), COALESCE(blob_namespace,''), status, created_at, COALESCE(last_verified_at, 'epoch'::timestamptz)`

func (s *pgStore) Insert(ctx context.Context, t Tenant) error {
	_, err := s.dbPool.Exec(ctx,
		`INSERT INTO tenants(id, name, contact_email, status, created_at) VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.Name, t.ContactEmail, string(t.Status), t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *pgStore) GetByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id=$1`, id)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (s *pgStore) List(ctx context.Context) ([]Tenant, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT `+tenantCols+` FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *pgStore) Activate(ctx context.Context, id uuid.UUID, desc StoreDescriptor) error {
	tag, err := s.dbPool.Exec(ctx,
		`UPDATE tenants SET store_dsn=$1, blob_namespace=$2, status=$3 WHERE id=$4`,
		desc.DSN, desc.BlobNamespace, string(StatusActive), id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// store_dsn is UNIQUE: a descriptor may never serve two identities
			return ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.dbPool.Exec(ctx, `UPDATE tenants SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) TouchVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE tenants SET last_verified_at=$1 WHERE id=$2`, at, id)
	return err
}

func (s *pgStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_, err := s.dbPool.Exec(ctx,
		`INSERT INTO tenant_audit(tenant_id, op, actor, outcome, detail, at) VALUES ($1,$2,$3,$4,$5,$6)`,
		e.TenantID, e.Op, e.Actor, e.Outcome, e.Detail, e.At)
	return err
}

func (s *pgStore) ListAudit(ctx context.Context, tenantID *uuid.UUID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows pgx.Rows
	var err error
	if tenantID != nil {
		rows, err = s.dbPool.Query(ctx,
			`SELECT id, tenant_id, op, COALESCE(actor,''), COALESCE(outcome,''), COALESCE(detail,''), at
			 FROM tenant_audit WHERE tenant_id=$1 ORDER BY at DESC LIMIT $2`, *tenantID, limit)
	} else {
		rows, err = s.dbPool.Query(ctx,
			`SELECT id, tenant_id, op, COALESCE(actor,''), COALESCE(outcome,''), COALESCE(detail,''), at
			 FROM tenant_audit ORDER BY at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Op, &e.Actor, &e.Outcome, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	var status string
	if err := row.Scan(&t.ID, &t.Name, &t.ContactEmail, &t.StoreDSN, &t.BlobNamespace, &status, &t.CreatedAt, &t.LastVerifiedAt); err != nil {
		return Tenant{}, err
	}
	t.Status = Status(status)
	return t, nil
}
