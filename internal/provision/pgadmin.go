// internal/provision/pgadmin.go
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Postgres SQLSTATEs for idempotency handling.
const (
	pgDuplicateDatabase = "42P04"
	pgUndefinedDatabase = "3D000"
)

var dbNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// pgAdmin issues CREATE/DROP DATABASE against an elevated connection.
// Admin operations are rare, so each call opens a short-lived connection
// rather than holding a pool.
type pgAdmin struct {
	adminDSN string
	log      *zap.SugaredLogger
}

func NewPostgresAdmin(adminDSN string, log *zap.SugaredLogger) DatabaseAdmin {
	return &pgAdmin{adminDSN: adminDSN, log: log}
}

func (a *pgAdmin) CreateDatabase(ctx context.Context, name string) (string, error) {
	if !dbNameRe.MatchString(name) {
		return "", fmt.Errorf("invalid database name %q", name)
	}
	conn, err := pgx.Connect(ctx, a.adminDSN)
	if err != nil {
		return "", fmt.Errorf("admin connect: %w", err)
	}
	defer conn.Close(ctx)

	// CREATE DATABASE cannot be parameterized; name is validated above.
	if _, err := conn.Exec(ctx, `CREATE DATABASE `+pgx.Identifier{name}.Sanitize()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			return "", fmt.Errorf("database %s: %w", name, ErrAlreadyProvisioned)
		}
		return "", err
	}
	return a.dsnFor(name)
}

func (a *pgAdmin) DropDatabase(ctx context.Context, name string) error {
	if !dbNameRe.MatchString(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	conn, err := pgx.Connect(ctx, a.adminDSN)
	if err != nil {
		return fmt.Errorf("admin connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `DROP DATABASE `+pgx.Identifier{name}.Sanitize()+` WITH (FORCE)`); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedDatabase {
			return nil // already gone
		}
		return err
	}
	return nil
}

// dsnFor rewrites the admin DSN to point at the tenant database.
func (a *pgAdmin) dsnFor(name string) (string, error) {
	u, err := url.Parse(a.adminDSN)
	if err != nil {
		return "", fmt.Errorf("admin dsn parse: %w", err)
	}
	u.Path = "/" + name
	return u.String(), nil
}
