//go:build integration

// Package integration runs the repositories, transactor and tenant middleware
// against a live PostgreSQL. Set HMTP_TEST_DATABASE_URL to use an existing
// server; otherwise a postgres:16-alpine container is started with docker.
//
//	go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/migrations"
)

// appRole owns no tables and has no BYPASSRLS, so the row security
// policies apply to it even when the test server connects as a superuser.
const appRole = "hmtp_app"

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	// Admin connects as the migrating user, which owns the schema.
	Admin *pgxpool.Pool
	// App runs every statement as appRole.
	App     *pgxpool.Pool
	ConnStr string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupDatabase(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("HMTP_TEST_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	admin, err := db.NewPool(ctx, connStr, db.PoolOptions{})
	if err != nil {
		stop()
		return nil, nil, err
	}

	if _, err := db.NewMigrator(admin, migrations.FS).Up(ctx); err != nil {
		admin.Close()
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if err := grantAppRole(ctx, admin); err != nil {
		admin.Close()
		stop()
		return nil, nil, fmt.Errorf("create %s role: %w", appRole, err)
	}

	app, err := newAppPool(ctx, connStr, 4)
	if err != nil {
		admin.Close()
		stop()
		return nil, nil, err
	}

	return &testDB{Admin: admin, App: app, ConnStr: connStr}, func() {
		app.Close()
		admin.Close()
		stop()
	}, nil
}

func grantAppRole(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '`+appRole+`') THEN
				CREATE ROLE `+appRole+` NOLOGIN NOSUPERUSER NOBYPASSRLS;
			END IF;
		END
		$$;
		GRANT USAGE ON SCHEMA public TO `+appRole+`;
		GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO `+appRole+`;
		GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO `+appRole+`;`)
	return err
}

// newAppPool opens a small pool whose connections switch to appRole as soon
// as they are established.
func newAppPool(ctx context.Context, connStr string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET ROLE "+appRole)
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create app pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping as %s: %w", appRole, err)
	}
	return pool, nil
}

// withTenantConn acquires an app connection, binds tenantID the way
// TenantMiddleware does, and passes a context carrying both to fn.
func withTenantConn(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(ctx context.Context) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT set_config('app.tenant_id', $1, false)`, tenantID); err != nil {
		return fmt.Errorf("set tenant: %w", err)
	}
	defer conn.Exec(context.WithoutCancel(ctx), `RESET app.tenant_id`)

	ctx = db.WithTenant(ctx, tenantID)
	ctx = context.WithValue(ctx, db.DBConnKey, conn)
	return fn(ctx)
}

// uniqueTenantID generates a unique tenant ID for test isolation.
func uniqueTenantID(prefix string) string {
	short := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	return fmt.Sprintf("%s_%s", prefix, short)
}

// countRows counts tenantID's rows in table on the admin pool, binding the
// tenant for the transaction so the count holds whether or not the admin
// user is subject to row security.
func countRows(t *testing.T, table, tenantID string) int {
	t.Helper()
	ctx := context.Background()
	var n int
	err := pgx.BeginFunc(ctx, globalDB.Admin, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`SELECT count(*) FROM `+pgx.Identifier{table}.Sanitize()+` WHERE tenant_id = $1`, tenantID).Scan(&n)
	})
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
