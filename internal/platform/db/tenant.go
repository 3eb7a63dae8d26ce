package db

import (
	"context"
	"net/http"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
	txConfigKey contextKey = "db_tx_config"
)

// tenantSetting is the session variable read by the row-level security
// policies in migrations/.
const tenantSetting = "app.tenant_id"

const maxTenantIDLen = 128

var ErrNoTenant = apperr.New(apperr.KindAuth, "no_tenant", "no tenant in request context")

// WithTenant returns a child context carrying tenantID. Each request derives
// its own context, so concurrent requests never observe each other's tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// TenantFromContext retrieves the tenant ID from context. It returns "" when
// no tenant has been established.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// RequireTenant is the fail-closed accessor used by every tenant-scoped query.
func RequireTenant(ctx context.Context) (string, error) {
	tid := TenantFromContext(ctx)
	if tid == "" {
		return "", ErrNoTenant
	}
	return tid, nil
}

// ValidTenantID reports whether id is usable as a tenant identifier. IDs are
// opaque and case-sensitive; only empty, oversized or control-character
// values are rejected.
func ValidTenantID(id string) bool {
	if id == "" || len(id) > maxTenantIDLen {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TenantMiddleware binds a pooled connection to the authenticated tenant for
// the lifetime of the request. It must run after authentication has placed
// the tenant in the request context. The session setting is cleared before
// the connection goes back to the pool, whatever the handler returned.
func TenantMiddleware(pool *pgxpool.Pool, skip func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}

			ctx := c.Request().Context()
			tenantID, err := RequireTenant(ctx)
			if err != nil {
				return err
			}
			if !ValidTenantID(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return apperr.Storage(err)
			}
			defer conn.Release()

			if _, err := conn.Exec(ctx, `SELECT set_config($1, $2, false)`, tenantSetting, tenantID); err != nil {
				return apperr.Storage(err)
			}
			defer func() {
				// The request context may already be cancelled here.
				resetCtx := context.WithoutCancel(ctx)
				if _, err := conn.Exec(resetCtx, `RESET `+tenantSetting); err != nil {
					// A connection that kept another tenant's setting must not be reused.
					_ = conn.Conn().Close(resetCtx)
				}
			}()

			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("db", conn)

			return next(c)
		}
	}
}
