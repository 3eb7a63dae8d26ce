package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hmtp/hmtp/internal/platform/db"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// WithPrincipal stores p in ctx together with its tenant.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, PrincipalKey, p)
	return db.WithTenant(ctx, p.TenantID)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}

// UserIDFromContext returns the authenticated user's id, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return 0
}

// RoleFromContext returns the authenticated user's role, or "".
func RoleFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.Role
	}
	return ""
}

// Middleware authenticates every non-public request and establishes the
// tenant for everything downstream. The tenant lives only in the derived
// request context, so it is gone when the request ends.
func Middleware(gate *Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if Skipper(c) {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return ErrInvalidToken.WithMessage("missing authorization header")
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				return ErrInvalidToken.WithMessage("invalid authorization format")
			}

			ctx := c.Request().Context()
			p, err := gate.Authenticate(ctx, strings.TrimSpace(token))
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return err
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			c.Set("tenant_id", p.TenantID)
			c.Set("user_id", p.UserID)

			return next(c)
		}
	}
}

// Skipper reports whether c bypasses authentication and tenant binding:
// public paths and CORS preflight requests.
func Skipper(c echo.Context) bool {
	if c.Request().Method == http.MethodOptions {
		return true
	}
	return IsPublicPath(c.Request().URL.Path)
}
