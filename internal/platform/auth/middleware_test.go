package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hmtp/hmtp/internal/platform/db"
)

func runMiddleware(t *testing.T, method, path, header string) (echo.Context, bool, error) {
	t.Helper()
	g, _ := newTestGate()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	err := Middleware(g)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	return c, called, err
}

func TestMiddleware_SetsPrincipalAndTenant(t *testing.T) {
	tok, _, _ := newTestTokens().Issue("doc@a.example", "hosp-a", RoleDoctor)

	var seenTenant string
	var seen *Principal
	g, _ := newTestGate()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	c := e.NewContext(req, httptest.NewRecorder())

	err := Middleware(g)(func(c echo.Context) error {
		seenTenant = db.TenantFromContext(c.Request().Context())
		seen = PrincipalFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenTenant != "hosp-a" {
		t.Errorf("expected tenant hosp-a downstream, got %q", seenTenant)
	}
	if seen == nil || seen.UserID != 7 {
		t.Errorf("unexpected principal %+v", seen)
	}
	if UserIDFromContext(req.Context()) != 0 {
		t.Error("original request context must not be modified")
	}
}

func TestMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer  "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"bad token", "Bearer abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, called, err := runMiddleware(t, http.MethodGet, "/api/v1/doctors", tt.header)
			if called {
				t.Fatal("handler must not run")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestMiddleware_PublicPaths(t *testing.T) {
	for _, path := range []string{"/health", "/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/docs"} {
		c, called, err := runMiddleware(t, http.MethodPost, path, "")
		if err != nil || !called {
			t.Errorf("%s: expected pass-through, got err=%v called=%v", path, err, called)
		}
		if db.TenantFromContext(c.Request().Context()) != "" {
			t.Errorf("%s: public paths carry no tenant", path)
		}
	}
}

func TestMiddleware_Preflight(t *testing.T) {
	_, called, err := runMiddleware(t, http.MethodOptions, "/api/v1/doctors", "")
	if err != nil || !called {
		t.Errorf("expected preflight to pass, got err=%v called=%v", err, called)
	}
}

func TestIsPublicPath(t *testing.T) {
	if IsPublicPath("/api/v1/appointments") {
		t.Error("appointments must require auth")
	}
	for _, p := range []string{"/metrics", "/api/v1/docs", "/api/v1/redoc", "/api/v1/openapi.json"} {
		if !IsPublicPath(p) {
			t.Errorf("%s should be public", p)
		}
	}
}
