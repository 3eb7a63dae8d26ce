package db

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestTenantFromContext_Unset(t *testing.T) {
	if got := TenantFromContext(context.Background()); got != "" {
		t.Errorf("expected empty tenant, got %q", got)
	}
}

func TestRequireTenant_FailsClosed(t *testing.T) {
	_, err := RequireTenant(context.Background())
	if !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}

	tid, err := RequireTenant(WithTenant(context.Background(), "Hosp-A"))
	if err != nil || tid != "Hosp-A" {
		t.Errorf("expected Hosp-A, got %q, %v", tid, err)
	}
}

func TestWithTenant_CaseSensitive(t *testing.T) {
	ctx := WithTenant(context.Background(), "hosp")
	if TenantFromContext(ctx) == "HOSP" {
		t.Error("tenant ids must be compared case-sensitively")
	}
}

func TestWithTenant_ConcurrentIsolation(t *testing.T) {
	base := context.Background()
	var wg sync.WaitGroup
	errs := make(chan string, 100)
	for i := 0; i < 100; i++ {
		tenant := "t" + strings.Repeat("x", i%7)
		wg.Add(1)
		go func(tenant string) {
			defer wg.Done()
			ctx := WithTenant(base, tenant)
			if got := TenantFromContext(ctx); got != tenant {
				errs <- got
			}
		}(tenant)
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("observed foreign tenant %q", got)
	}
	if TenantFromContext(base) != "" {
		t.Error("parent context must stay untouched")
	}
}

func TestValidTenantID(t *testing.T) {
	valid := []string{"abc", "hospital_1", "Hosp-A", "clinic.north", "A1B2"}
	for _, v := range valid {
		if !ValidTenantID(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	invalid := []string{"", "bad\nid", "nul\x00", strings.Repeat("a", maxTenantIDLen+1)}
	for _, v := range invalid {
		if ValidTenantID(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestTenantMiddleware_Skip(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	mw := TenantMiddleware(nil, func(echo.Context) bool { return true })
	err := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to run for skipped path")
	}
}

func TestTenantMiddleware_NoTenant(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := TenantMiddleware(nil, nil)
	err := mw(func(c echo.Context) error {
		t.Fatal("handler must not run without a tenant")
		return nil
	})(c)
	if !errors.Is(err, ErrNoTenant) {
		t.Errorf("expected ErrNoTenant, got %v", err)
	}
}

func TestTxFromContext_Unset(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil transaction")
	}
}
