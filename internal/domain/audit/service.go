package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
)

var ErrForeignTenant = apperr.New(apperr.KindForbidden, "audit_foreign_tenant",
	"audit entries can only be written for the request tenant")

// Recorder stages audit entries in the caller's transaction. It never
// commits on its own.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record snapshots ev.Details as JSON at call time and inserts the entry
// through the transaction in ctx.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	if ev.Action == "" {
		return apperr.Validation("audit action is required")
	}

	ctxTenant := db.TenantFromContext(ctx)
	tenantID := ev.TenantID
	if tenantID == "" {
		tenantID = ctxTenant
	}
	if tenantID == "" {
		return db.ErrNoTenant
	}
	if ctxTenant != "" && tenantID != ctxTenant {
		return ErrForeignTenant
	}

	e := &Entry{TenantID: tenantID, Action: ev.Action}

	userID := ev.UserID
	if userID == 0 {
		userID = auth.UserIDFromContext(ctx)
	}
	if userID != 0 {
		e.UserID = &userID
	}
	if ev.ResourceType != "" {
		rt := ev.ResourceType
		e.ResourceType = &rt
	}
	if ev.ResourceID != 0 {
		rid := ev.ResourceID
		e.ResourceID = &rid
	}
	if ev.Details != nil {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		e.Details = b
	}

	meta := metaFromContext(ctx)
	if meta.ip != "" {
		e.IPAddress = &meta.ip
	}
	if meta.requestID != "" {
		e.RequestID = &meta.requestID
	}

	return r.store.Insert(ctx, e)
}

// List returns the request tenant's entries, newest first.
func (r *Recorder) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	if _, err := db.RequireTenant(ctx); err != nil {
		return nil, 0, err
	}
	return r.store.List(ctx, f, limit, offset)
}
