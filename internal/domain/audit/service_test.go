package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/domain/audit/audittest"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/db/dbtest"
)

func newRecorder() (*audit.Recorder, *audittest.MemoryStore, *dbtest.Transactor) {
	store := audittest.NewMemoryStore()
	return audit.NewRecorder(store), store, dbtest.NewTransactor(store)
}

func principalCtx(tenantID string, userID int64) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		UserID: userID, Subject: "u@example.com", TenantID: tenantID, Role: auth.RoleAdmin,
	})
}

func TestRecord_DefaultsFromContext(t *testing.T) {
	rec, store, tx := newRecorder()
	ctx := principalCtx("tenant-a", 7)

	err := tx.InTx(ctx, func(ctx context.Context) error {
		return rec.Record(ctx, audit.Event{
			Action:       audit.ActionDispenseMedicine,
			ResourceType: audit.ResourceMedicine,
			ResourceID:   3,
			Details:      map[string]any{"quantity": 10, "medicine_id": 3},
		})
	})
	require.NoError(t, err)

	entries := store.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "tenant-a", e.TenantID)
	require.NotNil(t, e.UserID)
	assert.Equal(t, int64(7), *e.UserID)
	require.NotNil(t, e.ResourceID)
	assert.Equal(t, int64(3), *e.ResourceID)

	var details map[string]int
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, map[string]int{"quantity": 10, "medicine_id": 3}, details)
}

func TestRecord_DetailsSnapshottedAtCallTime(t *testing.T) {
	rec, store, tx := newRecorder()
	ctx := principalCtx("tenant-a", 1)
	details := map[string]any{"status": "scheduled"}

	require.NoError(t, tx.InTx(ctx, func(ctx context.Context) error {
		return rec.Record(ctx, audit.Event{Action: audit.ActionUpdateAppointment, Details: details})
	}))
	details["status"] = "cancelled"

	assert.JSONEq(t, `{"status":"scheduled"}`, string(store.All()[0].Details))
}

func TestRecord_NoTenant(t *testing.T) {
	rec, store, tx := newRecorder()

	err := tx.InTx(context.Background(), func(ctx context.Context) error {
		return rec.Record(ctx, audit.Event{Action: audit.ActionCreatePatient})
	})
	assert.True(t, errors.Is(err, db.ErrNoTenant))
	assert.Empty(t, store.All())
}

func TestRecord_ForeignTenantRejected(t *testing.T) {
	rec, store, tx := newRecorder()
	ctx := principalCtx("tenant-a", 1)

	err := tx.InTx(ctx, func(ctx context.Context) error {
		return rec.Record(ctx, audit.Event{TenantID: "tenant-b", Action: audit.ActionCreatePatient})
	})
	assert.ErrorIs(t, err, audit.ErrForeignTenant)
	assert.Empty(t, store.All())
}

func TestRecord_RequiresTransaction(t *testing.T) {
	rec, store, _ := newRecorder()

	err := rec.Record(principalCtx("tenant-a", 1), audit.Event{Action: audit.ActionCreatePatient})
	assert.ErrorIs(t, err, db.ErrNoTransaction)
	assert.Empty(t, store.All())
}

func TestRecord_RolledBackWithCaller(t *testing.T) {
	rec, store, tx := newRecorder()
	ctx := principalCtx("tenant-a", 1)
	boom := errors.New("mutation failed")

	err := tx.InTx(ctx, func(ctx context.Context) error {
		if err := rec.Record(ctx, audit.Event{Action: audit.ActionCreatePatient}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.All())
	assert.Equal(t, 1, tx.Rollbacks)
}

func TestRecord_MissingAction(t *testing.T) {
	rec, _, tx := newRecorder()
	err := tx.InTx(principalCtx("tenant-a", 1), func(ctx context.Context) error {
		return rec.Record(ctx, audit.Event{})
	})
	assert.Error(t, err)
}

func TestList_TenantScoped(t *testing.T) {
	rec, _, tx := newRecorder()
	for _, tid := range []string{"tenant-a", "tenant-a", "tenant-b"} {
		ctx := principalCtx(tid, 1)
		require.NoError(t, tx.InTx(ctx, func(ctx context.Context) error {
			return rec.Record(ctx, audit.Event{Action: audit.ActionCreatePatient})
		}))
	}

	items, total, err := rec.List(principalCtx("tenant-a", 1), audit.Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, e := range items {
		assert.Equal(t, "tenant-a", e.TenantID)
	}

	_, _, err = rec.List(context.Background(), audit.Filter{}, 10, 0)
	assert.ErrorIs(t, err, db.ErrNoTenant)
}
