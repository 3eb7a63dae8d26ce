package lock

import (
	"context"
	"errors"
	"testing"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

func TestNoopLocker_RunsFn(t *testing.T) {
	called := false
	err := NoopLocker{}.WithDoctorLock(context.Background(), "t1", 3, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected fn to run, err=%v called=%v", err, called)
	}
}

func TestNoopLocker_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := NoopLocker{}.WithDoctorLock(context.Background(), "t1", 3, func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestLockKey_ScopedByTenant(t *testing.T) {
	if lockKey("a", 1) == lockKey("b", 1) {
		t.Error("lock keys must differ across tenants")
	}
	if lockKey("A", 1) == lockKey("a", 1) {
		t.Error("lock keys must be case-sensitive")
	}
}

func TestErrLockNotAcquired_IsConflict(t *testing.T) {
	if apperr.KindOf(ErrLockNotAcquired) != apperr.KindConflict {
		t.Error("expected conflict kind")
	}
}
