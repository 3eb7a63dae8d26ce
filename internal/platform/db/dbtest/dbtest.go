// Package dbtest provides an in-memory db.Transactor for service tests.
// Stores register as participants; a failed transaction restores every
// participant to its state at begin.
package dbtest

import (
	"context"
	"sync"

	"github.com/hmtp/hmtp/internal/platform/db"
)

// Participant is a store whose state can be captured and restored.
type Participant interface {
	Snapshot() (restore func())
}

type txKey struct{}

// Active reports whether ctx is inside a Transactor.InTx call.
func Active(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// Transactor serializes transactions, which gives every test transaction
// serializable isolation.
type Transactor struct {
	mu        sync.Mutex
	parts     []Participant
	Commits   int
	Rollbacks int
}

func NewTransactor(parts ...Participant) *Transactor {
	return &Transactor{parts: parts}
}

func (t *Transactor) Register(parts ...Participant) {
	t.parts = append(t.parts, parts...)
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error, _ ...db.TxOption) (err error) {
	if Active(ctx) {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	restores := make([]func(), 0, len(t.parts))
	for _, p := range t.parts {
		restores = append(restores, p.Snapshot())
	}
	rollback := func() {
		for _, r := range restores {
			r()
		}
		t.Rollbacks++
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
		return err
	}
	if err = ctx.Err(); err != nil {
		rollback()
		return err
	}
	t.Commits++
	return nil
}
