// Package audittest provides an in-memory audit.Store that participates in
// dbtest transactions.
package audittest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/db/dbtest"
)

type MemoryStore struct {
	mu      sync.Mutex
	entries []*audit.Entry
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := append([]*audit.Entry(nil), s.entries...)
	next := s.nextID
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = saved
		s.nextID = next
	}
}

func (s *MemoryStore) Insert(ctx context.Context, e *audit.Entry) error {
	if !dbtest.Active(ctx) {
		return db.ErrNoTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	e.CreatedAt = time.Now()
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f audit.Filter, limit, offset int) ([]*audit.Entry, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	var matched []*audit.Entry
	for _, e := range s.All() {
		if e.TenantID != tenantID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ResourceType != "" && (e.ResourceType == nil || *e.ResourceType != f.ResourceType) {
			continue
		}
		if f.ResourceID != 0 && (e.ResourceID == nil || *e.ResourceID != f.ResourceID) {
			continue
		}
		if f.UserID != 0 && (e.UserID == nil || *e.UserID != f.UserID) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// All returns a copy of every committed entry in insertion order.
func (s *MemoryStore) All() []*audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*audit.Entry(nil), s.entries...)
}

// ByAction returns the entries recorded with action.
func (s *MemoryStore) ByAction(action string) []*audit.Entry {
	var out []*audit.Entry
	for _, e := range s.All() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
