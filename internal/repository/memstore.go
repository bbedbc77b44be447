package repository

import (
	"context"
	"sync"
	"time"

	"github.com/chenwt/key-reservation/internal/model"
)

// MemStore is an in-memory implementation of the lease and key stores.  It
// mirrors the semantics of the SQL repositories, including insertion-order
// iteration and the atomic conflict-check-then-insert, and backs the
// service and handler tests that must not depend on a MySQL server.
type MemStore struct {
	mu     sync.Mutex
	nextID uint64
	leases []*model.Lease
	keys   []model.Key
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

// CreateIfFree implements the atomic conflict check.  The single mutex is
// the serialization point that FOR UPDATE provides in the SQL version.
func (m *MemStore) CreateIfFree(_ context.Context, l *model.Lease) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var held []string
	for _, e := range m.leases {
		if e.KeyID == l.KeyID && sameDate(e.LeaseDate, l.LeaseDate) && e.Status.Holding() {
			held = append(held, e.Slots...)
		}
	}
	if overlap := model.Overlap(l.Slots, held); len(overlap) > 0 {
		return overlap, nil
	}

	l.ID = m.nextID
	m.nextID++
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	cp.Slots = append([]string(nil), l.Slots...)
	m.leases = append(m.leases, &cp)
	return nil, nil
}

// ListByKey returns leases in insertion order, optionally filtered by date.
func (m *MemStore) ListByKey(_ context.Context, keyID string, date *time.Time) ([]model.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Lease, 0)
	for _, e := range m.leases {
		if e.KeyID != keyID {
			continue
		}
		if date != nil && !sameDate(e.LeaseDate, *date) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

// FindByOwner returns the first lease matching the triple in insertion
// order, preferring non-terminal leases over RETURNED ones so a frozen
// lease cannot shadow a rebooking on the same triple.
func (m *MemStore) FindByOwner(_ context.Context, keyID, phone string, date time.Time, status *model.Status) (*model.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var terminal *model.Lease
	for _, e := range m.leases {
		if e.KeyID != keyID || e.Phone != phone || !sameDate(e.LeaseDate, date) {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		if e.Status.Terminal() {
			if terminal == nil {
				terminal = e
			}
			continue
		}
		cp := *e
		return &cp, nil
	}
	if terminal != nil {
		cp := *terminal
		return &cp, nil
	}
	return nil, ErrLeaseNotFound
}

// UpdateStatus applies a guarded status change exactly like the SQL
// version: the expected current status must still hold.
func (m *MemStore) UpdateStatus(_ context.Context, id uint64, from, to model.Status, returnedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.leases {
		if e.ID != id {
			continue
		}
		if e.Status != from {
			return ErrStaleLease
		}
		e.Status = to
		if returnedAt != nil {
			t := returnedAt.UTC()
			e.ReturnedAt = &t
		}
		return nil
	}
	return ErrStaleLease
}

// List returns the key catalog in stored order.
func (m *MemStore) List(_ context.Context) ([]model.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Key(nil), m.keys...), nil
}

// ReplaceAll swaps the whole catalog.
func (m *MemStore) ReplaceAll(_ context.Context, keys []model.Key) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append([]model.Key(nil), keys...)
	for i := range m.keys {
		m.keys[i].Position = uint32(i)
	}
	return len(m.keys), nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
