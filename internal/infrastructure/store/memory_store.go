package store

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore is an in-process KeyedStore. The table is allocated on Create and
// never cleared afterwards; reads and writes on different keys do not contend.
type MemoryStore struct {
	table atomic.Pointer[xsync.MapOf[string, string]]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Exists(ctx context.Context) bool {
	return s.table.Load() != nil
}

// Create allocates the table once. Concurrent callers race on a CAS, so the
// losers leave the winner's table and its entries in place.
func (s *MemoryStore) Create(ctx context.Context) error {
	s.table.CompareAndSwap(nil, xsync.NewMapOf[string, string]())
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	t := s.table.Load()
	if t == nil {
		return "", false, nil
	}
	v, ok := t.Load(key)
	return v, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, key, value string) error {
	t := s.table.Load()
	if t == nil {
		return nil
	}
	t.Store(key, value)
	return nil
}

// Size returns the number of stored entries.
func (s *MemoryStore) Size() int {
	t := s.table.Load()
	if t == nil {
		return 0
	}
	return t.Size()
}
