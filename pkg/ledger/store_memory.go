package ledger

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps ledgers in process memory. Entries are never evicted.
type MemoryStore struct {
	entries *xsync.Map[Key, *Ledger]
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: xsync.NewMap[Key, *Ledger]()}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Ledger, bool, error) {
	l, ok := s.entries.Load(key)
	return l, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key Key, l *Ledger) error {
	s.entries.Store(key, l)
	return nil
}

// Len returns the number of cached ledgers.
func (s *MemoryStore) Len() int {
	return s.entries.Size()
}
