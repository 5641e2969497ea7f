package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// ActivityLogStore is an in-memory implementation of storage.ActivityLogStore.
// The map insert under the mutex gives the same one-winner semantics as the
// postgres unique constraint.
type ActivityLogStore struct {
	mu   sync.Mutex
	data map[string]*storage.LogEntry
}

// NewActivityLogStore creates a new in-memory activity log store.
func NewActivityLogStore() *ActivityLogStore {
	return &ActivityLogStore{data: make(map[string]*storage.LogEntry)}
}

// AppendLogEntry records a processed signature. Returns ErrDuplicateKey if
// the signature was already logged.
func (s *ActivityLogStore) AppendLogEntry(_ context.Context, entry *storage.LogEntry) error {
	if entry == nil || entry.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[entry.Signature]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *entry
	if cp.SeenAt.IsZero() {
		cp.SeenAt = time.Now().UTC()
	}
	s.data[entry.Signature] = &cp
	return nil
}

// GetLogEntry retrieves a log entry by signature.
func (s *ActivityLogStore) GetLogEntry(_ context.Context, signature string) (*storage.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[signature]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

var _ storage.ActivityLogStore = (*ActivityLogStore)(nil)
