package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// CollectionStore is an in-memory implementation of storage.CollectionStore.
type CollectionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Collection
}

// NewCollectionStore creates a new in-memory collection store.
func NewCollectionStore() *CollectionStore {
	return &CollectionStore{data: make(map[string]*domain.Collection)}
}

// Put adds or replaces a collection. Test seeding helper.
func (s *CollectionStore) Put(c *domain.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.data[c.ID] = &cp
}

// GetCollections retrieves all collections ordered by id.
func (s *CollectionStore) GetCollections(_ context.Context) ([]*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Collection, 0, len(s.data))
	for _, c := range s.data {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ storage.CollectionStore = (*CollectionStore)(nil)
