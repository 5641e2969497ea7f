package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// MintStore is an in-memory implementation of storage.MintStore. When created
// with a SaleStore it joins each mint's recorded sales on read, matching the
// postgres implementation.
type MintStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Mint
	sales *SaleStore
}

// NewMintStore creates a new in-memory mint store joined against sales.
func NewMintStore(sales *SaleStore) *MintStore {
	return &MintStore{
		data:  make(map[string]*domain.Mint),
		sales: sales,
	}
}

// Put adds or replaces a mint. Test seeding helper.
func (s *MintStore) Put(m *domain.Mint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.data[m.Address] = &cp
}

// GetMints retrieves all mints of a collection with sales history attached.
func (s *MintStore) GetMints(ctx context.Context, collectionID string) ([]*domain.Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Mint
	for _, m := range s.data {
		if m.CollectionID != collectionID {
			continue
		}
		cp := *m
		if s.sales != nil {
			history, err := s.sales.GetSalesByMint(ctx, m.Address)
			if err != nil {
				return nil, err
			}
			cp.Sales = history
		}
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result, nil
}

// GetMint retrieves a single mint with its sales history.
func (s *MintStore) GetMint(ctx context.Context, mint string) (*domain.Mint, error) {
	s.mu.RLock()
	m, ok := s.data[mint]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}

	cp := *m
	if s.sales != nil {
		history, err := s.sales.GetSalesByMint(ctx, mint)
		if err != nil {
			return nil, err
		}
		cp.Sales = history
	}
	return &cp, nil
}

var _ storage.MintStore = (*MintStore)(nil)
