package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// SaleStore is an in-memory implementation of storage.SaleStore.
type SaleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Sale // keyed by (signature, mint)
}

// NewSaleStore creates a new in-memory sale store.
func NewSaleStore() *SaleStore {
	return &SaleStore{data: make(map[string]*domain.Sale)}
}

func saleKey(signature, mint string) string {
	return fmt.Sprintf("%s|%s", signature, mint)
}

// UpsertSales writes a batch of sales keyed by (signature, mint).
func (s *SaleStore) UpsertSales(_ context.Context, sales []*domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sale := range sales {
		if sale == nil || sale.Signature == "" || sale.Mint == "" {
			return storage.ErrInvalidInput
		}
		cp := *sale
		s.data[saleKey(sale.Signature, sale.Mint)] = &cp
	}
	return nil
}

// GetSalesByMint retrieves recorded sales for a mint, ordered by sale_date ASC.
func (s *SaleStore) GetSalesByMint(_ context.Context, mint string) ([]*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Sale
	for _, sale := range s.data {
		if sale.Mint == mint {
			cp := *sale
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SaleDate.Equal(result[j].SaleDate) {
			return result[i].SaleDate.Before(result[j].SaleDate)
		}
		return result[i].Signature < result[j].Signature
	})
	return result, nil
}

// Count returns the number of stored sales. Test helper.
func (s *SaleStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.SaleStore = (*SaleStore)(nil)
