package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

func TestCollectionStore_SortedByID(t *testing.T) {
	s := NewCollectionStore()
	s.Put(&domain.Collection{ID: "col2"})
	s.Put(&domain.Collection{ID: "col1"})

	cols, err := s.GetCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "col1", cols[0].ID)
	assert.Equal(t, "col2", cols[1].ID)
}

func TestSaleStore_UpsertOverwrites(t *testing.T) {
	s := NewSaleStore()
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertSales(ctx, []*domain.Sale{
		{Signature: "sig1", Mint: "MintA", SaleDate: at, SalePriceLamports: 1},
	}))
	require.NoError(t, s.UpsertSales(ctx, []*domain.Sale{
		{Signature: "sig1", Mint: "MintA", SaleDate: at, SalePriceLamports: 2, Patched: true},
	}))

	got, err := s.GetSalesByMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].SalePriceLamports)
	assert.True(t, got[0].Patched)
}

func TestSaleStore_OrderedBySaleDate(t *testing.T) {
	s := NewSaleStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertSales(ctx, []*domain.Sale{
		{Signature: "sigLate", Mint: "MintA", SaleDate: base.Add(time.Hour)},
		{Signature: "sigEarly", Mint: "MintA", SaleDate: base},
	}))

	got, err := s.GetSalesByMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sigEarly", got[0].Signature)
	assert.Equal(t, "sigLate", got[1].Signature)
}

func TestMintStore_JoinsSalesOnRead(t *testing.T) {
	sales := NewSaleStore()
	mints := NewMintStore(sales)
	ctx := context.Background()

	mints.Put(&domain.Mint{Address: "MintA", CollectionID: "col1"})
	require.NoError(t, sales.UpsertSales(ctx, []*domain.Sale{
		{Signature: "sig1", Mint: "MintA", SaleDate: time.Now()},
	}))

	m, err := mints.GetMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, m.Sales, 1)

	_, err = mints.GetMint(ctx, "MintB")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActivityLogStore_ConcurrentAppendsOneWinner(t *testing.T) {
	s := NewActivityLogStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- s.AppendLogEntry(ctx, &storage.LogEntry{
				Signature: "sigOnce",
				Mint:      "MintA",
				Type:      storage.ActivityPurchase,
				SeenAt:    time.Now(),
			})
		}()
	}
	wg.Wait()
	close(errCh)

	var wins, dups int
	for err := range errCh {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, storage.ErrDuplicateKey):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, dups)

	entry, err := s.GetLogEntry(ctx, "sigOnce")
	require.NoError(t, err)
	assert.Equal(t, "MintA", entry.Mint)

	_, err = s.GetLogEntry(ctx, "sigNever")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
