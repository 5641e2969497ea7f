package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage/memory"
)

func schedulerFixture(t *testing.T, history *fakeHistory) (*Scheduler, *memory.CollectionStore) {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cols := memory.NewCollectionStore()
	cols.Put(&domain.Collection{ID: "col1", Active: true})
	cols.Put(&domain.Collection{ID: "col2", Active: false})

	sales := memory.NewSaleStore()
	mints := memory.NewMintStore(sales)
	mints.Put(&domain.Mint{Address: "MintA", CollectionID: "col1", SellerFeeBasisPoints: 500})

	engine := NewEngine(mints, sales, history, &fakeMetadata{}, &fakeRPC{}, WithClock(func() time.Time { return now }))
	return NewScheduler(engine, cols), cols
}

func TestScheduler_SkipsCollectionAfterRetries(t *testing.T) {
	// History fails persistently: every collection attempt burns a chunk
	// call plus its in-process retry, and the pass still completes.
	history := &fakeHistory{failTimes: 1 << 30}
	sched, _ := schedulerFixture(t, history)

	sched.runPass(context.Background())
	assert.Equal(t, 2*CollectionRetries, history.calls)
}

func TestScheduler_SkipsInactiveCollections(t *testing.T) {
	history := &fakeHistory{}
	sched, _ := schedulerFixture(t, history)

	sched.runPass(context.Background())
	// col2 is inactive, so only col1's single chunk hit the API.
	assert.Equal(t, 1, history.calls)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	history := &fakeHistory{}
	sched, _ := schedulerFixture(t, history)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduler_RetryBudgetIsPerCollection(t *testing.T) {
	// One failure on the first collection attempt must not starve later
	// collections: the attempt counter travels by value.
	history := &fakeHistory{failTimes: 3}
	sched, cols := schedulerFixture(t, history)
	_ = cols

	sched.runPass(context.Background())
	// Attempt 1: fail + retry-fail (2 calls). Attempt 2: fail + retry-ok
	// (2 calls). Collection succeeds with one attempt to spare.
	assert.Equal(t, 4, history.calls)
}
