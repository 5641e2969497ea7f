package royalty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
)

func sol(n float64) int64 {
	return int64(n * float64(domain.LamportsPerSOL))
}

func TestExpectedCommission(t *testing.T) {
	tests := []struct {
		name  string
		price int64
		bps   uint16
		want  int64
	}{
		{name: "100 SOL at 500 bps", price: sol(100), bps: 500, want: sol(5)},
		{name: "1 SOL at 250 bps", price: sol(1), bps: 250, want: 25_000_000},
		{name: "floor before multiply", price: 19_999, bps: 500, want: 500},
		{name: "price under one unit", price: 9_999, bps: 500, want: 0},
		{name: "zero bps", price: sol(10), bps: 0, want: 0},
		{name: "zero price", price: 0, bps: 1000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpectedCommission(tt.price, tt.bps))
		})
	}
}

func TestBalanceDeltas(t *testing.T) {
	keys := []string{"buyer", "seller", "creator1", "program"}
	pre := []int64{sol(110), sol(40), sol(2), sol(1)}
	post := []int64{sol(5), sol(140), sol(6.5), sol(1)}

	deltas := BalanceDeltas(keys, pre, post)
	require.Len(t, deltas, 3) // zero-change account filtered out
	assert.Equal(t, domain.BalanceDelta{Key: "buyer", Change: sol(-105)}, deltas[0])
	assert.Equal(t, domain.BalanceDelta{Key: "creator1", Change: sol(4.5)}, deltas[2])
}

func TestBalanceDeltas_MismatchedLengths(t *testing.T) {
	deltas := BalanceDeltas([]string{"a", "b"}, []int64{10}, []int64{20, 30})
	require.Len(t, deltas, 1)
	assert.Equal(t, "a", deltas[0].Key)
}

func TestActualCommission(t *testing.T) {
	deltas := []domain.BalanceDelta{
		{Key: "buyer", Change: sol(-100.5)},
		{Key: "seller", Change: sol(96)},
		{Key: "creator1", Change: sol(3)},
		{Key: "creator2", Change: sol(1.5)},
	}
	got := ActualCommission(deltas, []string{"creator1", "creator2"}, "buyer", sol(100))
	assert.Equal(t, sol(4.5), got)
}

func TestActualCommission_BuyerIsCreator(t *testing.T) {
	// The buyer sits on the creator list. Its delta nets the 100 SOL price
	// against a 2 SOL royalty leg; adding the price back recovers the leg.
	deltas := []domain.BalanceDelta{
		{Key: "buyer", Change: sol(-98)},
		{Key: "seller", Change: sol(95)},
		{Key: "creator1", Change: sol(3)},
	}
	got := ActualCommission(deltas, []string{"creator1", "buyer"}, "buyer", sol(100))
	assert.Equal(t, sol(5), got)
}

func TestActualCommission_NoCreatorMovement(t *testing.T) {
	deltas := []domain.BalanceDelta{
		{Key: "buyer", Change: sol(-100)},
		{Key: "seller", Change: sol(100)},
	}
	got := ActualCommission(deltas, []string{"creator1"}, "buyer", sol(100))
	assert.Equal(t, int64(0), got)
}

func TestComputeDebt(t *testing.T) {
	t.Run("underpayment records debt", func(t *testing.T) {
		// 100 SOL sale at 500 bps with 4.5 SOL paid leaves 0.5 SOL owed.
		debt := ComputeDebt(sol(5), sol(4.5))
		require.NotNil(t, debt)
		assert.Equal(t, sol(0.5), debt.Lamports)
		assert.InDelta(t, 0.5, debt.SOL, 1e-12)
	})

	t.Run("exact payment", func(t *testing.T) {
		assert.Nil(t, ComputeDebt(sol(5), sol(5)))
	})

	t.Run("overpayment", func(t *testing.T) {
		assert.Nil(t, ComputeDebt(sol(5), sol(6)))
	})

	t.Run("dust shortfall", func(t *testing.T) {
		assert.Nil(t, ComputeDebt(5000, 0))
		assert.Nil(t, ComputeDebt(sol(5), sol(5)-DustThresholdLamports))
	})

	t.Run("just above dust", func(t *testing.T) {
		debt := ComputeDebt(5001, 0)
		require.NotNil(t, debt)
		assert.Equal(t, int64(5001), debt.Lamports)
	})
}
