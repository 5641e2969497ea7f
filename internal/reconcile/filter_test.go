package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/marketplace"
)

func TestFilterCandidate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	recorded := &domain.Sale{
		Signature: "sigOld",
		Mint:      "MintA",
		SaleDate:  now.Add(-48 * time.Hour),
	}
	mintWithHistory := &domain.Mint{Address: "MintA", Sales: []*domain.Sale{recorded}}
	mintNoHistory := &domain.Mint{Address: "MintB"}

	// History old enough that a candidate can be newer than the recorded
	// sale and still fall outside the lookback window.
	ancient := &domain.Sale{
		Signature: "sigAncient",
		Mint:      "MintA",
		SaleDate:  now.Add(-3 * DefaultLookback),
	}
	mintAncientHistory := &domain.Mint{Address: "MintA", Sales: []*domain.Sale{ancient}}

	candidate := func(sig string, at time.Time, program string) *domain.SaleCandidate {
		return &domain.SaleCandidate{
			Mint:               "MintA",
			Signature:          sig,
			BlockTime:          at,
			MarketplaceProgram: program,
			Source:             domain.SourceHistory,
		}
	}

	tests := []struct {
		name string
		mint *domain.Mint
		c    *domain.SaleCandidate
		want DropReason
	}{
		{
			name: "no history accepts",
			mint: mintNoHistory,
			c:    candidate("sig1", now.Add(-time.Hour), "prog"),
			want: DropNone,
		},
		{
			name: "no history but stale",
			mint: mintNoHistory,
			c:    candidate("sig1", now.Add(-DefaultLookback-time.Hour), "prog"),
			want: DropStale,
		},
		{
			name: "recorded signature drops",
			mint: mintWithHistory,
			c:    candidate("sigOld", now.Add(-time.Hour), "prog"),
			want: DropDuplicate,
		},
		{
			name: "recorded signature from patch-eligible marketplace accepts",
			mint: mintWithHistory,
			c:    candidate("sigOld", now.Add(-48*time.Hour), marketplace.MagicEdenV2),
			want: DropNone,
		},
		{
			name: "newer than latest accepts",
			mint: mintWithHistory,
			c:    candidate("sigNew", now.Add(-time.Hour), "prog"),
			want: DropNone,
		},
		{
			name: "older than latest drops",
			mint: mintWithHistory,
			c:    candidate("sigNew", now.Add(-72*time.Hour), "prog"),
			want: DropOutOfOrder,
		},
		{
			name: "equal block time drops",
			mint: mintWithHistory,
			c:    candidate("sigNew", recorded.SaleDate, "prog"),
			want: DropOutOfOrder,
		},
		{
			name: "older but patch-eligible accepts",
			mint: mintWithHistory,
			c:    candidate("sigNew", now.Add(-72*time.Hour), marketplace.MagicEdenV2),
			want: DropNone,
		},
		{
			name: "newer but stale drops",
			mint: mintAncientHistory,
			c:    candidate("sigNew", now.Add(-DefaultLookback-time.Hour), "prog"),
			want: DropStale,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterCandidate(tt.mint, tt.c, now, DefaultLookback)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterCandidate_OldHistoryStillOrders(t *testing.T) {
	// The latest recorded sale predates the lookback window. A candidate
	// older than it is still rejected for ordering, not staleness.
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mint := &domain.Mint{Address: "MintA", Sales: []*domain.Sale{{
		Signature: "sigOld",
		SaleDate:  now.Add(-2 * DefaultLookback),
	}}}
	c := &domain.SaleCandidate{
		Mint:      "MintA",
		Signature: "sigNew",
		BlockTime: now.Add(-3 * DefaultLookback),
	}
	assert.Equal(t, DropOutOfOrder, FilterCandidate(mint, c, now, DefaultLookback))
}
