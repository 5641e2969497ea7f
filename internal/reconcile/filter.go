package reconcile

import (
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/marketplace"
)

// DefaultLookback is how far back a candidate may date and still be worth
// reconciling. Roughly one month.
const DefaultLookback = 730 * time.Hour

// DropReason says why a candidate was rejected.
type DropReason string

const (
	// DropNone means the candidate was accepted.
	DropNone DropReason = ""
	// DropDuplicate means the signature is already recorded for the mint.
	DropDuplicate DropReason = "duplicate"
	// DropOutOfOrder means the candidate is not newer than the mint's
	// latest recorded sale.
	DropOutOfOrder DropReason = "out_of_order"
	// DropStale means the candidate predates the lookback window.
	DropStale DropReason = "stale"
)

// FilterCandidate decides whether a candidate should be reconciled against
// the mint's recorded history. Pure function of its inputs.
//
// A candidate passes when it is fresh enough and either the mint has no
// history, or it is strictly newer than the latest recorded sale. A recorded
// signature is final, and an older candidate is noise from a delayed feed.
// The one exception is the patch-eligible marketplace, whose rows stay open
// for recomputation regardless of ordering.
func FilterCandidate(mint *domain.Mint, c *domain.SaleCandidate, now time.Time, lookback time.Duration) DropReason {
	if dup := mint.SaleBySignature(c.Signature); dup != nil && !marketplace.PatchEligible(c.MarketplaceProgram) {
		return DropDuplicate
	}

	if latest := mint.LatestSale(); latest != nil {
		newer := c.BlockTime.After(latest.SaleDate)
		if !newer && !marketplace.PatchEligible(c.MarketplaceProgram) {
			return DropOutOfOrder
		}
	}

	if c.BlockTime.Before(now.Add(-lookback)) {
		return DropStale
	}
	return DropNone
}
