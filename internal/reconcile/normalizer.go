// Package reconcile drives royalty reconciliation: it normalizes sale events
// from every feed into candidates, filters them against recorded history, and
// turns the survivors into persisted sales.
package reconcile

import (
	"math"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/marketplace"
)

// NormalizeHistoryAction converts a marketplace history API action into a
// sale candidate. The API reports prices in SOL; candidates carry lamports.
func NormalizeHistoryAction(mint string, a marketplace.Action) *domain.SaleCandidate {
	return &domain.SaleCandidate{
		Mint:               mint,
		Signature:          a.Signature,
		PriceLamports:      int64(math.Round(a.Price * float64(domain.LamportsPerSOL))),
		Buyer:              a.BuyerAddress,
		Seller:             a.SellerAddress,
		BlockTime:          a.BlockTimestamp,
		MarketplaceProgram: a.MarketplaceProgramID,
		Source:             domain.SourceHistory,
	}
}

// NormalizeWebhookSale converts a pushed webhook sale event into a candidate.
// Webhook amounts are already lamports.
func NormalizeWebhookSale(mint, signature string, amountLamports int64, buyer, seller string, at time.Time, program string) *domain.SaleCandidate {
	return &domain.SaleCandidate{
		Mint:               mint,
		Signature:          signature,
		PriceLamports:      amountLamports,
		Buyer:              buyer,
		Seller:             seller,
		BlockTime:          at,
		MarketplaceProgram: program,
		Source:             domain.SourceWebhook,
	}
}

// NormalizeSubscriptionSale converts a live-watcher purchase into a candidate.
// Price and royalty figures come from the transaction itself, so RoyaltiesPaid
// is set when the marketplace logged an authoritative amount.
func NormalizeSubscriptionSale(mint, signature string, priceLamports int64, buyer, seller string, blockTime time.Time, program string, royaltiesPaid *int64) *domain.SaleCandidate {
	return &domain.SaleCandidate{
		Mint:               mint,
		Signature:          signature,
		PriceLamports:      priceLamports,
		Buyer:              buyer,
		Seller:             seller,
		BlockTime:          blockTime,
		MarketplaceProgram: program,
		Source:             domain.SourceSubscription,
		RoyaltiesPaid:      royaltiesPaid,
	}
}
