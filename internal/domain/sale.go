package domain

import "time"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Sale is a persisted secondary sale with its royalty reconciliation result.
// (Signature, Mint) is globally unique; once persisted a sale is immutable
// except for patch recomputation.
type Sale struct {
	Signature string
	Mint      string

	SaleDate          time.Time
	SalePriceLamports int64
	SalePriceSOL      float64
	Buyer             string
	Seller            string

	SellerFeeBasisPoints uint16
	Creators             []Creator

	// ExpectedRoyalties and RoyaltiesPaid are lamport amounts.
	ExpectedRoyalties int64
	RoyaltiesPaid     int64

	// DebtLamports is nil when the sale carries no debt (paid in full, or the
	// shortfall is under the dust threshold).
	DebtLamports *int64
	DebtSOL      *float64

	MarketplaceProgram string

	// Patched marks a sale that was recomputed under a corrected formula and
	// upserted over an earlier row.
	Patched bool
}

// HasDebt reports whether the sale carries a positive royalty shortfall.
func (s *Sale) HasDebt() bool {
	return s.DebtLamports != nil
}

// LamportsToSOL converts a lamport amount to its SOL representation. It is a
// display/storage conversion only; ledger math stays in integer lamports.
func LamportsToSOL(lamports int64) float64 {
	return float64(lamports) / float64(LamportsPerSOL)
}
