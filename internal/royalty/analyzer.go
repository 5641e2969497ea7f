package royalty

import (
	"math/big"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
)

// DustThresholdLamports is the largest shortfall still written off as
// rounding noise. 5000 lamports is one signature fee.
const DustThresholdLamports = 5000

// Debt is a positive royalty shortfall on a sale.
type Debt struct {
	Lamports int64
	SOL      float64
}

// BalanceDeltas pairs each transaction account with its signed lamport
// change. Accounts whose balance did not move are dropped.
func BalanceDeltas(accountKeys []string, preBalances, postBalances []int64) []domain.BalanceDelta {
	n := len(accountKeys)
	if len(preBalances) < n {
		n = len(preBalances)
	}
	if len(postBalances) < n {
		n = len(postBalances)
	}

	deltas := make([]domain.BalanceDelta, 0, n)
	for i := 0; i < n; i++ {
		change := postBalances[i] - preBalances[i]
		if change == 0 {
			continue
		}
		deltas = append(deltas, domain.BalanceDelta{
			Key:    accountKeys[i],
			Change: change,
		})
	}
	return deltas
}

// ExpectedCommission returns the royalty the creators were owed on a sale:
// floor(price / 10000) * basisPoints, in lamports.
func ExpectedCommission(salePriceLamports int64, basisPoints uint16) int64 {
	unit := new(big.Int).Div(big.NewInt(salePriceLamports), big.NewInt(10_000))
	return new(big.Int).Mul(unit, big.NewInt(int64(basisPoints))).Int64()
}

// ActualCommission returns the royalty the creators actually received: the
// sum of the creator accounts' balance changes across the sale transaction.
//
// When the buyer is itself on the creator list, its leg nets the purchase
// price against its royalty cut, so the sale price is added back to undo
// the netting.
func ActualCommission(deltas []domain.BalanceDelta, creators []string, buyer string, salePriceLamports int64) int64 {
	isCreator := make(map[string]bool, len(creators))
	for _, c := range creators {
		isCreator[c] = true
	}

	total := new(big.Int)
	for _, d := range deltas {
		if !isCreator[d.Key] {
			continue
		}
		change := big.NewInt(d.Change)
		if d.Key == buyer {
			change.Add(change, big.NewInt(salePriceLamports))
		}
		total.Add(total, change)
	}
	return total.Int64()
}

// ComputeDebt returns the sale's royalty debt, or nil when the shortfall is
// zero, negative (overpaid), or under the dust threshold.
func ComputeDebt(expectedLamports, paidLamports int64) *Debt {
	shortfall := expectedLamports - paidLamports
	if shortfall <= DustThresholdLamports {
		return nil
	}
	return &Debt{
		Lamports: shortfall,
		SOL:      domain.LamportsToSOL(shortfall),
	}
}
