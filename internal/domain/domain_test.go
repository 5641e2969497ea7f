package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoyaltyPolicy_Contains(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	bounded := &RoyaltyPolicy{ActiveFrom: from, ActiveTo: to}
	assert.True(t, bounded.Contains(from), "start is inclusive")
	assert.True(t, bounded.Contains(to.Add(-time.Second)))
	assert.False(t, bounded.Contains(to), "end is exclusive")
	assert.False(t, bounded.Contains(from.Add(-time.Second)))

	sinceGenesis := &RoyaltyPolicy{ActiveTo: to}
	assert.True(t, sinceGenesis.Contains(from.AddDate(-10, 0, 0)))

	stillInForce := &RoyaltyPolicy{ActiveFrom: from}
	assert.True(t, stillInForce.Contains(to.AddDate(10, 0, 0)))
}

func TestMint_LatestSaleAndDebt(t *testing.T) {
	m := &Mint{Address: "MintA"}
	assert.Nil(t, m.LatestSale())
	assert.False(t, m.HasDebt())

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	debt := int64(100)
	m.Sales = []*Sale{
		{Signature: "sig1", SaleDate: base, DebtLamports: &debt},
		{Signature: "sig2", SaleDate: base.Add(time.Hour)},
	}

	assert.Equal(t, "sig2", m.LatestSale().Signature)
	// Debt lives on the latest sale only; the clean sig2 clears it.
	assert.False(t, m.HasDebt())

	m.Sales = m.Sales[:1]
	assert.True(t, m.HasDebt())

	assert.NotNil(t, m.SaleBySignature("sig1"))
	assert.Nil(t, m.SaleBySignature("sigX"))
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, 1.5, LamportsToSOL(1_500_000_000))
	assert.Equal(t, 0.0, LamportsToSOL(0))
}
