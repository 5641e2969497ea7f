package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagicEdenExtractor_ExtractSaleDetails(t *testing.T) {
	e := NewMagicEdenExtractor()

	logs := []string{
		"Program M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K invoke [1]",
		"Program log: Instruction: ExecuteSale",
		`Program log: {"price":100000000000,"seller_expiry":-1,"buyer_expiry":0,"total_price":100000000000,"royalty_paid":4500000000}`,
		"Program M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K success",
	}

	details, err := e.ExtractSaleDetails(logs)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, int64(100000000000), details.TotalPriceLamports)
	assert.Equal(t, int64(4500000000), details.RoyaltyPaidLamports)
}

func TestMagicEdenExtractor_NoSaleJSON(t *testing.T) {
	e := NewMagicEdenExtractor()

	tests := []struct {
		name string
		logs []string
	}{
		{name: "empty logs", logs: nil},
		{name: "unrelated logs", logs: []string{"Program log: Instruction: Sell"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := e.ExtractSaleDetails(tt.logs)
			assert.NoError(t, err)
			assert.Nil(t, details)
		})
	}
}

func TestMagicEdenExtractor_MalformedSaleLogFails(t *testing.T) {
	e := NewMagicEdenExtractor()

	tests := []struct {
		name string
		logs []string
	}{
		{name: "truncated json", logs: []string{`Program log: {"total_price":`}},
		{name: "bad value type", logs: []string{`Program log: {"total_price":"a lot","royalty_paid":0}`}},
		{name: "zero price", logs: []string{`Program log: {"total_price":0,"royalty_paid":0}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := e.ExtractSaleDetails(tt.logs)
			assert.ErrorIs(t, err, ErrMalformedSaleLog)
			assert.Nil(t, details)
		})
	}
}

func TestExtractorRegistry_Extract(t *testing.T) {
	r := NewExtractorRegistry()

	logs := []string{`Program log: {"total_price":5000000000,"royalty_paid":250000000}`}

	details, err := r.Extract(MagicEdenV2, logs)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, int64(5000000000), details.TotalPriceLamports)

	// No extractor registered for this program
	details, err = r.Extract(AuctionHouse, logs)
	assert.NoError(t, err)
	assert.Nil(t, details)
}

func TestPatchEligible(t *testing.T) {
	assert.True(t, PatchEligible(MagicEdenV2))
	assert.False(t, PatchEligible(AuctionHouse))
	assert.False(t, PatchEligible(""))
}
