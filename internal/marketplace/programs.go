// Package marketplace talks to the marketplace history/indexing API and
// knows the per-program quirks of the marketplaces it reports on.
package marketplace

// Known marketplace program IDs.
const (
	// MagicEdenV2 is the Magic Eden v2 program ID.
	MagicEdenV2 = "M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K"
	// AuctionHouse is the Metaplex auction house program ID.
	AuctionHouse = "hausS13jsjafwWwGqZTUQRmWyvyxn9EQpqMwV1PBBmk"
)

// PatchEligible reports whether previously recorded sales from this program
// may be recomputed and overwritten. Magic Eden's aggregator-reported prices
// were historically unreliable, so its rows stay open for back-patching.
func PatchEligible(programID string) bool {
	return programID == MagicEdenV2
}
