package domain

// Mint is a single NFT under a protected collection. The Sales slice is the
// mint's authoritative recorded history, ordered by SaleDate ASC.
type Mint struct {
	Address              string
	CollectionID         string
	Name                 string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	Sales                []*Sale
}

// LatestSale returns the most recent recorded sale, or nil if the mint has no
// history.
func (m *Mint) LatestSale() *Sale {
	var latest *Sale
	for _, s := range m.Sales {
		if latest == nil || s.SaleDate.After(latest.SaleDate) {
			latest = s
		}
	}
	return latest
}

// SaleBySignature returns the recorded sale with the given signature, or nil.
func (m *Mint) SaleBySignature(signature string) *Sale {
	for _, s := range m.Sales {
		if s.Signature == signature {
			return s
		}
	}
	return nil
}

// HasDebt reports whether the mint's latest recorded sale carries unpaid
// royalties. Debt is a property of the most recent sale only: a later clean
// sale clears it in the read model.
func (m *Mint) HasDebt() bool {
	latest := m.LatestSale()
	return latest != nil && latest.DebtLamports != nil
}

// NftMetadata is the on-chain metadata for a mint as served by the metadata
// lookup service.
type NftMetadata struct {
	Mint                 string
	Name                 string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
}
