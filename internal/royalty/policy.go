// Package royalty computes expected and actual creator royalties for
// secondary sales. All ledger math runs in integer lamports via math/big.
package royalty

import (
	"errors"
	"fmt"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
)

// ErrPolicyOverlap means more than one policy window covers the sale time.
// Overlapping windows are a configuration error; the sale cannot be priced.
var ErrPolicyOverlap = errors.New("royalty: overlapping policy windows")

// ErrNoTerms means no policy window covers the sale time and the mint
// carries no static royalty terms to fall back on. Recording such a sale
// would price it at zero and shadow later legitimate candidates.
var ErrNoTerms = errors.New("royalty: no terms resolved")

// Terms are the royalty terms a sale is judged against.
type Terms struct {
	BasisPoints uint16
	Creators    []domain.Creator
	// FromPolicy marks terms resolved from a configured policy window rather
	// than the mint's static metadata.
	FromPolicy bool
}

// ResolveTerms returns the royalty terms in force for a sale at time at.
// Exactly one matching policy window wins; zero matches fall back to the
// mint's static terms; more than one match is ErrPolicyOverlap. When no
// window matches and the static terms are empty the result is ErrNoTerms.
func ResolveTerms(policies []*domain.RoyaltyPolicy, at time.Time, staticBps uint16, staticCreators []domain.Creator) (*Terms, error) {
	var matched *domain.RoyaltyPolicy
	for _, p := range policies {
		if !p.Contains(at) {
			continue
		}
		if matched != nil {
			return nil, fmt.Errorf("%w: collection %s at %s", ErrPolicyOverlap, p.CollectionID, at.Format(time.RFC3339))
		}
		matched = p
	}

	if matched == nil {
		if staticBps == 0 && len(staticCreators) == 0 {
			return nil, fmt.Errorf("%w at %s", ErrNoTerms, at.Format(time.RFC3339))
		}
		return &Terms{
			BasisPoints: staticBps,
			Creators:    staticCreators,
		}, nil
	}

	creators := matched.Creators
	if len(creators) == 0 {
		creators = staticCreators
	}
	return &Terms{
		BasisPoints: matched.BasisPoints,
		Creators:    creators,
		FromPolicy:  true,
	}, nil
}
