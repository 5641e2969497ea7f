package domain

import "time"

// Collection is a protected collection under royalty monitoring.
// Collections are onboarded out-of-band and read-only to the worker.
type Collection struct {
	ID     string
	Name   string
	Active bool

	// Policies holds the collection's royalty policy periods, ordered by
	// ActiveFrom ASC. Empty means the mints' static royalty fields apply.
	Policies []*RoyaltyPolicy
}

// RoyaltyPolicy is a royalty rate effective for a collection during a time
// window. Windows are half-open [ActiveFrom, ActiveTo) and must not overlap
// for the same collection; a zero ActiveFrom means "since genesis" and a zero
// ActiveTo means "still in force".
type RoyaltyPolicy struct {
	CollectionID string
	BasisPoints  uint16
	Creators     []Creator
	ActiveFrom   time.Time
	ActiveTo     time.Time
}

// Contains reports whether t falls inside the policy window.
func (p *RoyaltyPolicy) Contains(t time.Time) bool {
	if !p.ActiveFrom.IsZero() && t.Before(p.ActiveFrom) {
		return false
	}
	if !p.ActiveTo.IsZero() && !t.Before(p.ActiveTo) {
		return false
	}
	return true
}

// Creator is a royalty recipient on a mint's creator list.
type Creator struct {
	Address  string
	Verified bool
	Share    uint8
}

// CreatorAddresses returns just the addresses of a creator list.
func CreatorAddresses(creators []Creator) []string {
	addrs := make([]string, len(creators))
	for i, c := range creators {
		addrs[i] = c.Address
	}
	return addrs
}
