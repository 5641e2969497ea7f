package domain

import "time"

// CandidateSource identifies which feed produced a sale candidate.
type CandidateSource string

const (
	// SourceHistory is the marketplace history/indexing API batch feed.
	SourceHistory CandidateSource = "HISTORY"
	// SourceWebhook is the pushed webhook payload feed.
	SourceWebhook CandidateSource = "WEBHOOK"
	// SourceSubscription is the on-chain account-change subscription feed.
	SourceSubscription CandidateSource = "SUBSCRIPTION"
)

// SaleCandidate is a sale event seen from one source, normalized to a single
// shape. Candidates live for one reconciliation pass and are never persisted.
type SaleCandidate struct {
	Mint          string
	Signature     string
	PriceLamports int64
	Buyer         string
	Seller        string
	BlockTime     time.Time

	MarketplaceProgram string
	Source             CandidateSource

	// RoyaltiesPaid overrides the balance analyzer's computed commission when
	// the marketplace's own transaction log is the authoritative royalty
	// source. Nil means "compute from balances".
	RoyaltiesPaid *int64
}

// BalanceDelta is the signed lamport change of one account across a
// transaction. Used only inside the balance analyzer.
type BalanceDelta struct {
	Key    string
	Change int64
}
