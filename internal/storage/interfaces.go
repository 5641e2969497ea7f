package storage

import (
	"context"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
)

// CollectionStore provides read access to onboarded collections.
type CollectionStore interface {
	// GetCollections retrieves all collections with their royalty policy
	// periods loaded, ordered by id.
	GetCollections(ctx context.Context) ([]*domain.Collection, error)
}

// MintStore provides read access to monitored mints.
type MintStore interface {
	// GetMints retrieves all mints of a collection, each carrying its
	// recorded sales history ordered by sale_date ASC.
	GetMints(ctx context.Context, collectionID string) ([]*domain.Mint, error)

	// GetMint retrieves a single mint with its sales history. Returns
	// ErrNotFound if the mint is not monitored.
	GetMint(ctx context.Context, mint string) (*domain.Mint, error)
}

// SaleStore persists reconciled sales.
type SaleStore interface {
	// UpsertSales writes a batch of sales keyed by (signature, mint).
	// Re-running the same batch is a no-op for unchanged rows; rows for the
	// patch-eligible marketplace may overwrite earlier values. Idempotent
	// under retry.
	UpsertSales(ctx context.Context, sales []*domain.Sale) error

	// GetSalesByMint retrieves recorded sales for a mint, ordered by
	// sale_date ASC.
	GetSalesByMint(ctx context.Context, mint string) ([]*domain.Sale, error)
}

// ActivityType classifies a transaction seen by the live watcher.
type ActivityType string

const (
	ActivityPurchase ActivityType = "PURCHASE"
	ActivityListing  ActivityType = "LISTING"
	ActivityDelist   ActivityType = "DELIST"
	ActivityUnknown  ActivityType = "UNKNOWN"
)

// LogEntry is a write-ahead record of a processed live notification.
type LogEntry struct {
	Signature string
	Mint      string
	Type      ActivityType
	SeenAt    time.Time
}

// ActivityLogStore is the live path's write-ahead log. AppendLogEntry must be
// a single atomic conditional insert: the uniqueness rejection, surfaced as
// ErrDuplicateKey, is the "already processed" decision under concurrent
// notifications. No check-then-write.
type ActivityLogStore interface {
	// AppendLogEntry records a processed signature. Returns ErrDuplicateKey
	// if the signature was already logged.
	AppendLogEntry(ctx context.Context, entry *LogEntry) error

	// GetLogEntry retrieves a log entry by signature. Returns ErrNotFound if
	// absent. Callers may use this as a cheap pre-filter only; the insert is
	// authoritative.
	GetLogEntry(ctx context.Context, signature string) (*LogEntry, error)
}
