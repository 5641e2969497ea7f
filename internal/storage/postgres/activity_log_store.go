package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// ActivityLogStore implements storage.ActivityLogStore using PostgreSQL.
type ActivityLogStore struct {
	pool *Pool
}

// NewActivityLogStore creates a new ActivityLogStore.
func NewActivityLogStore(pool *Pool) *ActivityLogStore {
	return &ActivityLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActivityLogStore = (*ActivityLogStore)(nil)

// AppendLogEntry records a processed signature with a single conditional
// insert. Zero rows affected means another notification already claimed the
// signature, reported as ErrDuplicateKey.
func (s *ActivityLogStore) AppendLogEntry(ctx context.Context, entry *storage.LogEntry) error {
	if entry == nil || entry.Signature == "" {
		return storage.ErrInvalidInput
	}

	seenAt := entry.SeenAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_log (signature, mint, activity_type, seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (signature) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query, entry.Signature, entry.Mint, string(entry.Type), seenAt)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetLogEntry retrieves a log entry by signature.
func (s *ActivityLogStore) GetLogEntry(ctx context.Context, signature string) (*storage.LogEntry, error) {
	query := `
		SELECT signature, mint, activity_type, seen_at
		FROM activity_log
		WHERE signature = $1
	`

	entry := &storage.LogEntry{}
	var activityType string
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&entry.Signature, &entry.Mint, &activityType, &entry.SeenAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get log entry: %w", err)
	}
	entry.Type = storage.ActivityType(activityType)
	entry.SeenAt = entry.SeenAt.UTC()
	return entry, nil
}
