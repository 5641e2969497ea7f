package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// CollectionStore implements storage.CollectionStore using PostgreSQL.
type CollectionStore struct {
	pool *Pool
}

// NewCollectionStore creates a new CollectionStore.
func NewCollectionStore(pool *Pool) *CollectionStore {
	return &CollectionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CollectionStore = (*CollectionStore)(nil)

// GetCollections retrieves all collections with their royalty policy periods
// loaded, ordered by id.
func (s *CollectionStore) GetCollections(ctx context.Context) ([]*domain.Collection, error) {
	query := `
		SELECT id, name, active
		FROM collections
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get collections: %w", err)
	}
	defer rows.Close()

	var collections []*domain.Collection
	byID := make(map[string]*domain.Collection)
	for rows.Next() {
		c := &domain.Collection{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}

	if err := s.attachPolicies(ctx, byID); err != nil {
		return nil, err
	}

	return collections, nil
}

// attachPolicies loads royalty policy periods for the given collections.
func (s *CollectionStore) attachPolicies(ctx context.Context, byID map[string]*domain.Collection) error {
	if len(byID) == 0 {
		return nil
	}

	query := `
		SELECT collection_id, basis_points, creators, active_from, active_to
		FROM royalty_policies
		ORDER BY collection_id ASC, active_from ASC NULLS FIRST
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("get royalty policies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &domain.RoyaltyPolicy{}
		var creatorsJSON []byte
		var from, to sql.NullTime
		if err := rows.Scan(&p.CollectionID, &p.BasisPoints, &creatorsJSON, &from, &to); err != nil {
			return fmt.Errorf("scan royalty policy: %w", err)
		}
		if from.Valid {
			p.ActiveFrom = from.Time.UTC()
		}
		if to.Valid {
			p.ActiveTo = to.Time.UTC()
		}
		creators, err := unmarshalCreators(creatorsJSON)
		if err != nil {
			return fmt.Errorf("decode policy creators: %w", err)
		}
		p.Creators = creators

		if c, ok := byID[p.CollectionID]; ok {
			c.Policies = append(c.Policies, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate royalty policies: %w", err)
	}
	return nil
}

// nullableTime converts a zero time to NULL for storage.
func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
