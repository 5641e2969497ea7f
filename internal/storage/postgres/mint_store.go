package postgres

import (
	"context"
	"fmt"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// MintStore implements storage.MintStore using PostgreSQL. Reads join each
// mint's recorded sales history.
type MintStore struct {
	pool  *Pool
	sales *SaleStore
}

// NewMintStore creates a new MintStore.
func NewMintStore(pool *Pool) *MintStore {
	return &MintStore{pool: pool, sales: NewSaleStore(pool)}
}

// Compile-time interface check.
var _ storage.MintStore = (*MintStore)(nil)

// GetMints retrieves all mints of a collection with sales history attached.
func (s *MintStore) GetMints(ctx context.Context, collectionID string) ([]*domain.Mint, error) {
	query := `
		SELECT mint, collection_id, name, seller_fee_basis_points, creators
		FROM nfts
		WHERE collection_id = $1
		ORDER BY mint ASC
	`

	rows, err := s.pool.Query(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get mints: %w", err)
	}
	defer rows.Close()

	var mints []*domain.Mint
	for rows.Next() {
		m, err := scanMint(rows.Scan)
		if err != nil {
			return nil, err
		}
		mints = append(mints, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mints: %w", err)
	}

	for _, m := range mints {
		history, err := s.sales.GetSalesByMint(ctx, m.Address)
		if err != nil {
			return nil, err
		}
		m.Sales = history
	}

	return mints, nil
}

// GetMint retrieves a single mint with its sales history.
func (s *MintStore) GetMint(ctx context.Context, mint string) (*domain.Mint, error) {
	query := `
		SELECT mint, collection_id, name, seller_fee_basis_points, creators
		FROM nfts
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	m, err := scanMint(row.Scan)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}

	history, err := s.sales.GetSalesByMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	m.Sales = history
	return m, nil
}

// scanMint reads one nft row.
func scanMint(scan func(dest ...any) error) (*domain.Mint, error) {
	m := &domain.Mint{}
	var bps int32
	var creatorsJSON []byte
	if err := scan(&m.Address, &m.CollectionID, &m.Name, &bps, &creatorsJSON); err != nil {
		return nil, err
	}
	m.SellerFeeBasisPoints = uint16(bps)
	creators, err := unmarshalCreators(creatorsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode mint creators: %w", err)
	}
	m.Creators = creators
	return m, nil
}
