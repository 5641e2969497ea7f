package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// SaleStore implements storage.SaleStore using PostgreSQL.
type SaleStore struct {
	pool *Pool
}

// NewSaleStore creates a new SaleStore.
func NewSaleStore(pool *Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SaleStore = (*SaleStore)(nil)

// UpsertSales writes a batch of sales keyed by (signature, mint). The ON
// CONFLICT clause makes retries idempotent and lets patch recomputation
// overwrite earlier rows.
func (s *SaleStore) UpsertSales(ctx context.Context, sales []*domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sales (
			signature, mint, sale_date, sale_price_lamports, sale_price_sol,
			buyer, seller, seller_fee_basis_points, creators,
			expected_royalties, royalties_paid, debt_lamports, debt_sol,
			marketplace_program, patched
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (signature, mint) DO UPDATE SET
			sale_price_lamports = EXCLUDED.sale_price_lamports,
			sale_price_sol = EXCLUDED.sale_price_sol,
			expected_royalties = EXCLUDED.expected_royalties,
			royalties_paid = EXCLUDED.royalties_paid,
			debt_lamports = EXCLUDED.debt_lamports,
			debt_sol = EXCLUDED.debt_sol,
			patched = EXCLUDED.patched
	`

	for _, sale := range sales {
		if sale == nil || sale.Signature == "" || sale.Mint == "" {
			return storage.ErrInvalidInput
		}
		creatorsJSON, err := json.Marshal(sale.Creators)
		if err != nil {
			return fmt.Errorf("encode creators: %w", err)
		}
		_, err = tx.Exec(ctx, query,
			sale.Signature,
			sale.Mint,
			sale.SaleDate.UTC(),
			sale.SalePriceLamports,
			sale.SalePriceSOL,
			sale.Buyer,
			sale.Seller,
			int32(sale.SellerFeeBasisPoints),
			creatorsJSON,
			sale.ExpectedRoyalties,
			sale.RoyaltiesPaid,
			sale.DebtLamports,
			sale.DebtSOL,
			sale.MarketplaceProgram,
			sale.Patched,
		)
		if err != nil {
			return fmt.Errorf("upsert sale %s: %w", sale.Signature, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSalesByMint retrieves recorded sales for a mint, ordered by sale_date ASC.
func (s *SaleStore) GetSalesByMint(ctx context.Context, mint string) ([]*domain.Sale, error) {
	query := `
		SELECT signature, mint, sale_date, sale_price_lamports, sale_price_sol,
			buyer, seller, seller_fee_basis_points, creators,
			expected_royalties, royalties_paid, debt_lamports, debt_sol,
			marketplace_program, patched
		FROM sales
		WHERE mint = $1
		ORDER BY sale_date ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get sales by mint: %w", err)
	}
	defer rows.Close()

	return scanSales(rows)
}

// scanSales reads sale rows into domain objects.
func scanSales(rows pgx.Rows) ([]*domain.Sale, error) {
	var sales []*domain.Sale
	for rows.Next() {
		sale := &domain.Sale{}
		var bps int32
		var creatorsJSON []byte
		err := rows.Scan(
			&sale.Signature,
			&sale.Mint,
			&sale.SaleDate,
			&sale.SalePriceLamports,
			&sale.SalePriceSOL,
			&sale.Buyer,
			&sale.Seller,
			&bps,
			&creatorsJSON,
			&sale.ExpectedRoyalties,
			&sale.RoyaltiesPaid,
			&sale.DebtLamports,
			&sale.DebtSOL,
			&sale.MarketplaceProgram,
			&sale.Patched,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sale.SaleDate = sale.SaleDate.UTC()
		sale.SellerFeeBasisPoints = uint16(bps)
		creators, err := unmarshalCreators(creatorsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode sale creators: %w", err)
		}
		sale.Creators = creators
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return sales, nil
}

// unmarshalCreators decodes a JSONB creator list column.
func unmarshalCreators(data []byte) ([]domain.Creator, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var creators []domain.Creator
	if err := json.Unmarshal(data, &creators); err != nil {
		return nil, err
	}
	return creators, nil
}
