package clickhouse

import (
	"context"
	"fmt"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
)

// SaleArchive mirrors persisted sales into a ClickHouse table for downstream
// debt collection tooling. The table is a ReplacingMergeTree keyed by
// (mint, signature), so re-archiving a patched sale supersedes the old row.
type SaleArchive struct {
	conn *Conn
}

// NewSaleArchive creates a new SaleArchive.
func NewSaleArchive(conn *Conn) *SaleArchive {
	return &SaleArchive{conn: conn}
}

// ArchiveSales appends a batch of reconciled sales. Archiving is best-effort:
// callers log failures and continue, the OLTP store remains authoritative.
func (a *SaleArchive) ArchiveSales(ctx context.Context, collectionID string, sales []*domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO sale_archive (
			signature, mint, collection_id, sale_date,
			sale_price_lamports, sale_price_sol, buyer, seller,
			seller_fee_basis_points, expected_royalties, royalties_paid,
			debt_lamports, has_debt, marketplace_program, patched
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, s := range sales {
		var debt int64
		var hasDebt uint8
		if s.DebtLamports != nil {
			debt = *s.DebtLamports
			hasDebt = 1
		}
		var patched uint8
		if s.Patched {
			patched = 1
		}
		err = batch.Append(
			s.Signature, s.Mint, collectionID, s.SaleDate,
			s.SalePriceLamports, s.SalePriceSOL, s.Buyer, s.Seller,
			s.SellerFeeBasisPoints, s.ExpectedRoyalties, s.RoyaltiesPaid,
			debt, hasDebt, s.MarketplaceProgram, patched,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
