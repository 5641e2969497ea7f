package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/marketplace"
	"github.com/Xin-Dragons/cpl-worker/internal/metadata"
	"github.com/Xin-Dragons/cpl-worker/internal/observability"
	"github.com/Xin-Dragons/cpl-worker/internal/royalty"
	"github.com/Xin-Dragons/cpl-worker/internal/solana"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// ChunkSize is how many mints are reconciled per history API request.
const ChunkSize = 100

// Archiver mirrors persisted sales into the analytical store. Best-effort.
type Archiver interface {
	ArchiveSales(ctx context.Context, collectionID string, sales []*domain.Sale) error
}

// Engine reconciles one collection at a time against the marketplace
// history feed.
type Engine struct {
	mints    storage.MintStore
	sales    storage.SaleStore
	history  marketplace.HistoryClient
	metadata metadata.Client
	rpc      solana.RPCClient
	extract  *marketplace.ExtractorRegistry

	archive Archiver               // optional
	metrics *observability.Metrics // optional

	lookback time.Duration
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithArchiver mirrors persisted sales into an analytical store.
func WithArchiver(a Archiver) EngineOption {
	return func(e *Engine) {
		e.archive = a
	}
}

// WithMetrics wires Prometheus metrics into the engine.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLookback overrides the candidate staleness window.
func WithLookback(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.lookback = d
	}
}

// Lookback returns the candidate staleness window in force. The live paths
// filter against the same window as the batch engine.
func (e *Engine) Lookback() time.Duration {
	return e.lookback
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a reconciliation engine.
func NewEngine(
	mints storage.MintStore,
	sales storage.SaleStore,
	history marketplace.HistoryClient,
	md metadata.Client,
	rpc solana.RPCClient,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		mints:    mints,
		sales:    sales,
		history:  history,
		metadata: md,
		rpc:      rpc,
		extract:  marketplace.NewExtractorRegistry(),
		lookback: DefaultLookback,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReconcileCollection runs one reconciliation pass over every mint of the
// collection. Mints are processed in chunks, chunks concurrently; any chunk
// failing after its retry fails the whole collection.
func (e *Engine) ReconcileCollection(ctx context.Context, col *domain.Collection) error {
	mints, err := e.mints.GetMints(ctx, col.ID)
	if err != nil {
		e.countDBError("get_mints")
		return fmt.Errorf("load mints for collection %s: %w", col.ID, err)
	}
	if len(mints) == 0 {
		return nil
	}

	var g errgroup.Group
	for start := 0; start < len(mints); start += ChunkSize {
		end := start + ChunkSize
		if end > len(mints) {
			end = len(mints)
		}
		chunk := mints[start:end]
		g.Go(func() error {
			return e.processChunkWithRetry(ctx, col, chunk)
		})
	}
	return g.Wait()
}

// processChunkWithRetry retries a failed chunk once in-process before letting
// the failure escalate to the collection.
func (e *Engine) processChunkWithRetry(ctx context.Context, col *domain.Collection, chunk []*domain.Mint) error {
	err := e.processChunk(ctx, col, chunk)
	if err == nil {
		return nil
	}

	zap.L().Warn("chunk failed, retrying",
		zap.String("collection", col.ID),
		zap.Int("mints", len(chunk)),
		zap.Error(err))
	if e.metrics != nil {
		e.metrics.ChunkRetries.Inc()
	}

	if err = e.processChunk(ctx, col, chunk); err != nil {
		return fmt.Errorf("chunk of %d mints in collection %s: %w", len(chunk), col.ID, err)
	}
	return nil
}

func (e *Engine) processChunk(ctx context.Context, col *domain.Collection, chunk []*domain.Mint) error {
	addresses := make([]string, len(chunk))
	byAddress := make(map[string]*domain.Mint, len(chunk))
	for i, m := range chunk {
		addresses[i] = m.Address
		byAddress[m.Address] = m
	}

	actions, err := e.history.GetActionsByMints(ctx, addresses)
	if err != nil {
		return fmt.Errorf("fetch marketplace history: %w", err)
	}

	now := e.now()
	var accepted []*domain.SaleCandidate
	for _, addr := range addresses {
		mint := byAddress[addr]
		for _, a := range actions[addr] {
			c := NormalizeHistoryAction(addr, a)
			if reason := FilterCandidate(mint, c, now, e.lookback); reason != DropNone {
				if e.metrics != nil {
					e.metrics.CandidatesDropped.WithLabelValues(string(reason)).Inc()
				}
				continue
			}
			accepted = append(accepted, c)
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	signatures := make([]string, len(accepted))
	mintSet := make(map[string]struct{}, len(accepted))
	for i, c := range accepted {
		signatures[i] = c.Signature
		mintSet[c.Mint] = struct{}{}
	}
	mintList := make([]string, 0, len(mintSet))
	for m := range mintSet {
		mintList = append(mintList, m)
	}

	txs, err := e.rpc.GetTransactions(ctx, signatures)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}
	metas, err := e.metadata.FindAllByMintList(ctx, mintList)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}

	var sales []*domain.Sale
	for i, c := range accepted {
		mint := byAddress[c.Mint]
		sale, err := e.AnalyzeCandidate(col, mint, c, txs[i], metas[c.Mint])
		if err != nil {
			zap.L().Warn("skipping candidate",
				zap.String("signature", c.Signature),
				zap.String("mint", c.Mint),
				zap.Error(err))
			continue
		}
		if e.metrics != nil {
			e.metrics.CandidatesProcessed.WithLabelValues(string(c.Source)).Inc()
		}
		sales = append(sales, sale)
	}
	if len(sales) == 0 {
		return nil
	}

	if err := e.sales.UpsertSales(ctx, sales); err != nil {
		e.countDBError("upsert_sales")
		return fmt.Errorf("persist sales: %w", err)
	}
	e.recordOutcomes(col, byAddress, sales)

	if e.archive != nil {
		if err := e.archive.ArchiveSales(ctx, col.ID, sales); err != nil {
			zap.L().Warn("sale archive write failed",
				zap.String("collection", col.ID),
				zap.Error(err))
			if e.metrics != nil {
				e.metrics.ArchiveErrors.Inc()
			}
		}
	}
	return nil
}

// AnalyzeCandidate prices a candidate against the collection's royalty terms
// and returns the reconciled sale. The transaction may be nil only when the
// candidate already carries an authoritative RoyaltiesPaid amount.
func (e *Engine) AnalyzeCandidate(col *domain.Collection, mint *domain.Mint, c *domain.SaleCandidate, tx *solana.Transaction, md *domain.NftMetadata) (*domain.Sale, error) {
	staticBps := mint.SellerFeeBasisPoints
	staticCreators := mint.Creators
	if md != nil {
		staticBps = md.SellerFeeBasisPoints
		staticCreators = md.Creators
	}

	terms, err := royalty.ResolveTerms(col.Policies, c.BlockTime, staticBps, staticCreators)
	if err != nil {
		if e.metrics != nil {
			switch {
			case errors.Is(err, royalty.ErrPolicyOverlap):
				e.metrics.CandidatesDropped.WithLabelValues("policy_overlap").Inc()
			case errors.Is(err, royalty.ErrNoTerms):
				e.metrics.CandidatesDropped.WithLabelValues("no_terms").Inc()
			}
		}
		return nil, err
	}

	price := c.PriceLamports
	var paid int64
	switch {
	case c.RoyaltiesPaid != nil:
		paid = *c.RoyaltiesPaid
	case tx != nil && tx.Meta != nil:
		// A marketplace that logs its own sale figures is authoritative
		// over what the indexer reported. A garbled sale log fails the
		// candidate rather than silently falling back to balance math.
		details, err := e.extract.Extract(c.MarketplaceProgram, tx.Meta.LogMessages)
		if err != nil {
			return nil, fmt.Errorf("sale log of %s: %w", c.Signature, err)
		}
		if details != nil {
			price = details.TotalPriceLamports
			paid = details.RoyaltyPaidLamports
			break
		}
		if tx.Message == nil {
			return nil, fmt.Errorf("transaction %s has no account keys", c.Signature)
		}
		deltas := royalty.BalanceDeltas(tx.Message.AccountKeys, tx.Meta.PreBalances, tx.Meta.PostBalances)
		paid = royalty.ActualCommission(deltas, domain.CreatorAddresses(terms.Creators), c.Buyer, price)
	default:
		return nil, fmt.Errorf("transaction %s unavailable", c.Signature)
	}

	expected := royalty.ExpectedCommission(price, terms.BasisPoints)
	debt := royalty.ComputeDebt(expected, paid)

	sale := &domain.Sale{
		Signature:            c.Signature,
		Mint:                 c.Mint,
		SaleDate:             c.BlockTime,
		SalePriceLamports:    price,
		SalePriceSOL:         domain.LamportsToSOL(price),
		Buyer:                c.Buyer,
		Seller:               c.Seller,
		SellerFeeBasisPoints: terms.BasisPoints,
		Creators:             terms.Creators,
		ExpectedRoyalties:    expected,
		RoyaltiesPaid:        paid,
		MarketplaceProgram:   c.MarketplaceProgram,
		Patched:              mint.SaleBySignature(c.Signature) != nil,
	}
	if debt != nil {
		sale.DebtLamports = &debt.Lamports
		sale.DebtSOL = &debt.SOL
	}
	return sale, nil
}

// recordOutcomes emits per-sale metrics and logs debts and clearings.
func (e *Engine) recordOutcomes(col *domain.Collection, byAddress map[string]*domain.Mint, sales []*domain.Sale) {
	latestByMint := make(map[string]*domain.Sale, len(sales))
	for _, s := range sales {
		if e.metrics != nil {
			e.metrics.SalesRecorded.Inc()
			if s.HasDebt() {
				e.metrics.DebtsRecorded.Inc()
			}
			if s.Patched {
				e.metrics.SalesPatched.Inc()
			}
		}
		if s.HasDebt() {
			zap.L().Info("royalty debt recorded",
				zap.String("collection", col.ID),
				zap.String("mint", s.Mint),
				zap.String("signature", s.Signature),
				zap.Int64("debt_lamports", *s.DebtLamports),
				zap.Float64("debt_sol", *s.DebtSOL))
		}
		if latest := latestByMint[s.Mint]; latest == nil || s.SaleDate.After(latest.SaleDate) {
			latestByMint[s.Mint] = s
		}
	}

	for addr, newest := range latestByMint {
		mint := byAddress[addr]
		if mint == nil || !mint.HasDebt() || newest.HasDebt() {
			continue
		}
		if !newest.SaleDate.After(mint.LatestSale().SaleDate) {
			continue
		}
		zap.L().Info("royalty debt cleared",
			zap.String("collection", col.ID),
			zap.String("mint", addr),
			zap.String("signature", newest.Signature))
		if e.metrics != nil {
			e.metrics.DebtsCleared.Inc()
		}
	}
}

func (e *Engine) countDBError(operation string) {
	if e.metrics != nil {
		e.metrics.DBQueryErrors.WithLabelValues("postgres", operation).Inc()
	}
}
