package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/marketplace"
	"github.com/Xin-Dragons/cpl-worker/internal/metadata"
	"github.com/Xin-Dragons/cpl-worker/internal/observability"
	"github.com/Xin-Dragons/cpl-worker/internal/reconcile"
	"github.com/Xin-Dragons/cpl-worker/internal/royalty"
	"github.com/Xin-Dragons/cpl-worker/internal/solana"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// Watcher subscribes to account changes of monitored mints and reconciles
// the purchases it sees in near real time.
//
// Dedup is delegated to the activity log: the atomic insert decides exactly
// one winner per signature, so overlapping notifications, restarts, and
// resubscribe replays all collapse to a single processing.
type Watcher struct {
	ws       solana.WSClient
	rpc      solana.RPCClient
	log      storage.ActivityLogStore
	mints    storage.MintStore
	sales    storage.SaleStore
	metadata metadata.Client
	engine   *reconcile.Engine
	extract  *marketplace.ExtractorRegistry
	metrics  *observability.Metrics // optional
}

// NewWatcher creates a live watcher.
func NewWatcher(
	ws solana.WSClient,
	rpc solana.RPCClient,
	log storage.ActivityLogStore,
	mints storage.MintStore,
	sales storage.SaleStore,
	md metadata.Client,
	engine *reconcile.Engine,
) *Watcher {
	return &Watcher{
		ws:       ws,
		rpc:      rpc,
		log:      log,
		mints:    mints,
		sales:    sales,
		metadata: md,
		engine:   engine,
		extract:  marketplace.NewExtractorRegistry(),
	}
}

// SetMetrics wires Prometheus metrics into the watcher.
func (w *Watcher) SetMetrics(m *observability.Metrics) {
	w.metrics = m
}

// WatchCollection subscribes to every mint of the collection and blocks
// until ctx is cancelled. Notification handling errors are logged and the
// subscription keeps running.
func (w *Watcher) WatchCollection(ctx context.Context, col *domain.Collection) error {
	mints, err := w.mints.GetMints(ctx, col.ID)
	if err != nil {
		return fmt.Errorf("load mints for collection %s: %w", col.ID, err)
	}

	for _, m := range mints {
		ch, err := w.ws.SubscribeAccount(ctx, m.Address)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", m.Address, err)
		}
		go w.consume(ctx, col, ch)
	}

	zap.L().Info("live watcher running",
		zap.String("collection", col.ID),
		zap.Int("mints", len(mints)))
	<-ctx.Done()
	return ctx.Err()
}

func (w *Watcher) consume(ctx context.Context, col *domain.Collection, ch <-chan solana.AccountNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-ch:
			if !ok {
				return
			}
			if w.metrics != nil {
				w.metrics.NotificationsSeen.Inc()
			}
			if err := w.handleNotification(ctx, col, notif); err != nil {
				zap.L().Warn("notification handling failed",
					zap.String("account", notif.Pubkey),
					zap.Error(err))
			}
		}
	}
}

// handleNotification resolves the notification to its most recent signature,
// classifies the transaction, and claims it in the activity log before any
// analysis. ErrDuplicateKey from the log means another path got there first.
func (w *Watcher) handleNotification(ctx context.Context, col *domain.Collection, notif solana.AccountNotification) error {
	if !solana.IsValidAddress(notif.Pubkey) {
		return nil
	}
	sigs, err := w.rpc.GetSignaturesForAddress(ctx, notif.Pubkey, &solana.SignaturesOpts{Limit: 1})
	if err != nil {
		return fmt.Errorf("resolve signature: %w", err)
	}
	if len(sigs) == 0 {
		return nil
	}
	sig := sigs[0]
	if sig.Err != nil {
		return nil
	}

	// Cheap pre-filter only; the insert below is the authoritative decision.
	if _, err := w.log.GetLogEntry(ctx, sig.Signature); err == nil {
		w.countDedup()
		return nil
	}

	tx, err := w.rpc.GetTransaction(ctx, sig.Signature)
	if err != nil {
		return fmt.Errorf("fetch transaction %s: %w", sig.Signature, err)
	}
	if tx == nil || tx.Meta == nil {
		return nil
	}

	activity := ClassifyActivity(tx.Meta.LogMessages)
	err = w.log.AppendLogEntry(ctx, &storage.LogEntry{
		Signature: sig.Signature,
		Mint:      notif.Pubkey,
		Type:      activity,
		SeenAt:    time.Now().UTC(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		w.countDedup()
		return nil
	}
	if err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}

	if w.metrics != nil {
		w.metrics.ActivitiesClassified.WithLabelValues(string(activity)).Inc()
	}
	zap.L().Info("activity observed",
		zap.String("mint", notif.Pubkey),
		zap.String("signature", sig.Signature),
		zap.String("type", string(activity)))

	if activity != storage.ActivityPurchase {
		return nil
	}
	return w.analyzePurchase(ctx, col, notif.Pubkey, tx)
}

// analyzePurchase reconciles a live purchase straight from the transaction.
func (w *Watcher) analyzePurchase(ctx context.Context, col *domain.Collection, mintAddr string, tx *solana.Transaction) error {
	mint, err := w.mints.GetMint(ctx, mintAddr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load mint %s: %w", mintAddr, err)
	}

	c, err := w.candidateFromTransaction(mintAddr, tx)
	if err != nil {
		return err
	}
	if reason := reconcile.FilterCandidate(mint, c, time.Now().UTC(), w.engine.Lookback()); reason != reconcile.DropNone {
		if w.metrics != nil {
			w.metrics.CandidatesDropped.WithLabelValues(string(reason)).Inc()
		}
		return nil
	}

	md, err := w.metadata.FindByMint(ctx, mintAddr)
	if err != nil {
		return fmt.Errorf("fetch metadata %s: %w", mintAddr, err)
	}

	sale, err := w.engine.AnalyzeCandidate(col, mint, c, tx, md)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", c.Signature, err)
	}
	if err := w.sales.UpsertSales(ctx, []*domain.Sale{sale}); err != nil {
		return fmt.Errorf("persist sale %s: %w", c.Signature, err)
	}
	if w.metrics != nil {
		w.metrics.CandidatesProcessed.WithLabelValues(string(domain.SourceSubscription)).Inc()
	}
	return nil
}

// candidateFromTransaction derives a sale candidate from the transaction
// itself. The fee payer is the buyer; the price is what its balance lost,
// unless the marketplace logged an authoritative figure.
func (w *Watcher) candidateFromTransaction(mintAddr string, tx *solana.Transaction) (*domain.SaleCandidate, error) {
	if tx.Message == nil || len(tx.Message.AccountKeys) == 0 {
		return nil, fmt.Errorf("transaction %s has no account keys", tx.Signature)
	}

	buyer := tx.Message.AccountKeys[0]
	// The fee payer of a sale is the buyer's wallet. Program derived
	// addresses are off-curve and cannot sign.
	if !solana.IsOnCurve(buyer) {
		return nil, fmt.Errorf("fee payer %s of %s is not a wallet address", buyer, tx.Signature)
	}
	program := marketplaceProgram(tx.Message.AccountKeys, tx.Meta.LogMessages)

	var price int64
	var royaltiesPaid *int64
	details, err := w.extract.Extract(program, tx.Meta.LogMessages)
	if err != nil {
		return nil, fmt.Errorf("sale log of %s: %w", tx.Signature, err)
	}
	if details != nil {
		price = details.TotalPriceLamports
		paid := details.RoyaltyPaidLamports
		royaltiesPaid = &paid
	} else {
		deltas := royalty.BalanceDeltas(tx.Message.AccountKeys, tx.Meta.PreBalances, tx.Meta.PostBalances)
		for _, d := range deltas {
			if d.Key == buyer && d.Change < 0 {
				price = -d.Change
			}
		}
	}
	if price <= 0 {
		return nil, fmt.Errorf("transaction %s has no discernible price", tx.Signature)
	}

	seller := ""
	if tx.Meta != nil {
		var best int64
		deltas := royalty.BalanceDeltas(tx.Message.AccountKeys, tx.Meta.PreBalances, tx.Meta.PostBalances)
		for _, d := range deltas {
			if d.Key != buyer && d.Change > best {
				best = d.Change
				seller = d.Key
			}
		}
	}

	blockTime := time.Unix(tx.BlockTime, 0).UTC()
	return reconcile.NormalizeSubscriptionSale(mintAddr, tx.Signature, price, buyer, seller, blockTime, program, royaltiesPaid), nil
}

// marketplaceProgram finds the marketplace program invoked in the logs.
func marketplaceProgram(accountKeys, logs []string) string {
	known := []string{marketplace.MagicEdenV2, marketplace.AuctionHouse}
	for _, prog := range known {
		for _, log := range logs {
			if strings.Contains(log, "Program "+prog+" invoke") {
				return prog
			}
		}
	}
	for _, prog := range known {
		for _, key := range accountKeys {
			if key == prog {
				return prog
			}
		}
	}
	return ""
}

func (w *Watcher) countDedup() {
	if w.metrics != nil {
		w.metrics.NotificationsDeduped.Inc()
	}
}
