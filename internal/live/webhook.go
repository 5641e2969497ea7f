package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/metadata"
	"github.com/Xin-Dragons/cpl-worker/internal/observability"
	"github.com/Xin-Dragons/cpl-worker/internal/reconcile"
	"github.com/Xin-Dragons/cpl-worker/internal/solana"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// webhookEvent is one enriched transaction pushed by the indexer.
type webhookEvent struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	Events    struct {
		NFT *struct {
			Amount int64  `json:"amount"` // lamports
			Buyer  string `json:"buyer"`
			Seller string `json:"seller"`
			Source string `json:"source"`
			NFTs   []struct {
				Mint string `json:"mint"`
			} `json:"nfts"`
		} `json:"nft"`
	} `json:"events"`
}

// WebhookHandler ingests pushed sale events. Events for unmonitored mints
// are acknowledged and dropped; the sender retries on non-2xx, so per-event
// failures are logged rather than surfaced.
type WebhookHandler struct {
	collections storage.CollectionStore
	mints       storage.MintStore
	sales       storage.SaleStore
	log         storage.ActivityLogStore
	rpc         solana.RPCClient
	metadata    metadata.Client
	engine      *reconcile.Engine
	metrics     *observability.Metrics // optional
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(
	collections storage.CollectionStore,
	mints storage.MintStore,
	sales storage.SaleStore,
	log storage.ActivityLogStore,
	rpc solana.RPCClient,
	md metadata.Client,
	engine *reconcile.Engine,
) *WebhookHandler {
	return &WebhookHandler{
		collections: collections,
		mints:       mints,
		sales:       sales,
		log:         log,
		rpc:         rpc,
		metadata:    md,
		engine:      engine,
	}
}

// SetMetrics wires Prometheus metrics into the handler.
func (h *WebhookHandler) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// ServeHTTP accepts a batch of pushed events.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var events []webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	for _, ev := range events {
		if h.metrics != nil {
			h.metrics.WebhookEventsReceived.Inc()
		}
		if err := h.processEvent(r.Context(), ev); err != nil {
			zap.L().Warn("webhook event failed",
				zap.String("signature", ev.Signature),
				zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) processEvent(ctx context.Context, ev webhookEvent) error {
	nft := ev.Events.NFT
	if nft == nil || len(nft.NFTs) == 0 || ev.Signature == "" {
		return nil
	}
	mintAddr := nft.NFTs[0].Mint
	if !solana.IsValidAddress(mintAddr) {
		return nil
	}

	mint, err := h.mints.GetMint(ctx, mintAddr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load mint %s: %w", mintAddr, err)
	}

	col, err := h.collectionOf(ctx, mint.CollectionID)
	if err != nil {
		return err
	}

	// Claim the signature before analysis; a concurrent subscription
	// notification for the same sale loses here and drops out.
	err = h.log.AppendLogEntry(ctx, &storage.LogEntry{
		Signature: ev.Signature,
		Mint:      mintAddr,
		Type:      storage.ActivityPurchase,
		SeenAt:    time.Now().UTC(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		if h.metrics != nil {
			h.metrics.NotificationsDeduped.Inc()
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}

	c := reconcile.NormalizeWebhookSale(
		mintAddr, ev.Signature, nft.Amount, nft.Buyer, nft.Seller,
		time.Unix(ev.Timestamp, 0).UTC(), nft.Source)

	if reason := reconcile.FilterCandidate(mint, c, time.Now().UTC(), h.engine.Lookback()); reason != reconcile.DropNone {
		if h.metrics != nil {
			h.metrics.CandidatesDropped.WithLabelValues(string(reason)).Inc()
		}
		return nil
	}

	tx, err := h.rpc.GetTransaction(ctx, ev.Signature)
	if err != nil {
		return fmt.Errorf("fetch transaction %s: %w", ev.Signature, err)
	}
	md, err := h.metadata.FindByMint(ctx, mintAddr)
	if err != nil {
		return fmt.Errorf("fetch metadata %s: %w", mintAddr, err)
	}

	sale, err := h.engine.AnalyzeCandidate(col, mint, c, tx, md)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", ev.Signature, err)
	}
	if err := h.sales.UpsertSales(ctx, []*domain.Sale{sale}); err != nil {
		return fmt.Errorf("persist sale %s: %w", ev.Signature, err)
	}
	if h.metrics != nil {
		h.metrics.CandidatesProcessed.WithLabelValues(string(domain.SourceWebhook)).Inc()
	}
	return nil
}

func (h *WebhookHandler) collectionOf(ctx context.Context, id string) (*domain.Collection, error) {
	cols, err := h.collections.GetCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}
	for _, col := range cols {
		if col.ID == id {
			return col, nil
		}
	}
	return nil, fmt.Errorf("collection %s not onboarded", id)
}
