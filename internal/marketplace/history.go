package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/observability"
)

// Action is a single marketplace event reported by the history API.
type Action struct {
	Signature            string    `json:"signature"`
	Price                float64   `json:"price"` // SOL
	BuyerAddress         string    `json:"buyer_address"`
	SellerAddress        string    `json:"seller_address"`
	BlockTimestamp       time.Time `json:"block_timestamp"`
	MarketplaceProgramID string    `json:"marketplace_program_id"`
}

// HistoryClient returns recorded marketplace sale actions per mint.
type HistoryClient interface {
	// GetActionsByMints returns actions keyed by mint address. Mints with
	// no recorded activity are absent from the map.
	GetActionsByMints(ctx context.Context, mints []string) (map[string][]Action, error)
}

// HTTPHistoryClient implements HistoryClient against the indexer's REST API.
type HTTPHistoryClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	metrics *observability.Metrics
}

// HistoryOption configures an HTTPHistoryClient.
type HistoryOption func(*HTTPHistoryClient)

// WithHistoryHTTPClient overrides the underlying HTTP client.
func WithHistoryHTTPClient(c *http.Client) HistoryOption {
	return func(h *HTTPHistoryClient) {
		h.client = c
	}
}

// WithHistoryMetrics records call latency.
func WithHistoryMetrics(m *observability.Metrics) HistoryOption {
	return func(h *HTTPHistoryClient) {
		h.metrics = m
	}
}

// NewHTTPHistoryClient builds a client for the given API base URL.
func NewHTTPHistoryClient(baseURL, apiKey string, opts ...HistoryOption) *HTTPHistoryClient {
	h := &HTTPHistoryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type historyRequest struct {
	TokenAddresses []string `json:"tokenAddresses"`
	ActionType     string   `json:"actionType"`
}

type historyResponse struct {
	Actions []struct {
		TokenAddress         string  `json:"token_address"`
		Signature            string  `json:"signature"`
		Price                float64 `json:"price"`
		BuyerAddress         string  `json:"buyer_address"`
		SellerAddress        string  `json:"seller_address"`
		BlockTimestamp       int64   `json:"block_timestamp"`
		MarketplaceProgramID string  `json:"marketplace_program_id"`
	} `json:"actions"`
}

// GetActionsByMints fetches TRANSACTION-type actions for the given mints.
func (h *HTTPHistoryClient) GetActionsByMints(ctx context.Context, mints []string) (map[string][]Action, error) {
	if len(mints) == 0 {
		return map[string][]Action{}, nil
	}

	body, err := json.Marshal(historyRequest{TokenAddresses: mints, ActionType: "TRANSACTION"})
	if err != nil {
		return nil, fmt.Errorf("marshal history request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/market-actions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create history request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if h.metrics != nil {
		h.metrics.HistoryAPILatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("history API status %d: %s", resp.StatusCode, string(data))
	}

	var decoded historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}

	out := make(map[string][]Action, len(mints))
	for _, a := range decoded.Actions {
		out[a.TokenAddress] = append(out[a.TokenAddress], Action{
			Signature:            a.Signature,
			Price:                a.Price,
			BuyerAddress:         a.BuyerAddress,
			SellerAddress:        a.SellerAddress,
			BlockTimestamp:       time.Unix(a.BlockTimestamp, 0).UTC(),
			MarketplaceProgramID: a.MarketplaceProgramID,
		})
	}
	return out, nil
}
