// Package metadata looks up on-chain NFT metadata through the metadata
// lookup service. The royalty terms baked into that metadata are the static
// fallback when a collection has no configured policy window.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/observability"
)

// Client fetches NFT metadata by mint address.
type Client interface {
	// FindAllByMintList returns metadata for the given mints, keyed by mint
	// address. Mints with no metadata are absent from the map.
	FindAllByMintList(ctx context.Context, mints []string) (map[string]*domain.NftMetadata, error)
	// FindByMint returns metadata for a single mint, or nil if none exists.
	FindByMint(ctx context.Context, mint string) (*domain.NftMetadata, error)
}

// HTTPClient implements Client against the metadata service's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	metrics *observability.Metrics
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithMetrics records call latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *HTTPClient) {
		h.metrics = m
	}
}

// NewHTTPClient builds a metadata client for the given API base URL.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type metadataItem struct {
	Mint                 string `json:"mint"`
	Name                 string `json:"name"`
	URI                  string `json:"uri"`
	SellerFeeBasisPoints uint16 `json:"sellerFeeBasisPoints"`
	Creators             []struct {
		Address  string `json:"address"`
		Verified bool   `json:"verified"`
		Share    uint8  `json:"share"`
	} `json:"creators"`
}

func (m metadataItem) toDomain() *domain.NftMetadata {
	out := &domain.NftMetadata{
		Mint:                 m.Mint,
		Name:                 m.Name,
		URI:                  m.URI,
		SellerFeeBasisPoints: m.SellerFeeBasisPoints,
	}
	for _, c := range m.Creators {
		out.Creators = append(out.Creators, domain.Creator{
			Address:  c.Address,
			Verified: c.Verified,
			Share:    c.Share,
		})
	}
	return out
}

// FindAllByMintList fetches metadata for a batch of mints in one request.
func (h *HTTPClient) FindAllByMintList(ctx context.Context, mints []string) (map[string]*domain.NftMetadata, error) {
	if len(mints) == 0 {
		return map[string]*domain.NftMetadata{}, nil
	}

	body, err := json.Marshal(map[string][]string{"mints": mints})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/metadata/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if h.metrics != nil {
		h.metrics.MetadataAPILatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("metadata API status %d: %s", resp.StatusCode, string(data))
	}

	var items []metadataItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}

	out := make(map[string]*domain.NftMetadata, len(items))
	for _, item := range items {
		if item.Mint == "" {
			continue
		}
		out[item.Mint] = item.toDomain()
	}
	return out, nil
}

// FindByMint fetches metadata for a single mint. Returns nil with no error
// when the service has no record for it.
func (h *HTTPClient) FindByMint(ctx context.Context, mint string) (*domain.NftMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/metadata/"+mint, nil)
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if h.metrics != nil {
		h.metrics.MetadataAPILatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("metadata API status %d: %s", resp.StatusCode, string(data))
	}

	var item metadataItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}
	return item.toDomain(), nil
}
