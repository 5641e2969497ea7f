package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Xin-Dragons/cpl-worker/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// rpcErrUnsupportedVersion is returned by providers when a versioned
// transaction is fetched without maxSupportedTransactionVersion.
const rpcErrUnsupportedVersion = -32015

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	metrics     *observability.Metrics
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMetrics records per-method call latency.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// isUnsupportedVersionError reports whether the fetch failed because the
// transaction uses a version above the request's declared maximum.
func isUnsupportedVersionError(err *rpcError) bool {
	if err == nil {
		return false
	}
	return err.Code == rpcErrUnsupportedVersion ||
		strings.Contains(err.Message, "Transaction version")
}

// post performs one HTTP round trip with retries and exponential backoff.
// body is the marshalled request (single object or batch array); the raw
// response body is returned for the caller to decode.
func (c *HTTPClient) post(ctx context.Context, body []byte) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// call performs a single JSON-RPC call.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	defer c.observe(method, time.Now())
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// GetTransaction retrieves a confirmed transaction by signature. If the
// default fetch reports an unsupported transaction version, the fetch is
// retried once declaring maxSupportedTransactionVersion 0.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var result getTransactionResult
	err := c.call(ctx, "getTransaction", []interface{}{signature, map[string]interface{}{
		"encoding": "json",
	}}, &result)
	if err != nil {
		var rpcErr *rpcError
		if !errors.As(err, &rpcErr) || !isUnsupportedVersionError(rpcErr) {
			return nil, err
		}
		result = getTransactionResult{}
		err = c.call(ctx, "getTransaction", []interface{}{signature, map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		}}, &result)
		if err != nil {
			return nil, err
		}
	}

	return result.toTransaction(signature), nil
}

// GetTransactions retrieves many transactions in one batched JSON-RPC
// request. The result slice is parallel to signatures; entries the node
// could not serve are nil.
func (c *HTTPClient) GetTransactions(ctx context.Context, signatures []string) ([]*Transaction, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	reqs := make([]rpcRequest, len(signatures))
	for i, sig := range signatures {
		reqs[i] = rpcRequest{
			JSONRPC: "2.0",
			ID:      c.requestID.Add(1),
			Method:  "getTransaction",
			Params: []interface{}{sig, map[string]interface{}{
				"encoding":                       "json",
				"maxSupportedTransactionVersion": 0,
			}},
		}
	}

	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	defer c.observe("getTransaction", time.Now())
	respBody, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var rpcResps []rpcResponse
	if err := json.Unmarshal(respBody, &rpcResps); err != nil {
		return nil, fmt.Errorf("unmarshal batch response: %w", err)
	}

	// Responses may arrive out of order; match them back by request ID.
	byID := make(map[uint64]*rpcResponse, len(rpcResps))
	for i := range rpcResps {
		byID[rpcResps[i].ID] = &rpcResps[i]
	}

	txs := make([]*Transaction, len(signatures))
	for i, req := range reqs {
		resp, ok := byID[req.ID]
		if !ok || resp.Error != nil || resp.Result == nil {
			continue
		}
		var result getTransactionResult
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			continue
		}
		txs[i] = result.toTransaction(signatures[i])
	}

	return txs, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err          interface{} `json:"err"`
	LogMessages  []string    `json:"logMessages"`
	PreBalances  []int64     `json:"preBalances"`
	PostBalances []int64     `json:"postBalances"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

// toTransaction converts the raw result, or nil when the node had no record.
func (r *getTransactionResult) toTransaction(signature string) *Transaction {
	if r.Slot == 0 && r.BlockTime == nil {
		return nil
	}

	tx := &Transaction{
		Slot:      r.Slot,
		Signature: signature,
	}
	if r.BlockTime != nil {
		tx.BlockTime = *r.BlockTime
	}
	if r.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:          r.Meta.Err,
			LogMessages:  r.Meta.LogMessages,
			PreBalances:  r.Meta.PreBalances,
			PostBalances: r.Meta.PostBalances,
		}
	}
	if r.Transaction != nil && r.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys: r.Transaction.Message.AccountKeys,
		}
	}
	return tx
}

// GetSignaturesForAddress retrieves signatures for an address, newest first.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []getSignaturesResult
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}

	return sigs, nil
}

// getSignaturesResult is the raw RPC response item for getSignaturesForAddress.
type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

func (c *HTTPClient) observe(method string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RPCCallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
