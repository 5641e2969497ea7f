package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xin-Dragons/cpl-worker/internal/observability"
)

func testClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, WithMaxRetries(1), WithRetryDelay(time.Millisecond))
}

func txResultJSON(slot int64, blockTime int64) json.RawMessage {
	return json.RawMessage(`{
		"slot": ` + jsonInt(slot) + `,
		"blockTime": ` + jsonInt(blockTime) + `,
		"meta": {
			"err": null,
			"logMessages": ["Program log: Instruction: ExecuteSale"],
			"preBalances": [100, 50],
			"postBalances": [40, 110]
		},
		"transaction": {"message": {"accountKeys": ["Buyer", "Seller"]}}
	}`)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestGetTransaction(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTransaction", req.Method)
		assert.Equal(t, "sig1", req.Params[0])

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: txResultJSON(1234, 1700000000)}
		_ = json.NewEncoder(w).Encode(resp)
	})

	tx, err := client.GetTransaction(context.Background(), "sig1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, int64(1234), tx.Slot)
	assert.Equal(t, int64(1700000000), tx.BlockTime)
	assert.Equal(t, []string{"Buyer", "Seller"}, tx.Message.AccountKeys)
	assert.Equal(t, []int64{100, 50}, tx.Meta.PreBalances)
}

func TestGetTransaction_NotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`null`)}
		_ = json.NewEncoder(w).Encode(resp)
	})

	tx, err := client.GetTransaction(context.Background(), "sigMissing")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestGetTransaction_RetriesVersionedTransaction(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		cfg := req.Params[1].(map[string]interface{})
		if _, ok := cfg["maxSupportedTransactionVersion"]; !ok {
			resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
				Code:    rpcErrUnsupportedVersion,
				Message: "Transaction version (0) is not supported by the requesting client",
			}}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: txResultJSON(5678, 1700000001)}
		_ = json.NewEncoder(w).Encode(resp)
	})

	tx, err := client.GetTransaction(context.Background(), "sigV0")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, int64(5678), tx.Slot)
	assert.Equal(t, 2, calls)
}

func TestGetTransaction_OtherErrorNotRetried(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "Invalid param"}}
		_ = json.NewEncoder(w).Encode(resp)
	})

	_, err := client.GetTransaction(context.Background(), "sigBad")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetTransactions_BatchOrderPreserved(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var reqs []rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))
		require.Len(t, reqs, 3)

		// Answer out of order, with the middle signature unknown.
		resps := []rpcResponse{
			{JSONRPC: "2.0", ID: reqs[2].ID, Result: txResultJSON(300, 1700000300)},
			{JSONRPC: "2.0", ID: reqs[1].ID, Result: json.RawMessage(`null`)},
			{JSONRPC: "2.0", ID: reqs[0].ID, Result: txResultJSON(100, 1700000100)},
		}
		_ = json.NewEncoder(w).Encode(resps)
	})

	txs, err := client.GetTransactions(context.Background(), []string{"sigA", "sigB", "sigC"})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.NotNil(t, txs[0])
	assert.Equal(t, int64(100), txs[0].Slot)
	assert.Equal(t, "sigA", txs[0].Signature)
	assert.Nil(t, txs[1])
	require.NotNil(t, txs[2])
	assert.Equal(t, int64(300), txs[2].Slot)
}

func TestGetTransactions_Empty(t *testing.T) {
	client := NewHTTPClient("http://unused")
	txs, err := client.GetTransactions(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, txs)
}

func TestGetSignaturesForAddress(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getSignaturesForAddress", req.Method)
		assert.Equal(t, "Addr1", req.Params[0])
		cfg := req.Params[1].(map[string]interface{})
		assert.Equal(t, float64(1), cfg["limit"])

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`[
			{"signature": "sigNewest", "slot": 900, "blockTime": 1700000900, "err": null}
		]`)}
		_ = json.NewEncoder(w).Encode(resp)
	})

	sigs, err := client.GetSignaturesForAddress(context.Background(), "Addr1", &SignaturesOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "sigNewest", sigs[0].Signature)
	assert.Equal(t, int64(900), sigs[0].Slot)
	assert.Nil(t, sigs[0].Err)
}

func TestPost_RetriesOn429(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`[]`)}
		_ = json.NewEncoder(w).Encode(resp)
	})

	_, err := client.GetSignaturesForAddress(context.Background(), "Addr1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCall_ObservesMethodLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[]}`))
	}))
	t.Cleanup(server.Close)

	m := observability.NewMetrics("rpc_test")
	client := NewHTTPClient(server.URL, WithMaxRetries(1), WithRetryDelay(time.Millisecond), WithMetrics(m))
	_, err := client.GetSignaturesForAddress(context.Background(), "addr", nil)
	require.NoError(t, err)

	// One labelled child for the method that was called.
	assert.Equal(t, 1, testutil.CollectAndCount(m.RPCCallLatency))
}
