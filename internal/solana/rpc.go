package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface the worker needs.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns (nil, nil) if the transaction is not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetTransactions retrieves many transactions in one batched request.
	// The result is order-preserving; missing transactions are nil.
	GetTransactions(ctx context.Context, signatures []string) ([]*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with
	// pagination, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// Transaction represents a confirmed Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata. PreBalances and PostBalances
// are parallel to Message.AccountKeys.
type TransactionMeta struct {
	Err          interface{}
	LogMessages  []string
	PreBalances  []int64
	PostBalances []int64
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for
// getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}
