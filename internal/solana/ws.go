package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeAccount subscribes to lamport/data changes of one account.
	// The returned channel stays open across reconnects and closes only
	// when the client is closed.
	SubscribeAccount(ctx context.Context, pubkey string) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification is one accountNotification message.
type AccountNotification struct {
	// Pubkey is the subscribed account.
	Pubkey   string
	Slot     int64
	Lamports uint64
	Owner    string
}
