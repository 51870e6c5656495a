package solana

import "context"

// RPCClient defines the Solana RPC HTTP surface the engine needs.
type RPCClient interface {
	// GetSlot retrieves the current confirmed slot.
	GetSlot(ctx context.Context) (uint64, error)

	// GetAccountInfo retrieves account data for a pubkey.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetHealth reports whether the node considers itself healthy.
	GetHealth(ctx context.Context) error
}

// AccountInfo from getAccountInfo.
type AccountInfo struct {
	Lamports uint64
	Owner    string
	Data     []byte
}
