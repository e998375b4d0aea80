package solana

import "context"

// RPCClient defines the subset of the Solana RPC HTTP interface the bot uses.
type RPCClient interface {
	// GetAccountInfo retrieves account info by public key, nil if absent.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenAccountsByOwner retrieves all SPL token accounts of an owner.
	GetTokenAccountsByOwner(ctx context.Context, owner string) ([]TokenAccount, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)

	// GetSignaturesForAddress retrieves up to limit signatures for an
	// address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
	RentEpoch  uint64
}

// SignatureInfo is one confirmed transaction signature for an address.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime int64 // unix seconds, zero if unavailable
}

// TokenAccount is one SPL token account with its parsed balance.
type TokenAccount struct {
	Pubkey   string
	Mint     string
	Owner    string
	Amount   float64 // UI amount, decimals applied
	Decimals int
}
