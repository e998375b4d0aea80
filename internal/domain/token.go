package domain

// TokenInfo identifies a tradable SPL token.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// WalletHolding is one token balance held by the trading wallet.
type WalletHolding struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}
