package domain

// TokenQuote is a best-effort market snapshot for a token.
// Fields left at zero mean "no data from any provider", not an error.
// Quotes are ephemeral: recomputed per request and cached transiently.
type TokenQuote struct {
	Address        string
	Price          float64 // USD price per token
	Volume24h      float64 // 24h trade volume in USD
	Liquidity      float64 // pool liquidity in USD
	MarketCap      float64
	PriceChange24h float64 // percent, signed
	AgeDays        float64 // time since pool creation
	HolderCount    int
}
