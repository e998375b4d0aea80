package marketdata

import (
	"fmt"
	"math"
	"strings"

	"solana-sniper/internal/domain"
)

// GateConfig bounds what counts as a tradeable token. The caps reject
// established tokens; a sniper only wants fresh, thinly traded listings.
type GateConfig struct {
	MaxLiquidity float64 // USD; above this the token is too established
	MaxPrice     float64 // USD per token
	// VolumeMultiple rejects tokens whose 24h volume exceeds liquidity by
	// this factor, a common wash-trading signature.
	VolumeMultiple float64
	MaxAgeDays     float64
	// BlockedNamePatterns are case-insensitive substrings rejected in the
	// symbol or name.
	BlockedNamePatterns []string
}

// DefaultGateConfig returns the standard entry gates.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxLiquidity:        1_000_000,
		MaxPrice:            10_000,
		VolumeMultiple:      100,
		MaxAgeDays:          30,
		BlockedNamePatterns: []string{"test", "scam", "rug"},
	}
}

// QuickScore ranks a token using only the cheap fields of a quote. Used
// during discovery where age and holder data may not be resolved yet.
func QuickScore(q *domain.TokenQuote) float64 {
	if q == nil {
		return 0
	}
	liq := 0.4 * math.Log10(q.Liquidity+1) / 7
	vol := 0.3 * math.Log10(q.Volume24h+1) / 7
	stability := 0.2 * (1 - math.Min(1, math.Abs(q.PriceChange24h)/100))
	holders := 0.1 * math.Min(1, float64(q.HolderCount)/1000)
	return liq + vol + stability + holders
}

// Score ranks a token with the full quote, weighing in age.
func Score(q *domain.TokenQuote) float64 {
	if q == nil {
		return 0
	}
	liq := 0.2 * math.Log10(q.Liquidity+1) / 7
	vol := 0.2 * math.Log10(q.Volume24h+1) / 7
	stability := 0.2 * (1 - math.Min(1, math.Abs(q.PriceChange24h)/100))
	holders := 0.2 * math.Min(1, float64(q.HolderCount)/1000)
	freshness := 0.2 * (1 - math.Min(1, q.AgeDays/30))
	return liq + vol + stability + holders + freshness
}

// IsValidToken applies entry gates to a token. The second return value is
// the rejection reason, empty when the token passes.
func IsValidToken(info *domain.TokenInfo, q *domain.TokenQuote, cfg GateConfig) (bool, string) {
	if q == nil || q.Price <= 0 {
		return false, "no price data"
	}
	if q.Liquidity <= 0 {
		return false, "no liquidity"
	}
	if cfg.MaxLiquidity > 0 && q.Liquidity > cfg.MaxLiquidity {
		return false, fmt.Sprintf("liquidity %.0f above cap", q.Liquidity)
	}
	if cfg.MaxPrice > 0 && q.Price > cfg.MaxPrice {
		return false, fmt.Sprintf("price %.2f above cap", q.Price)
	}
	if cfg.VolumeMultiple > 0 && q.Volume24h > q.Liquidity*cfg.VolumeMultiple {
		return false, "volume inconsistent with liquidity"
	}
	if cfg.MaxAgeDays > 0 && q.AgeDays > cfg.MaxAgeDays {
		return false, fmt.Sprintf("token age %.1fd above cap", q.AgeDays)
	}
	if info != nil {
		needle := strings.ToLower(info.Symbol + " " + info.Name)
		for _, pattern := range cfg.BlockedNamePatterns {
			if pattern != "" && strings.Contains(needle, strings.ToLower(pattern)) {
				return false, "blocked name pattern: " + pattern
			}
		}
	}
	return true, ""
}
