package marketdata

import (
	"testing"

	"solana-sniper/internal/domain"
)

func TestQuickScoreOrdersByDepth(t *testing.T) {
	thin := &domain.TokenQuote{Liquidity: 1_000, Volume24h: 500}
	deep := &domain.TokenQuote{Liquidity: 500_000, Volume24h: 200_000}

	if QuickScore(deep) <= QuickScore(thin) {
		t.Errorf("deep pool scored %v, thin %v; want deep > thin",
			QuickScore(deep), QuickScore(thin))
	}
	if QuickScore(nil) != 0 {
		t.Error("nil quote must score 0")
	}
}

func TestScorePenalizesVolatilityAndAge(t *testing.T) {
	calm := &domain.TokenQuote{Liquidity: 10_000, Volume24h: 5_000, PriceChange24h: 5, AgeDays: 1}
	wild := &domain.TokenQuote{Liquidity: 10_000, Volume24h: 5_000, PriceChange24h: 95, AgeDays: 1}
	old := &domain.TokenQuote{Liquidity: 10_000, Volume24h: 5_000, PriceChange24h: 5, AgeDays: 29}

	if Score(wild) >= Score(calm) {
		t.Error("volatile token should score below calm token")
	}
	if Score(old) >= Score(calm) {
		t.Error("old token should score below fresh token")
	}
}

func TestIsValidToken(t *testing.T) {
	cfg := DefaultGateConfig()
	info := &domain.TokenInfo{Address: "mint", Symbol: "NEW", Name: "New Token"}

	tests := []struct {
		name   string
		quote  *domain.TokenQuote
		info   *domain.TokenInfo
		want   bool
		reason string
	}{
		{
			name:  "passes all gates",
			quote: &domain.TokenQuote{Price: 0.001, Liquidity: 5_000, Volume24h: 10_000, AgeDays: 0.5},
			info:  info,
			want:  true,
		},
		{
			name:   "no price",
			quote:  &domain.TokenQuote{Liquidity: 5_000},
			info:   info,
			want:   false,
			reason: "no price data",
		},
		{
			name:   "no liquidity",
			quote:  &domain.TokenQuote{Price: 0.001},
			info:   info,
			want:   false,
			reason: "no liquidity",
		},
		{
			name:  "too established",
			quote: &domain.TokenQuote{Price: 0.001, Liquidity: 2_000_000},
			info:  info,
			want:  false,
		},
		{
			name:  "wash traded",
			quote: &domain.TokenQuote{Price: 0.001, Liquidity: 1_000, Volume24h: 500_000},
			info:  info,
			want:  false,
		},
		{
			name:  "too old",
			quote: &domain.TokenQuote{Price: 0.001, Liquidity: 5_000, AgeDays: 45},
			info:  info,
			want:  false,
		},
		{
			name:   "blocked name",
			quote:  &domain.TokenQuote{Price: 0.001, Liquidity: 5_000},
			info:   &domain.TokenInfo{Address: "mint", Symbol: "SCAMCOIN", Name: "Scam Coin"},
			want:   false,
			reason: "blocked name pattern: scam",
		},
		{
			name:  "nil info passes name gates",
			quote: &domain.TokenQuote{Price: 0.001, Liquidity: 5_000},
			info:  nil,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := IsValidToken(tt.info, tt.quote, cfg)
			if got != tt.want {
				t.Errorf("IsValidToken = %v (%q), want %v", got, reason, tt.want)
			}
			if tt.reason != "" && reason != tt.reason {
				t.Errorf("reason = %q, want %q", reason, tt.reason)
			}
		})
	}
}
