package domain

import "time"

// Exit reasons for closed positions.
const (
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonTimeLimit  = "TIME_LIMIT"
)

// Position is an open or historical trade, keyed by token address.
// A position is only ever mutated by its own monitoring task. It is never
// physically deleted: closing sets Monitoring to false so history survives.
type Position struct {
	TokenAddress      string    `json:"tokenAddress"`
	EntryPrice        float64   `json:"entryPrice"`
	EntryTime         time.Time `json:"entryTimestamp"`
	StopLossPrice     float64   `json:"stopLossPrice"`
	TakeProfitPrice   float64   `json:"takeProfitPrice"`
	Monitoring        bool      `json:"monitoring"`
	InitialInvestment float64   `json:"initialInvestment"`

	// TookProfit marks that the one-time partial take-profit already fired.
	// After it, StopLossPrice is zero and only the time limit or a manual
	// stop can close the remainder.
	TookProfit bool `json:"tookProfit"`
}

// Active reports whether the position is still being monitored.
func (p *Position) Active() bool {
	return p != nil && p.Monitoring
}

// Age returns how long the position has been open at the given instant.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
