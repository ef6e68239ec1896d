// Package platform defines the uniform, read-only view this system takes of a
// trading account, and the adapter interface that produces it. Two concrete
// adapters implement it: mt5 (local terminal) and ctrader (cloud API).
package platform

import "time"

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Platform identifies which trading venue an account lives on.
type Platform string

const (
	PlatformMT5     Platform = "mt5"
	PlatformCTrader Platform = "ctrader"
)

// Position is a single open position as reported by the adapter.
type Position struct {
	ID              string
	Symbol          string
	Side            Side
	VolumeLots      float64
	OpenPrice       float64
	CurrentPrice    float64
	StopLossPrice   *float64
	TakeProfitPrice *float64
	UnrealizedPL    float64
	OpenTime        time.Time
	Commission      float64
	Swap            float64

	// ContractSize is symbol metadata supplied by the adapter. Zero means
	// "unknown" — notional-dependent checks must degrade gracefully.
	ContractSize float64
}

// Notional returns the position's notional value and whether it could be
// computed. Notional is unavailable when ContractSize is unknown (zero).
func (p Position) Notional() (value float64, ok bool) {
	if p.ContractSize <= 0 {
		return 0, false
	}
	v := p.VolumeLots * p.ContractSize * p.CurrentPrice
	if v < 0 {
		v = -v
	}
	return v, true
}

// AccountSnapshot is an instantaneous observation of one account.
type AccountSnapshot struct {
	AccountID string
	Platform  Platform
	Currency  string

	Balance        float64
	Equity         float64
	MarginUsed     float64
	MarginFree     float64
	MarginLevelPct float64 // 100 * equity / margin_used, +Inf if margin_used == 0

	// Day-start fields are populated by the anchor tracker before the
	// snapshot reaches the evaluator; zero until then.
	DayStartBalance float64
	DayStartEquity  float64

	Positions []Position

	ObservedAtServer time.Time // broker-local
	ObservedAtWall   time.Time // our clock
}

// DayStartAnchor is max(day_start_balance, day_start_equity), the reference
// point daily drawdown is measured against.
func (s AccountSnapshot) DayStartAnchor() float64 {
	if s.DayStartBalance > s.DayStartEquity {
		return s.DayStartBalance
	}
	return s.DayStartEquity
}

// TotalLots returns the sum of absolute position volumes.
func (s AccountSnapshot) TotalLots() float64 {
	var total float64
	for _, p := range s.Positions {
		v := p.VolumeLots
		if v < 0 {
			v = -v
		}
		total += v
	}
	return total
}
