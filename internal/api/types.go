package api

import (
	"math"
	"time"

	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/rules"
)

// reviewRequest is the body of POST /compliance/review (§4.7).
type reviewRequest struct {
	Firm             string         `json:"firm" binding:"required"`
	ProgramID        string         `json:"program_id,omitempty"`
	AccountID        string         `json:"account_id" binding:"required"`
	Account          accountPayload `json:"account" binding:"required"`
	IncludeSoftRules bool           `json:"include_soft_rules,omitempty"`
	CustomRules      *rules.Rules   `json:"custom_rules,omitempty"`
}

type accountPayload struct {
	Balance         float64           `json:"balance"`
	Equity          float64           `json:"equity"`
	StartingBalance float64           `json:"starting_balance"`
	DayStartBalance float64           `json:"day_start_balance"`
	DayStartEquity  float64           `json:"day_start_equity"`
	MarginUsed      float64           `json:"margin_used"`
	MarginAvailable float64           `json:"margin_available"`
	Positions       []positionPayload `json:"positions"`
}

type positionPayload struct {
	ID              string   `json:"id"`
	Symbol          string   `json:"symbol"`
	Side            string   `json:"side"`
	VolumeLots      float64  `json:"volume_lots"`
	OpenPrice       float64  `json:"open_price"`
	CurrentPrice    float64  `json:"current_price"`
	StopLossPrice   *float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty"`
	UnrealizedPL    float64  `json:"unrealized_pl"`
	Commission      float64  `json:"commission"`
	Swap            float64  `json:"swap"`
	ContractSize    float64  `json:"contract_size,omitempty"`
}

// reviewResponse is the returned evaluation, plus advisory soft rules when
// requested.
type reviewResponse struct {
	Breaches  []rules.Breach `json:"breaches"`
	SourceTag string         `json:"source_tag"`
	SoftRules []string       `json:"soft_rules,omitempty"`
}

// toSnapshot converts the caller-supplied account payload into the internal
// AccountSnapshot shape the evaluator consumes. observed_at_server is not
// part of the review request body (the review path is stateless and has no
// broker connection to source broker-local time from), so it defaults to
// now; trading_days_only suppression uses that value.
func (p accountPayload) toSnapshot(accountID string, now time.Time) platform.AccountSnapshot {
	positions := make([]platform.Position, 0, len(p.Positions))
	for _, pp := range p.Positions {
		positions = append(positions, pp.toPosition())
	}

	marginLevel := marginLevelPct(p.Equity, p.MarginUsed)

	return platform.AccountSnapshot{
		AccountID:        accountID,
		Balance:          p.Balance,
		Equity:           p.Equity,
		MarginUsed:       p.MarginUsed,
		MarginFree:       p.MarginAvailable,
		MarginLevelPct:   marginLevel,
		DayStartBalance:  p.DayStartBalance,
		DayStartEquity:   p.DayStartEquity,
		Positions:        positions,
		ObservedAtServer: now,
		ObservedAtWall:   now,
	}
}

func (pp positionPayload) toPosition() platform.Position {
	side := platform.SideLong
	if pp.Side == string(platform.SideShort) {
		side = platform.SideShort
	}
	return platform.Position{
		ID:              pp.ID,
		Symbol:          pp.Symbol,
		Side:            side,
		VolumeLots:      pp.VolumeLots,
		OpenPrice:       pp.OpenPrice,
		CurrentPrice:    pp.CurrentPrice,
		StopLossPrice:   pp.StopLossPrice,
		TakeProfitPrice: pp.TakeProfitPrice,
		UnrealizedPL:    pp.UnrealizedPL,
		Commission:      pp.Commission,
		Swap:            pp.Swap,
		ContractSize:    pp.ContractSize,
	}
}

// marginLevelPct mirrors the adapters' own "100*equity/margin_used, +Inf if
// margin_used==0" convention (§3) so the review path computes it the same
// way a live adapter would.
func marginLevelPct(equity, marginUsed float64) float64 {
	if marginUsed == 0 {
		return math.Inf(1)
	}
	return 100 * equity / marginUsed
}
