// Package rules holds the Rules value object, its breach vocabulary, and the
// compile-time firm-preset registry. Nothing in this package touches a
// network or a database; persistence and lookup live in pkg/store and
// internal/resolver.
package rules

import "fmt"

// Rules fully describes one firm/program's compliance contract. It is
// immutable once resolved for an account.
type Rules struct {
	Name      string `json:"name" yaml:"name"`
	ProgramID string `json:"program_id,omitempty" yaml:"program_id"`

	MaxDailyDrawdownPct float64 `json:"max_daily_drawdown_pct" yaml:"max_daily_drawdown_pct"`
	MaxTotalDrawdownPct float64 `json:"max_total_drawdown_pct" yaml:"max_total_drawdown_pct"`

	MaxRiskPerTradePct float64 `json:"max_risk_per_trade_pct" yaml:"max_risk_per_trade_pct"`
	MaxOpenLots        float64 `json:"max_open_lots" yaml:"max_open_lots"`
	MaxPositions       int     `json:"max_positions" yaml:"max_positions"`

	MarginWarnLevelPct     float64 `json:"margin_warn_level_pct" yaml:"margin_warn_level_pct"`
	MarginCriticalLevelPct float64 `json:"margin_critical_level_pct" yaml:"margin_critical_level_pct"`

	TradingDaysOnly bool     `json:"trading_days_only" yaml:"trading_days_only"`
	RequireStopLoss bool     `json:"require_stop_loss" yaml:"require_stop_loss"`
	MaxLeverage     *float64 `json:"max_leverage,omitempty" yaml:"max_leverage"`

	WarnBufferPct float64 `json:"warn_buffer_pct" yaml:"warn_buffer_pct"`
}

// WithDefaults returns a copy of r with the documented defaults applied to
// zero-valued fields: margin_warn_level_pct=100, margin_critical_level_pct=50,
// warn_buffer_pct=0.8. Presets run through this when the registry is built;
// the resolver's database and custom tiers return Rules as stored or
// supplied, without applying these defaults.
func (r Rules) WithDefaults() Rules {
	out := r
	if out.MarginWarnLevelPct == 0 {
		out.MarginWarnLevelPct = 100
	}
	if out.MarginCriticalLevelPct == 0 {
		out.MarginCriticalLevelPct = 50
	}
	if out.WarnBufferPct == 0 {
		out.WarnBufferPct = 0.8
	}
	return out
}

// Validate checks the invariants from the data model: all *_pct fields
// non-negative, warn_buffer_pct in (0, 1].
func (r Rules) Validate() error {
	if r.MaxDailyDrawdownPct < 0 {
		return fmt.Errorf("rules %q: max_daily_drawdown_pct must be non-negative", r.Name)
	}
	if r.MaxTotalDrawdownPct < 0 {
		return fmt.Errorf("rules %q: max_total_drawdown_pct must be non-negative", r.Name)
	}
	if r.MaxRiskPerTradePct < 0 {
		return fmt.Errorf("rules %q: max_risk_per_trade_pct must be non-negative", r.Name)
	}
	if r.MaxOpenLots < 0 {
		return fmt.Errorf("rules %q: max_open_lots must be non-negative", r.Name)
	}
	if r.MaxPositions < 0 {
		return fmt.Errorf("rules %q: max_positions must be non-negative", r.Name)
	}
	if r.MarginWarnLevelPct < 0 || r.MarginCriticalLevelPct < 0 {
		return fmt.Errorf("rules %q: margin levels must be non-negative", r.Name)
	}
	if r.WarnBufferPct <= 0 || r.WarnBufferPct > 1.0 {
		return fmt.Errorf("rules %q: warn_buffer_pct must be in (0, 1], got %v", r.Name, r.WarnBufferPct)
	}
	if r.MaxLeverage != nil && *r.MaxLeverage < 0 {
		return fmt.Errorf("rules %q: max_leverage must be non-negative", r.Name)
	}
	return nil
}

// BreachCode enumerates the closed set of rule-violation kinds.
type BreachCode string

const (
	CodeDailyDD         BreachCode = "DAILY_DD"
	CodeTotalDD         BreachCode = "TOTAL_DD"
	CodeRiskPerTrade    BreachCode = "RISK_PER_TRADE"
	CodeMaxLots         BreachCode = "MAX_LOTS"
	CodeMaxPositions    BreachCode = "MAX_POSITIONS"
	CodeMarginLevel     BreachCode = "MARGIN_LEVEL"
	CodeMissingStopLoss BreachCode = "MISSING_STOP_LOSS"
	CodeLeverage        BreachCode = "LEVERAGE"
)

// Level is breach severity. HARD means a limit was met or exceeded; WARN
// means the proximity threshold was crossed.
type Level string

const (
	LevelWarn Level = "WARN"
	LevelHard Level = "HARD"
)

// Breach is one evaluator finding.
type Breach struct {
	Code       BreachCode `json:"code"`
	Level      Level      `json:"level"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Threshold  float64    `json:"threshold"`
	AccountID  string     `json:"account_id"`
	ObservedAt string     `json:"observed_at"`
}
