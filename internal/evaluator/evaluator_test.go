package evaluator

import (
	"testing"

	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/rules"
)

func baseRules() rules.Rules {
	return rules.Rules{
		Name:                "test",
		MaxDailyDrawdownPct: 5.0,
		MaxTotalDrawdownPct: 10.0,
		WarnBufferPct:       0.8,
	}
}

func hasHard(bs []rules.Breach, code rules.BreachCode) (rules.Breach, bool) {
	for _, b := range bs {
		if b.Code == code && b.Level == rules.LevelHard {
			return b, true
		}
	}
	return rules.Breach{}, false
}

func hasWarn(bs []rules.Breach, code rules.BreachCode) (rules.Breach, bool) {
	for _, b := range bs {
		if b.Code == code && b.Level == rules.LevelWarn {
			return b, true
		}
	}
	return rules.Breach{}, false
}

func hasAny(bs []rules.Breach, code rules.BreachCode) bool {
	for _, b := range bs {
		if b.Code == code {
			return true
		}
	}
	return false
}

// Scenario 1: floating loss dominates.
func TestScenarioFloatingLossDominates(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         100000,
		Equity:          95000,
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	b, ok := hasHard(breaches, rules.CodeDailyDD)
	if !ok {
		t.Fatalf("expected HARD DAILY_DD, got %+v", breaches)
	}
	if abs(b.Value-5.00) > 0.001 || b.Threshold != 5.0 {
		t.Fatalf("value=%v threshold=%v, expected 5.00/5.0", b.Value, b.Threshold)
	}
}

// Scenario 2: realized loss dominates, floating profit masks equity.
func TestScenarioRealizedLossDominates(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         95000,
		Equity:          97000,
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	b, ok := hasHard(breaches, rules.CodeDailyDD)
	if !ok {
		t.Fatalf("expected HARD DAILY_DD, got %+v", breaches)
	}
	if abs(b.Value-5.00) > 0.001 {
		t.Fatalf("value=%v, expected 5.00", b.Value)
	}
}

// Scenario 3: combined losses.
func TestScenarioCombinedLosses(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         96000,
		Equity:          94000,
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	b, ok := hasHard(breaches, rules.CodeDailyDD)
	if !ok {
		t.Fatalf("expected HARD DAILY_DD, got %+v", breaches)
	}
	if abs(b.Value-6.00) > 0.001 {
		t.Fatalf("value=%v, expected 6.00", b.Value)
	}
}

// Scenario 4: day-start anchor uses the higher of balance/equity.
func TestScenarioAnchorUsesHigher(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 98000,
		DayStartEquity:  100000,
		Balance:         98000,
		Equity:          95000,
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	b, ok := hasHard(breaches, rules.CodeDailyDD)
	if !ok {
		t.Fatalf("expected HARD DAILY_DD, got %+v", breaches)
	}
	if abs(b.Value-5.00) > 0.001 {
		t.Fatalf("value=%v, expected 5.00", b.Value)
	}
}

// Scenario 5: warning zone.
func TestScenarioWarningZone(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         100000,
		Equity:          95500,
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	if _, ok := hasHard(breaches, rules.CodeDailyDD); ok {
		t.Fatalf("expected no HARD DAILY_DD, got %+v", breaches)
	}
	if _, ok := hasWarn(breaches, rules.CodeDailyDD); !ok {
		t.Fatalf("expected WARN DAILY_DD, got %+v", breaches)
	}
}

// Scenario 6: clean, no breach.
func TestScenarioClean(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         99000,
		Equity:          99000,
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	if hasAny(breaches, rules.CodeDailyDD) {
		t.Fatalf("expected no DAILY_DD breach, got %+v", breaches)
	}
}

func TestDailyDrawdownBoundaryExactLimitIsHard(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         100000,
		Equity:          95000, // exactly 5.0%
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	if _, ok := hasHard(breaches, rules.CodeDailyDD); !ok {
		t.Fatalf("expected HARD exactly at limit, got %+v", breaches)
	}
}

func TestDailyDrawdownBoundaryExactWarnBufferIsWarn(t *testing.T) {
	// warn_buffer(0.8) * limit(5.0) = 4.0% exactly
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         100000,
		Equity:          96000, // exactly 4.0%
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	if _, ok := hasHard(breaches, rules.CodeDailyDD); ok {
		t.Fatalf("expected no HARD at exactly the warn buffer, got %+v", breaches)
	}
	if _, ok := hasWarn(breaches, rules.CodeDailyDD); !ok {
		t.Fatalf("expected WARN exactly at the warn buffer, got %+v", breaches)
	}
}

func TestDailyDrawdownBoundaryJustBelowWarnBufferIsClean(t *testing.T) {
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         100000,
		Equity:          96001, // just under 4.0%
	}
	breaches := Evaluate(baseRules(), s, 100000, 0, false)
	if hasAny(breaches, rules.CodeDailyDD) {
		t.Fatalf("expected no DAILY_DD breach just below the warn buffer, got %+v", breaches)
	}
}

// Margin boundaries use a strict "<" on both thresholds, so the exact
// critical and exact warn levels fall one tier short of where the
// threshold name alone would suggest.
func TestMarginLevelBoundaries(t *testing.T) {
	r := baseRules()
	r.MarginWarnLevelPct = 100
	r.MarginCriticalLevelPct = 50

	belowCritical := platform.AccountSnapshot{AccountID: "a1", MarginUsed: 1000, MarginLevelPct: 49}
	if _, ok := hasHard(Evaluate(r, belowCritical, 100000, 0, false), rules.CodeMarginLevel); !ok {
		t.Fatalf("expected HARD below the critical level, got none")
	}

	exactlyCritical := platform.AccountSnapshot{AccountID: "a1", MarginUsed: 1000, MarginLevelPct: 50}
	if _, ok := hasHard(Evaluate(r, exactlyCritical, 100000, 0, false), rules.CodeMarginLevel); ok {
		t.Fatalf("expected no HARD at exactly the critical level (strict less-than), got one")
	}
	if _, ok := hasWarn(Evaluate(r, exactlyCritical, 100000, 0, false), rules.CodeMarginLevel); !ok {
		t.Fatalf("expected WARN at exactly the critical level, got none")
	}

	belowWarn := platform.AccountSnapshot{AccountID: "a1", MarginUsed: 1000, MarginLevelPct: 99}
	if _, ok := hasWarn(Evaluate(r, belowWarn, 100000, 0, false), rules.CodeMarginLevel); !ok {
		t.Fatalf("expected WARN below the warn level, got none")
	}

	exactlyWarn := platform.AccountSnapshot{AccountID: "a1", MarginUsed: 1000, MarginLevelPct: 100}
	if hasAny(Evaluate(r, exactlyWarn, 100000, 0, false), rules.CodeMarginLevel) {
		t.Fatalf("expected no breach at exactly the warn level (strict less-than), got one")
	}

	skip := platform.AccountSnapshot{AccountID: "a1", MarginUsed: 0, MarginLevelPct: 0}
	if hasAny(Evaluate(r, skip, 100000, 0, false), rules.CodeMarginLevel) {
		t.Fatalf("expected margin check to be skipped when margin_used=0")
	}
}

func TestMaxPositionsHardOnly(t *testing.T) {
	r := baseRules()
	r.MaxPositions = 2
	s := platform.AccountSnapshot{
		AccountID: "a1",
		Positions: []platform.Position{{ID: "1"}, {ID: "2"}, {ID: "3"}},
	}
	breaches := Evaluate(r, s, 100000, 0, false)
	if _, ok := hasHard(breaches, rules.CodeMaxPositions); !ok {
		t.Fatalf("expected HARD MAX_POSITIONS, got %+v", breaches)
	}
	if _, ok := hasWarn(breaches, rules.CodeMaxPositions); ok {
		t.Fatalf("MAX_POSITIONS must never emit WARN, got %+v", breaches)
	}
}

func TestMissingStopLossOnlyWhenRequired(t *testing.T) {
	r := baseRules()
	r.RequireStopLoss = true
	sl := 1.2345
	s := platform.AccountSnapshot{
		AccountID: "a1",
		Positions: []platform.Position{
			{ID: "has-sl", StopLossPrice: &sl},
			{ID: "no-sl"},
		},
	}
	breaches := Evaluate(r, s, 100000, 0, false)
	count := 0
	for _, b := range breaches {
		if b.Code == rules.CodeMissingStopLoss {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 MISSING_STOP_LOSS breach, got %d", count)
	}
}

func TestRiskPerTradeDegradesWhenNotionalUnavailable(t *testing.T) {
	r := baseRules()
	r.MaxRiskPerTradePct = 2.0
	s := platform.AccountSnapshot{
		AccountID: "a1",
		Equity:    100000,
		Positions: []platform.Position{
			{ID: "unknown-contract", VolumeLots: 1, ContractSize: 0},
		},
	}
	breaches := Evaluate(r, s, 100000, 0, false)
	b, ok := hasWarn(breaches, rules.CodeRiskPerTrade)
	if !ok {
		t.Fatalf("expected advisory WARN RISK_PER_TRADE, got %+v", breaches)
	}
	if b.Threshold != 0 {
		t.Fatalf("advisory breach must not claim a numeric threshold, got %v", b.Threshold)
	}
}

func TestLeverageHardWhenExceeded(t *testing.T) {
	r := baseRules()
	limit := 30.0
	r.MaxLeverage = &limit
	s := platform.AccountSnapshot{AccountID: "a1"}

	breaches := Evaluate(r, s, 100000, 50, true)
	if _, ok := hasHard(breaches, rules.CodeLeverage); !ok {
		t.Fatalf("expected HARD LEVERAGE, got %+v", breaches)
	}

	breachesUnknown := Evaluate(r, s, 100000, 50, false)
	if hasAny(breachesUnknown, rules.CodeLeverage) {
		t.Fatalf("leverage check must be skipped when adapter can't report leverage")
	}
}

func TestEvaluateIsPure(t *testing.T) {
	r := baseRules()
	s := platform.AccountSnapshot{
		AccountID:       "a1",
		DayStartBalance: 100000,
		DayStartEquity:  100000,
		Balance:         96000,
		Equity:          94000,
	}
	first := Evaluate(r, s, 100000, 10, true)
	second := Evaluate(r, s, 100000, 10, true)
	if len(first) != len(second) {
		t.Fatalf("Evaluate is not pure: got different breach counts across identical calls")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Evaluate is not pure: breach %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
