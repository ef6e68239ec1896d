// Package evaluator implements the pure rule evaluator: given a resolved
// Rules and an anchored AccountSnapshot, it produces the full list of
// RuleBreach values for that observation. Nothing in this package performs
// I/O or reads a clock; every timestamp comes from the snapshot itself.
package evaluator

import (
	"fmt"
	"math"
	"time"

	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/rules"
)

// Evaluate runs all eight checks against snapshot under rules, in the
// stable order the checks are numbered in the data model: DAILY_DD,
// TOTAL_DD, RISK_PER_TRADE, MAX_LOTS, MAX_POSITIONS, MARGIN_LEVEL,
// MISSING_STOP_LOSS, LEVERAGE. startingBalance comes from the account's
// AccountConfig, leverage/hasLeverage from the platform adapter.
func Evaluate(r rules.Rules, s platform.AccountSnapshot, startingBalance float64, leverage float64, hasLeverage bool) []rules.Breach {
	var breaches []rules.Breach

	observedAt := s.ObservedAtServer.Format(time.RFC3339)

	if b, ok := checkDailyDrawdown(r, s, observedAt); ok {
		breaches = append(breaches, b)
	}
	if b, ok := checkTotalDrawdown(r, s, startingBalance, observedAt); ok {
		breaches = append(breaches, b)
	}
	breaches = append(breaches, checkRiskPerTrade(r, s, observedAt)...)
	if b, ok := checkMaxOpenLots(r, s, observedAt); ok {
		breaches = append(breaches, b)
	}
	if b, ok := checkMaxPositions(r, s, observedAt); ok {
		breaches = append(breaches, b)
	}
	if b, ok := checkMarginLevel(r, s, observedAt); ok {
		breaches = append(breaches, b)
	}
	breaches = append(breaches, checkMissingStopLoss(r, s, observedAt)...)
	if b, ok := checkLeverage(r, s, leverage, hasLeverage, observedAt); ok {
		breaches = append(breaches, b)
	}

	return breaches
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// checkDailyDrawdown implements the "whichever is worse" rule: the worse of
// realized-balance decline and mark-to-market equity decline from the
// day-start anchor.
func checkDailyDrawdown(r rules.Rules, s platform.AccountSnapshot, observedAt string) (rules.Breach, bool) {
	if r.TradingDaysOnly && isWeekend(s.ObservedAtServer) {
		return rules.Breach{}, false
	}

	anchorValue := s.DayStartAnchor()
	if anchorValue <= 0 {
		return rules.Breach{}, false
	}

	lossByEquity := math.Max(0, anchorValue-s.Equity)
	lossByBalance := math.Max(0, anchorValue-s.Balance)
	loss := math.Max(lossByEquity, lossByBalance)
	pct := 100 * loss / anchorValue

	return drawdownBreach(rules.CodeDailyDD, pct, r.MaxDailyDrawdownPct, r.WarnBufferPct, s.AccountID, observedAt, "daily drawdown")
}

// checkTotalDrawdown measures decline from startingBalance, the account's
// initial funded balance.
func checkTotalDrawdown(r rules.Rules, s platform.AccountSnapshot, startingBalance float64, observedAt string) (rules.Breach, bool) {
	if startingBalance <= 0 {
		return rules.Breach{}, false
	}
	pct := 100 * math.Max(0, startingBalance-s.Equity) / startingBalance
	return drawdownBreach(rules.CodeTotalDD, pct, r.MaxTotalDrawdownPct, r.WarnBufferPct, s.AccountID, observedAt, "total drawdown")
}

func drawdownBreach(code rules.BreachCode, pct, limit, warnBuffer float64, accountID, observedAt, label string) (rules.Breach, bool) {
	if limit <= 0 {
		return rules.Breach{}, false
	}
	switch {
	case pct >= limit:
		return rules.Breach{
			Code:       code,
			Level:      rules.LevelHard,
			Message:    fmt.Sprintf("%s %.2f%% reached or exceeded limit %.2f%%", label, pct, limit),
			Value:      pct,
			Threshold:  limit,
			AccountID:  accountID,
			ObservedAt: observedAt,
		}, true
	case pct >= warnBuffer*limit:
		return rules.Breach{
			Code:       code,
			Level:      rules.LevelWarn,
			Message:    fmt.Sprintf("%s %.2f%% approaching limit %.2f%%", label, pct, limit),
			Value:      pct,
			Threshold:  limit,
			AccountID:  accountID,
			ObservedAt: observedAt,
		}, true
	default:
		return rules.Breach{}, false
	}
}

// checkRiskPerTrade emits one breach per position whose notional risk
// breaches or approaches max_risk_per_trade_pct, plus a single advisory WARN
// if any position's notional could not be computed.
func checkRiskPerTrade(r rules.Rules, s platform.AccountSnapshot, observedAt string) []rules.Breach {
	if r.MaxRiskPerTradePct <= 0 || s.Equity <= 0 {
		return nil
	}

	var breaches []rules.Breach
	anyUnavailable := false

	for _, p := range s.Positions {
		notional, ok := p.Notional()
		if !ok {
			anyUnavailable = true
			continue
		}
		pct := 100 * notional / s.Equity
		switch {
		case pct >= r.MaxRiskPerTradePct:
			breaches = append(breaches, rules.Breach{
				Code:       rules.CodeRiskPerTrade,
				Level:      rules.LevelHard,
				Message:    fmt.Sprintf("position %s risk %.2f%% of equity exceeds limit %.2f%%", p.ID, pct, r.MaxRiskPerTradePct),
				Value:      pct,
				Threshold:  r.MaxRiskPerTradePct,
				AccountID:  s.AccountID,
				ObservedAt: observedAt,
			})
		case pct >= r.WarnBufferPct*r.MaxRiskPerTradePct:
			breaches = append(breaches, rules.Breach{
				Code:       rules.CodeRiskPerTrade,
				Level:      rules.LevelWarn,
				Message:    fmt.Sprintf("position %s risk %.2f%% of equity approaching limit %.2f%%", p.ID, pct, r.MaxRiskPerTradePct),
				Value:      pct,
				Threshold:  r.MaxRiskPerTradePct,
				AccountID:  s.AccountID,
				ObservedAt: observedAt,
			})
		}
	}

	if anyUnavailable {
		breaches = append(breaches, rules.Breach{
			Code:       rules.CodeRiskPerTrade,
			Level:      rules.LevelWarn,
			Message:    "per-trade risk unavailable for one or more positions: contract size unknown",
			AccountID:  s.AccountID,
			ObservedAt: observedAt,
		})
	}

	return breaches
}

func checkMaxOpenLots(r rules.Rules, s platform.AccountSnapshot, observedAt string) (rules.Breach, bool) {
	if r.MaxOpenLots <= 0 {
		return rules.Breach{}, false
	}
	total := s.TotalLots()
	switch {
	case total > r.MaxOpenLots:
		return rules.Breach{
			Code:       rules.CodeMaxLots,
			Level:      rules.LevelHard,
			Message:    fmt.Sprintf("open lots %.2f exceed limit %.2f", total, r.MaxOpenLots),
			Value:      total,
			Threshold:  r.MaxOpenLots,
			AccountID:  s.AccountID,
			ObservedAt: observedAt,
		}, true
	case total >= r.WarnBufferPct*r.MaxOpenLots:
		return rules.Breach{
			Code:       rules.CodeMaxLots,
			Level:      rules.LevelWarn,
			Message:    fmt.Sprintf("open lots %.2f approaching limit %.2f", total, r.MaxOpenLots),
			Value:      total,
			Threshold:  r.MaxOpenLots,
			AccountID:  s.AccountID,
			ObservedAt: observedAt,
		}, true
	default:
		return rules.Breach{}, false
	}
}

// checkMaxPositions defines HARD only, per the spec's resolved open question
// (source material disagreed on whether a WARN threshold exists here).
func checkMaxPositions(r rules.Rules, s platform.AccountSnapshot, observedAt string) (rules.Breach, bool) {
	if r.MaxPositions <= 0 {
		return rules.Breach{}, false
	}
	count := len(s.Positions)
	if count <= r.MaxPositions {
		return rules.Breach{}, false
	}
	return rules.Breach{
		Code:       rules.CodeMaxPositions,
		Level:      rules.LevelHard,
		Message:    fmt.Sprintf("open positions %d exceed limit %d", count, r.MaxPositions),
		Value:      float64(count),
		Threshold:  float64(r.MaxPositions),
		AccountID:  s.AccountID,
		ObservedAt: observedAt,
	}, true
}

func checkMarginLevel(r rules.Rules, s platform.AccountSnapshot, observedAt string) (rules.Breach, bool) {
	if s.MarginUsed == 0 {
		return rules.Breach{}, false
	}
	level := s.MarginLevelPct
	switch {
	case level < r.MarginCriticalLevelPct:
		return rules.Breach{
			Code:       rules.CodeMarginLevel,
			Level:      rules.LevelHard,
			Message:    fmt.Sprintf("margin level %.2f%% below critical threshold %.2f%%", level, r.MarginCriticalLevelPct),
			Value:      level,
			Threshold:  r.MarginCriticalLevelPct,
			AccountID:  s.AccountID,
			ObservedAt: observedAt,
		}, true
	case level < r.MarginWarnLevelPct:
		return rules.Breach{
			Code:       rules.CodeMarginLevel,
			Level:      rules.LevelWarn,
			Message:    fmt.Sprintf("margin level %.2f%% below warn threshold %.2f%%", level, r.MarginWarnLevelPct),
			Value:      level,
			Threshold:  r.MarginWarnLevelPct,
			AccountID:  s.AccountID,
			ObservedAt: observedAt,
		}, true
	default:
		return rules.Breach{}, false
	}
}

func checkMissingStopLoss(r rules.Rules, s platform.AccountSnapshot, observedAt string) []rules.Breach {
	if !r.RequireStopLoss {
		return nil
	}
	var breaches []rules.Breach
	for _, p := range s.Positions {
		if p.StopLossPrice != nil {
			continue
		}
		breaches = append(breaches, rules.Breach{
			Code:       rules.CodeMissingStopLoss,
			Level:      rules.LevelWarn,
			Message:    fmt.Sprintf("position %s has no stop loss set", p.ID),
			AccountID:  s.AccountID,
			ObservedAt: observedAt,
		})
	}
	return breaches
}

func checkLeverage(r rules.Rules, s platform.AccountSnapshot, leverage float64, hasLeverage bool, observedAt string) (rules.Breach, bool) {
	if r.MaxLeverage == nil || !hasLeverage {
		return rules.Breach{}, false
	}
	if leverage <= *r.MaxLeverage {
		return rules.Breach{}, false
	}
	return rules.Breach{
		Code:       rules.CodeLeverage,
		Level:      rules.LevelHard,
		Message:    fmt.Sprintf("leverage %.2f exceeds limit %.2f", leverage, *r.MaxLeverage),
		Value:      leverage,
		Threshold:  *r.MaxLeverage,
		AccountID:  s.AccountID,
		ObservedAt: observedAt,
	}, true
}
