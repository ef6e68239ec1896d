package rules

import (
	"encoding/json"
	"testing"
)

func TestRulesJSONRoundTrip(t *testing.T) {
	leverage := 30.0
	r := Rules{
		Name:                   "Combine",
		ProgramID:              "combine",
		MaxDailyDrawdownPct:    3.0,
		MaxTotalDrawdownPct:    6.0,
		MaxRiskPerTradePct:     1.0,
		MaxOpenLots:            20,
		MaxPositions:           5,
		MarginWarnLevelPct:     150,
		MarginCriticalLevelPct: 75,
		TradingDaysOnly:        true,
		RequireStopLoss:        true,
		MaxLeverage:            &leverage,
		WarnBufferPct:          0.8,
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := DecodeStrict(data)
	if err != nil {
		t.Fatalf("DecodeStrict: %v", err)
	}

	if got.Name != r.Name || got.ProgramID != r.ProgramID {
		t.Fatalf("round trip lost identity fields: got %+v, want %+v", got, r)
	}
	if got.MaxLeverage == nil || *got.MaxLeverage != leverage {
		t.Fatalf("round trip lost MaxLeverage: got %v", got.MaxLeverage)
	}
	if got.MaxPositions != r.MaxPositions || got.WarnBufferPct != r.WarnBufferPct {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestRulesDecodeStrictRejectsUnknownField(t *testing.T) {
	data := []byte(`{"name":"x","max_daily_drawdown_pct":5,"not_a_real_field":1}`)
	if _, err := DecodeStrict(data); err == nil {
		t.Fatalf("expected DecodeStrict to reject an unknown field")
	}
}

func TestRulesValidateRejectsBadWarnBuffer(t *testing.T) {
	r := Rules{Name: "bad", WarnBufferPct: 1.5}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected Validate to reject warn_buffer_pct > 1.0")
	}
	r2 := Rules{Name: "also-bad", WarnBufferPct: 0}
	if err := r2.Validate(); err == nil {
		t.Fatalf("expected Validate to reject warn_buffer_pct == 0")
	}
}
