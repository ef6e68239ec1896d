package store

import (
	"context"
	"testing"

	"compliance-monitor/internal/rules"
)

func TestLookupRulesMissReturnsNotFoundNotError(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	_, found, err := db.LookupRules(context.Background(), "Nobody", "none")
	if err != nil {
		t.Fatalf("expected a missing row to not be an error, got %v", err)
	}
	if found {
		t.Fatalf("expected found=false for an unseeded row")
	}
}

func TestUpsertThenLookupRulesRoundTrips(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	want := rules.Rules{
		Name:                "Stellar 1-Step",
		ProgramID:           "stellar_1step",
		MaxDailyDrawdownPct: 5.0,
		MaxTotalDrawdownPct: 10.0,
		WarnBufferPct:       0.8,
	}
	if err := db.UpsertRules(ctx, "FundedNext", want); err != nil {
		t.Fatalf("UpsertRules: %v", err)
	}

	got, found, err := db.LookupRules(ctx, "FundedNext", "stellar_1step")
	if err != nil {
		t.Fatalf("LookupRules: %v", err)
	}
	if !found {
		t.Fatalf("expected found=true after upsert")
	}
	if got.Name != want.Name || got.MaxDailyDrawdownPct != want.MaxDailyDrawdownPct {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestUpsertRulesReplacesExistingRow(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	first := rules.Rules{Name: "v1", ProgramID: "p1", MaxDailyDrawdownPct: 5.0, WarnBufferPct: 0.8}
	second := rules.Rules{Name: "v2", ProgramID: "p1", MaxDailyDrawdownPct: 7.0, WarnBufferPct: 0.8}

	if err := db.UpsertRules(ctx, "FirmX", first); err != nil {
		t.Fatalf("UpsertRules first: %v", err)
	}
	if err := db.UpsertRules(ctx, "FirmX", second); err != nil {
		t.Fatalf("UpsertRules second: %v", err)
	}

	got, found, err := db.LookupRules(ctx, "FirmX", "p1")
	if err != nil || !found {
		t.Fatalf("LookupRules: found=%v err=%v", found, err)
	}
	if got.Name != "v2" || got.MaxDailyDrawdownPct != 7.0 {
		t.Fatalf("expected the second upsert to win, got %+v", got)
	}
}

func TestSoftRulesFirmWideAndProgramSpecific(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.AddSoftRule(ctx, "FirmY", "", "no trading over major news"); err != nil {
		t.Fatalf("AddSoftRule firm-wide: %v", err)
	}
	if err := db.AddSoftRule(ctx, "FirmY", "p1", "close all positions by Friday"); err != nil {
		t.Fatalf("AddSoftRule program-specific: %v", err)
	}

	advisories, err := db.SoftRules(ctx, "FirmY", "p1")
	if err != nil {
		t.Fatalf("SoftRules: %v", err)
	}
	if len(advisories) != 2 {
		t.Fatalf("expected both the firm-wide and program-specific advisory, got %v", advisories)
	}

	unrelated, err := db.SoftRules(ctx, "FirmY", "p2")
	if err != nil {
		t.Fatalf("SoftRules: %v", err)
	}
	if len(unrelated) != 1 {
		t.Fatalf("expected only the firm-wide advisory for an unrelated program, got %v", unrelated)
	}
}
