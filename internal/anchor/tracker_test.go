package anchor

import (
	"testing"
	"time"

	"compliance-monitor/internal/platform"
)

func snapshotAt(serverTime time.Time, balance, equity float64) platform.AccountSnapshot {
	return platform.AccountSnapshot{
		AccountID:        "acct-1",
		ObservedAtServer: serverTime,
		Balance:          balance,
		Equity:           equity,
	}
}

func TestTrackerAnchorsOnFirstSnapshot(t *testing.T) {
	tr := New("acct-1", nil)
	s := snapshotAt(time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC), 100000, 98000)
	out := tr.Update(s)
	if out.DayStartBalance != 100000 || out.DayStartEquity != 98000 {
		t.Fatalf("expected anchor to equal first snapshot, got balance=%v equity=%v", out.DayStartBalance, out.DayStartEquity)
	}
}

func TestTrackerHoldsAnchorWithinSameDay(t *testing.T) {
	tr := New("acct-1", nil)
	tr.Update(snapshotAt(time.Date(2026, 8, 6, 1, 0, 0, 0, time.UTC), 100000, 100000))
	out := tr.Update(snapshotAt(time.Date(2026, 8, 6, 23, 0, 0, 0, time.UTC), 97000, 94000))
	if out.DayStartBalance != 100000 || out.DayStartEquity != 100000 {
		t.Fatalf("anchor should not move within the same day, got balance=%v equity=%v", out.DayStartBalance, out.DayStartEquity)
	}
}

func TestTrackerBrokerMidnightRollover(t *testing.T) {
	var events []Event
	tr := New("acct-1", func(e Event) { events = append(events, e) })

	tr.Update(snapshotAt(time.Date(2026, 8, 6, 23, 59, 0, 0, time.UTC), 100000, 102000))
	out := tr.Update(snapshotAt(time.Date(2026, 8, 7, 0, 1, 0, 0, time.UTC), 101000, 101000))

	if out.DayStartBalance != 101000 || out.DayStartEquity != 101000 {
		t.Fatalf("expected anchor reset to the new day's snapshot, got balance=%v equity=%v", out.DayStartBalance, out.DayStartEquity)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 anchor events (first snapshot + rollover), got %d", len(events))
	}
	if events[1].Date != "2026-08-07" {
		t.Fatalf("rollover event date=%q, expected 2026-08-07", events[1].Date)
	}
}

func TestTrackerNeverRollsBackward(t *testing.T) {
	tr := New("acct-1", nil)
	tr.Update(snapshotAt(time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC), 100000, 100000))

	// An out-of-order snapshot stamped for the previous day must not reset
	// the anchor; it's evaluated against the existing one.
	out := tr.Update(snapshotAt(time.Date(2026, 8, 5, 23, 0, 0, 0, time.UTC), 90000, 90000))
	if out.DayStartBalance != 100000 || out.DayStartEquity != 100000 {
		t.Fatalf("out-of-order snapshot must not roll the anchor backward, got balance=%v equity=%v", out.DayStartBalance, out.DayStartEquity)
	}

	date, ok := tr.CurrentDate()
	if !ok || date != "2026-08-06" {
		t.Fatalf("CurrentDate=%q ok=%v, expected 2026-08-06/true", date, ok)
	}
}

func TestTrackerCurrentDateMonotonicAcrossSequence(t *testing.T) {
	tr := New("acct-1", nil)
	times := []time.Time{
		time.Date(2026, 8, 6, 1, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 6, 23, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 7, 0, 30, 0, 0, time.UTC),
		time.Date(2026, 8, 5, 23, 0, 0, 0, time.UTC), // out of order, must not move date backward
		time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC),
	}

	var prev string
	for _, ts := range times {
		tr.Update(snapshotAt(ts, 1000, 1000))
		cur, _ := tr.CurrentDate()
		if prev != "" && cur < prev {
			t.Fatalf("current_date moved backward: %q -> %q", prev, cur)
		}
		prev = cur
	}
}
