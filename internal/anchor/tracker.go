// Package anchor implements the per-account day-start anchor state machine:
// it watches each incoming AccountSnapshot's broker-local date, resets the
// day_start_balance/day_start_equity pair on rollover, and writes both
// fields into the snapshot before it reaches the evaluator.
package anchor

import (
	"log"
	"time"

	"compliance-monitor/internal/platform"
)

// dateLayout is the broker-local calendar date this tracker keys state by.
// String comparison on this layout is lexicographically equivalent to date
// comparison, which is what the monotonic non-decreasing check relies on.
const dateLayout = "2006-01-02"

// Event is the audit record emitted every time the anchor resets for a new
// broker-local day.
type Event struct {
	ID              string
	AccountID       string
	Date            string
	DayStartBalance float64
	DayStartEquity  float64
	AnchoredAt      time.Time
}

// Tracker owns anchor state for exactly one account. It is not safe for
// concurrent use from more than one goroutine — per the concurrency model,
// each monitor owns its own tracker exclusively.
type Tracker struct {
	accountID   string
	onAnchor    func(Event)
	initialized bool
	currentDate string
	dayStart    struct {
		balance float64
		equity  float64
	}
}

// New constructs a tracker for one account. onAnchor may be nil; when set,
// it is called synchronously every time the anchor rolls to a new day.
func New(accountID string, onAnchor func(Event)) *Tracker {
	return &Tracker{accountID: accountID, onAnchor: onAnchor}
}

// Update applies the anchor algorithm to snapshot s and returns a copy of s
// with DayStartBalance/DayStartEquity populated. It never rolls the anchor
// backward: if s's broker-local date is earlier than the current anchor
// date, the existing anchor is applied and the out-of-order snapshot is
// logged rather than treated as a new day.
func (t *Tracker) Update(s platform.AccountSnapshot) platform.AccountSnapshot {
	d := s.ObservedAtServer.Format(dateLayout)

	switch {
	case !t.initialized:
		t.anchor(d, s.Balance, s.Equity)

	case d > t.currentDate:
		t.anchor(d, s.Balance, s.Equity)

	case d < t.currentDate:
		log.Printf("anchor(%s): snapshot dated %s is earlier than current anchor date %s, evaluating against existing anchor", t.accountID, d, t.currentDate)

	default:
		// same day, nothing to do
	}

	s.DayStartBalance = t.dayStart.balance
	s.DayStartEquity = t.dayStart.equity
	return s
}

func (t *Tracker) anchor(date string, balance, equity float64) {
	t.currentDate = date
	t.dayStart.balance = balance
	t.dayStart.equity = equity
	t.initialized = true

	if t.onAnchor != nil {
		t.onAnchor(Event{
			ID:              newEventID(),
			AccountID:       t.accountID,
			Date:            date,
			DayStartBalance: balance,
			DayStartEquity:  equity,
			AnchoredAt:      time.Now(),
		})
	}
}

// CurrentDate returns the broker-local date the anchor currently holds, and
// whether the tracker has anchored at all yet.
func (t *Tracker) CurrentDate() (string, bool) {
	return t.currentDate, t.initialized
}
