// Package monitor runs one compliance-monitoring loop per account: fetch a
// snapshot, update its day-start anchor, evaluate rules, dispatch breaches,
// on its own cadence, until canceled (§4.4).
package monitor

import (
	"context"
	"errors"
	"log"
	"time"

	"compliance-monitor/internal/anchor"
	"compliance-monitor/internal/evaluator"
	"compliance-monitor/internal/notifier"
	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/rules"
)

// operationTimeout bounds every adapter call; exceeding it is treated as a
// transient error (§5).
const operationTimeout = 10 * time.Second

// ErrAuth marks an adapter failure as unrecoverable: the monitor goes to
// FAILED and does not retry. Adapters should wrap their auth failures in
// this so Connect's caller can distinguish it from a transient error.
var ErrAuth = errors.New("monitor: unrecoverable authentication failure")

// Account bundles everything one monitor loop needs: identity, the resolved
// Rules, the platform adapter, and the cadence to run at.
type Account struct {
	Label           string
	AccountID       string
	Rules           rules.Rules
	StartingBalance float64
	CheckInterval   time.Duration
	Adapter         platform.Adapter
}

// Monitor runs Account's state machine until Run's context is canceled.
type Monitor struct {
	account  Account
	dispatch *notifier.Dispatcher
	metrics  *Metrics
	status   *StatusBoard
	backoff  *backoff
	tracker  *anchor.Tracker
}

// New builds a Monitor. metrics may be nil (metrics become no-ops).
func New(account Account, dispatch *notifier.Dispatcher, metrics *Metrics, status *StatusBoard) *Monitor {
	return &Monitor{
		account:  account,
		dispatch: dispatch,
		metrics:  metrics,
		status:   status,
		backoff:  newBackoff(),
	}
}

// Run executes the state machine until ctx is canceled, or the account's
// adapter reports an unrecoverable auth failure. It always returns within
// the grace period of ctx's cancellation.
func (m *Monitor) Run(ctx context.Context, grace time.Duration) {
	state := StateConnecting
	for {
		switch state {
		case StateConnecting:
			m.publish(state, "")
			if err := m.connect(ctx); err != nil {
				if errors.Is(err, ErrAuth) {
					log.Printf("monitor %s: auth failure, giving up: %v", m.account.Label, err)
					state = StateFailed
					continue
				}
				log.Printf("monitor %s: connect failed, retrying: %v", m.account.Label, err)
				state = StateReconnecting
				continue
			}
			m.backoff.Reset()
			state = StateObserving

		case StateObserving:
			if ctx.Err() != nil {
				state = StateStopped
				continue
			}
			if err := m.observeOnce(ctx); err != nil {
				log.Printf("monitor %s: snapshot error, reconnecting: %v", m.account.Label, err)
				state = StateReconnecting
				continue
			}
			if !sleepCancelable(ctx, m.account.CheckInterval) {
				state = StateStopped
				continue
			}

		case StateReconnecting:
			m.publish(state, "")
			delay := m.backoff.Next()
			if !sleepCancelable(ctx, delay) {
				state = StateStopped
				continue
			}
			state = StateConnecting

		case StateFailed:
			m.publish(StateFailed, "")
			return

		case StateStopped:
			m.shutdown(grace)
			m.publish(StateStopped, "")
			return
		}
	}
}

func (m *Monitor) connect(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	return m.account.Adapter.Connect(cctx)
}

func (m *Monitor) shutdown(grace time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := m.account.Adapter.Disconnect(ctx); err != nil {
		log.Printf("monitor %s: disconnect: %v", m.account.Label, err)
	}
}

// observeOnce runs one full OBSERVING cycle: snapshot, anchor, evaluate,
// dispatch. It returns a non-nil error only for a snapshot-fetch failure;
// evaluator and notifier failures never leave this function (§4.4, §7).
func (m *Monitor) observeOnce(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, operationTimeout)
	snap, err := m.account.Adapter.Snapshot(cctx)
	cancel()
	if err != nil {
		if m.metrics != nil {
			m.metrics.SnapshotErrors.WithLabelValues(m.account.Label).Inc()
		}
		m.publish(StateObserving, err.Error())
		return err
	}

	snap = m.anchorFor(m.account.AccountID).Update(snap)

	lctx, lcancel := context.WithTimeout(ctx, operationTimeout)
	leverage, hasLeverage, lerr := m.account.Adapter.Leverage(lctx)
	lcancel()
	if lerr != nil {
		leverage, hasLeverage = 0, false
	}

	breaches := evaluator.Evaluate(m.account.Rules, snap, m.account.StartingBalance, leverage, hasLeverage)
	m.recordBreaches(breaches)
	m.dispatch.Dispatch(m.account.Label, breaches)

	m.publishObserved(snap, breaches)
	return nil
}

func (m *Monitor) recordBreaches(breaches []rules.Breach) {
	if m.metrics == nil {
		return
	}
	for _, b := range breaches {
		m.metrics.BreachesTotal.WithLabelValues(m.account.Label, string(b.Code), string(b.Level)).Inc()
	}
}

func (m *Monitor) publish(s State, lastErr string) {
	if m.metrics != nil {
		m.metrics.setState(m.account.Label, s)
	}
	if m.status == nil {
		return
	}
	prev, _ := m.status.get(m.account.Label)
	prev.Label = m.account.Label
	prev.State = s
	if lastErr != "" {
		prev.LastError = lastErr
		prev.ConsecutiveErrors++
	}
	m.status.publish(prev)
}

func (m *Monitor) publishObserved(snap platform.AccountSnapshot, breaches []rules.Breach) {
	if m.metrics != nil {
		m.metrics.setState(m.account.Label, StateObserving)
	}
	if m.status == nil {
		return
	}
	prev, _ := m.status.get(m.account.Label)
	prev.Label = m.account.Label
	prev.State = StateObserving
	prev.LastSnapshotAt = snap.ObservedAtServer
	prev.LastBreachCodes = breachCodes(breaches)
	prev.LastError = ""
	prev.ConsecutiveErrors = 0
	m.status.publish(prev)
}

// anchorFor lazily creates this monitor's day-anchor tracker on first use.
// A Monitor owns exactly one account for its lifetime, so one tracker
// suffices; lazy allocation keeps New's signature free of the audit
// callback, which is defined here and logs every anchor reset.
func (m *Monitor) anchorFor(accountID string) *anchor.Tracker {
	if m.tracker == nil {
		m.tracker = anchor.New(accountID, func(e anchor.Event) {
			log.Printf("monitor %s: day anchor reset for %s: balance=%.2f equity=%.2f",
				m.account.Label, e.Date, e.DayStartBalance, e.DayStartEquity)
		})
	}
	return m.tracker
}

// sleepCancelable sleeps for d or returns false early if ctx is canceled.
func sleepCancelable(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
