package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"compliance-monitor/internal/notifier"
	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/rules"
)

// fakeAdapter is a scriptable platform.Adapter for exercising the state
// machine without a real broker connection.
type fakeAdapter struct {
	mu sync.Mutex

	connectErr    error
	snapshotErr   error
	snapshotCalls int
	snapshot      platform.AccountSnapshot

	connected      bool
	disconnectCall int
}

func (f *fakeAdapter) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeAdapter) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCall++
	f.connected = false
	return nil
}

func (f *fakeAdapter) ServerTime(ctx context.Context) (time.Time, error) {
	return time.Now(), nil
}

func (f *fakeAdapter) Snapshot(ctx context.Context) (platform.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotCalls++
	if f.snapshotErr != nil {
		return platform.AccountSnapshot{}, f.snapshotErr
	}
	return f.snapshot, nil
}

func (f *fakeAdapter) Leverage(ctx context.Context) (float64, bool, error) {
	return 0, false, nil
}

func baseSnapshot() platform.AccountSnapshot {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	return platform.AccountSnapshot{
		AccountID:        "acct-1",
		Balance:          100000,
		Equity:           100000,
		MarginUsed:       0,
		ObservedAtServer: now,
		ObservedAtWall:   now,
	}
}

func testRules() rules.Rules {
	return rules.Rules{
		Name:                "Test",
		MaxDailyDrawdownPct: 5.0,
		MaxTotalDrawdownPct: 10.0,
		WarnBufferPct:       0.8,
	}.WithDefaults()
}

func TestMonitorReachesObservingAndPublishesStatus(t *testing.T) {
	adapter := &fakeAdapter{snapshot: baseSnapshot()}
	status := NewStatusBoard()
	dispatch := notifier.NewDispatcher(nil)
	defer dispatch.Close()

	m := New(Account{
		Label:           "acct-1",
		AccountID:       "acct-1",
		Rules:           testRules(),
		StartingBalance: 100000,
		CheckInterval:   10 * time.Millisecond,
		Adapter:         adapter,
	}, dispatch, nil, status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Second)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s, ok := status.Get("acct-1"); ok && s.State == StateObserving {
			break
		}
		time.Sleep(time.Millisecond)
	}

	s, ok := status.Get("acct-1")
	if !ok || s.State != StateObserving {
		t.Fatalf("expected status OBSERVING, got %+v (ok=%v)", s, ok)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}

	if adapter.disconnectCall == 0 {
		t.Fatalf("expected Disconnect to be called on shutdown")
	}
}

func TestMonitorAuthFailureGoesToFailedAndStopsRetrying(t *testing.T) {
	adapter := &fakeAdapter{connectErr: ErrAuth}
	status := NewStatusBoard()
	dispatch := notifier.NewDispatcher(nil)
	defer dispatch.Close()

	m := New(Account{
		Label:         "acct-2",
		AccountID:     "acct-2",
		Rules:         testRules(),
		CheckInterval: 10 * time.Millisecond,
		Adapter:       adapter,
	}, dispatch, nil, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return quickly on unrecoverable auth failure")
	}

	s, ok := status.Get("acct-2")
	if !ok || s.State != StateFailed {
		t.Fatalf("expected status FAILED, got %+v (ok=%v)", s, ok)
	}
}

func TestMonitorTransientSnapshotErrorReconnects(t *testing.T) {
	adapter := &fakeAdapter{snapshot: baseSnapshot(), snapshotErr: errors.New("transient read failure")}
	status := NewStatusBoard()
	dispatch := notifier.NewDispatcher(nil)
	defer dispatch.Close()

	m := New(Account{
		Label:         "acct-3",
		AccountID:     "acct-3",
		Rules:         testRules(),
		CheckInterval: 5 * time.Millisecond,
		Adapter:       adapter,
	}, dispatch, nil, status)
	m.backoff.max = 20 * time.Millisecond // keep the test fast

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Second)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		adapter.mu.Lock()
		calls := adapter.snapshotCalls
		adapter.mu.Unlock()
		if calls >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	adapter.mu.Lock()
	calls := adapter.snapshotCalls
	adapter.mu.Unlock()
	if calls < 2 {
		t.Fatalf("expected repeated snapshot attempts via reconnect, got %d", calls)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}
