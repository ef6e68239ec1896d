package monitor

import (
	"sync"
	"time"

	"compliance-monitor/internal/rules"
)

// Status is the read-only per-account view the supervisor exposes (§4.5):
// state, last snapshot timestamp, last breach summary.
type Status struct {
	Label             string
	State             State
	LastSnapshotAt    time.Time
	LastBreachCodes   []string
	LastError         string
	ConsecutiveErrors int
}

// StatusBoard holds a copy-on-publish Status per account, safe for
// concurrent reads from status/health handlers while the owning monitor
// writes from its own goroutine.
type StatusBoard struct {
	mu sync.RWMutex
	m  map[string]Status
}

// NewStatusBoard creates an empty StatusBoard. The supervisor owns one and
// shares it with every monitor it spawns.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{m: make(map[string]Status)}
}

func (b *StatusBoard) publish(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[s.Label] = s
}

func (b *StatusBoard) get(label string) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.m[label]
	return s, ok
}

// All returns a snapshot of every published Status, for the status/health
// handlers.
func (b *StatusBoard) All() []Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Status, 0, len(b.m))
	for _, s := range b.m {
		out = append(out, s)
	}
	return out
}

// Get returns one account's Status.
func (b *StatusBoard) Get(label string) (Status, bool) {
	return b.get(label)
}

func breachCodes(breaches []rules.Breach) []string {
	if len(breaches) == 0 {
		return nil
	}
	out := make([]string, len(breaches))
	for i, b := range breaches {
		out[i] = string(b.Code)
	}
	return out
}
