package monitor

import (
	"math/rand"
	"time"
)

// backoff tracks RECONNECTING's exponential-with-full-jitter delay: base 1s,
// factor 2, capped at 60s (§4.4).
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{base: time.Second, max: 60 * time.Second}
}

// Next returns the delay to wait before the next reconnect attempt and
// advances the backoff toward max.
func (b *backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.base
	} else {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	return time.Duration(rand.Int63n(int64(b.current)))
}

// Reset returns the backoff to its initial state after a successful connect.
func (b *backoff) Reset() {
	b.current = 0
}
