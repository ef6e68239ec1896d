package platform

import (
	"sync"
	"time"
)

// OffsetDetector caches a broker's clock offset from one known server-stamped
// event (MT5: latest tick time, cTrader: a recent deal timestamp) and applies
// it on every subsequent ServerTime() call. Detection happens at most once
// per adapter lifetime unless Reset is called; if it never succeeds,
// adapters must return ErrOffsetUnknown rather than fall back to the wall
// clock.
type OffsetDetector struct {
	mu       sync.RWMutex
	detected bool
	offset   time.Duration // server - wall, at time of detection
}

// Detect records the offset implied by a single (wall, serverStamped) pair.
// Safe to call multiple times; only the first call sets the offset, matching
// the "detect on first call, cache thereafter" contract in the spec.
func (d *OffsetDetector) Detect(wall, serverStamped time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detected {
		return
	}
	d.offset = serverStamped.Sub(wall)
	d.detected = true
}

// Now returns the broker-local instant corresponding to the given wall-clock
// instant, or ok=false if no offset has been detected yet.
func (d *OffsetDetector) Now(wall time.Time) (t time.Time, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.detected {
		return time.Time{}, false
	}
	return wall.Add(d.offset), true
}

// Reset clears a previously detected offset, forcing re-detection on the
// next Detect call. Both adapters call it on every Connect.
func (d *OffsetDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detected = false
	d.offset = 0
}
