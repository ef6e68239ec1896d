package platform

import (
	"context"
	"errors"
	"time"
)

// ErrOffsetUnknown is returned by ServerTime when the adapter has not yet
// been able to detect the broker's clock offset from a server-stamped event.
// The anchor tracker must not guess at broker-local time; callers should
// surface this rather than substitute the wall clock.
var ErrOffsetUnknown = errors.New("platform: broker time offset not yet detected")

// Adapter is the uniform interface both MT5 and cTrader implementations
// satisfy. All monetary values are in account-currency decimal units, all
// volumes in lots, and ObservedAtServer is broker-local while every other
// instant is UTC.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// ServerTime returns the current instant in the broker's local timezone.
	ServerTime(ctx context.Context) (time.Time, error)

	// Snapshot returns everything about the account except the day-start
	// fields, which the anchor tracker fills in afterward.
	Snapshot(ctx context.Context) (AccountSnapshot, error)

	// Leverage returns the account's configured leverage, if the adapter
	// can determine it.
	Leverage(ctx context.Context) (leverage float64, ok bool, err error)
}

// Factory builds an Adapter for one AccountConfig entry. registry.DefaultFactory
// is the dispatch table that selects between mt5 and ctrader implementations.
type Factory func(cfg AccountCredentials) (Adapter, error)

// AccountCredentials carries whatever an adapter needs to Connect(). This
// system never stores or interprets these beyond passing them through —
// broker authentication is the adapter's internal concern.
type AccountCredentials struct {
	Platform  Platform
	AccountID string
	Server    string // MT5: terminal/server alias. cTrader: API host.
	APIToken  string // cTrader: OAuth access token. MT5: unused.
	Login     string
	Password  string
}
