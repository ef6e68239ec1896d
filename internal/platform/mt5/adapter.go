// Package mt5 adapts a local MetaTrader 5 terminal connection to the
// platform.Adapter interface. The terminal link itself (DLL/socket bridge to
// the running MT5 process) is out of scope here — that transport detail is
// a broker/platform internal, per this system's scope. This package owns
// only the translation from whatever the terminal returns into a
// platform.AccountSnapshot, and the broker-offset detection required to
// stamp ObservedAtServer correctly.
package mt5

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"compliance-monitor/internal/platform"
)

// Config identifies which terminal/account this adapter talks to.
type Config struct {
	AccountID string
	Server    string
	Login     string
	Password  string
}

// terminalClient is the narrow surface this adapter needs from the MT5
// terminal bridge. No implementation is included in this repository; one is
// attached with WithClient.
type terminalClient interface {
	Connect(ctx context.Context, server, login, password string) error
	Disconnect(ctx context.Context) error
	AccountInfo(ctx context.Context) (AccountInfo, error)
	Positions(ctx context.Context) ([]PositionInfo, error)
	LatestTickTime(ctx context.Context) (time.Time, error)
}

// AccountInfo mirrors the subset of MT5's account fields this system reads.
type AccountInfo struct {
	Currency    string
	Balance     float64
	Equity      float64
	MarginUsed  float64
	MarginFree  float64
	Leverage    float64
	HasLeverage bool
}

// PositionInfo mirrors one MT5 position/ticket.
type PositionInfo struct {
	Ticket       string
	Symbol       string
	IsBuy        bool
	VolumeLots   float64
	OpenPrice    float64
	CurrentPrice float64
	StopLoss     float64 // 0 means unset
	TakeProfit   float64 // 0 means unset
	Profit       float64
	OpenTime     time.Time
	Commission   float64
	Swap         float64
	ContractSize float64 // 0 means unknown
}

// Adapter implements platform.Adapter against a local MT5 terminal.
type Adapter struct {
	cfg    Config
	client terminalClient

	mu        sync.Mutex
	connected bool
	offset    platform.OffsetDetector
}

// New constructs an MT5 adapter. The real terminal client is wired in by
// WithClient in production; New alone yields an adapter that errors on
// Connect until a client is attached, matching the teacher's pattern of
// separating construction from external wiring.
func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// WithClient attaches the terminal bridge implementation. Returns the
// adapter for chaining.
func (a *Adapter) WithClient(c terminalClient) *Adapter {
	a.client = c
	return a
}

func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return fmt.Errorf("mt5(%s): no terminal client configured", a.cfg.AccountID)
	}
	if err := a.client.Connect(ctx, a.cfg.Server, a.cfg.Login, a.cfg.Password); err != nil {
		return fmt.Errorf("mt5(%s): connect: %w", a.cfg.AccountID, err)
	}
	a.connected = true
	a.offset.Reset()
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

// ServerTime detects the broker offset from the latest tick's timestamp on
// first call (comparing it to the wall clock) and applies the cached offset
// thereafter, per the spec's "detect once, cache, never guess" contract.
func (a *Adapter) ServerTime(ctx context.Context) (time.Time, error) {
	if a.client == nil {
		return time.Time{}, fmt.Errorf("mt5(%s): no terminal client configured", a.cfg.AccountID)
	}

	wall := time.Now()
	if t, ok := a.offset.Now(wall); ok {
		return t, nil
	}

	tickTime, err := a.client.LatestTickTime(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("mt5(%s): detect offset: %w", a.cfg.AccountID, err)
	}
	a.offset.Detect(wall, tickTime)

	t, ok := a.offset.Now(time.Now())
	if !ok {
		return time.Time{}, platform.ErrOffsetUnknown
	}
	return t, nil
}

func (a *Adapter) Snapshot(ctx context.Context) (platform.AccountSnapshot, error) {
	if a.client == nil {
		return platform.AccountSnapshot{}, fmt.Errorf("mt5(%s): no terminal client configured", a.cfg.AccountID)
	}

	serverTime, err := a.ServerTime(ctx)
	if err != nil {
		return platform.AccountSnapshot{}, err
	}

	info, err := a.client.AccountInfo(ctx)
	if err != nil {
		return platform.AccountSnapshot{}, fmt.Errorf("mt5(%s): account info: %w", a.cfg.AccountID, err)
	}

	raw, err := a.client.Positions(ctx)
	if err != nil {
		return platform.AccountSnapshot{}, fmt.Errorf("mt5(%s): positions: %w", a.cfg.AccountID, err)
	}

	positions := make([]platform.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, convertPosition(p))
	}

	marginLevel := marginLevelPct(info.Equity, info.MarginUsed)

	return platform.AccountSnapshot{
		AccountID:        a.cfg.AccountID,
		Platform:         platform.PlatformMT5,
		Currency:         info.Currency,
		Balance:          info.Balance,
		Equity:           info.Equity,
		MarginUsed:       info.MarginUsed,
		MarginFree:       info.MarginFree,
		MarginLevelPct:   marginLevel,
		Positions:        positions,
		ObservedAtServer: serverTime,
		ObservedAtWall:   time.Now(),
	}, nil
}

func (a *Adapter) Leverage(ctx context.Context) (float64, bool, error) {
	if a.client == nil {
		return 0, false, fmt.Errorf("mt5(%s): no terminal client configured", a.cfg.AccountID)
	}
	info, err := a.client.AccountInfo(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("mt5(%s): account info: %w", a.cfg.AccountID, err)
	}
	return info.Leverage, info.HasLeverage, nil
}

func convertPosition(p PositionInfo) platform.Position {
	side := platform.SideLong
	if !p.IsBuy {
		side = platform.SideShort
	}

	out := platform.Position{
		ID:           p.Ticket,
		Symbol:       p.Symbol,
		Side:         side,
		VolumeLots:   p.VolumeLots,
		OpenPrice:    p.OpenPrice,
		CurrentPrice: p.CurrentPrice,
		UnrealizedPL: p.Profit,
		OpenTime:     p.OpenTime,
		Commission:   p.Commission,
		Swap:         p.Swap,
		ContractSize: p.ContractSize,
	}
	if p.StopLoss != 0 {
		sl := p.StopLoss
		out.StopLossPrice = &sl
	}
	if p.TakeProfit != 0 {
		tp := p.TakeProfit
		out.TakeProfitPrice = &tp
	}
	return out
}

func marginLevelPct(equity, marginUsed float64) float64 {
	if marginUsed == 0 {
		return math.Inf(1)
	}
	return 100 * equity / marginUsed
}
