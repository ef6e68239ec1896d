// Package supervisor owns every per-account monitor: it takes the account
// set from its caller, resolves each account's Rules, spawns one monitor per
// account, and isolates one account's failure from the rest (§4.5).
package supervisor

import (
	"context"
	"log"
	"sync"
	"time"

	"compliance-monitor/internal/monitor"
	"compliance-monitor/internal/notifier"
	"compliance-monitor/internal/platform"
	"compliance-monitor/internal/resolver"
	"compliance-monitor/internal/rules"
)

// AccountSpec is everything the supervisor needs to start one monitor:
// resolver inputs plus the account's own config fields. Built from
// pkg/config.AccountConfig by the CLI layer, kept here free of that
// package's JSON-file concerns.
type AccountSpec struct {
	Label           string
	Firm            string
	ProgramID       string
	StartingBalance float64
	CheckInterval   time.Duration
	Enabled         bool
	InlineRules     *rules.Rules
	PresetName      string // not read by the supervisor; resolution goes through Firm
	Credentials     platform.AccountCredentials
}

// AdapterFactory builds a platform.Adapter for one account's credentials.
// Satisfied by registry.DefaultFactory.
type AdapterFactory func(platform.AccountCredentials) (platform.Adapter, error)

// Supervisor spawns and tracks one monitor goroutine per enabled account.
type Supervisor struct {
	resolver *resolver.Resolver
	factory  AdapterFactory
	dispatch *notifier.Dispatcher
	metrics  *monitor.Metrics
	status   *monitor.StatusBoard

	wg sync.WaitGroup
}

// New builds a Supervisor. metrics may be nil.
func New(res *resolver.Resolver, factory AdapterFactory, dispatch *notifier.Dispatcher, metrics *monitor.Metrics) *Supervisor {
	return &Supervisor{
		resolver: res,
		factory:  factory,
		dispatch: dispatch,
		metrics:  metrics,
		status:   monitor.NewStatusBoard(),
	}
}

// Status returns the read-only per-account status view (§4.5).
func (s *Supervisor) Status() []monitor.Status {
	return s.status.All()
}

// Run resolves Rules and spawns a monitor for every enabled account in
// specs, then blocks until ctx is canceled. Each monitor gets up to grace
// to shut down cleanly; one account's adapter or resolution failure does
// not prevent the others from starting.
func (s *Supervisor) Run(ctx context.Context, specs []AccountSpec, grace time.Duration) {
	for _, spec := range specs {
		if !spec.Enabled {
			continue
		}
		s.startOne(ctx, spec, grace)
	}
	<-ctx.Done()
	s.wg.Wait()
}

func (s *Supervisor) startOne(ctx context.Context, spec AccountSpec, grace time.Duration) {
	resolved, sourceTag, err := s.resolver.Resolve(ctx, spec.Firm, spec.ProgramID, spec.InlineRules)
	if err != nil {
		log.Printf("supervisor: %s: could not resolve rules, account will not be monitored: %v", spec.Label, err)
		return
	}
	log.Printf("supervisor: %s: resolved rules from %s tier", spec.Label, sourceTag)

	adapter, err := s.factory(spec.Credentials)
	if err != nil {
		log.Printf("supervisor: %s: could not build adapter, account will not be monitored: %v", spec.Label, err)
		return
	}

	m := monitor.New(monitor.Account{
		Label:           spec.Label,
		AccountID:       spec.Credentials.AccountID,
		Rules:           resolved,
		StartingBalance: spec.StartingBalance,
		CheckInterval:   spec.CheckInterval,
		Adapter:         adapter,
	}, s.dispatch, s.metrics, s.status)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		m.Run(ctx, grace)
	}()
}
