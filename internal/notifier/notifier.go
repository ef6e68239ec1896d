// Package notifier implements the breach dispatch contract: a Sink takes
// (account_label, []Breach) and is a no-op on an empty slice. The engine
// fans out to every registered sink through a bounded, per-sink buffered
// channel so a slow sink can never back up the monitor loop that feeds it.
package notifier

import (
	"log"
	"sync"

	"compliance-monitor/internal/rules"
)

// Sink receives breach dispatches. Dispatch must be a no-op when breaches
// is empty; implementations should not assume Dispatch is called from any
// particular goroutine.
type Sink interface {
	Dispatch(accountLabel string, breaches []rules.Breach)
}

// defaultQueueDepth is the per-sink buffered channel capacity before the
// drop-oldest policy engages.
const defaultQueueDepth = 64

type dispatchJob struct {
	accountLabel string
	breaches     []rules.Breach
}

// sinkWorker owns one sink's queue and draining goroutine.
type sinkWorker struct {
	index   int
	sink    Sink
	queue   chan dispatchJob
	dropped uint64
	mu      sync.Mutex
	done    chan struct{}
	onDrop  func(accountLabel string, sinkIndex int)
}

// Dispatcher fans dispatches out to every registered sink, independently
// and without blocking the caller. Construct once at startup and register
// all sinks before the first Dispatch call; the sink set is read-only
// thereafter, matching the "registries assembled once in main" pattern.
type Dispatcher struct {
	workers []*sinkWorker
	onDrop  func(accountLabel string, sinkIndex int)
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithDropCallback registers a hook invoked every time a queued dispatch is
// dropped for overflow, so callers (internal/monitor's metrics) can count
// it without this package depending on a metrics library.
func WithDropCallback(fn func(accountLabel string, sinkIndex int)) Option {
	return func(d *Dispatcher) { d.onDrop = fn }
}

// NewDispatcher builds a Dispatcher fanning out to sinks, each backed by its
// own bounded queue and drain goroutine.
func NewDispatcher(sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	for i, s := range sinks {
		w := &sinkWorker{
			index:  i,
			sink:   s,
			queue:  make(chan dispatchJob, defaultQueueDepth),
			done:   make(chan struct{}),
			onDrop: d.onDrop,
		}
		d.workers = append(d.workers, w)
		go w.run()
	}
	return d
}

func (w *sinkWorker) run() {
	defer close(w.done)
	for job := range w.queue {
		w.sink.Dispatch(job.accountLabel, job.breaches)
	}
}

// Dispatch enqueues the breach list to every sink. Per Dispatch's contract,
// an empty slice produces zero sink writes. Enqueueing never blocks: if a
// sink's queue is full, the oldest queued dispatch for that sink is dropped
// to make room.
func (d *Dispatcher) Dispatch(accountLabel string, breaches []rules.Breach) {
	if len(breaches) == 0 {
		return
	}
	job := dispatchJob{accountLabel: accountLabel, breaches: breaches}
	for _, w := range d.workers {
		w.offer(job)
	}
}

// offer enqueues job on w's queue, dropping the oldest queued job first if
// the queue is full rather than blocking the caller.
func (w *sinkWorker) offer(job dispatchJob) {
	select {
	case w.queue <- job:
		return
	default:
	}

	select {
	case old := <-w.queue:
		w.recordDrop(old.accountLabel)
		log.Printf("notifier: dropped oldest queued dispatch for account %s, queue was full", old.accountLabel)
	default:
	}

	select {
	case w.queue <- job:
	default:
		// Another producer raced us and refilled the queue; this dispatch
		// itself is dropped rather than blocking.
		w.recordDrop(job.accountLabel)
	}
}

func (w *sinkWorker) recordDrop(accountLabel string) {
	w.mu.Lock()
	w.dropped++
	w.mu.Unlock()
	if w.onDrop != nil {
		w.onDrop(accountLabel, w.index)
	}
}

// Dropped returns the total number of dispatches dropped for overflow,
// summed across all registered sinks.
func (d *Dispatcher) Dropped() uint64 {
	var total uint64
	for _, w := range d.workers {
		w.mu.Lock()
		total += w.dropped
		w.mu.Unlock()
	}
	return total
}

// Close stops every sink's drain goroutine after its queue drains. Safe to
// call once during shutdown.
func (d *Dispatcher) Close() {
	for _, w := range d.workers {
		close(w.queue)
	}
	for _, w := range d.workers {
		<-w.done
	}
}
