package eventbus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventbus/pkg/eventbus/journal"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// DefaultRegistry is the process-wide registry used by the package-level
// helpers and by Builders that were not given a registry.
var DefaultRegistry = NewRegistry()

// Registry maps event names to ordered handler lists.
//
// Each event name has its own lock, so registering handlers for one event
// never waits on deliveries of another. The map lock is held only to find or
// create a bucket.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	opts    atomic.Pointer[options]
}

type bucket struct {
	mu       sync.Mutex
	handlers []Handler
	// size mirrors len(handlers) for lock-free reads.
	size atomic.Int64
}

// DeliveryReport summarizes one walk over an event's handlers.
type DeliveryReport struct {
	EventName  string
	EnvelopeID string
	// Invoked counts handlers called, including ones that failed.
	Invoked int
	// Faults counts handlers that returned an error or panicked.
	Faults int
	// Removed counts run-once handlers taken out after the walk.
	Removed int
	// Stopped is set when a handler halted propagation.
	Stopped bool
	// Dropped is set when no handler was registered for the event.
	Dropped bool
}

// NewRegistry creates an empty registry. It uses the logger, metrics, span
// manager, journal, middleware, and clock options.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{buckets: make(map[string]*bucket)}
	o := newOptions(opts)
	r.opts.Store(&o)
	return r
}

// configure applies opts on top of the registry's current options. A
// delivery already in progress keeps the options it started with.
func (r *Registry) configure(opts ...Option) {
	if len(opts) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	o := *r.opts.Load()
	o.middleware = slices.Clone(o.middleware)
	for _, opt := range opts {
		opt(&o)
	}
	r.opts.Store(&o)
}

func (r *Registry) options() *options {
	return r.opts.Load()
}

func (r *Registry) lookup(name string) *bucket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets[name]
}

// getOrCreate returns the bucket for name, creating it if needed.
func (r *Registry) getOrCreate(name string) *bucket {
	if b := r.lookup(name); b != nil {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if b, ok := r.buckets[name]; ok {
		return b
	}
	b := &bucket{}
	r.buckets[name] = b
	return b
}

// Register appends handlers to the end of name's list.
func (r *Registry) Register(name string, handlers ...Handler) {
	if len(handlers) == 0 {
		return
	}
	b := r.getOrCreate(name)

	b.mu.Lock()
	b.handlers = append(b.handlers, handlers...)
	b.size.Store(int64(len(b.handlers)))
	b.mu.Unlock()

	logger := r.options().log()
	for _, h := range handlers {
		observability.LogRegister(logger, name, HandlerID(h))
	}
}

// Merge appends every staged list to the matching event's list, creating
// lists as needed. Order within each list is kept.
func (r *Registry) Merge(entries map[string][]Handler) {
	for name, handlers := range entries {
		r.Register(name, handlers...)
	}
}

// Unsubscribe removes the first handler registered for name whose identity
// is handlerID. It reports whether a handler was removed.
func (r *Registry) Unsubscribe(name, handlerID string) bool {
	b := r.lookup(name)
	if b == nil {
		return false
	}

	b.mu.Lock()
	idx := slices.IndexFunc(b.handlers, func(h Handler) bool {
		return HandlerID(h) == handlerID
	})
	if idx >= 0 {
		b.handlers = slices.Delete(b.handlers, idx, idx+1)
		b.size.Store(int64(len(b.handlers)))
	}
	b.mu.Unlock()

	if idx < 0 {
		return false
	}
	observability.LogUnregister(r.options().log(), name, handlerID, "unsubscribe")
	return true
}

// Deliver runs env through the handlers registered for its event name, in
// registration order, and waits for each to return before calling the next.
//
// A handler fault is recorded and the walk moves on. A handler whose
// Propagate is false ends the walk after it runs. Run-once handlers that ran
// are removed once the walk ends, including one that stopped propagation.
func (r *Registry) Deliver(ctx context.Context, env Envelope) DeliveryReport {
	o := r.options()
	name := env.EventName()
	report := DeliveryReport{EventName: name, EnvelopeID: env.ID()}

	b := r.lookup(name)
	if b == nil {
		o.drop(ctx, &report)
		return report
	}

	ctx, span := o.spans.StartDeliverySpan(ctx, name, env.ID())
	start := o.clock.Now()

	o.walk(ctx, b, env, &report)

	if report.Invoked == 0 {
		o.spans.EndSpanWithError(span, nil)
		o.drop(ctx, &report)
		return report
	}

	elapsed := o.clock.Since(start)
	o.metrics.RecordDelivery(ctx, name, report.Invoked, elapsed)
	observability.LogDelivery(o.log(), name, env.ID(), report.Invoked, float64(elapsed.Microseconds())/1000)

	var spanErr error
	if report.Faults > 0 {
		spanErr = fmt.Errorf("%d of %d handlers failed", report.Faults, report.Invoked)
	}
	o.spans.EndSpanWithError(span, spanErr)
	return report
}

func (o *options) walk(ctx context.Context, b *bucket, env Envelope, report *DeliveryReport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var spent []int
	for i, h := range b.handlers {
		if err := o.invoke(ctx, env, h); err != nil {
			report.Faults++
		}
		report.Invoked++
		if runsOnce(h) {
			spent = append(spent, i)
		}
		if !propagates(h) {
			report.Stopped = true
			break
		}
	}

	// Highest index first so earlier indices stay valid.
	logger := o.log()
	for i := len(spent) - 1; i >= 0; i-- {
		idx := spent[i]
		id := HandlerID(b.handlers[idx])
		observability.LogUnregister(logger, env.EventName(), id, "once")
		o.spans.AddSpanEvent(ctx, "handler.removed",
			attribute.String("handler.id", id),
			attribute.String("reason", "once"),
		)
		b.handlers = slices.Delete(b.handlers, idx, idx+1)
	}
	b.size.Store(int64(len(b.handlers)))
	report.Removed = len(spent)
}

func (o *options) drop(ctx context.Context, report *DeliveryReport) {
	report.Dropped = true
	o.metrics.RecordDrop(ctx, report.EventName)
	observability.LogDrop(o.log(), report.EventName, report.EnvelopeID)
}

// invoke calls h through the middleware chain and converts a returned error
// or a panic into a *HandlerError.
func (o *options) invoke(ctx context.Context, env Envelope, h Handler) (err error) {
	id := HandlerID(h)
	ctx, span := o.spans.StartHandlerSpan(ctx, id)
	start := o.clock.Now()

	defer func() {
		if p := recover(); p != nil {
			cause, ok := p.(error)
			if !ok {
				cause = fmt.Errorf("panic: %v", p)
			}
			err = &HandlerError{
				EventName:  env.EventName(),
				EnvelopeID: env.ID(),
				Handler:    id,
				Err:        cause,
				Panic:      p,
			}
		}
		o.observe(ctx, env, id, start, err)
		o.spans.EndSpanWithError(span, err)
	}()

	if herr := chain(h, o.middleware).Handle(ctx, env); herr != nil {
		return &HandlerError{
			EventName:  env.EventName(),
			EnvelopeID: env.ID(),
			Handler:    id,
			Err:        herr,
		}
	}
	return nil
}

func (o *options) observe(ctx context.Context, env Envelope, handlerID string, start time.Time, err error) {
	now := o.clock.Now()
	elapsed := now.Sub(start)
	o.metrics.RecordHandler(ctx, env.EventName(), handlerID, elapsed, err)

	entry := journal.Entry{
		EnvelopeID: env.ID(),
		EventName:  env.EventName(),
		HandlerID:  handlerID,
		Outcome:    journal.OutcomeOK,
		Duration:   elapsed,
		RecordedAt: now,
	}
	if err != nil {
		var herr *HandlerError
		panicked := errors.As(err, &herr) && herr.Panicked()
		logger := observability.EnrichLogger(o.log(), env.EventName(), env.ID())
		observability.LogHandlerFault(logger, handlerID, err, panicked)

		entry.Outcome = journal.OutcomeError
		if panicked {
			entry.Outcome = journal.OutcomePanic
		}
		entry.Error = err.Error()
	} else if !o.journalAll {
		return
	}

	if o.journal == nil {
		return
	}
	if jerr := o.journal.Record(ctx, entry); jerr != nil {
		observability.LogJournalError(o.log(), env.EventName(), handlerID, jerr)
	}
}

// Len returns the number of handlers registered for name.
func (r *Registry) Len(name string) int {
	b := r.lookup(name)
	if b == nil {
		return 0
	}
	return int(b.size.Load())
}

// Handlers returns the identities of name's handlers in delivery order.
// It waits for any in-flight delivery of name to finish.
func (r *Registry) Handlers(name string) []string {
	b := r.lookup(name)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, len(b.handlers))
	for i, h := range b.handlers {
		ids[i] = HandlerID(h)
	}
	return ids
}

// Names returns every event name that has ever had a handler, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.buckets))
	for name := range r.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Counts returns the handler count per event name without waiting on
// in-flight deliveries.
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.buckets))
	for name, b := range r.buckets {
		counts[name] = int(b.size.Load())
	}
	return counts
}
