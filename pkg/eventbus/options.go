package eventbus

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/randalmurphal/eventbus/pkg/eventbus/journal"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// Option configures a Registry, Pipeline, or Dispatcher. Each constructor
// reads only the options relevant to it.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	journal    journal.Store
	journalAll bool
	middleware []Middleware
	clock      clock.Clock
	codec      Codec
}

func newOptions(opts []Option) options {
	o := options{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		clock:   clock.New(),
		codec:   JSONCodec{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// log resolves the logger at call time so slog.SetDefault after construction
// is honored.
func (o *options) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Defaults to no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSpanManager enables tracing of deliveries and handler invocations.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(o *options) {
		if sm != nil {
			o.spans = sm
		}
	}
}

// WithJournal records handler outcomes to store. With faultsOnly set, only
// failed and panicked invocations are recorded.
func WithJournal(store journal.Store, faultsOnly bool) Option {
	return func(o *options) {
		o.journal = store
		o.journalAll = !faultsOnly
	}
}

// WithMiddleware appends handler middleware. The first middleware is outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithClock sets the clock used for envelope timestamps and durations.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithCodec sets the payload codec used by a Dispatcher. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}
