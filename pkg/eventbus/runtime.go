package eventbus

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/randalmurphal/eventbus/pkg/eventbus/config"
	"github.com/randalmurphal/eventbus/pkg/eventbus/journal"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// Runtime is a registry and dispatcher wired from a config.Config.
type Runtime struct {
	Config     config.Config
	Logger     *slog.Logger
	Registry   *Registry
	Dispatcher *Dispatcher
	// Journal is nil when config.JournalPath is empty.
	Journal journal.Store
}

// NewRuntime validates cfg and builds a Runtime. Log output goes to w.
// Extra options are applied after the ones derived from cfg.
func NewRuntime(cfg config.Config, w io.Writer, extra ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.NewLogger(w).With(slog.String("component", "eventbus"))
	opts := []Option{WithLogger(logger)}

	if cfg.MetricsEnabled {
		opts = append(opts, WithMetrics(observability.NewMetricsRecorder()))
	}
	if cfg.TracingEnabled {
		opts = append(opts, WithSpanManager(observability.NewSpanManager()))
	}

	var store journal.Store
	if cfg.JournalPath != "" {
		var err error
		if store, err = journal.Open(cfg.JournalPath); err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		opts = append(opts, WithJournal(store, cfg.JournalFaultsOnly))
	}
	opts = append(opts, extra...)

	reg := NewRegistry(opts...)
	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Dispatcher: NewDispatcher(reg, opts...),
		Journal:    store,
	}, nil
}

// Collector returns a Prometheus collector for the runtime's dispatcher.
func (r *Runtime) Collector() *observability.Collector {
	return observability.NewCollector(r.Dispatcher)
}

// Close drains the dispatcher within Config.ShutdownTimeout and then closes
// the journal. Errors from both steps are combined.
func (r *Runtime) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.Config.ShutdownTimeout)
	defer cancel()

	err := r.Dispatcher.Close(ctx)
	if r.Journal != nil {
		err = multierr.Append(err, r.Journal.Close())
	}
	return err
}
