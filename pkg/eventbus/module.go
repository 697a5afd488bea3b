package eventbus

import (
	"context"

	"go.uber.org/fx"

	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// SubscriberGroup is the fx value group Module merges into its registry.
const SubscriberGroup = "eventbus_subscribers"

// Module returns an fx module providing a *Registry, a *Dispatcher whose
// pipeline is drained on stop, and a Prometheus *observability.Collector for
// it. Subscribers provided through AsSubscriber are merged before start.
func Module(opts ...Option) fx.Option {
	return fx.Module("eventbus",
		fx.Provide(
			func() *Registry { return NewRegistry(opts...) },
			provideDispatcher(opts),
			func(d *Dispatcher) *observability.Collector { return observability.NewCollector(d) },
		),
		fx.Invoke(applySubscribers),
	)
}

// AsSubscriber annotates a constructor returning *Subscriber so Module picks
// it up.
//
//	fx.Provide(eventbus.AsSubscriber(NewBillingSubscriber))
func AsSubscriber(ctor any) any {
	return fx.Annotate(ctor, fx.ResultTags(`group:"`+SubscriberGroup+`"`))
}

type dispatcherParams struct {
	fx.In

	LC       fx.Lifecycle
	Registry *Registry
}

func provideDispatcher(opts []Option) func(dispatcherParams) *Dispatcher {
	return func(p dispatcherParams) *Dispatcher {
		d := NewDispatcher(p.Registry, opts...)
		p.LC.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return d.Close(ctx)
			},
		})
		return d
	}
}

type subscriberParams struct {
	fx.In

	Registry    *Registry
	Subscribers []*Subscriber `group:"eventbus_subscribers"`
}

func applySubscribers(p subscriberParams) {
	for _, s := range p.Subscribers {
		if s != nil {
			s.ApplyTo(p.Registry)
		}
	}
}
