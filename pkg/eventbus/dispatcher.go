package eventbus

import (
	"context"
	"fmt"

	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// Dispatcher is the producer-facing handle of a pipeline. It is safe for
// concurrent use; share the pointer rather than copying it.
type Dispatcher struct {
	reg      *Registry
	pipeline *Pipeline
	opts     options
}

var _ observability.StatsSource = (*Dispatcher)(nil)

// NewDispatcher starts a pipeline for reg and returns its handle. It uses the
// logger, metrics, clock, and codec options.
func NewDispatcher(reg *Registry, opts ...Option) *Dispatcher {
	return &Dispatcher{
		reg:      reg,
		pipeline: NewPipeline(reg, opts...),
		opts:     newOptions(opts),
	}
}

// Registry returns the registry this dispatcher delivers into.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Pipeline returns the dispatcher's pipeline.
func (d *Dispatcher) Pipeline() *Pipeline { return d.pipeline }

// Dispatch encodes event and queues it under EventName(event). It returns
// once the envelope is queued, before any handler runs.
func (d *Dispatcher) Dispatch(event any) error {
	return d.DispatchAs(EventName(event), event)
}

// DispatchAs is Dispatch with an explicit event name.
func (d *Dispatcher) DispatchAs(name string, event any) error {
	env, err := d.envelope(name, event)
	if err != nil {
		return err
	}
	return d.DispatchEnvelope(env)
}

// DispatchEnvelope queues a prepared envelope unchanged.
func (d *Dispatcher) DispatchEnvelope(env Envelope) error {
	if err := d.pipeline.Enqueue(env); err != nil {
		return err
	}
	ctx := context.Background()
	d.opts.metrics.RecordDispatch(ctx, env.EventName())
	observability.LogDispatch(d.opts.log(), env.EventName(), env.ID())
	return nil
}

// DispatchEncoded queues an envelope in its wire form. Input that does not
// parse, or a closed pipeline, drops it silently apart from a debug log.
func (d *Dispatcher) DispatchEncoded(wire string) {
	env, err := ParseEnvelope(wire)
	if err != nil {
		observability.LogMalformedEnvelope(d.opts.log(), err)
		return
	}
	if err := d.DispatchEnvelope(env); err != nil {
		observability.LogMalformedEnvelope(d.opts.log(), err)
	}
}

// DispatchSync delivers event on the calling goroutine, bypassing the queue.
// It has no ordering relationship with envelopes already queued.
func (d *Dispatcher) DispatchSync(ctx context.Context, event any) (DeliveryReport, error) {
	return d.DispatchSyncAs(ctx, EventName(event), event)
}

// DispatchSyncAs is DispatchSync with an explicit event name.
func (d *Dispatcher) DispatchSyncAs(ctx context.Context, name string, event any) (DeliveryReport, error) {
	env, err := d.envelope(name, event)
	if err != nil {
		return DeliveryReport{}, err
	}
	return d.reg.Deliver(ctx, env), nil
}

func (d *Dispatcher) envelope(name string, event any) (Envelope, error) {
	payload, err := d.opts.codec.Encode(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %s: %v", ErrEncode, name, err)
	}
	return newEnvelopeAt(d.opts.clock, payload, name), nil
}

// Close drains the pipeline. See Pipeline.Close.
func (d *Dispatcher) Close(ctx context.Context) error {
	return d.pipeline.Close(ctx)
}

// QueueDepth implements observability.StatsSource.
func (d *Dispatcher) QueueDepth() int { return d.pipeline.Depth() }

// DeliveredTotal implements observability.StatsSource.
func (d *Dispatcher) DeliveredTotal() uint64 { return d.pipeline.Delivered() }

// HandlerCounts implements observability.StatsSource.
func (d *Dispatcher) HandlerCounts() map[string]int { return d.reg.Counts() }
