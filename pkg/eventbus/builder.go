package eventbus

import (
	"context"
)

// Builder assembles a Dispatcher together with its initial handlers.
//
//	d := eventbus.NewBuilder(eventbus.WithLogger(logger)).
//	    WithRegistry(reg).
//	    ListenWith(OrderPlaced{}, billing).
//	    Build()
type Builder struct {
	sub  *Subscriber
	reg  *Registry
	opts []Option
}

// NewBuilder creates a Builder. opts configure both the Dispatcher and the
// registry it delivers into.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{sub: NewSubscriber(), opts: opts}
}

// WithRegistry delivers into reg instead of DefaultRegistry.
func (b *Builder) WithRegistry(reg *Registry) *Builder {
	b.reg = reg
	return b
}

// Subscribe stages everything from s.
func (b *Builder) Subscribe(s *Subscriber) *Builder {
	b.sub.Subscribe(s)
	return b
}

// ListenWith stages h for the event type of event.
func (b *Builder) ListenWith(event any, h Handler) *Builder {
	b.sub.ListenWith(event, h)
	return b
}

// ListenFunc stages fn for the event type of event.
func (b *Builder) ListenFunc(event any, fn func(ctx context.Context, env Envelope) error) *Builder {
	b.sub.ListenFunc(event, fn)
	return b
}

// ListenName stages h for an explicit event name.
func (b *Builder) ListenName(name string, h Handler) *Builder {
	b.sub.ListenName(name, h)
	return b
}

// ListenNameFunc stages fn for an explicit event name.
func (b *Builder) ListenNameFunc(name string, fn func(ctx context.Context, env Envelope) error) *Builder {
	b.sub.ListenNameFunc(name, fn)
	return b
}

// Build merges the staged handlers and starts a new pipeline. The builder's
// options are also applied to the target registry, on top of its own, so
// delivery options such as WithMiddleware and WithJournal take effect. Every
// call starts its own worker; use Default for the process-wide dispatcher.
func (b *Builder) Build() *Dispatcher {
	reg := b.reg
	if reg == nil {
		reg = DefaultRegistry
	}
	reg.configure(b.opts...)
	b.sub.ApplyTo(reg)
	return NewDispatcher(reg, b.opts...)
}
