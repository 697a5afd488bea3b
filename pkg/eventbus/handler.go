package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Handler reacts to envelopes of the event names it is registered for.
//
// Handle runs on the pipeline worker goroutine (or on the caller's goroutine
// for DispatchSync). Handlers of one envelope run one after another, so a slow
// handler delays every envelope queued behind it. A returned error or a panic
// is logged and journaled but does not stop delivery to later handlers.
//
// A handler must not register, unsubscribe, or DispatchSync for the event
// name it is currently handling: the bucket is locked for the whole walk and
// the lock is not reentrant. Other event names are fine.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// Identifier overrides a handler's identity. The default identity is the
// handler's type name without a leading '*'. Unsubscribe matches on identity.
type Identifier interface {
	HandlerID() string
}

// OnceHandler marks a handler for removal after its first invocation.
type OnceHandler interface {
	Once() bool
}

// PropagationHandler stops delivery to later handlers of the same envelope
// when Propagate returns false.
type PropagationHandler interface {
	Propagate() bool
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle calls f(ctx, env).
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// HandlerID returns the function's symbol name, which is distinct for every
// closure literal.
func (f HandlerFunc) HandlerID() string {
	if fn := runtime.FuncForPC(reflect.ValueOf(f).Pointer()); fn != nil {
		return fn.Name()
	}
	return "eventbus.HandlerFunc"
}

// HandlerID returns h's identity.
func HandlerID(h Handler) string {
	if id, ok := h.(Identifier); ok {
		return id.HandlerID()
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", h), "*")
}

func runsOnce(h Handler) bool {
	o, ok := h.(OnceHandler)
	return ok && o.Once()
}

func propagates(h Handler) bool {
	p, ok := h.(PropagationHandler)
	return !ok || p.Propagate()
}

// policy overrides one or more lifecycle flags of the wrapped handler.
type policy struct {
	next Handler
	id   string
	once bool
	stop bool
}

func (p *policy) Handle(ctx context.Context, env Envelope) error {
	return p.next.Handle(ctx, env)
}

func (p *policy) HandlerID() string {
	if p.id != "" {
		return p.id
	}
	return HandlerID(p.next)
}

func (p *policy) Once() bool { return p.once || runsOnce(p.next) }

func (p *policy) Propagate() bool { return !p.stop && propagates(p.next) }

// Once wraps h so that it is removed after its first invocation.
func Once(h Handler) Handler {
	return &policy{next: h, once: true}
}

// StopPropagation wraps h so that no later handler sees an envelope h handled.
func StopPropagation(h Handler) Handler {
	return &policy{next: h, stop: true}
}

// Named wraps h with an explicit identity.
func Named(id string, h Handler) Handler {
	return &policy{next: h, id: id}
}
