/*
Package eventbus is an in-process publish/subscribe event bus.

Producers dispatch typed event values. Each value is encoded once into an
Envelope and queued. A single worker goroutine delivers queued envelopes, in
order, to the handlers registered for the envelope's event name. Handlers
decode the payload back into the concrete type with Decode.

# Quick Start

	type UserCreated struct {
	    ID    string `json:"id"`
	    Email string `json:"email"`
	}

	reg := eventbus.NewRegistry()
	d := eventbus.NewBuilder().
	    WithRegistry(reg).
	    ListenFunc(UserCreated{}, func(ctx context.Context, env eventbus.Envelope) error {
	        u, ok := eventbus.Decode[UserCreated](env)
	        if !ok {
	            return nil
	        }
	        return sendWelcome(ctx, u.Email)
	    }).
	    Build()
	defer d.Close(context.Background())

	_ = d.Dispatch(UserCreated{ID: "u1", Email: "a@example.com"})

# Event Names

Handlers are keyed by event name. By default the name is the event's fully
qualified Go type name, e.g. "example.com/app/users.UserCreated". A type can
pick its own name by implementing NamedEvent.

# Handler Policy

Three optional interfaces adjust how the registry treats a handler:

  - Identifier: identity used by Unsubscribe (default: type name)
  - OnceHandler: removed after its first invocation
  - PropagationHandler: later handlers are skipped for that envelope

The Once, StopPropagation, and Named wrappers apply the same policies to any
handler, including a HandlerFunc.

# Faults

A handler that returns an error or panics does not affect other handlers or
the worker. The fault is logged, counted, and written to the journal if one
is configured.

# Middleware

WithMiddleware wraps every invocation. LoggingMiddleware, TimeoutMiddleware,
and RetryMiddleware are provided. Retries happen inside one invocation and
hold up the worker while backing off.

# Process Dispatcher

Default returns a process-wide Dispatcher on DefaultRegistry, created on first
use. Concurrent first calls create exactly one. The package-level Dispatch,
Subscribe, SubscribeWith, SubscribeFunc, and Unsubscribe helpers use it.
Reset drains it and lets the next call build a fresh one, which is mainly
useful in tests. Code that prefers explicit wiring can build its own Registry
and Dispatcher or use Module with fx.

# Limitations

Delivery is sequential. A handler that never returns stalls every later
envelope. A handler must not register, unsubscribe, or DispatchSync for the
event name it is handling; the registry would deadlock. Envelopes still queued
when the process exits are lost.
*/
package eventbus
