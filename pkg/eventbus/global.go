package eventbus

import (
	"context"
)

// Dispatch queues event on the process dispatcher.
func Dispatch(event any) error {
	return Default().Dispatch(event)
}

// DispatchAs queues event on the process dispatcher under an explicit name.
func DispatchAs(name string, event any) error {
	return Default().DispatchAs(name, event)
}

// Subscribe registers a new zero-valued HT for event type E on DefaultRegistry.
func Subscribe[E any, HT any, H handlerPtr[HT]]() {
	Listen[E, HT, H](NewSubscriber()).Apply()
}

// SubscribeWith registers h for the event type of event on DefaultRegistry.
func SubscribeWith(event any, h Handler) {
	NewSubscriber().ListenWith(event, h).Apply()
}

// SubscribeFunc registers fn for the event type of event on DefaultRegistry.
func SubscribeFunc(event any, fn func(ctx context.Context, env Envelope) error) {
	NewSubscriber().ListenFunc(event, fn).Apply()
}

// Unsubscribe removes the first HT handler registered for E on
// DefaultRegistry.
func Unsubscribe[E any, HT any, H handlerPtr[HT]]() bool {
	return DefaultRegistry.Unsubscribe(NameOf[E](), HandlerID(H(new(HT))))
}
