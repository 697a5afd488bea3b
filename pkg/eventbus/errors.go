package eventbus

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrClosed is returned when dispatching through a pipeline that has
	// been closed.
	ErrClosed = errors.New("eventbus: dispatcher closed")

	// ErrNotReady is returned by Current before the process dispatcher has
	// been set up.
	ErrNotReady = errors.New("eventbus: dispatcher not set up")

	// ErrEncode wraps codec failures while building an envelope.
	ErrEncode = errors.New("eventbus: encode event")

	// ErrMalformedEnvelope is returned when wire input is not a valid envelope.
	ErrMalformedEnvelope = errors.New("eventbus: malformed envelope")
)

// HandlerError describes a handler invocation that returned an error or
// panicked. It is logged and journaled; delivery continues regardless.
type HandlerError struct {
	EventName  string
	EnvelopeID string
	Handler    string
	Err        error
	// Panic holds the recovered value when the handler panicked.
	Panic any
}

// Error implements error interface.
func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("event %s (%s): handler %s panicked: %v", e.EventName, e.EnvelopeID, e.Handler, e.Panic)
	}
	return fmt.Sprintf("event %s (%s): handler %s: %v", e.EventName, e.EnvelopeID, e.Handler, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the handler panicked rather than returning an error.
func (e *HandlerError) Panicked() bool {
	return e.Panic != nil
}
