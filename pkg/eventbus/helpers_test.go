package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
)

type UserCreated struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type OrderPlaced struct {
	OrderID string `json:"order_id"`
	Amount  int    `json:"amount"`
}

// recorder collects handler tags in invocation order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(tag string) {
	r.mu.Lock()
	r.calls = append(r.calls, tag)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// handler returns a handler named tag that records its invocations.
func (r *recorder) handler(tag string) eventbus.Handler {
	return eventbus.Named(tag, eventbus.HandlerFunc(func(context.Context, eventbus.Envelope) error {
		r.add(tag)
		return nil
	}))
}

// closeDispatcher drains d, failing the test if it takes too long.
func closeDispatcher(t *testing.T, d *eventbus.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func envelopeFor(t *testing.T, event any) eventbus.Envelope {
	t.Helper()
	wire, err := eventbus.EncodeEvent(event)
	require.NoError(t, err)
	env, err := eventbus.ParseEnvelope(wire)
	require.NoError(t, err)
	return env
}
