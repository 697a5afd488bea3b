package eventbus_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
)

func TestDispatcher_DispatchReturnsBeforeDelivery(t *testing.T) {
	reg := eventbus.NewRegistry()
	release := make(chan struct{})
	got := make(chan UserCreated, 1)
	reg.Register(eventbus.NameOf[UserCreated](), eventbus.HandlerFunc(func(_ context.Context, env eventbus.Envelope) error {
		<-release
		u, ok := eventbus.Decode[UserCreated](env)
		if ok {
			got <- u
		}
		return nil
	}))

	d := eventbus.NewDispatcher(reg)
	require.NoError(t, d.Dispatch(UserCreated{ID: "u1", Email: "a@example.com"}))

	select {
	case <-got:
		t.Fatal("handler finished before release")
	default:
	}

	close(release)
	closeDispatcher(t, d)
	assert.Equal(t, UserCreated{ID: "u1", Email: "a@example.com"}, <-got)
}

func TestDispatcher_PointerAndValueRouteTogether(t *testing.T) {
	reg := eventbus.NewRegistry()
	rec := &recorder{}
	reg.Register(eventbus.NameOf[OrderPlaced](), rec.handler("orders"))

	d := eventbus.NewDispatcher(reg)
	require.NoError(t, d.Dispatch(OrderPlaced{OrderID: "o1"}))
	require.NoError(t, d.Dispatch(&OrderPlaced{OrderID: "o2"}))
	closeDispatcher(t, d)

	assert.Equal(t, []string{"orders", "orders"}, rec.got())
}

func TestDispatcher_DispatchAs(t *testing.T) {
	reg := eventbus.NewRegistry()
	rec := &recorder{}
	reg.Register("audit", eventbus.HandlerFunc(func(_ context.Context, env eventbus.Envelope) error {
		o, ok := eventbus.Decode[OrderPlaced](env)
		assert.True(t, ok)
		rec.add(o.OrderID)
		return nil
	}))

	d := eventbus.NewDispatcher(reg)
	require.NoError(t, d.DispatchAs("audit", OrderPlaced{OrderID: "o1"}))
	require.NoError(t, d.Dispatch(OrderPlaced{OrderID: "not-audited"}))
	closeDispatcher(t, d)

	assert.Equal(t, []string{"o1"}, rec.got())
}

func TestDispatcher_DispatchEncoded(t *testing.T) {
	reg := eventbus.NewRegistry()
	seen := make(chan eventbus.Envelope, 4)
	reg.Register(eventbus.NameOf[UserCreated](), eventbus.HandlerFunc(func(_ context.Context, env eventbus.Envelope) error {
		seen <- env
		return nil
	}))

	d := eventbus.NewDispatcher(reg)

	wire, err := eventbus.EncodeEvent(UserCreated{ID: "u9"})
	require.NoError(t, err)
	original, err := eventbus.ParseEnvelope(wire)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		d.DispatchEncoded("{not json")
		d.DispatchEncoded(`{"payload":"{}"}`)
		d.DispatchEncoded(wire)
	})
	closeDispatcher(t, d)
	close(seen)

	var delivered []eventbus.Envelope
	for env := range seen {
		delivered = append(delivered, env)
	}
	require.Len(t, delivered, 1, "malformed input is dropped")
	assert.Equal(t, original, delivered[0], "the envelope is delivered unchanged")
}

func TestDispatcher_DispatchSync(t *testing.T) {
	reg := eventbus.NewRegistry()
	rec := &recorder{}
	reg.Register(eventbus.NameOf[UserCreated](), rec.handler("sync"), eventbus.Once(rec.handler("once")))

	d := eventbus.NewDispatcher(reg)
	defer closeDispatcher(t, d)

	report, err := d.DispatchSync(context.Background(), UserCreated{ID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sync", "once"}, rec.got(), "handlers ran before DispatchSync returned")
	assert.Equal(t, 2, report.Invoked)
	assert.Equal(t, 1, report.Removed)
	assert.Zero(t, d.DeliveredTotal(), "the queue was bypassed")

	report, err = d.DispatchSyncAs(context.Background(), "nobody", UserCreated{})
	require.NoError(t, err)
	assert.True(t, report.Dropped)
}

func TestDispatcher_EncodeFailure(t *testing.T) {
	d := eventbus.NewDispatcher(eventbus.NewRegistry())
	defer closeDispatcher(t, d)

	assert.ErrorIs(t, d.Dispatch(make(chan int)), eventbus.ErrEncode)
	_, err := d.DispatchSync(context.Background(), func() {})
	assert.ErrorIs(t, err, eventbus.ErrEncode)
}

func TestDispatcher_AfterClose(t *testing.T) {
	d := eventbus.NewDispatcher(eventbus.NewRegistry())
	closeDispatcher(t, d)

	assert.ErrorIs(t, d.Dispatch(UserCreated{}), eventbus.ErrClosed)
	assert.NotPanics(t, func() {
		wire, err := eventbus.EncodeEvent(UserCreated{})
		require.NoError(t, err)
		d.DispatchEncoded(wire)
	})
}

func TestDispatcher_UsesClock(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))

	reg := eventbus.NewRegistry()
	stamps := make(chan int64, 1)
	reg.Register("e", eventbus.HandlerFunc(func(_ context.Context, env eventbus.Envelope) error {
		stamps <- env.Timestamp()
		return nil
	}))

	d := eventbus.NewDispatcher(reg, eventbus.WithClock(mock))
	require.NoError(t, d.DispatchAs("e", struct{}{}))
	closeDispatcher(t, d)

	assert.Equal(t, int64(1700000000), <-stamps)
}

type upperCodec struct{ eventbus.JSONCodec }

func (c upperCodec) Encode(v any) (string, error) {
	s, err := c.JSONCodec.Encode(v)
	return "X" + s, err
}

func TestDispatcher_UsesCodec(t *testing.T) {
	reg := eventbus.NewRegistry()
	payloads := make(chan string, 1)
	reg.Register("e", eventbus.HandlerFunc(func(_ context.Context, env eventbus.Envelope) error {
		payloads <- env.Payload()
		return nil
	}))

	d := eventbus.NewDispatcher(reg, eventbus.WithCodec(upperCodec{}))
	_, err := d.DispatchSyncAs(context.Background(), "e", 1)
	require.NoError(t, err)
	closeDispatcher(t, d)

	assert.Equal(t, "X1", <-payloads)
}

func TestDispatcher_Stats(t *testing.T) {
	reg := eventbus.NewRegistry()
	reg.Register("e", &auditHandler{}, selfNamed{})

	d := eventbus.NewDispatcher(reg)
	assert.Same(t, reg, d.Registry())
	assert.NotNil(t, d.Pipeline())

	for i := 0; i < 3; i++ {
		require.NoError(t, d.DispatchAs("e", i))
	}
	closeDispatcher(t, d)

	assert.Equal(t, uint64(3), d.DeliveredTotal())
	assert.Zero(t, d.QueueDepth())
	assert.Equal(t, map[string]int{"e": 2}, d.HandlerCounts())
}

func TestDispatcher_RunOnceAcrossQueuedDispatches(t *testing.T) {
	reg := eventbus.NewRegistry()
	rec := &recorder{}
	reg.Register("Hello", eventbus.Once(rec.handler("greeter")))

	d := eventbus.NewDispatcher(reg)
	require.NoError(t, d.DispatchAs("Hello", struct{}{}))
	require.NoError(t, d.DispatchAs("Hello", struct{}{}))
	closeDispatcher(t, d)

	assert.Equal(t, []string{"greeter"}, rec.got())
	assert.Zero(t, reg.Len("Hello"))
	assert.Equal(t, uint64(2), d.DeliveredTotal())
}

func TestDispatcher_QueuedOrderAcrossProducers(t *testing.T) {
	reg := eventbus.NewRegistry()
	var (
		mu  sync.Mutex
		ids []string
	)
	reg.Register(eventbus.NameOf[OrderPlaced](), eventbus.HandlerFunc(func(_ context.Context, env eventbus.Envelope) error {
		o, ok := eventbus.Decode[OrderPlaced](env)
		if ok {
			mu.Lock()
			ids = append(ids, o.OrderID)
			mu.Unlock()
		}
		return nil
	}))

	d := eventbus.NewDispatcher(reg)
	var g errgroup.Group
	for p := range 4 {
		g.Go(func() error {
			for i := range 25 {
				if err := d.Dispatch(OrderPlaced{OrderID: fmt.Sprintf("p%d-%02d", p, i)}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	closeDispatcher(t, d)

	require.Len(t, ids, 100)
	// Each producer's events arrive in the order that producer sent them.
	last := map[string]string{}
	for _, id := range ids {
		p := id[:2]
		assert.Less(t, last[p], id)
		last[p] = id
	}
}
