package eventbus_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
	"github.com/randalmurphal/eventbus/pkg/eventbus/journal"
)

var welcomes atomic.Int32

type welcomeMailer struct{}

func (*welcomeMailer) Handle(_ context.Context, env eventbus.Envelope) error {
	if _, ok := eventbus.Decode[UserCreated](env); ok {
		welcomes.Add(1)
	}
	return nil
}

func TestSubscriber_ApplyTo(t *testing.T) {
	reg := eventbus.NewRegistry()
	rec := &recorder{}

	sub := eventbus.NewSubscriber().
		ListenWith(UserCreated{}, rec.handler("with")).
		ListenFunc(UserCreated{}, func(context.Context, eventbus.Envelope) error {
			rec.add("func")
			return nil
		}).
		ListenName("custom", rec.handler("name")).
		ListenNameFunc("custom", func(context.Context, eventbus.Envelope) error {
			rec.add("namefunc")
			return nil
		})
	assert.Equal(t, 4, sub.Len())
	assert.Zero(t, reg.Len("custom"), "nothing is visible before apply")

	sub.ApplyTo(reg)
	assert.Zero(t, sub.Len())
	assert.Equal(t, 2, reg.Len(eventbus.NameOf[UserCreated]()))
	assert.Len(t, reg.Handlers("custom"), 2)

	sub.ApplyTo(reg)
	assert.Equal(t, 2, reg.Len("custom"), "applying twice adds nothing")

	ctx := context.Background()
	reg.Deliver(ctx, envelopeFor(t, UserCreated{ID: "u1"}))
	reg.Deliver(ctx, eventbus.NewEnvelope("{}", "custom"))
	assert.Equal(t, []string{"with", "func", "name", "namefunc"}, rec.got())
}

func TestSubscriber_MergeIsAdditive(t *testing.T) {
	reg := eventbus.NewRegistry()
	rec := &recorder{}
	reg.Register("e", rec.handler("existing"))

	eventbus.NewSubscriber().ListenName("e", rec.handler("added")).ApplyTo(reg)

	assert.Equal(t, []string{"existing", "added"}, reg.Handlers("e"))
}

func TestSubscriber_Subscribe(t *testing.T) {
	rec := &recorder{}
	inner := eventbus.NewSubscriber().
		ListenName("e", rec.handler("inner1")).
		ListenName("f", rec.handler("inner2"))
	outer := eventbus.NewSubscriber().
		ListenName("e", rec.handler("outer")).
		Subscribe(inner).
		Subscribe(nil)

	assert.Zero(t, inner.Len(), "folded subscriber is emptied")
	assert.Equal(t, 3, outer.Subscribe(outer).Len())

	reg := eventbus.NewRegistry()
	outer.ApplyTo(reg)
	assert.Equal(t, []string{"outer", "inner1"}, reg.Handlers("e"))
	assert.Equal(t, []string{"inner2"}, reg.Handlers("f"))
}

func TestListen_Generic(t *testing.T) {
	reg := eventbus.NewRegistry()
	sub := eventbus.NewSubscriber()
	eventbus.Listen[UserCreated, welcomeMailer](sub)
	eventbus.ListenNamed[welcomeMailer](sub, "signup")
	sub.ApplyTo(reg)

	assert.Equal(t, []string{"eventbus_test.welcomeMailer"}, reg.Handlers(eventbus.NameOf[UserCreated]()))
	assert.Equal(t, 1, reg.Len("signup"))

	before := welcomes.Load()
	reg.Deliver(context.Background(), envelopeFor(t, UserCreated{ID: "u1"}))
	assert.Equal(t, before+1, welcomes.Load())

	assert.True(t, reg.Unsubscribe(eventbus.NameOf[UserCreated](), eventbus.HandlerID(&welcomeMailer{})))
}

func TestBuilder_Build(t *testing.T) {
	reg := eventbus.NewRegistry()
	rec := &recorder{}

	extra := eventbus.NewSubscriber().ListenName("e", rec.handler("sub"))
	d := eventbus.NewBuilder().
		WithRegistry(reg).
		ListenName("e", rec.handler("name")).
		ListenNameFunc("e", func(context.Context, eventbus.Envelope) error {
			rec.add("namefunc")
			return nil
		}).
		ListenWith(OrderPlaced{}, rec.handler("with")).
		ListenFunc(OrderPlaced{}, func(context.Context, eventbus.Envelope) error {
			rec.add("func")
			return nil
		}).
		Subscribe(extra).
		Build()

	assert.Same(t, reg, d.Registry())
	require.NoError(t, d.DispatchAs("e", nil))
	require.NoError(t, d.Dispatch(OrderPlaced{}))
	closeDispatcher(t, d)

	assert.Equal(t, []string{"name", "namefunc", "sub", "with", "func"}, rec.got())
}

func TestBuilder_EachBuildHasItsOwnPipeline(t *testing.T) {
	reg := eventbus.NewRegistry()
	b := eventbus.NewBuilder().WithRegistry(reg)

	d1, d2 := b.Build(), b.Build()
	assert.NotSame(t, d1.Pipeline(), d2.Pipeline())
	closeDispatcher(t, d1)
	closeDispatcher(t, d2)
}

func TestBuilder_OptionsReachRegistry(t *testing.T) {
	reg := eventbus.NewRegistry()
	store := journal.NewMemoryStore()
	var wrapped atomic.Int32
	mw := func(next eventbus.Handler) eventbus.Handler {
		return eventbus.HandlerFunc(func(ctx context.Context, env eventbus.Envelope) error {
			wrapped.Add(1)
			return next.Handle(ctx, env)
		})
	}

	d := eventbus.NewBuilder(eventbus.WithMiddleware(mw), eventbus.WithJournal(store, false)).
		WithRegistry(reg).
		ListenNameFunc("e", func(context.Context, eventbus.Envelope) error { return nil }).
		Build()
	defer closeDispatcher(t, d)

	report, err := d.DispatchSyncAs(context.Background(), "e", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Invoked)
	assert.Equal(t, int32(1), wrapped.Load())
	assert.Equal(t, 1, store.Len())

	// Direct deliveries on the registry use the same options.
	reg.Deliver(context.Background(), eventbus.NewEnvelope("null", "e"))
	assert.Equal(t, int32(2), wrapped.Load())
}
