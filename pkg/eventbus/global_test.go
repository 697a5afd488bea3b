package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
)

// These tests share DefaultRegistry and the process dispatcher, so each uses
// event types no other test registers.

type globalPing struct {
	N int `json:"n"`
}

type globalPong struct{}

var pongs = make(chan struct{}, 8)

type pongCounter struct{}

func (*pongCounter) Handle(context.Context, eventbus.Envelope) error {
	pongs <- struct{}{}
	return nil
}

func TestGlobal_DispatchAndSubscribeFunc(t *testing.T) {
	got := make(chan int, 1)
	eventbus.SubscribeFunc(globalPing{}, func(_ context.Context, env eventbus.Envelope) error {
		if p, ok := eventbus.Decode[globalPing](env); ok {
			got <- p.N
		}
		return nil
	})

	d, err := eventbus.Current()
	require.NoError(t, err, "subscribing sets up the process dispatcher")
	assert.Same(t, d, eventbus.Default())
	assert.Same(t, d, eventbus.MustCurrent())
	assert.Same(t, d, eventbus.Setup(eventbus.WithLogger(nil)), "later setup returns the existing dispatcher")
	assert.Same(t, eventbus.DefaultRegistry, d.Registry())

	require.NoError(t, eventbus.Dispatch(globalPing{N: 7}))
	select {
	case n := <-got:
		assert.Equal(t, 7, n)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestGlobal_SubscribeAndUnsubscribeByType(t *testing.T) {
	eventbus.Subscribe[globalPong, pongCounter]()
	eventbus.SubscribeWith(globalPong{}, &pongCounter{})
	require.Equal(t, 2, eventbus.DefaultRegistry.Len(eventbus.NameOf[globalPong]()))

	require.NoError(t, eventbus.DispatchAs(eventbus.NameOf[globalPong](), globalPong{}))
	for i := 0; i < 2; i++ {
		select {
		case <-pongs:
		case <-time.After(5 * time.Second):
			t.Fatal("event not delivered")
		}
	}

	assert.True(t, eventbus.Unsubscribe[globalPong, pongCounter]())
	assert.True(t, eventbus.Unsubscribe[globalPong, pongCounter]())
	assert.False(t, eventbus.Unsubscribe[globalPong, pongCounter]())
	assert.Zero(t, eventbus.DefaultRegistry.Len(eventbus.NameOf[globalPong]()))
}
