package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// lazyDispatcher builds at most one Dispatcher. Construction and publication
// both happen inside once.Do, so concurrent first callers never start a
// second worker.
type lazyDispatcher struct {
	once  sync.Once
	d     atomic.Pointer[Dispatcher]
	build func(opts ...Option) *Dispatcher
}

func (l *lazyDispatcher) get(opts ...Option) *Dispatcher {
	l.once.Do(func() {
		l.d.Store(l.build(opts...))
	})
	return l.d.Load()
}

func (l *lazyDispatcher) current() (*Dispatcher, error) {
	if d := l.d.Load(); d != nil {
		return d, nil
	}
	return nil, ErrNotReady
}

func newProcessDispatcher() *lazyDispatcher {
	return &lazyDispatcher{
		build: func(opts ...Option) *Dispatcher {
			return NewBuilder(opts...).Build()
		},
	}
}

var process atomic.Pointer[lazyDispatcher]

func init() {
	process.Store(newProcessDispatcher())
}

// Default returns the process dispatcher, creating it on DefaultRegistry on
// first use. It lives until Reset.
func Default() *Dispatcher {
	return process.Load().get()
}

// Setup is Default with options. The options take effect only if this call
// creates the dispatcher, and then apply to DefaultRegistry as well; later
// calls return the existing one unchanged.
func Setup(opts ...Option) *Dispatcher {
	return process.Load().get(opts...)
}

// Current returns the process dispatcher without creating it. It returns
// ErrNotReady before Default or Setup has run.
func Current() (*Dispatcher, error) {
	return process.Load().current()
}

// MustCurrent is Current that panics with ErrNotReady.
func MustCurrent() *Dispatcher {
	d, err := Current()
	if err != nil {
		panic(err)
	}
	return d
}

// Reset drains and discards the process dispatcher so the next Default or
// Setup builds a new one. Handlers on DefaultRegistry are kept. It is meant
// for tests; handles obtained before Reset return ErrClosed afterwards.
func Reset(ctx context.Context) error {
	old := process.Swap(newProcessDispatcher())
	if d, err := old.current(); err == nil {
		return d.Close(ctx)
	}
	return nil
}
