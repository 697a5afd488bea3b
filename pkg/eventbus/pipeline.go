package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// Pipeline owns an unbounded FIFO of envelopes and the single worker
// goroutine that drains it into a Registry.
//
// Enqueue never blocks on delivery. Envelopes are delivered one at a time in
// the order they were enqueued.
type Pipeline struct {
	reg  *Registry
	opts options

	mu     sync.Mutex
	queue  []Envelope
	closed bool
	notify chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	delivered atomic.Uint64
}

// NewPipeline starts a worker delivering into reg.
func NewPipeline(reg *Registry, opts ...Option) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		reg:    reg,
		opts:   newOptions(opts),
		notify: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue appends env to the queue. It fails only after Close.
func (p *Pipeline) Enqueue(env Envelope) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, env)
	p.mu.Unlock()

	p.signal()
	return nil
}

func (p *Pipeline) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pipeline) run() {
	defer close(p.done)
	defer p.cancel()
	for {
		env, ok := p.next()
		if !ok {
			observability.LogPipelineClosed(p.opts.log(), p.delivered.Load())
			return
		}
		p.deliver(env)
		p.delivered.Add(1)
	}
}

// next blocks until an envelope is available. It returns false once the
// pipeline is closed and the queue is empty.
func (p *Pipeline) next() (Envelope, bool) {
	p.mu.Lock()
	for len(p.queue) == 0 {
		if p.closed {
			p.mu.Unlock()
			return Envelope{}, false
		}
		p.mu.Unlock()
		<-p.notify
		p.mu.Lock()
	}
	env := p.queue[0]
	p.queue[0] = Envelope{}
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		p.queue = nil
	}
	p.mu.Unlock()
	return env, true
}

// deliver keeps the worker alive if something outside a handler panics, such
// as a policy method.
func (p *Pipeline) deliver(env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			p.opts.log().Error("delivery aborted",
				slog.String("event", env.EventName()),
				slog.String("envelope_id", env.ID()),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	p.reg.Deliver(p.ctx, env)
}

// Close stops accepting envelopes and waits for the worker to deliver what
// is already queued. If ctx ends first, the context handed to handlers is
// cancelled and ctx's error is returned; the worker still finishes the
// remaining envelopes in the background. Close is safe to call repeatedly.
func (p *Pipeline) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.signal()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("drain pipeline: %w", ctx.Err())
	}
}

// Done is closed when the worker has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Depth returns the number of envelopes waiting for the worker.
func (p *Pipeline) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Delivered returns the number of envelopes the worker has processed.
func (p *Pipeline) Delivered() uint64 {
	return p.delivered.Load()
}
