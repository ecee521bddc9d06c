package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// deliveryTimeout bounds a single sink call so a stuck observer cannot
// wedge the drain on Close. Tests shorten it.
var deliveryTimeout = 5 * time.Second

// Dispatcher asynchronously forwards state-change events to a sink so a
// slow observer never blocks the auth engine. Shutdown is context driven:
// Close cancels the run loop, which flushes whatever is still buffered
// before stopping, and each delivery runs under its own bounded context.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	ch      chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher creates a running dispatcher, or nil when disabled. A nil
// Dispatcher is safe to use; all methods become no-ops.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		ch:         make(chan Event, cfg.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
	}
	go d.run(ctx)
	return d
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.stopped)

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-ctx.Done():
			d.flush()
			return
		}
	}
}

// flush delivers whatever Emit enqueued before shutdown began.
func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver hands one event to the sink under a bounded context.
func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	d.sink.Emit(ctx, event)
	cancel()
	d.delivered.Add(1)
}

// Emit enqueues an event. With DropIfFull set, a full buffer drops the
// event and counts it instead of blocking the caller.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.ctx.Err() != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.ch <- event:
		case <-d.ctx.Done():
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.ctx.Done():
	}
}

// Close stops the dispatcher after the buffered events are flushed to the
// sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.cancel()
		<-d.stopped
	})
}

// Dropped returns how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns how many events reached the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
