package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of blocking
	// the caller. Event types listed in Critical are never discarded.
	DropIfFull bool
	Critical   []string
}

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	Queued     int
	Dropped    uint64
	SinkPanics uint64
	// DroppedByType breaks Dropped down by event type.
	DroppedByType map[string]uint64
}

// Dispatcher hands events to a Sink on one goroutine in emission order.
type Dispatcher struct {
	sink     Sink
	dropFull bool
	critical map[string]struct{}

	// mu guards closed and every send on queue, so Close never races a send.
	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	stopped chan struct{}

	dropped    atomic.Uint64
	sinkPanics atomic.Uint64
	byTypeMu   sync.Mutex
	byType     map[string]uint64
}

// NewDispatcher returns nil when auditing is disabled; every method is
// safe on a nil *Dispatcher.
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

	d := &Dispatcher{
		sink:     sink,
		dropFull: cfg.DropIfFull,
		critical: make(map[string]struct{}, len(cfg.Critical)),
		queue:    make(chan Event, cfg.BufferSize),
		stopped:  make(chan struct{}),
		byType:   make(map[string]uint64),
	}
	for _, t := range cfg.Critical {
		d.critical[t] = struct{}{}
	}

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for event := range d.queue {
		d.deliver(event)
	}
}

// deliver isolates the dispatcher from a misbehaving sink.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if recover() != nil {
			d.sinkPanics.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. A critical event blocks until queued or ctx ends,
// whatever DropIfFull says. Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	_, critical := d.critical[event.EventType]
	if d.dropFull && !critical {
		select {
		case d.queue <- event:
		default:
			d.drop(event.EventType)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event.EventType)
	}
}

func (d *Dispatcher) drop(eventType string) {
	d.dropped.Add(1)
	d.byTypeMu.Lock()
	d.byType[eventType]++
	d.byTypeMu.Unlock()
}

// Close stops accepting events, delivers what is queued and waits for the
// sink to finish. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped reports events discarded by a full buffer or a cancelled caller.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{DroppedByType: map[string]uint64{}}
	}
	d.byTypeMu.Lock()
	byType := make(map[string]uint64, len(d.byType))
	for k, v := range d.byType {
		byType[k] = v
	}
	d.byTypeMu.Unlock()

	return Stats{
		Queued:        len(d.queue),
		Dropped:       d.dropped.Load(),
		SinkPanics:    d.sinkPanics.Load(),
		DroppedByType: byType,
	}
}
