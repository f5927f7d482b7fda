package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
	"github.com/oshokin/opcua-alarms/internal/logger"
	"github.com/oshokin/opcua-alarms/internal/metrics"
)

// DefaultQueueSize is used when a non-positive size is requested.
const DefaultQueueSize = 1024

// ErrClosed is returned when starting a closed dispatcher.
var ErrClosed = errors.New("dispatcher is closed")

// Sink receives delivered notifications.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Send delivers one notification. The notification is shared between sinks
	// and must not be modified.
	Send(ctx context.Context, n *event.Notification) error
}

// Dispatcher queues notifications and delivers them to every sink in order
// from a single goroutine. Dispatch never blocks: when the queue is full the
// notification is dropped and counted.
type Dispatcher struct {
	sinks []Sink
	queue chan *event.Notification

	// mu guards closed and the send side of queue.
	mu     sync.RWMutex
	closed bool

	started sync.Once
	done    chan struct{}
}

// New creates a dispatcher with a bounded queue.
func New(size int, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Dispatcher{
		sinks: sinks,
		queue: make(chan *event.Notification, size),
		done:  make(chan struct{}),
	}
}

// Start launches the delivery goroutine. ctx carries the logger; its cancellation
// does not stop delivery, Close does.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return ErrClosed
	}

	d.started.Do(func() {
		go d.run(context.WithoutCancel(logger.WithName(ctx, "dispatch")))
	})

	return nil
}

// Dispatch enqueues a notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n *event.Notification) {
	if n == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		logger.WarnKV(ctx, "Notification dispatched after close", "type", n.TypeName)
		metrics.IncDropped()

		return
	}

	metrics.IncTriggered(n.TypeName)

	select {
	case d.queue <- n:
		metrics.SetQueueLength(len(d.queue))
	default:
		logger.WarnKV(ctx, "Dispatch queue is full, notification dropped",
			"type", n.TypeName,
			"source", n.SourceName,
		)
		metrics.IncDropped()
	}
}

// Close stops accepting notifications and waits until the queued ones are delivered
// or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()

	if !d.closed {
		d.closed = true
		close(d.queue)
	}

	d.mu.Unlock()

	// Drain here when the worker never started.
	d.started.Do(func() {
		go d.run(context.WithoutCancel(ctx))
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued notifications.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for n := range d.queue {
		metrics.SetQueueLength(len(d.queue))
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *event.Notification) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, n); err != nil {
			logger.WarnKV(ctx, "Sink delivery failed",
				"sink", sink.Name(),
				"type", n.TypeName,
				"error", err,
			)
			metrics.IncSinkError(sink.Name())
		}
	}
}
