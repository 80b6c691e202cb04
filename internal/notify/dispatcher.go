package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/observability"
)

// EventSink accepts fan-out events. Satisfied by Dispatcher; tests swap in
// a synchronous recorder.
type EventSink interface {
	Enqueue(evt Event)
}

// defaultBuffer is the event queue depth when the caller passes 0.
const defaultBuffer = 256

// dispatchTimeout bounds the processing of a single event so a hung SMTP
// relay cannot stall the queue forever.
const dispatchTimeout = 30 * time.Second

// Dispatcher decouples lifecycle transitions from notification fan-out. A
// transition enqueues an event and returns immediately; a background worker
// drains the queue. The queue is lossy under pressure: a full buffer drops
// the event with a log line and a counter bump rather than blocking the
// caller.
type Dispatcher struct {
	fanout *Fanout
	events chan Event
	log    *slog.Logger

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher returns a Dispatcher feeding the given Fanout. buffer <= 0
// selects the default queue depth.
func NewDispatcher(fanout *Fanout, buffer int, log *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		fanout: fanout,
		events: make(chan Event, buffer),
		log:    log,
	}
}

// Start launches the background worker. It is safe to call once; the worker
// exits when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run(ctx)
	})
}

// Enqueue queues an event without blocking. An empty ID and zero
// OccurredAt are filled in here so callers can stay terse.
func (d *Dispatcher) Enqueue(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	select {
	case d.events <- evt:
	default:
		observability.NotificationDrops.WithLabelValues("queue_full").Inc()
		d.log.Warn("notification event dropped, queue full",
			slog.String("event_id", evt.ID),
			slog.String("event_type", string(evt.Type)),
			slog.Uint64("request_id", uint64(evt.RequestID)),
		)
	}
}

// Shutdown waits for the worker to finish draining, up to ctx's deadline.
// Start's context must be cancelled first or Shutdown will wait forever.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-d.events:
			d.process(evt)
		}
	}
}

// process handles one event with panic isolation. The fan-out runs on a
// fresh context: the HTTP request that produced the event is long gone.
func (d *Dispatcher) process(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			observability.NotificationDrops.WithLabelValues("panic").Inc()
			d.log.Error("notification fan-out panicked",
				slog.String("event_id", evt.ID),
				slog.String("event_type", string(evt.Type)),
				slog.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	d.fanout.Dispatch(ctx, evt)
}
