package reporter

import (
	"context"
	"errors"
	"sync"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
)

// DefaultBuffer is the AsyncSink queue length used when none is given.
const DefaultBuffer = 256

var (
	// ErrSinkClosed is returned by Send after Close.
	ErrSinkClosed = errors.New("sink is closed")
	// ErrSinkFull is returned when the asynchronous buffer has no room.
	ErrSinkFull = errors.New("sink buffer is full")
)

// LogSink writes events to the context logger.
type LogSink struct{}

// Send implements Sink.
func (LogSink) Send(ctx context.Context, event *domain.Event) error {
	kvs := make([]any, 0, 6+2*len(event.Parameters))
	kvs = append(kvs, "id", event.ID, "uei", event.UEI, "source", event.Source)

	for _, p := range event.Parameters {
		kvs = append(kvs, p.Name, p.Value)
	}

	logger.InfoKV(ctx, "Event sent", kvs...)

	return nil
}

// MultiSink sends every event to each sink in order and joins their errors.
type MultiSink []Sink

// Send implements Sink.
func (m MultiSink) Send(ctx context.Context, event *domain.Event) error {
	var errs []error

	for _, sink := range m {
		if err := sink.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// AsyncSink decouples senders from a slow destination with a bounded buffer.
// Send never blocks: events are dropped with an error once the buffer is full.
type AsyncSink struct {
	next   Sink
	events chan *domain.Event
	// ctx carries the logger used by the delivery goroutine.
	ctx context.Context //nolint:containedctx // Background delivery outlives callers.

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the delivery goroutine forwarding to next.
func NewAsyncSink(ctx context.Context, next Sink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	s := &AsyncSink{
		next:   next,
		events: make(chan *domain.Event, buffer),
		ctx:    context.WithoutCancel(logger.WithName(ctx, "sink")),
		done:   make(chan struct{}),
	}

	go s.deliver()

	return s
}

// Send implements Sink.
func (s *AsyncSink) Send(ctx context.Context, event *domain.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.events <- event:
		return nil
	default:
		logger.WarnKV(ctx, "Dropping event, sink buffer is full", "uei", event.UEI, "id", event.ID)

		return ErrSinkFull
	}
}

// Close stops accepting events and waits until the buffered ones are delivered.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	<-s.done
}

func (s *AsyncSink) deliver() {
	defer close(s.done)

	for event := range s.events {
		if err := s.next.Send(s.ctx, event); err != nil {
			logger.WarnKV(s.ctx, "Event delivery failed", "uei", event.UEI, "id", event.ID, "error", err)
		}
	}
}
