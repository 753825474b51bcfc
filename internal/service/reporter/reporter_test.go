package reporter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
)

var errTestSend = errors.New("test send error")

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []*domain.Event
	err    error
	// gate, when set, blocks Send until closed.
	gate chan struct{}
}

func (r *recordingSink) Send(_ context.Context, event *domain.Event) error {
	if r.gate != nil {
		<-r.gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return r.err
}

func (r *recordingSink) received() []*domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*domain.Event(nil), r.events...)
}

// TestReporter_Event checks the UEI choice and the ordered parameters.
func TestReporter_Event(t *testing.T) {
	t.Parallel()

	r := New(LogSink{}, "pager", "notify.sh")

	ok := r.Event("K1", true, "sent\n")
	require.Equal(t, UEISuccess, ok.UEI)
	require.Equal(t, Source, ok.Source)
	require.False(t, ok.Time.IsZero())
	require.NoError(t, uuid.Validate(ok.ID))
	require.Equal(t, []domain.Parameter{
		{Name: ParamReductionKey, Value: "K1"},
		{Name: ParamCommandOutput, Value: "sent\n"},
		{Name: ParamCommand, Value: "notify.sh"},
		{Name: ParamPID, Value: "pager"},
	}, ok.Parameters)

	failed := r.Event("K1", false, "")
	require.Equal(t, UEIFailure, failed.UEI)
	require.NotEqual(t, ok.ID, failed.ID)
}

// TestReporter_ReportSwallowsSinkErrors verifies a failing sink does not surface to callers.
func TestReporter_ReportSwallowsSinkErrors(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errTestSend}
	New(sink, "pager", "notify.sh").Report(t.Context(), "K1", true, "out\n")

	events := sink.received()
	require.Len(t, events, 1)

	output, ok := events[0].Param(ParamCommandOutput)
	require.True(t, ok)
	require.Equal(t, "out\n", output)
}

// TestMultiSink_JoinsErrors sends to every sink even when one fails.
func TestMultiSink_JoinsErrors(t *testing.T) {
	t.Parallel()

	first := &recordingSink{err: errTestSend}
	second := new(recordingSink)

	err := MultiSink{first, LogSink{}, second}.Send(t.Context(), &domain.Event{UEI: UEISuccess})
	require.ErrorIs(t, err, errTestSend)
	require.Len(t, first.received(), 1)
	require.Len(t, second.received(), 1)
}

// TestAsyncSink_DeliversInOrderAndDrainsOnClose checks buffered delivery and Close semantics.
func TestAsyncSink_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	t.Parallel()

	next := new(recordingSink)
	sink := NewAsyncSink(t.Context(), next, 8)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, sink.Send(t.Context(), &domain.Event{ID: id}))
	}

	sink.Close()
	sink.Close()

	events := next.received()
	require.Len(t, events, 3)
	require.Equal(t, "a", events[0].ID)
	require.Equal(t, "c", events[2].ID)

	require.ErrorIs(t, sink.Send(t.Context(), &domain.Event{ID: "late"}), ErrSinkClosed)
}

// TestAsyncSink_DropsWhenFull verifies Send never blocks on a stalled destination.
func TestAsyncSink_DropsWhenFull(t *testing.T) {
	t.Parallel()

	next := &recordingSink{gate: make(chan struct{})}
	sink := NewAsyncSink(t.Context(), next, 1)

	// The first event is picked up by the delivery goroutine and blocks on the gate,
	// so at most two further events fit before the buffer is full.
	var dropped int

	for range 5 {
		if err := sink.Send(t.Context(), &domain.Event{UEI: UEISuccess}); errors.Is(err, ErrSinkFull) {
			dropped++
		}
	}

	require.GreaterOrEqual(t, dropped, 3)

	close(next.gate)
	sink.Close()
	require.Len(t, next.received(), 5-dropped)
}
