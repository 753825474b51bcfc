package reporter

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
)

const (
	// Source is the emitter name set on every reported event.
	Source = "shellexec"
	// UEISuccess is reported when a command ran to completion.
	UEISuccess = "uei.opennms.org/shellexecutor/executionSuccessful"
	// UEIFailure is reported when a command did not finish.
	UEIFailure = "uei.opennms.org/shellexecutor/executionFailed"
)

// Event parameter names.
const (
	ParamReductionKey  = "reductionKey"
	ParamCommandOutput = "commandOutput"
	ParamCommand       = "command"
	ParamPID           = "pid"
)

// Sink delivers events to their destination.
type Sink interface {
	Send(ctx context.Context, event *domain.Event) error
}

// Reporter turns execution outcomes into events for one executor instance.
type Reporter struct {
	sink    Sink
	pid     string
	command string
	now     func() time.Time
}

// New returns a reporter sending through sink.
func New(sink Sink, pid, command string) *Reporter {
	return &Reporter{
		sink:    sink,
		pid:     pid,
		command: command,
		now:     time.Now,
	}
}

// Event builds the event for one execution outcome.
func (r *Reporter) Event(reductionKey string, finished bool, output string) *domain.Event {
	uei := UEIFailure
	if finished {
		uei = UEISuccess
	}

	return &domain.Event{
		ID:     uuid.NewString(),
		UEI:    uei,
		Source: Source,
		Time:   r.now(),
		Parameters: []domain.Parameter{
			{Name: ParamReductionKey, Value: reductionKey},
			{Name: ParamCommandOutput, Value: output},
			{Name: ParamCommand, Value: r.command},
			{Name: ParamPID, Value: r.pid},
		},
	}
}

// Report emits one event for an execution outcome. Send failures are logged, not returned.
func (r *Reporter) Report(ctx context.Context, reductionKey string, finished bool, output string) {
	event := r.Event(reductionKey, finished, output)

	if err := r.sink.Send(ctx, event); err != nil {
		logger.WarnKV(ctx, "Failed to report execution event",
			"uei", event.UEI, "reduction_key", reductionKey, "error", err)
	}
}
