package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/config"
	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/metrics"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/environment"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/filter"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/queue"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/reporter"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/runner"
)

var (
	// ErrFilter wraps filter evaluation failures returned from NewOrUpdated.
	ErrFilter = errors.New("filter alarm")
	// ErrExecution wraps failures of synchronously executed commands.
	ErrExecution = errors.New("execute command")
	// ErrAlarmRequired is returned when a callback receives no alarm.
	ErrAlarmRequired = errors.New("alarm must be provided")
	// ErrClosed is returned by callbacks after Close.
	ErrClosed = errors.New("executor is closed")
)

// CommandRunner runs one command to completion.
type CommandRunner interface {
	Execute(ctx context.Context, req runner.Request) runner.Result
}

// Executor reacts to alarm lifecycle callbacks for one configured instance: it filters alarms,
// defers triggers by the hold-down delay, cancels them on acknowledge or resolve and runs the
// command for everything else.
type Executor struct {
	pid        string
	command    string
	timeout    time.Duration
	holdDown   time.Duration
	scriptsDir string

	predicate filter.Predicate
	builder   *environment.Builder
	queue     *queue.DelayQueue
	reporter  *reporter.Reporter
	runner    CommandRunner
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger

	// filtered holds the ids of alarms the predicate rejected, as int keys.
	filtered sync.Map

	// lifetime ends on Close or when the construction context is cancelled.
	lifetime  context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures an Executor.
type Option func(*Executor)

// WithRunner replaces the process runner.
func WithRunner(r CommandRunner) Option {
	return func(e *Executor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithScriptsDir sets the working directory commands are started in.
func WithScriptsDir(dir string) Option {
	return func(e *Executor) {
		if dir != "" {
			e.scriptsDir = dir
		}
	}
}

// WithMetrics records executor activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithPredicate replaces the filter compiled from the instance configuration.
func WithPredicate(p filter.Predicate) Option {
	return func(e *Executor) {
		if p != nil {
			e.predicate = p
		}
	}
}

// New builds an executor for one instance and starts its background consumer.
// The consumer stops when ctx is cancelled or Close is called.
func New(
	ctx context.Context,
	sink reporter.Sink,
	client config.Client,
	svc config.Executor,
	opts ...Option,
) (*Executor, error) {
	if svc.PID == "" {
		return nil, config.ErrPIDRequired
	}

	if svc.Command == "" {
		return nil, fmt.Errorf("%w: %s", config.ErrCommandRequired, svc.PID)
	}

	alarmFilter, err := filter.New(svc.Filter)
	if err != nil {
		return nil, fmt.Errorf("executor %s: %w", svc.PID, err)
	}

	timeout := svc.Timeout
	if timeout <= 0 {
		timeout = config.DefaultCommandTimeout
	}

	ctx = logger.WithKV(logger.WithName(ctx, "executor"), "pid", svc.PID)

	if svc.LogLevel != "" {
		level, ok := logger.ParseLogLevel(svc.LogLevel)
		if !ok {
			return nil, fmt.Errorf("executor %s: unknown log level %q", svc.PID, svc.LogLevel)
		}

		ctx = logger.WithOptions(ctx, logger.WithLevel(level))
	}

	e := &Executor{
		pid:        svc.PID,
		command:    svc.Command,
		timeout:    timeout,
		holdDown:   svc.HoldDownDelay,
		scriptsDir: config.DefaultScriptsDir,
		predicate:  alarmFilter,
		builder:    environment.NewBuilder(client, svc.Command),
		queue:      queue.New(),
		reporter:   reporter.New(sink, svc.PID, svc.Command),
		runner:     runner.New(),
		log:        logger.FromContext(ctx),
		done:       make(chan struct{}),
	}

	if !alarmFilter.HasExpression() {
		logger.Warn(ctx, "No filter expression configured, alarms will not be forwarded")
	}

	for _, opt := range opts {
		opt(e)
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	e.lifetime = consumerCtx
	e.cancel = cancel

	go e.consume(consumerCtx)

	logger.InfoKV(ctx, "Executor started",
		"command", e.command, "timeout", e.timeout.String(),
		"hold_down_delay", e.holdDown.String(), "scripts_dir", e.scriptsDir)

	return e, nil
}

// PID returns the instance identifier.
func (e *Executor) PID() string {
	return e.pid
}

// Snapshot receives the full set of current alarms. Pending state is not reconciled against it.
func (e *Executor) Snapshot(ctx context.Context, alarms []*domain.Alarm) error {
	ctx = e.withLogger(ctx)

	logger.DebugKV(ctx, "Alarm snapshot received, not reconciled", "alarms", len(alarms))

	return nil
}

// NewOrUpdated handles a new or changed alarm.
func (e *Executor) NewOrUpdated(ctx context.Context, a *domain.Alarm) error {
	if a == nil {
		return ErrAlarmRequired
	}

	if e.closed() {
		return ErrClosed
	}

	ctx = logger.WithKV(e.withLogger(ctx), "alarm_id", a.ID, "reduction_key", a.ReductionKey)

	matched, err := e.predicate.Match(a)
	if err != nil {
		logger.ErrorKV(ctx, "Filter evaluation failed", "error", err)

		return fmt.Errorf("%w %d: %w", ErrFilter, a.ID, err)
	}

	if !matched {
		e.filtered.Store(a.ID, struct{}{})
		e.metrics.AlarmFiltered(e.pid)

		// A trigger queued before the alarm stopped matching must not fire.
		if e.queue.RemoveByKey(a.ReductionKey) {
			e.taskCancelled(ctx, "filtered")
		}

		logger.Debug(ctx, "Alarm filtered")

		return nil
	}

	e.filtered.Delete(a.ID)

	action, env := e.builder.Build(ctx, a)

	switch action {
	case domain.ActionTrigger:
		replaced := e.queue.Enqueue(&queue.Task{
			ScheduledAt:  time.Now().Add(e.holdDown),
			ReductionKey: a.ReductionKey,
			Environment:  env,
		})
		e.metrics.SetQueueDepth(e.pid, e.queue.Len())

		logger.DebugKV(ctx, "Trigger scheduled", "delay", e.holdDown.String(), "replaced", replaced)

		return nil
	case domain.ActionAcknowledge, domain.ActionResolve:
		if e.queue.RemoveByKey(a.ReductionKey) {
			e.taskCancelled(ctx, action.String())

			return nil
		}
	default:
	}

	return e.execute(ctx, action, a.ReductionKey, env)
}

// Deleted handles removal of an alarm.
func (e *Executor) Deleted(ctx context.Context, id int, reductionKey string) error {
	if e.closed() {
		return ErrClosed
	}

	ctx = logger.WithKV(e.withLogger(ctx), "alarm_id", id, "reduction_key", reductionKey)

	if _, wasFiltered := e.filtered.LoadAndDelete(id); wasFiltered {
		logger.Debug(ctx, "Filtered alarm deleted")

		return nil
	}

	if e.queue.RemoveByKey(reductionKey) {
		e.taskCancelled(ctx, domain.ActionDeleted.String())

		return nil
	}

	return e.execute(ctx, domain.ActionDeleted, reductionKey, environment.Deleted(reductionKey))
}

// Close stops the background consumer and waits for it to exit.
// Tasks still queued are discarded.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		<-e.done

		if pending := e.queue.Len(); pending > 0 {
			e.log.Infow("Executor stopped with pending triggers", "pending", pending)
		} else {
			e.log.Info("Executor stopped")
		}
	})
}

// consume runs queued triggers as they become due until ctx is done.
func (e *Executor) consume(ctx context.Context) {
	defer close(e.done)

	for {
		task, err := e.queue.Take(ctx)
		if err != nil {
			return
		}

		e.metrics.SetQueueDepth(e.pid, e.queue.Len())

		taskCtx := logger.WithKV(ctx, "reduction_key", task.ReductionKey)
		if err = e.execute(taskCtx, domain.ActionTrigger, task.ReductionKey, task.Environment); err != nil {
			logger.WarnKV(taskCtx, "Deferred trigger failed", "error", err)
		}
	}
}

// execute runs the command with env and reports the outcome.
// Only the command timeout and executor shutdown stop the command, never the caller's ctx.
// Interruption by shutdown is returned without reporting; a timeout is reported and not returned.
func (e *Executor) execute(
	ctx context.Context,
	action domain.Action,
	reductionKey string,
	env *environment.Environment,
) error {
	logger.InfoKV(ctx, "Executing command", "action", action.String())

	runCtx, release := e.detach(ctx)
	defer release()

	result := e.runner.Execute(runCtx, runner.Request{
		Command: e.command,
		Env:     env.Environ(),
		Dir:     e.scriptsDir,
		Timeout: e.timeout,
	})

	if !result.Finished && runCtx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrExecution, runCtx.Err())
	}

	e.metrics.ObserveExecution(e.pid, action.String(), result.Finished, result.Duration)
	e.reporter.Report(runCtx, reductionKey, result.Finished, result.Output)

	if result.Err != nil && !errors.Is(result.Err, runner.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrExecution, result.Err)
	}

	return nil
}

func (e *Executor) taskCancelled(ctx context.Context, reason string) {
	e.metrics.TaskCancelled(e.pid)
	e.metrics.SetQueueDepth(e.pid, e.queue.Len())

	logger.InfoKV(ctx, "Pending trigger cancelled", "reason", reason)
}

// detach keeps the values of ctx but cancels only when the executor stops.
func (e *Executor) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(e.lifetime, cancel)

	return runCtx, func() {
		stop()
		cancel()
	}
}

// withLogger attaches the instance logger to a callback context.
func (e *Executor) withLogger(ctx context.Context) context.Context {
	return logger.ToContext(ctx, e.log)
}

func (e *Executor) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
