package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
)

// defaultWaitDelay bounds how long Wait keeps draining output after the process was killed
// or exited while descendants still hold the output pipe.
const defaultWaitDelay = 2 * time.Second

var (
	// ErrCommandRequired is returned when a request has no command.
	ErrCommandRequired = errors.New("command must be provided")
	// ErrTimeout marks an execution that exceeded its timeout.
	ErrTimeout = errors.New("command timed out")
)

// Request describes a single command execution.
type Request struct {
	// Command is the executable. A bare name found in Dir is run from Dir, other bare
	// names are resolved through PATH.
	Command string
	// Env replaces the process environment entirely; nothing is inherited.
	Env []string
	// Dir is the working directory.
	Dir string
	// Timeout bounds the execution; zero means no timeout.
	Timeout time.Duration
}

// Result is the outcome of an execution.
type Result struct {
	// Finished is true when the process ran to completion within the timeout,
	// whatever its exit code.
	Finished bool
	// Output is the combined stdout/stderr, one line per "\n"-terminated line.
	// On timeout it holds whatever was captured before the kill.
	Output string
	// ExitCode is the process exit code, or -1 when it did not finish.
	ExitCode int
	// Duration is the wall-clock time from start to completion.
	Duration time.Duration
	// Err is set when the process could not be started or waited for, or timed out.
	Err error
}

// Runner starts commands and supervises them.
type Runner struct {
	waitDelay time.Duration
	killer    func(pid int) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithWaitDelay overrides how long output is drained after a kill.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.waitDelay = d
		}
	}
}

// New returns a Runner that kills the whole process tree on timeout.
func New(opts ...Option) *Runner {
	r := &Runner{
		waitDelay: defaultWaitDelay,
		killer:    killTree,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Execute runs the request to completion, timeout or cancellation of ctx.
// It never panics and never returns early; the outcome is carried by Result.
func (r *Runner) Execute(ctx context.Context, req Request) Result {
	if req.Command == "" {
		return Result{ExitCode: -1, Err: ErrCommandRequired}
	}

	runCtx, cancel := withOptionalTimeout(ctx, req.Timeout)
	defer cancel()

	var output bytes.Buffer

	//nolint:gosec // Running the configured command is the purpose of this package.
	cmd := exec.CommandContext(runCtx, resolveCommand(req.Command, req.Dir))
	cmd.Dir = req.Dir
	// A non-nil empty slice keeps the child from inheriting our environment.
	cmd.Env = append(make([]string, 0, len(req.Env)), req.Env...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = r.waitDelay

	// killed is set only when ctx ended while the process was still running.
	var killed atomic.Bool

	cmd.Cancel = func() error {
		killed.Store(true)

		return r.killer(cmd.Process.Pid)
	}

	started := time.Now()

	if err := cmd.Start(); err != nil {
		logger.ErrorKV(ctx, "Command failed to start", "command", req.Command, "error", err)

		return Result{ExitCode: -1, Err: fmt.Errorf("start %s: %w", req.Command, err)}
	}

	waitErr := cmd.Wait()
	result := Result{
		Duration: time.Since(started),
		Output:   normalizeLines(output.Bytes()),
		ExitCode: -1,
	}

	if killed.Load() {
		ctxErr := runCtx.Err()
		if errors.Is(ctxErr, context.DeadlineExceeded) && ctx.Err() == nil {
			result.Err = fmt.Errorf("%w after %s", ErrTimeout, req.Timeout)
			logger.ErrorKV(ctx, "Command did not finish in time and was killed",
				"command", req.Command, "timeout", req.Timeout.String())
		} else {
			result.Err = fmt.Errorf("run %s: %w", req.Command, ctxErr)
			logger.WarnKV(ctx, "Command interrupted", "command", req.Command, "error", ctxErr)
		}

		return result
	}

	var exitErr *exec.ExitError

	switch {
	case waitErr == nil, errors.Is(waitErr, exec.ErrWaitDelay):
		result.Finished = true
		result.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		result.Finished = true
		result.ExitCode = exitErr.ExitCode()
	default:
		result.Err = fmt.Errorf("wait %s: %w", req.Command, waitErr)
		logger.ErrorKV(ctx, "Command failed", "command", req.Command, "error", waitErr)

		return result
	}

	if result.ExitCode != 0 {
		logger.ErrorKV(ctx, "Command exited with nonzero exit code",
			"command", req.Command, "exit_code", result.ExitCode, "output", result.Output)
	} else {
		logger.InfoKV(ctx, "Command executed successfully",
			"command", req.Command, "duration", result.Duration.String(), "output", result.Output)
	}

	return result
}

// withOptionalTimeout applies timeout when positive.
func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

// resolveCommand prefers a bare command name that exists in dir over a PATH lookup.
func resolveCommand(command, dir string) string {
	if dir == "" || strings.ContainsRune(command, os.PathSeparator) {
		return command
	}

	candidate := filepath.Join(dir, command)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}

	return command
}

// normalizeLines terminates every output line with a single "\n".
func normalizeLines(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var (
		b       strings.Builder
		scanner = bufio.NewScanner(bytes.NewReader(raw))
	)

	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), len(raw)+1)

	for scanner.Scan() {
		b.Write(scanner.Bytes())
		b.WriteByte('\n')
	}

	return b.String()
}
