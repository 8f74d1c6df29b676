// Package invoker runs the external inference process for one request under
// a hard time bound and a hard output bound.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aldr4GO/celebtwin/internal/domain"
	"github.com/aldr4GO/celebtwin/internal/logger"
	"github.com/aldr4GO/celebtwin/internal/metrics"
)

const (
	// DefaultTimeout bounds a single inference run.
	DefaultTimeout = 120 * time.Second
	// DefaultMaxOutput bounds stdout and stderr combined.
	DefaultMaxOutput int64 = 10 << 20

	// waitDelay bounds how long Run waits for a killed process and for its
	// output pipes to close once it has exited.
	waitDelay = 2 * time.Second
	// maxStderrDetails bounds stderr echoed into error details.
	maxStderrDetails = 2 << 10
)

// Spec describes one invocation. Args holds the complete argument list:
// the configured prefix (e.g. a script path) followed by staged file paths.
type Spec struct {
	Operation domain.Operation
	Command   string
	Args      []string
	Dir       string
	Env       []string
	Timeout   time.Duration
	MaxOutput int64
}

// Output is what the process wrote and how it ended.
// Stderr is diagnostic only; a non-empty Stderr is not a failure.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner launches a fresh child process per call. It holds no per-call state
// and is safe for concurrent use.
type Runner struct {
	logger *zap.Logger
}

// New creates a Runner.
func New(l *zap.Logger) *Runner {
	if l == nil {
		l = zap.NewNop()
	}
	return &Runner{logger: l}
}

// Run starts the process and waits for it. The process group is killed when
// the timeout elapses or the output bound is exceeded. Output is returned
// alongside errors when the process produced any.
func (r *Runner) Run(ctx context.Context, spec Spec) (Output, error) {
	log := logger.FromContext(ctx, r.logger).With(
		zap.String("operation", string(spec.Operation)),
		zap.String("command", spec.Command),
	)

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := spec.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()
	runCtx, stop := context.WithCancelCause(timeoutCtx)
	defer stop(nil)

	lim := newLimiter(maxOutput, func() { stop(errOverflow) })
	stdout := lim.stream()
	stderr := lim.stream()

	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...) //nolint:gosec // command comes from config, args are staged paths
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	op := string(spec.Operation)
	pipes, err := attachOutput(cmd, stdout, stderr)
	if err != nil {
		metrics.InvocationsTotal.WithLabelValues(op, "start_error").Inc()
		log.Error("Failed to create output pipes", zap.Error(err))
		return Output{}, domain.Detailf(domain.ErrInvocationStart, "%s: %v", spec.Command, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pipes.abort()
		metrics.InvocationsTotal.WithLabelValues(op, "start_error").Inc()
		log.Error("Failed to start inference process", zap.Error(err))
		return Output{}, domain.Detailf(domain.ErrInvocationStart, "%s: %v", spec.Command, err)
	}
	pipes.started()

	metrics.InvocationsInFlight.Inc()
	waitErr := cmd.Wait()
	// Anything the process left running in its group goes with it.
	reapGroup(cmd)
	if !pipes.drain(waitDelay) {
		log.Warn("Inference output still open after process exit; closed it")
	}
	metrics.InvocationsInFlight.Dec()

	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	metrics.InvocationDuration.WithLabelValues(op).Observe(out.Duration.Seconds())

	if out.Stderr != "" {
		log.Debug("Inference process stderr", zap.String("stderr", truncate(out.Stderr, maxStderrDetails)))
	}

	err = classify(out, waitErr, lim.overflowed(), timeoutCtx.Err(), ctx.Err(), timeout, maxOutput)
	if err != nil {
		metrics.InvocationsTotal.WithLabelValues(op, outcome(err)).Inc()
		log.Warn("Inference process failed",
			zap.Duration("duration", out.Duration),
			zap.Int("exit_code", out.ExitCode),
			zap.Error(err),
		)
		return out, err
	}

	metrics.InvocationsTotal.WithLabelValues(op, "ok").Inc()
	log.Info("Inference process finished",
		zap.Duration("duration", out.Duration),
		zap.Int("exit_code", out.ExitCode),
		zap.Int("stdout_bytes", len(out.Stdout)),
		zap.Int("stderr_bytes", len(out.Stderr)),
	)
	return out, nil
}

// classify maps the way a run ended to an error kind. Order matters: a
// killed process also reports a non-zero exit.
func classify(
	out Output, waitErr error, overflowed bool,
	timeoutErr, parentErr error, timeout time.Duration, maxOutput int64,
) error {
	switch {
	case overflowed:
		return domain.Detailf(domain.ErrInvocationOverflow, "output exceeded %d bytes", maxOutput)
	case parentErr != nil:
		if errors.Is(parentErr, context.DeadlineExceeded) {
			return domain.Detailf(domain.ErrInvocationTimeout, "deadline exceeded after %s", out.Duration.Round(time.Millisecond))
		}
		return fmt.Errorf("invocation cancelled: %w", parentErr)
	case errors.Is(timeoutErr, context.DeadlineExceeded):
		return domain.Detailf(domain.ErrInvocationTimeout, "process killed after %s", timeout)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return fmt.Errorf("wait for inference process: %w", waitErr)
	}

	if strings.TrimSpace(out.Stdout) == "" {
		if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
			return domain.NewDetailError(domain.ErrEmptyOutput, truncate(stderr, maxStderrDetails))
		}
		return domain.NewDetailError(domain.ErrEmptyOutput, "inference process produced no output")
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvocationTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrInvocationOverflow):
		return "overflow"
	case errors.Is(err, domain.ErrEmptyOutput):
		return "empty_output"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "…"
}
