// Package match runs the per-request pipeline: stage uploads, invoke the
// inference process, extract its payload, map it to a result, and remove
// everything that was staged.
package match

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/aldr4GO/celebtwin/internal/cleanup"
	"github.com/aldr4GO/celebtwin/internal/domain"
	"github.com/aldr4GO/celebtwin/internal/domain/result"
	"github.com/aldr4GO/celebtwin/internal/extract"
	"github.com/aldr4GO/celebtwin/internal/invoker"
	"github.com/aldr4GO/celebtwin/internal/logger"
	"github.com/aldr4GO/celebtwin/internal/metrics"
)

// maxLoggedStdout bounds stdout echoed into debug logs.
const maxLoggedStdout = 4 << 10

// Command is the executable and leading arguments for one operation.
// Staged paths are appended after Args.
type Command struct {
	Path string
	Args []string
}

// Commands holds the command line for each operation.
type Commands struct {
	Search  Command
	Compare Command
}

func (c Commands) forOp(op domain.Operation) Command {
	if op == domain.OpCompare {
		return c.Compare
	}
	return c.Search
}

// Limits bounds each invocation and sets where it runs.
type Limits struct {
	Workdir   string
	Env       []string
	Timeout   time.Duration
	MaxOutput int64
}

// Service runs search and compare requests. It keeps no per-request state.
type Service struct {
	stager   Stager
	runner   Runner
	commands Commands
	limits   Limits
	logger   *zap.Logger
}

// New creates a match service.
func New(stager Stager, runner Runner, commands Commands, limits Limits, l *zap.Logger) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{stager: stager, runner: runner, commands: commands, limits: limits, logger: l}
}

// Search ranks the gallery against one uploaded image.
func (s *Service) Search(ctx context.Context, img domain.UploadedAsset) (result.Search, error) {
	return run(ctx, s, domain.OpSearch, []domain.UploadedAsset{img}, result.DecodeSearch)
}

// Compare scores two uploaded images against each other.
func (s *Service) Compare(ctx context.Context, a, b domain.UploadedAsset) (result.Compare, error) {
	return run(ctx, s, domain.OpCompare, []domain.UploadedAsset{a, b}, result.DecodeCompare)
}

// run is the pipeline shared by both operations. Every failure is returned as
// a *domain.StageError naming the last stage reached. Staged files are
// removed on every exit path, panics included.
func run[T any](
	ctx context.Context, s *Service, op domain.Operation,
	assets []domain.UploadedAsset, decode func([]byte) (T, error),
) (T, error) {
	var zero T
	log := logger.FromContext(ctx, s.logger).With(zap.String("operation", string(op)))

	if err := validate(op, assets); err != nil {
		return zero, s.fail(log, op, domain.StageIdle, err)
	}

	guard := cleanup.NewGuard(log)
	defer guard.Release()

	staged, err := s.stager.Stage(ctx, guard, assets...)
	if err != nil {
		return zero, s.fail(log, op, domain.StageIdle, err)
	}
	metrics.StagedBytesTotal.WithLabelValues(string(op)).Add(float64(totalBytes(assets)))
	log.Debug("Uploads staged", zap.Strings("paths", domain.Paths(staged)))

	cmd := s.commands.forOp(op)
	// The request context still supplies values (logger, request id); only
	// the invocation timeout may stop the process.
	out, err := s.runner.Run(context.WithoutCancel(ctx), invoker.Spec{
		Operation: op,
		Command:   cmd.Path,
		Args:      append(slices.Clone(cmd.Args), domain.Paths(staged)...),
		Dir:       s.limits.Workdir,
		Env:       s.limits.Env,
		Timeout:   s.limits.Timeout,
		MaxOutput: s.limits.MaxOutput,
	})
	if out.Duration > 0 {
		domain.InvocationUsageFromContext(ctx).Record(out.Duration, out.ExitCode)
	}
	if err != nil {
		return zero, s.fail(log, op, domain.StageStaged, err)
	}
	log.Debug("Inference stdout", zap.String("stdout", clip(out.Stdout, maxLoggedStdout)))

	payload, err := extract.Find(out.Stdout)
	if err != nil {
		return zero, s.fail(log, op, domain.StageInvoked, err)
	}

	res, err := decode(payload)
	if err != nil {
		return zero, s.fail(log, op, domain.StageExtracted, err)
	}
	log.Debug("Pipeline finished",
		zap.String("stage", string(domain.StageMapped)),
		zap.Duration("inference_duration", out.Duration),
	)
	return res, nil
}

func (s *Service) fail(log *zap.Logger, op domain.Operation, stage domain.Stage, err error) error {
	kind := domain.KindLabel(err)
	metrics.PipelineFailuresTotal.WithLabelValues(string(op), string(stage), kind).Inc()
	log.Warn("Pipeline failed",
		zap.String("stage", string(stage)),
		zap.String("kind", kind),
		zap.Error(err),
	)
	return &domain.StageError{Op: op, Stage: stage, Err: err}
}

func validate(op domain.Operation, assets []domain.UploadedAsset) error {
	if !op.IsValid() {
		return domain.Detailf(domain.ErrValidation, "unknown operation %q", op)
	}
	if len(assets) != op.Arity() {
		return domain.Detailf(domain.ErrValidation, "%s needs %d images, got %d", op, op.Arity(), len(assets))
	}
	for i, a := range assets {
		if len(a.Data) == 0 {
			return domain.Detailf(domain.ErrValidation, "image %d is empty", i+1)
		}
	}
	return nil
}

func totalBytes(assets []domain.UploadedAsset) int {
	n := 0
	for _, a := range assets {
		n += len(a.Data)
	}
	return n
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
