package mirror

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cozy-creator/hf-mirror/internal/services/invoker"
	"github.com/cozy-creator/hf-mirror/internal/services/janitor"
	"github.com/cozy-creator/hf-mirror/internal/services/materializer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultDowngradePause = 5 * time.Second

// Recorder persists run progress. Errors are logged and never change the
// outcome of a run.
type Recorder interface {
	Start(ctx context.Context, result *Result) error
	Finish(ctx context.Context, result *Result) error
}

// Publisher uploads the files of a finished download.
type Publisher interface {
	Publish(ctx context.Context, dir, prefix string) (int, error)
}

type Orchestrator struct {
	endpoint     string
	cacheDir     string
	pause        time.Duration
	baseEnv      func() []string
	invoker      *invoker.Invoker
	janitor      *janitor.Janitor
	probe        invoker.Probe
	materializer *materializer.Materializer
	recorder     Recorder
	publisher    Publisher
	logger       *zap.Logger
}

type OptionFunc func(o *Orchestrator)

func WithDowngradePause(pause time.Duration) OptionFunc {
	return func(o *Orchestrator) {
		if pause >= 0 {
			o.pause = pause
		}
	}
}

// WithProbe checks acceleration support before the first phase.
func WithProbe(probe invoker.Probe) OptionFunc {
	return func(o *Orchestrator) {
		o.probe = probe
	}
}

func WithMaterializer(m *materializer.Materializer) OptionFunc {
	return func(o *Orchestrator) {
		o.materializer = m
	}
}

func WithRecorder(recorder Recorder) OptionFunc {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

func WithPublisher(publisher Publisher) OptionFunc {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

// WithBaseEnv sets the source of the parent environment children inherit.
func WithBaseEnv(baseEnv func() []string) OptionFunc {
	return func(o *Orchestrator) {
		o.baseEnv = baseEnv
	}
}

func New(endpoint string, inv *invoker.Invoker, jan *janitor.Janitor, logger *zap.Logger, options ...OptionFunc) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		endpoint: endpoint,
		cacheDir: jan.CacheDir(),
		pause:    DefaultDowngradePause,
		baseEnv:  os.Environ,
		invoker:  inv,
		janitor:  jan,
		logger:   logger.Named("mirror"),
	}

	for _, opt := range options {
		opt(o)
	}

	return o
}

// Download runs one request to completion: pre-clean, the accelerated phase
// when enabled, a single downgrade to standard transfer on failure, post-clean
// and the optional materialize and publish steps.
func (o *Orchestrator) Download(ctx context.Context, req Request) *Result {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	result := &Result{
		ID:        req.ID,
		Request:   req,
		State:     InitialState(req.Accelerate),
		LocalDir:  req.LocalDir(),
		StartedAt: time.Now(),
	}

	logger := o.logger.With(zap.String("run_id", req.ID.String()), zap.String("model", req.Model))
	o.record(ctx, logger, result, o.recorderStart)
	defer func() {
		result.FinishedAt = time.Now()
		o.record(context.WithoutCancel(ctx), logger, result, o.recorderFinish)
	}()

	if err := req.Validate(); err != nil {
		logger.Error("invalid download request", zap.Error(err))
		result.fail(err)
		return result
	}

	path, err := o.invoker.CheckBinary()
	if err != nil {
		logger.Error("download client unavailable", zap.Error(err))
		result.fail(err)
		return result
	}

	release, err := o.janitor.AcquireRunLock(ctx)
	if err != nil {
		logger.Error("failed to acquire cache run lock", zap.Error(err))
		result.fail(err)
		return result
	}
	defer release()

	env := Environment{Endpoint: o.endpoint, Accelerate: req.Accelerate, Token: req.Token}
	logger.Info("starting download",
		zap.String("endpoint", env.Endpoint),
		zap.String("client", path),
		zap.String("local_dir", result.LocalDir),
		zap.Bool("accelerate", req.Accelerate),
	)

	if result.State.Accelerated() && o.probe != nil && !o.probe.Available(ctx) {
		logger.Warn("accelerated transfer unavailable, using standard transfer")
		result.State = StateStandard
	}

	o.janitor.Sweep()

	invReq := invoker.Request{
		Model:    req.Model,
		RepoType: req.RepoType,
		Revision: req.Revision,
		LocalDir: result.LocalDir,
		Token:    req.Token,
		CacheDir: o.cacheDir,
	}

	for !result.State.IsTerminal() {
		accelerated := result.State.Accelerated()
		childEnv := env.WithAcceleration(accelerated).Apply(o.baseEnv())

		attempts, ok := o.invoker.Invoke(ctx, invReq, childEnv, accelerated)
		result.Attempts = append(result.Attempts, attempts...)

		next := result.State.Next(ok)
		if next == StateStandard && ctx.Err() == nil {
			logger.Warn("accelerated download failed, retrying with standard transfer",
				zap.Duration("pause", o.pause),
			)
			o.janitor.Sweep()
			if err := sleep(ctx, o.pause); err != nil {
				next = StateFailed
			}
		} else if !next.IsTerminal() {
			next = StateFailed
		}

		result.State = next
	}

	if n := o.janitor.WaitForAll(ctx, o.cacheDir); n > 0 {
		logger.Info("released remaining lock files", zap.Int("count", n))
	}

	if result.State != StateSucceeded {
		result.Succeeded = false
		if ctx.Err() != nil {
			result.fail(ctx.Err())
		}
		logger.Error("download failed", zap.Int("attempts", len(result.Attempts)))
		return result
	}

	result.Succeeded = true
	logger.Info("download completed", zap.Int("attempts", len(result.Attempts)))

	o.postProcess(ctx, logger, result)
	return result
}

func (o *Orchestrator) postProcess(ctx context.Context, logger *zap.Logger, result *Result) {
	req := result.Request
	if result.LocalDir == "" {
		if req.MaterializeSymlinks || req.Publish {
			result.fail(ErrSaveDirRequired)
		}
		return
	}

	if req.MaterializeSymlinks {
		m := o.materializer
		if m == nil {
			m = materializer.New(o.logger)
		}
		if req.VerifyCopies {
			m = m.Verifying(true)
		}

		report, err := m.Materialize(ctx, result.LocalDir)
		result.Materialized = report
		if err != nil {
			logger.Error("failed to materialize symbolic links", zap.Error(err))
			result.fail(fmt.Errorf("materialize %s: %w", result.LocalDir, err))
			return
		}
	}

	if req.Publish {
		if o.publisher == nil {
			logger.Error("publishing requested but no file storage is configured")
			result.fail(ErrPublisherUnavailable)
			return
		}

		n, err := o.publisher.Publish(ctx, result.LocalDir, req.ModelName())
		result.Published = n
		if err != nil {
			logger.Error("failed to publish files", zap.Error(err))
			result.fail(fmt.Errorf("publish %s: %w", result.LocalDir, err))
			return
		}
		logger.Info("published files", zap.Int("count", n))
	}
}

func (o *Orchestrator) recorderStart(ctx context.Context, result *Result) error {
	return o.recorder.Start(ctx, result)
}

func (o *Orchestrator) recorderFinish(ctx context.Context, result *Result) error {
	return o.recorder.Finish(ctx, result)
}

func (o *Orchestrator) record(ctx context.Context, logger *zap.Logger, result *Result, fn func(context.Context, *Result) error) {
	if o.recorder == nil {
		return
	}
	if err := fn(ctx, result); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
