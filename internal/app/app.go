package app

import (
	"context"
	"io"

	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/db"
	"github.com/cozy-creator/hf-mirror/internal/services/filestorage"
	"github.com/cozy-creator/hf-mirror/internal/services/history"
	"github.com/cozy-creator/hf-mirror/internal/services/invoker"
	"github.com/cozy-creator/hf-mirror/internal/services/janitor"
	"github.com/cozy-creator/hf-mirror/internal/services/materializer"
	"github.com/cozy-creator/hf-mirror/internal/services/mirror"
	"github.com/cozy-creator/hf-mirror/internal/services/publisher"
	"github.com/cozy-creator/hf-mirror/internal/utils/webhookutil"
	"github.com/cozy-creator/hf-mirror/pkg/logger"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const (
	publishWorkers  = 10
	webhookAttempts = 3
)

type App struct {
	db         *bun.DB
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc
	queue      *workerpool.WorkerPool

	runner         invoker.Runner
	invokerOptions []invoker.OptionFunc
	progress       io.Writer

	Logger       *zap.Logger
	Janitor      *janitor.Janitor
	Invoker      *invoker.Invoker
	Materializer *materializer.Materializer
	History      *history.Service
	Publisher    *publisher.Publisher
	Orchestrator *mirror.Orchestrator
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

// WithRunner replaces the process runner used for the download client and the
// acceleration probe.
func WithRunner(runner invoker.Runner) OptionFunc {
	return func(app *App) error {
		app.runner = runner
		return nil
	}
}

func WithInvokerOptions(options ...invoker.OptionFunc) OptionFunc {
	return func(app *App) error {
		app.invokerOptions = append(app.invokerOptions, options...)
		return nil
	}
}

// WithProgress renders materialization progress bars to w.
func WithProgress(w io.Writer) OptionFunc {
	return func(app *App) error {
		app.progress = w
		return nil
	}
}

// WithDBInitialization opens the history database and applies migrations.
func WithDBInitialization() OptionFunc {
	return func(app *App) error {
		if app.config.DB == nil || app.config.DB.DSN == "" {
			if err := app.config.CreateHomeDir(); err != nil {
				return err
			}
		}

		conn, err := db.Open(app.ctx, app.config.DSN())
		if err != nil {
			return err
		}

		app.db = conn
		app.History = history.NewService(conn, app.Logger)
		return nil
	}
}

func WithPublisher() OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.ctx, app.config)
		if err != nil {
			return err
		}

		app.Publisher = publisher.NewPublisher(storage, publishWorkers, app.Logger)
		return nil
	}
}

func NewApp(ctx context.Context, cfg *config.Config, options ...OptionFunc) (*App, error) {
	if cfg == nil {
		return nil, config.ErrConfigNotLoaded
	}

	appLogger, err := logger.InitLogger(cfg.Environment)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	app := &App{
		ctx:        ctx,
		config:     cfg,
		Logger:     appLogger,
		cancelFunc: cancel,
		queue:      workerpool.New(1),
		runner:     invoker.ExecRunner{},
	}

	// Options run in order; a failing option is logged and the remaining
	// components are still built.
	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Logger.Error("failed to apply option", zap.Error(err))
		}
	}

	app.buildServices()
	return app, nil
}

func (app *App) buildServices() {
	cfg := app.config

	app.Janitor = janitor.New(cfg.CacheDir, app.Logger,
		janitor.WithTimeout(cfg.Locks.Timeout),
		janitor.WithPollInterval(cfg.Locks.PollInterval),
	)

	invokerOptions := append([]invoker.OptionFunc{
		invoker.WithBinary(cfg.Downloader.Binary),
		invoker.WithAttempts(cfg.Downloader.Attempts),
		invoker.WithDelay(cfg.Downloader.RetryDelay),
	}, app.invokerOptions...)
	app.Invoker = invoker.New(app.runner, app.Logger, invokerOptions...)

	var materializerOptions []materializer.OptionFunc
	if app.progress != nil {
		materializerOptions = append(materializerOptions, materializer.WithProgress(app.progress))
	}
	app.Materializer = materializer.New(app.Logger, materializerOptions...)

	orchestratorOptions := []mirror.OptionFunc{
		mirror.WithDowngradePause(cfg.Downloader.DowngradePause),
		mirror.WithMaterializer(app.Materializer),
	}
	if cfg.Downloader.ProbeAcceleration {
		orchestratorOptions = append(orchestratorOptions, mirror.WithProbe(invoker.PythonProbe{
			Python: cfg.Downloader.Python,
			Runner: app.runner,
			Logger: app.Logger,
		}))
	}
	if app.History != nil {
		orchestratorOptions = append(orchestratorOptions, mirror.WithRecorder(app.History))
	}
	if app.Publisher != nil {
		orchestratorOptions = append(orchestratorOptions, mirror.WithPublisher(app.Publisher))
	}

	app.Orchestrator = mirror.New(cfg.Endpoint, app.Invoker, app.Janitor, app.Logger, orchestratorOptions...)
}

// Download runs req synchronously.
func (app *App) Download(req mirror.Request) *mirror.Result {
	return app.Orchestrator.Download(app.ctx, req)
}

// Submit validates req, records it as queued and runs it on the download
// queue. Downloads run one at a time. When webhookURL is set the final
// outcome is posted to it.
func (app *App) Submit(req mirror.Request, webhookURL string) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}

	req.ID = uuid.New()
	if app.History != nil {
		if err := app.History.Queue(app.ctx, req); err != nil {
			app.Logger.Warn("failed to record queued run", zap.String("run_id", req.ID.String()), zap.Error(err))
		}
	}

	app.queue.Submit(func() {
		result := app.Orchestrator.Download(app.ctx, req)
		if webhookURL != "" {
			app.notify(webhookURL, result)
		}
	})

	return req.ID, nil
}

func (app *App) notify(url string, result *mirror.Result) {
	data := webhookutil.RunData{
		ID:       result.ID.String(),
		Model:    result.Request.Model,
		Status:   "failed",
		State:    string(result.State),
		LocalDir: result.LocalDir,
	}
	if result.Succeeded {
		data.Status = "succeeded"
	}
	if result.Err != nil {
		data.Error = result.Err.Error()
	}

	if err := webhookutil.InvokeWithRetries(app.ctx, url, data, webhookAttempts); err != nil {
		app.Logger.Warn("failed to deliver webhook", zap.String("run_id", data.ID), zap.String("url", url), zap.Error(err))
	}
}

func (app *App) Close() {
	app.cancelFunc()

	app.queue.Stop()
	if app.Publisher != nil {
		app.Publisher.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.Logger.Warn("failed to close database", zap.Error(err))
		}
	}

	_ = app.Logger.Sync()
}

func (app *App) Config() *config.Config {
	return app.config
}
