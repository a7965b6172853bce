// Package server builds the application from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/todo-progress/internal/api"
	"github.com/JakeFAU/todo-progress/internal/audit"
	"github.com/JakeFAU/todo-progress/internal/audit/sinks"
	"github.com/JakeFAU/todo-progress/internal/clock/system"
	"github.com/JakeFAU/todo-progress/internal/config"
	"github.com/JakeFAU/todo-progress/internal/id/uuid"
	"github.com/JakeFAU/todo-progress/internal/logging"
	"github.com/JakeFAU/todo-progress/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/todo-progress/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/todo-progress/internal/publisher/pubsub"
	badgerstore "github.com/JakeFAU/todo-progress/internal/storage/badger"
	gcsstorage "github.com/JakeFAU/todo-progress/internal/storage/gcs"
	localstorage "github.com/JakeFAU/todo-progress/internal/storage/local"
	memorystorage "github.com/JakeFAU/todo-progress/internal/storage/memory"
	pgstore "github.com/JakeFAU/todo-progress/internal/storage/postgres"
	"github.com/JakeFAU/todo-progress/internal/todo"
)

const readHeaderTimeout = 5 * time.Second

type closingPublisher interface {
	todo.Publisher
	Close() error
}

// App contains the application's dependencies.
type App struct {
	cfg         *config.Config
	logger      *zap.Logger
	apiServer   *api.Server
	todoStore   todo.Store
	badgerStore *badgerstore.TodoStore
	pgStore     *pgstore.TodoStore
	storage     *storage.Client
	publisher   closingPublisher
	auditHub    *audit.Hub
}

// NewApp creates an empty App for cfg. Build fills in the dependencies.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("uploads_backend", cfg.Uploads.Backend),
	)
	return &App{cfg: cfg, logger: logger}, nil
}

// Build creates the logger and every dependency described by cfg.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	app.logger.Info("building application dependencies")
	if err := app.build(ctx); err != nil {
		// Release whatever was opened before the failure.
		if closeErr := app.Close(context.Background()); closeErr != nil {
			app.logger.Warn("cleanup after failed build", zap.Error(closeErr))
		}
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	store, err := setupStore(ctx, a)
	if err != nil {
		return err
	}
	a.todoStore = store

	blobs, err := setupUploads(ctx, a)
	if err != nil {
		return err
	}

	a.publisher, err = setupPublisher(ctx, a)
	if err != nil {
		return err
	}

	recorder := setupAudit(a)

	validator, err := todo.NewValidator()
	if err != nil {
		return fmt.Errorf("validator init failed: %w", err)
	}

	deps := api.Deps{
		Todos:     a.todoStore,
		Blobs:     blobs,
		Publisher: a.publisher,
		Validator: validator,
		IDs:       uuid.New(),
		Clock:     system.New(),
		Ready:     a.ready,
	}
	if recorder != nil {
		deps.Audit = recorder
	}
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   a.cfg.Stream.RatePerSecond,
		Burst: a.cfg.Stream.Burst,
	})
	if limiter.Enabled() {
		a.logger.Info("progress stream admission limit",
			zap.Float64("rate_per_second", a.cfg.Stream.RatePerSecond),
			zap.Int("burst", a.cfg.Stream.Burst),
		)
	}
	a.apiServer, err = api.NewServer(deps, api.Options{
		RequestTimeout:     a.cfg.RequestTimeout(),
		MaxUploadBytes:     a.cfg.Server.MaxUploadBytes,
		StreamDelay:        a.cfg.StreamDelay(),
		StreamWriteTimeout: a.cfg.StreamWriteTimeout(),
		StreamLimiter:      limiter,
	}, a.logger.Named("api"))
	if err != nil {
		return fmt.Errorf("api init failed: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler of the built application.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run listens on the configured port and blocks until ctx is canceled or
// SIGINT/SIGTERM arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", a.cfg.Server.Port, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled or a termination
// signal arrives, then drains open requests and closes the App.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// No WriteTimeout: progress streams stay open for many seconds and set
	// their own per-frame deadlines.
	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(a.logger.Named("http_server")),
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	// WebSocket sessions still hold audit records; let them finish first.
	if err := a.apiServer.WaitStreams(shutdownCtx); err != nil {
		a.logger.Warn("progress streams still open at shutdown", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)
	if err := <-serveErr; err != nil {
		return fmt.Errorf("serve http: %w", err)
	}
	return closeErr
}

// Close releases every dependency. It is safe to call on a partially built
// App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.auditHub != nil {
		if err := a.auditHub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("audit hub close: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close: %w", err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs client close: %w", err))
		}
	}
	if a.badgerStore != nil {
		if err := a.badgerStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("badger store close: %w", err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	for _, err := range errs {
		a.logger.Warn("shutdown step failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	if err := logging.Sync(a.logger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) ready(ctx context.Context) error {
	if a.pgStore != nil {
		return a.pgStore.Ping(ctx)
	}
	return nil
}

func setupStore(ctx context.Context, app *App) (todo.Store, error) {
	switch app.cfg.Store.Backend {
	case config.StoreBadger:
		app.logger.Info("using badger todo store", zap.String("dir", app.cfg.Store.Badger.Dir))
		store, err := badgerstore.Open(badgerstore.Config{
			Dir:    app.cfg.Store.Badger.Dir,
			Logger: app.logger.Named("badger"),
		})
		if err != nil {
			return nil, fmt.Errorf("todo store init failed: %w", err)
		}
		app.badgerStore = store
		return store, nil
	case config.StorePostgres:
		pg := app.cfg.Store.Postgres
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             pg.DSN,
			Table:           pg.Table,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("todo store init failed: %w", err)
		}
		app.pgStore = store
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("todo store schema failed: %w", err)
		}
		app.logger.Info("using postgres todo store", zap.String("table", pg.Table))
		return store, nil
	default:
		app.logger.Info("using in-memory todo store")
		return memorystorage.NewTodoStore(), nil
	}
}

func setupUploads(ctx context.Context, app *App) (todo.BlobStore, error) {
	switch app.cfg.Uploads.Backend {
	case config.UploadsGCS:
		app.logger.Info("using GCS upload backend")
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobs, err := gcsstorage.New(app.storage, gcsstorage.Config{
			Bucket: app.cfg.Uploads.GCSBucket,
			Prefix: app.cfg.Uploads.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS upload backend", zap.String("bucket", app.cfg.Uploads.GCSBucket))
		return blobs, nil
	case config.UploadsMemory:
		app.logger.Info("using in-memory upload backend")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("using local upload backend")
		blobs, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Uploads.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local upload backend", zap.String("path", blobs.BaseDir()))
		return blobs, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (closingPublisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	pub, err := gcppublisher.New(ctx, gcppublisher.Config{
		ProjectID: app.cfg.PubSub.ProjectID,
		TopicName: app.cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return pub, nil
}

// setupAudit returns nil when auditing is disabled or has nowhere to go.
func setupAudit(app *App) *audit.Hub {
	if !app.cfg.Audit.Enabled {
		app.logger.Info("session audit disabled")
		return nil
	}
	var sinkList []audit.Sink
	if app.cfg.Audit.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(app.logger.Named("audit_log")))
		app.logger.Debug("added audit log sink")
	}
	if app.cfg.PubSub.TopicName != "" && app.publisher != nil {
		sinkList = append(sinkList, sinks.NewPublisherSink(app.publisher))
		app.logger.Debug("added audit publisher sink")
	}
	if len(sinkList) == 0 {
		app.logger.Warn("session audit enabled but no sinks configured")
		return nil
	}
	hubCfg := audit.Config{
		BufferSize:  app.cfg.Audit.BufferSize,
		MaxBatch:    app.cfg.Audit.Batch.MaxEvents,
		MaxWait:     time.Duration(app.cfg.Audit.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout: time.Duration(app.cfg.Audit.SinkTimeoutMs) * time.Millisecond,
		Logger:      app.logger.Named("audit_hub"),
	}
	app.auditHub = audit.NewHub(hubCfg, sinkList...)
	app.logger.Info("audit hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatch),
		zap.Duration("max_batch_wait", hubCfg.MaxWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.auditHub
}
