// Package server provides the core application server and dependency injection.
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

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/plotter-web/internal/api"
	"github.com/JakeFAU/plotter-web/internal/archive"
	"github.com/JakeFAU/plotter-web/internal/clock/system"
	"github.com/JakeFAU/plotter-web/internal/config"
	"github.com/JakeFAU/plotter-web/internal/hash/sha256"
	"github.com/JakeFAU/plotter-web/internal/id/uuid"
	"github.com/JakeFAU/plotter-web/internal/logging"
	"github.com/JakeFAU/plotter-web/internal/metrics"
	"github.com/JakeFAU/plotter-web/internal/plotter"
	"github.com/JakeFAU/plotter-web/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/plotter-web/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/plotter-web/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/plotter-web/internal/storage/gcs"
	localstorage "github.com/JakeFAU/plotter-web/internal/storage/local"
	memorystorage "github.com/JakeFAU/plotter-web/internal/storage/memory"
	pgstore "github.com/JakeFAU/plotter-web/internal/storage/postgres"
	"github.com/JakeFAU/plotter-web/internal/telemetry"
	"github.com/JakeFAU/plotter-web/internal/web"
)

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	submissionStore *pgstore.SubmissionStore
	checks          map[string]api.ReadinessCheck
	tracerShutdown  func(context.Context) error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("archive_enabled", cfg.Archive.Enabled),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
		checks: map[string]api.ReadinessCheck{},
	}
}

// Handler exposes the routed HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", a.cfg.Server.Port, err)
	}
	return a.serve(ctx, stop, ln)
}

func (a *App) serve(ctx context.Context, stop context.CancelFunc, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close releases clients and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure()
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.submissionStore != nil {
		a.submissionStore.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	a.shutdownTracer(ctx)
	logging.Sync(a.logger)
}

func (a *App) shutdownTracer(ctx context.Context) {
	if a.tracerShutdown == nil {
		return
	}
	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	a.tracerShutdown = nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	app := NewApp(cfg, logger)
	metrics.Init()
	defer func() {
		if err != nil {
			app.closeInfrastructure()
			app.shutdownTracer(context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	pages, err := web.NewPages(web.PageData{
		PenUpZ:      cfg.Plotter.PenUpZ,
		AuthEnabled: cfg.Auth.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("page templates init failed: %w", err)
	}

	recorder, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	deps := api.Dependencies{
		Pages:   pages,
		Limiter: setupRateLimiter(app),
		Checks:  app.checks,
	}
	// A typed nil *archive.Recorder must not reach the handler as a non-nil interface.
	if recorder != nil {
		deps.Archive = recorder
	}
	app.apiServer = api.NewServer(deps, *cfg, logger.Named("api"))
	return app, nil
}

func setupRateLimiter(app *App) *ratelimit.Limiter {
	if !app.cfg.RateLimit.Enabled {
		app.logger.Info("rate limiter disabled")
		return nil
	}
	app.logger.Info("rate limiter enabled",
		zap.Float64("rps", app.cfg.RateLimit.RPS),
		zap.Int("burst", app.cfg.RateLimit.Burst),
		zap.Bool("trust_forwarded", app.cfg.RateLimit.TrustForwarded),
	)
	return ratelimit.New(ratelimit.Config{
		DefaultRPS:     app.cfg.RateLimit.RPS,
		DefaultBurst:   app.cfg.RateLimit.Burst,
		TrustForwarded: app.cfg.RateLimit.TrustForwarded,
		IdleTTL:        app.cfg.RateLimit.IdleTTL,
		MaxClients:     app.cfg.RateLimit.MaxClients,
	})
}

func setupArchive(ctx context.Context, app *App) (*archive.Recorder, error) {
	if !app.cfg.Archive.Enabled {
		app.logger.Info("submission archive disabled")
		return nil, nil
	}
	blobStore, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	store, err := setupDatabase(ctx, app)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	archiveCfg := archive.Config{
		BlobPrefix:  app.cfg.Archive.Storage.Prefix,
		ContentType: app.cfg.Archive.Storage.ContentType,
		Topic:       app.cfg.Archive.PubSub.TopicName,
	}
	app.logger.Info("archive config",
		zap.String("content_type", archiveCfg.ContentType),
		zap.String("blob_prefix", archiveCfg.BlobPrefix),
		zap.String("topic", archiveCfg.Topic),
	)
	return archive.New(
		uuid.New(),
		system.New(),
		sha256.New(),
		blobStore,
		store,
		publisher,
		archiveCfg,
		app.logger.Named("archive"),
	), nil
}

func setupStorage(ctx context.Context, app *App) (plotter.BlobStore, error) {
	cfg := app.cfg.Archive.Storage
	switch cfg.Backend {
	case "gcs":
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobStore, nil
	case "local":
		app.logger.Info("using local storage backend", zap.String("path", cfg.Local.BaseDir))
		blobStore, err := localstorage.New(cfg.Local)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobStore, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func setupDatabase(ctx context.Context, app *App) (plotter.SubmissionStore, error) {
	dbCfg := app.cfg.Archive.Database
	if dbCfg.DSN == "" {
		app.logger.Warn("no DSN specified for database, keeping submissions in memory")
		return memorystorage.NewSubmissionStore(), nil
	}
	store, err := pgstore.NewSubmissionStore(ctx, pgstore.SubmissionStoreConfig{
		DSN:             dbCfg.DSN,
		Table:           dbCfg.Table,
		MaxConns:        dbCfg.MaxConns,
		MinConns:        dbCfg.MinConns,
		MaxConnLifetime: dbCfg.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("submission store init failed: %w", err)
	}
	app.submissionStore = store
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("submission store schema failed: %w", err)
	}
	app.checks["postgres"] = store.Ping
	app.logger.Info("submission store initialized", zap.String("table", dbCfg.Table))
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (plotter.Publisher, error) {
	psCfg := app.cfg.Archive.PubSub
	if psCfg.ProjectID == "" {
		app.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, psCfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubPublisher = gcppublisher.New(client.Topic(psCfg.TopicName))
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", psCfg.ProjectID),
		zap.String("topic", psCfg.TopicName),
	)
	return app.pubsubPublisher, nil
}
