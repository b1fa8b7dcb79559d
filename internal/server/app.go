// Package server initializes and runs the upload and rename engine: it wires
// configuration, the database-backed repositories, object storage, the
// request signer, the chunk store and the HTTP API, and handles graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tourvault/internal/chunkstore"
	"github.com/dmitrijs2005/tourvault/internal/logging"
	"github.com/dmitrijs2005/tourvault/internal/ratelimit"
	"github.com/dmitrijs2005/tourvault/internal/server/config"
	"github.com/dmitrijs2005/tourvault/internal/server/objectstore"
	"github.com/dmitrijs2005/tourvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tourvault/internal/server/services"
	"github.com/dmitrijs2005/tourvault/internal/sigv4"

	hs "github.com/dmitrijs2005/tourvault/internal/server/http"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	uploads  *services.UploadService
	renames  *services.RenameService
	progress *services.ProgressService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := chunkstore.NewStore(cfg.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("chunk store init error: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("work dir init error: %w", err)
	}
	if err := os.MkdirAll(cfg.ToursDir, 0o755); err != nil {
		return nil, fmt.Errorf("tours dir init error: %w", err)
	}

	objects, err := objectstore.NewS3Client(ctx, objectstore.S3Config{
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	signer := sigv4.NewSigner(
		sigv4.Credentials{AccessKey: cfg.S3AccessKey, SecretKey: cfg.S3SecretKey},
		cfg.S3Region, "s3")

	limiter, err := ratelimit.New(cfg.UploadRateLimit, cfg.UploadRateWindow)
	if err != nil {
		return nil, fmt.Errorf("rate limiter init error: %w", err)
	}

	ingestor := services.NewLoggingIngestor(cfg.PublicBaseURL, logger)
	queue := services.NewLoggingQueue(logger)

	progress := services.NewProgressService(rm.Progress(db), cfg.ProgressTTL)
	uploads := services.NewUploadService(rm.Sessions(db), store, signer, objects, limiter, ingestor, logger, cfg)
	renames := services.NewRenameService(db, rm, progress, queue, logger, cfg)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		uploads:  uploads,
		renames:  renames,
		progress: progress,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := hs.NewServer(app.config.EndpointAddrHTTP,
		app.uploads, app.renames, app.progress,
		[]byte(app.config.SecretKey), app.logger)

	if err := s.Serve(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
