// Package server wires the relay together: storage backends, the transfer
// table, the reaper, admission control, metrics and the HTTP and gRPC
// listeners, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophxfer/internal/logging"
	"github.com/dmitrijs2005/gophxfer/internal/server/admission"
	"github.com/dmitrijs2005/gophxfer/internal/server/config"
	"github.com/dmitrijs2005/gophxfer/internal/server/httpapi"
	"github.com/dmitrijs2005/gophxfer/internal/server/metrics"
	"github.com/dmitrijs2005/gophxfer/internal/server/reaper"
	"github.com/dmitrijs2005/gophxfer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophxfer/internal/server/storage"
	"github.com/dmitrijs2005/gophxfer/internal/shared"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophxfer/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	engine  *storage.Engine
	metrics *metrics.Metrics
	reaper  *reaper.Reaper
	http    *httpapi.Server
	grpc    *gs.GRPCServer

	closers []io.Closer
}

// NewApp builds the relay from c, logging to stdout.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, logging.New(os.Stdout, c.LogFormat, c.LogLevel))
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (_ *App, err error) {
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if c.Normalize() {
		logger.Warn(ctx, "transfer lifetime clamped", "ttl", c.TTL, "min", config.MinTTL, "max", config.MaxTTL)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	blobs, err := app.newBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}
	index, err := app.newRecordIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("record index init error: %w", err)
	}

	app.engine, err = storage.New(storage.Options{
		DataDir:       c.DataDir,
		MaxSize:       c.MaxSize.Int64(),
		TTL:           c.TTL,
		BurnAfterRead: c.BurnAfterRead,
		Blobs:         blobs,
		Index:         index,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	app.metrics = metrics.New(app.engine)

	app.reaper = reaper.New(app.engine, c.ReapInterval, logger)
	app.reaper.OnPass = app.metrics.ObservePass

	secret, err := app.deleteTokenSecret(ctx)
	if err != nil {
		return nil, err
	}

	app.http = httpapi.NewServer(httpapi.Options{
		Address:           c.Address,
		Store:             app.engine,
		Metrics:           app.metrics,
		Limiter:           app.newLimiter(),
		TrustProxy:        c.TrustProxy,
		DeleteTokenSecret: secret,
		Logger:            logger,
	})
	app.grpc = gs.NewGRPCServer(c.GRPCAddress, logger)

	return app, nil
}

func (app *App) newBlobStore(ctx context.Context) (storage.BlobStore, error) {
	c := app.config
	if c.BlobBackend == config.BlobBackendS3 {
		return storage.NewS3BlobStore(ctx, storage.S3Options{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
	}
	return storage.NewFSBlobStore(c.DataDir)
}

func (app *App) newRecordIndex(ctx context.Context) (storage.RecordIndex, error) {
	c := app.config
	if c.RecordIndex == config.RecordIndexPostgres {
		rm := repomanager.NewPostgresRepositoryManager()
		db, err := repomanager.Open(ctx, rm, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
		return rm.Transfers(db), nil
	}
	return storage.NewSidecarIndex(c.DataDir)
}

func (app *App) newLimiter() admission.Limiter {
	c := app.config
	switch {
	case c.RateLimit == 0:
		return admission.Unlimited{}
	case c.RedisAddr != "":
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.closers = append(app.closers, rdb)
		return admission.NewRedisLimiter(rdb, c.RateLimit, c.RateWindow, app.logger)
	default:
		return admission.NewMemoryLimiter(c.RateLimit, c.RateWindow)
	}
}

func (app *App) deleteTokenSecret(ctx context.Context) ([]byte, error) {
	if app.config.DeleteTokenSecret != "" {
		return []byte(app.config.DeleteTokenSecret), nil
	}
	app.logger.Warn(ctx, "no delete token secret configured; tokens will not survive a restart")
	return shared.RandomBytes(32)
}

// Close releases database and redis connections.
func (app *App) Close() {
	for _, c := range app.closers {
		if err := c.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
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

// Run restores the transfer table, then serves until ctx is cancelled or a
// termination signal arrives. A listener failure stops the whole relay.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.engine.Restore(ctx); err != nil {
		return fmt.Errorf("restore storage: %w", err)
	}

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		runErrs []error
	)
	fail := func(err error) {
		app.logger.Error(ctx, err.Error())
		errMu.Lock()
		runErrs = append(runErrs, err)
		errMu.Unlock()
		cancelFunc()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.reaper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			fail(fmt.Errorf("http server: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			fail(fmt.Errorf("grpc server: %w", err))
		}
	}()

	app.grpc.SetServing(true)

	wg.Wait()

	app.logger.Info(context.WithoutCancel(ctx), "relay stopped")
	return errors.Join(runErrs...)
}
