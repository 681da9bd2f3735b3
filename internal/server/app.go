// Package server wires the user service together and runs its HTTP and
// gRPC servers until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/userauth/internal/filex"
	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/dmitrijs2005/userauth/internal/server/auth"
	"github.com/dmitrijs2005/userauth/internal/server/config"
	"github.com/dmitrijs2005/userauth/internal/server/events"
	"github.com/dmitrijs2005/userauth/internal/server/httpserver"
	"github.com/dmitrijs2005/userauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userauth/internal/server/services"
	"github.com/dmitrijs2005/userauth/internal/server/storage"

	gs "github.com/dmitrijs2005/userauth/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}

	newRepoManager = func(bcryptCost int) repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager(bcryptCost)
	}

	newObjectClient = func(ctx context.Context, c *config.Config) (storage.ObjectAPI, error) {
		return storage.NewS3Client(ctx, c)
	}
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpserver.Server
	grpcServer *gs.GRPCServer
}

// NewApp opens the database, applies migrations and builds every component.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		logger.Warn(ctx, "access and refresh tokens share a signing secret")
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager(c.BcryptCost)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	tempDir, err := filex.EnsureSubdDir(c.UploadTempDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upload dir error: %w", err)
	}

	client, err := newObjectClient(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	gateway := storage.NewS3Gateway(client, c.S3Bucket, c.S3BaseEndpoint, c.S3PublicBaseURL, logger)
	publisher := events.New(c.AMQPURL, logger)
	tokens := auth.NewTokenService(
		c.AccessTokenSecret, c.AccessTokenValidityDuration,
		c.RefreshTokenSecret, c.RefreshTokenValidityDuration,
	)

	us := services.NewUserService(db, rm, tokens, gateway, publisher, c, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: httpserver.NewServer(c, tempDir, us, logger),
		grpcServer: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, tokens),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Start(); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a server fails,
// then shuts everything down.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "HTTP shutdown failed", "error", err)
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close failed", "error", err)
	}
	app.logger.Info(shutdownCtx, "Stopped")
}
