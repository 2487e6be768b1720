// Package server assembles the librarykeeper API: it opens the database,
// applies migrations, builds the auth service with its audit trail and
// metrics, and runs the HTTP server until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/librarykeeper/internal/logging"
	"github.com/dmitrijs2005/librarykeeper/internal/server/audit"
	"github.com/dmitrijs2005/librarykeeper/internal/server/auth"
	"github.com/dmitrijs2005/librarykeeper/internal/server/config"
	"github.com/dmitrijs2005/librarykeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/librarykeeper/internal/server/metrics"
	"github.com/dmitrijs2005/librarykeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/librarykeeper/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	audit  *audit.Dispatcher
	http   *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.Env)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN, c.DBMinConns, c.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()
	codec := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	})
	svc := services.NewAuthService(db, rm, codec, auth.NewBcryptHasher(c.BcryptCost))
	dispatcher := audit.NewDispatcher(rm.AuditLogs(db), logger, m, c.AuditBufferSize)

	srv := httpapi.NewServer(httpapi.Options{
		Addr:                c.HTTPAddr,
		CORSOrigin:          c.CORSOrigin,
		MaxBodyBytes:        c.MaxBodyBytes,
		RateLimitWindow:     c.RateLimitWindow,
		RateLimitMax:        c.RateLimitMax,
		AuthRateLimitWindow: c.AuthRateLimitWindow,
		AuthRateLimitMax:    c.AuthRateLimitMax,
		ShutdownTimeout:     c.ShutdownTimeout,
	}, logger, svc, codec, dispatcher, db, m)

	return &App{config: c, logger: logger, db: db, audit: dispatcher, http: srv}, nil
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

// Run serves until ctx is cancelled or a signal arrives, then drains the
// audit queue and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Env)

	app.initSignalHandler(cancelFunc)

	err := app.http.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err)
	}

	app.audit.Close()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "closing database", "error", cerr)
	}
	app.logger.Info(ctx, "Stopped")

	return err
}
