// Package server wires the TubeKeeper components together and runs the
// public HTTP API and the operational gRPC endpoint until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/tubekeeper/internal/filex"
	"github.com/dmitrijs2005/tubekeeper/internal/logging"
	"github.com/dmitrijs2005/tubekeeper/internal/server/auth"
	"github.com/dmitrijs2005/tubekeeper/internal/server/config"
	"github.com/dmitrijs2005/tubekeeper/internal/server/media"
	"github.com/dmitrijs2005/tubekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tubekeeper/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/tubekeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/tubekeeper/internal/server/http"
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	servers map[string]runner
}

// seams for tests
var (
	openDB     = repomanager.OpenDB
	newManager = repomanager.NewPostgresRepositoryManager
	newStore   = func(ctx context.Context, c *config.Config, l logging.Logger) (media.Store, error) {
		s, err := media.NewS3Store(ctx, c, l)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, !c.IsProduction())

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	rm := newManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newStore(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("media store init error: %w", err)
	}

	uploadDir, err := filex.EnsureDir(c.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload dir error: %w", err)
	}

	issuer := auth.NewIssuerFromConfig(c)
	accounts := services.NewAccountService(db, rm, store, issuer, logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		servers: map[string]runner{
			"http": hs.NewHTTPServer(c, logger, accounts, issuer, uploadDir),
			"grpc": gs.NewGRPCServer(c.EndpointAddrGRPC, logger),
		},
	}, nil
}

// Run blocks until SIGINT/SIGTERM/SIGQUIT, ctx cancellation or a server
// failure. Any server failing stops the others.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range app.servers {
		name, srv := name, srv
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				app.logger.Error(gctx, "server stopped with error", "server", name, "error", err)
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
	}

	err := g.Wait()

	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error(ctx, "db close error", "error", cerr)
		}
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
