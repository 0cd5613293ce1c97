// Package server wires configuration, storage and the gRPC health endpoint
// into a running process and tears them down on shutdown signals.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/passkeeper/internal/logging"
	"github.com/dmitrijs2005/passkeeper/internal/server/ceremony"
	"github.com/dmitrijs2005/passkeeper/internal/server/config"
	"github.com/dmitrijs2005/passkeeper/internal/server/storage"

	gs "github.com/dmitrijs2005/passkeeper/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	storage    *storage.Context
	ceremonies *ceremony.Service
	grpc       *gs.GRPCServer
}

// NewApp opens storage and the ceremony service for c. Log lines go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {

	logger := logging.NewJSON(w, c.LogLevel)

	sc, err := storage.Open(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	cs, err := ceremony.NewService(c, sc, logger)
	if err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("ceremony init error: %w", err)
	}

	return &App{
		config:     c,
		logger:     logger,
		storage:    sc,
		ceremonies: cs,
		grpc:       gs.NewGRPCServer(c.EndpointAddrGRPC, logger),
	}, nil
}

// Ceremonies returns the registration and assertion service bound to the
// app's storage. The process serves only gRPC health; a front end that speaks
// WebAuthn to browsers embeds App and drives ceremonies through this.
func (app *App) Ceremonies() *ceremony.Service {
	return app.ceremonies
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run serves until a shutdown signal arrives or ctx is done, then closes
// storage. The first error from the server or from closing is returned.
func (app *App) Run(ctx context.Context) error {

	ctx, cancel := app.initSignalHandler(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting app...")

	app.grpc.SetServing(true)
	runErr := app.grpc.Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "gRPC server stopped", "error", runErr.Error())
	}
	app.grpc.SetServing(false)

	closeErr := app.storage.Close()
	if closeErr != nil {
		app.logger.Error(ctx, "storage close failed", "error", closeErr.Error())
	}

	app.logger.Info(ctx, "App stopped")

	if runErr != nil {
		return runErr
	}
	return closeErr
}
