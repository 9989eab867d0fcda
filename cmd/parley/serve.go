package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parley/internal/logging"
	"parley/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serves the turn API over HTTP.

Endpoints:
  POST /v1/users/{user}/turns     run one turn
  GET  /v1/users/{user}/entities  list remembered facts
  GET  /v1/users/{user}/profile   read the profile
  PUT  /v1/users/{user}/profile   update the profile
  GET  /v1/health                 liveness probe

The server drains in-flight requests on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.Prompts.Watch && cfg.Prompts.OverrideDir != "" {
		if err := rt.library.Watch(); err != nil {
			logger.Warn("prompt watcher unavailable", zap.Error(err))
		}
	}

	srv, err := server.New(server.Options{
		Engine:      rt.engine,
		Store:       rt.store,
		Logger:      logging.Named(logger, "server"),
		TurnTimeout: cfg.GetTurnTimeout(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("db", cfg.Store.DatabasePath))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server exited")
	return nil
}
