package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marknote/internal/api"
	"marknote/internal/config"
	"marknote/internal/logging"
	"marknote/internal/metrics"
	"marknote/internal/watcher"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const httpServerShutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.NewLogBuffer(logging.DefaultBufferSize), cfg.LogLevel)
	if cfg.Verbose {
		logger.Info("configuration loaded", cfg.Fields())
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	stopSignals := watchShutdownSignals(logger, cancel, signals)
	defer stopSignals()

	registry := metrics.Default
	stream := api.NewEventStream(ctx, api.EventStreamOptions{Registry: registry})
	defer stream.Close()

	session, err := watcher.NewSession(stream, watcher.Options{
		Logger:   logger,
		Metrics:  registry,
		Debounce: cfg.Debounce,
		Ignore:   cfg.Ignore,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.Root != "" {
		if err := session.Start(cfg.Root); err != nil {
			logger.Warn("initial watch failed", map[string]string{
				"path":  cfg.Root,
				"error": err.Error(),
			})
		}
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Deps{
		Session:        session,
		Stream:         stream,
		Logger:         logger,
		Metrics:        registry,
		AuthToken:      cfg.AuthToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("marknote listening", map[string]string{
		"addr": listener.Addr().String(),
	})
	if err := serveHTTP(ctx, server, listener); err != nil {
		logger.Error("http server stopped", map[string]string{
			"error": err.Error(),
		})
		return err
	}
	logger.Info("marknote stopped", nil)
	return nil
}

// serveHTTP runs server on listener until ctx is cancelled or serving
// fails, then shuts it down.
func serveHTTP(ctx context.Context, server *http.Server, listener net.Listener) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpServerShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
