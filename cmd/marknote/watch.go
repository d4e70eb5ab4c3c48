package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"marknote/internal/config"
	"marknote/internal/logging"
	"marknote/internal/metrics"
	"marknote/internal/watcher"

	"github.com/spf13/cobra"
)

const watchPollInterval = 250 * time.Millisecond

type changeLine struct {
	Event string   `json:"event"`
	Kind  string   `json:"kind"`
	Paths []string `json:"paths"`
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <directory>",
		Short: "Print change notifications for a directory as JSON lines",
		Long: `Watch a directory tree and print one JSON object per debounced change
until interrupted. Uses the same ignore patterns and debounce as the server.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), cfg.LogLevel, cmd.ErrOrStderr())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	stopSignals := watchShutdownSignals(logger, cancel, signals)
	defer stopSignals()

	return watchDirectory(ctx, args[0], cfg, logger, cmd.OutOrStdout())
}

// watchDirectory prints notifications for root until ctx is done or the
// watch fails.
func watchDirectory(ctx context.Context, root string, cfg config.Config, logger *logging.Logger, out io.Writer) error {
	session, err := watcher.NewSession(lineEmitter(out), watcher.Options{
		Logger:   logger,
		Metrics:  &metrics.Registry{},
		Debounce: cfg.Debounce,
		Ignore:   cfg.Ignore,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Start(root); err != nil {
		return err
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if session.Active() {
				continue
			}
			if err := session.Err(); err != nil {
				return err
			}
			return errors.New("watch stopped")
		}
	}
}

func lineEmitter(out io.Writer) watcher.Emitter {
	var mu sync.Mutex
	encoder := json.NewEncoder(out)
	return watcher.EmitterFunc(func(name string, notification watcher.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		return encoder.Encode(changeLine{
			Event: name,
			Kind:  notification.Kind,
			Paths: notification.Paths,
		})
	})
}
