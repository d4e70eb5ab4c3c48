package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"marknote/internal/config"
	"marknote/internal/logging"
	"marknote/internal/watcher"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestVersionCommandPrintsJSON(t *testing.T) {
	var stdout bytes.Buffer
	root := newRootCommand(&stdout, &bytes.Buffer{})
	root.SetArgs([]string{"version", "--json"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		t.Fatalf("decode version output %q: %v", stdout.String(), err)
	}
	if _, ok := info["version"]; !ok {
		t.Fatalf("expected version field, got %v", info)
	}
}

func TestWatchCommandRequiresDirectory(t *testing.T) {
	root := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	root.SetArgs([]string{"watch"})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected error without a directory argument")
	}
}

func TestWatchDirectoryRejectsMissingPath(t *testing.T) {
	cfg, err := config.LoadWithEnv(nil, nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	missing := filepath.Join(t.TempDir(), "missing")

	err = watchDirectory(context.Background(), missing, cfg, logging.Discard(), &bytes.Buffer{})
	var validationErr *watcher.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWatchDirectoryPrintsChanges(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	cfg, err := config.LoadWithEnv(nil, nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- watchDirectory(ctx, root, cfg, logging.Discard(), out)
	}()

	notePath := filepath.Join(root, "todo.md")
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), notePath) {
		if time.Now().After(deadline) {
			t.Fatalf("expected a change line for %s, got %q", notePath, out.String())
		}
		// Rewrite until the watch is established and reports the file.
		if err := os.WriteFile(notePath, []byte("- [ ] item"), 0o644); err != nil {
			t.Fatalf("write note: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	line := strings.SplitN(strings.TrimSpace(out.String()), "\n", 2)[0]
	var change changeLine
	if err := json.Unmarshal([]byte(line), &change); err != nil {
		t.Fatalf("decode change line %q: %v", line, err)
	}
	if change.Event != watcher.EventName {
		t.Fatalf("expected event %q, got %q", watcher.EventName, change.Event)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("watch did not stop after cancel")
	}
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping server test (listener unavailable): %v", err)
	}
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveHTTP(ctx, server, listener)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestWatchShutdownSignalsCancelsOnce(t *testing.T) {
	buffer := logging.NewLogBuffer(10)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelInfo, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 3)
	stop := watchShutdownSignals(logger, cancel, signalCh)
	defer stop()

	signalCh <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected cancel on first signal")
	}

	signalCh <- os.Interrupt
	signalCh <- os.Interrupt
	deadline := time.Now().Add(200 * time.Millisecond)
	for len(buffer.List()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected two log entries, got %d", len(buffer.List()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := len(buffer.List()); got != 2 {
		t.Fatalf("expected repeated signals to log once, got %d entries", got)
	}
}
