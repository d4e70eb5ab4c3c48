package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"marknote/internal/api"
	"marknote/internal/client"
	"marknote/internal/config"
	"marknote/internal/logging"
	"marknote/internal/metrics"
	"marknote/internal/watcher"
)

func TestServerURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:7421":     "http://127.0.0.1:7421",
		":7421":              "http://127.0.0.1:7421",
		"0.0.0.0:9000":       "http://127.0.0.1:9000",
		"http://notes.local": "http://notes.local",
	}
	for listen, want := range cases {
		if got := serverURL(config.Config{Listen: listen}); got != want {
			t.Fatalf("serverURL(%q) = %q, want %q", listen, got, want)
		}
	}
}

func TestSessionCommandsDriveServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping server test (listener unavailable): %v", err)
	}

	registry := &metrics.Registry{}
	stream := api.NewEventStream(context.Background(), api.EventStreamOptions{Registry: registry})
	defer stream.Close()
	session, err := watcher.NewSession(stream, watcher.Options{
		Logger:   logging.Discard(),
		Metrics:  registry,
		Debounce: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer session.Close()

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Deps{
		Session:   session,
		Stream:    stream,
		Logger:    logging.Discard(),
		Metrics:   registry,
		AuthToken: "secret",
	})
	server := &httptest.Server{Listener: listener, Config: &http.Server{Handler: mux}}
	server.Start()
	defer server.Close()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("log_level: warning\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	flags := []string{"--listen", listener.Addr().String(), "--token", "secret", "--config", configPath}

	run := func(args ...string) string {
		t.Helper()
		var stdout bytes.Buffer
		command := newRootCommand(&stdout, &bytes.Buffer{})
		command.SetArgs(append(args, flags...))
		if err := command.Execute(); err != nil {
			t.Fatalf("marknote %s: %v", strings.Join(args, " "), err)
		}
		return stdout.String()
	}

	run("session", "start", root)
	if path, ok := session.Path(); !ok || path != root {
		t.Fatalf("expected server to watch %s, got %q (active=%v)", root, path, ok)
	}

	var status client.WatchStatus
	if err := json.Unmarshal([]byte(run("session", "status")), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Active || status.Path != root {
		t.Fatalf("unexpected status: %+v", status)
	}

	run("session", "stop")
	if session.Active() {
		t.Fatalf("expected watch to stop")
	}
}
