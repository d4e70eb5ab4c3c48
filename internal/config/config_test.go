package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"marknote/internal/logging"
	"marknote/internal/watcher"

	"github.com/spf13/pflag"
)

func isolateUserConfig(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

func parseTestFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("marknote", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolateUserConfig(t)
	cfg, err := LoadWithEnv(parseTestFlags(t), envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Fatalf("expected listen %q, got %q", DefaultListen, cfg.Listen)
	}
	if cfg.Debounce != watcher.DefaultDebounce {
		t.Fatalf("expected default debounce, got %s", cfg.Debounce)
	}
	if len(cfg.Ignore) != len(watcher.DefaultIgnorePatterns) {
		t.Fatalf("expected default ignore patterns, got %v", cfg.Ignore)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Fatalf("expected info level, got %q", cfg.LogLevel)
	}
	if cfg.ConfigFile != "" {
		t.Fatalf("expected no config file, got %q", cfg.ConfigFile)
	}
	for key, source := range cfg.Sources {
		if source != SourceDefault {
			t.Fatalf("expected %s from defaults, got %s", key, source)
		}
	}
}

func TestLoadPrecedence(t *testing.T) {
	isolateUserConfig(t)
	path := writeConfigFile(t, strings.Join([]string{
		"listen: 127.0.0.1:9000",
		"debounce: 250ms",
		"log_level: debug",
		"root: /file/root",
		"ignore:",
		"  - '**/node_modules/**'",
	}, "\n"))

	env := envMap(map[string]string{
		"MARKNOTE_CONFIG":   path,
		"MARKNOTE_DEBOUNCE": "300ms",
		"MARKNOTE_ROOT":     "/env/root",
		"MARKNOTE_TOKEN":    "secret",
	})
	cfg, err := LoadWithEnv(parseTestFlags(t, "--root", "/flag/root"), env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ConfigFile != path {
		t.Fatalf("expected config file %q, got %q", path, cfg.ConfigFile)
	}
	if cfg.Listen != "127.0.0.1:9000" || cfg.Sources["listen"] != SourceFile {
		t.Fatalf("expected listen from file, got %q (%s)", cfg.Listen, cfg.Sources["listen"])
	}
	if cfg.Debounce != 300*time.Millisecond || cfg.Sources["debounce"] != SourceEnv {
		t.Fatalf("expected debounce from env, got %s (%s)", cfg.Debounce, cfg.Sources["debounce"])
	}
	if cfg.Root != "/flag/root" || cfg.Sources["root"] != SourceFlag {
		t.Fatalf("expected root from flag, got %q (%s)", cfg.Root, cfg.Sources["root"])
	}
	if cfg.LogLevel != logging.LevelDebug {
		t.Fatalf("expected debug level, got %q", cfg.LogLevel)
	}
	if len(cfg.Ignore) != 1 || cfg.Ignore[0] != "**/node_modules/**" {
		t.Fatalf("unexpected ignore %v", cfg.Ignore)
	}
	if cfg.AuthToken != "secret" || cfg.Sources["token"] != SourceEnv {
		t.Fatalf("expected token from env")
	}
}

func TestLoadFlagLists(t *testing.T) {
	isolateUserConfig(t)
	flags := parseTestFlags(t,
		"--allowed-origin", "http://localhost:5173",
		"--allowed-origin", "tauri://localhost",
		"--ignore", "**/*.tmp",
		"--debounce", "1s",
		"--verbose",
	)
	cfg, err := LoadWithEnv(flags, envMap(map[string]string{
		"MARKNOTE_ALLOWED_ORIGINS": "http://env.example",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "tauri://localhost" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if len(cfg.Ignore) != 1 || cfg.Ignore[0] != "**/*.tmp" {
		t.Fatalf("unexpected ignore %v", cfg.Ignore)
	}
	if cfg.Debounce != time.Second || !cfg.Verbose {
		t.Fatalf("unexpected debounce %s verbose %v", cfg.Debounce, cfg.Verbose)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	isolateUserConfig(t)
	cases := map[string]map[string]string{
		"debounce":      {"MARKNOTE_DEBOUNCE": "soon"},
		"zero debounce": {"MARKNOTE_DEBOUNCE": "0s"},
		"log level":     {"MARKNOTE_LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		env := env
		t.Run(name, func(t *testing.T) {
			if _, err := LoadWithEnv(parseTestFlags(t), envMap(env)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadInvalidEnvFailsDespiteFlag(t *testing.T) {
	isolateUserConfig(t)
	_, err := LoadWithEnv(parseTestFlags(t, "--debounce", "200ms"), envMap(map[string]string{
		"MARKNOTE_DEBOUNCE": "soon",
	}))
	if err == nil || !strings.Contains(err.Error(), "MARKNOTE_DEBOUNCE") {
		t.Fatalf("expected env error naming the variable, got %v", err)
	}
}

func TestLoadReportsMistypedFlag(t *testing.T) {
	isolateUserConfig(t)
	flags := pflag.NewFlagSet("marknote", pflag.ContinueOnError)
	flags.String("ignore", "", "")
	if err := flags.Parse([]string{"--ignore", "*.tmp"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	_, err := LoadWithEnv(flags, envMap(nil))
	if err == nil || !strings.Contains(err.Error(), "--ignore") {
		t.Fatalf("expected --ignore error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolateUserConfig(t)
	cases := []struct {
		name string
		args []string
		file string
	}{
		{name: "zero debounce", args: []string{"--debounce", "0s"}},
		{name: "long debounce", args: []string{"--debounce", "2m"}},
		{name: "bad level", args: []string{"--log-level", "loud"}},
		{name: "empty listen", args: []string{"--listen", " "}},
		{name: "bad glob", args: []string{"--ignore", "[oops"}},
		{name: "bad file debounce", file: "debounce: later"},
		{name: "bad yaml", file: "listen: [unterminated"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			env := map[string]string{}
			if tc.file != "" {
				env["MARKNOTE_CONFIG"] = writeConfigFile(t, tc.file)
			}
			if _, err := LoadWithEnv(parseTestFlags(t, tc.args...), envMap(env)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolateUserConfig(t)
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := LoadWithEnv(parseTestFlags(t, "--config", missing), envMap(nil)); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadReadsDefaultFile(t *testing.T) {
	isolateUserConfig(t)
	path := DefaultConfigPath()
	if path == "" {
		t.Skip("no user config dir on this platform")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("listen: 127.0.0.1:9999\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadWithEnv(nil, envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Fatalf("expected listen from default file, got %q", cfg.Listen)
	}
}

func TestFieldsHideToken(t *testing.T) {
	cfg := Config{AuthToken: "secret", Sources: map[string]Source{"token": SourceFlag}}
	fields := cfg.Fields()
	if fields["token"] != "set" {
		t.Fatalf("expected masked token, got %q", fields["token"])
	}
	if fields["token.source"] != "flag" {
		t.Fatalf("expected token source, got %q", fields["token.source"])
	}
}
