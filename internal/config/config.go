// Package config resolves marknote settings from defaults, an optional YAML
// file, MARKNOTE_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marknote/internal/logging"
	"marknote/internal/watcher"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen = "127.0.0.1:7421"
	MaxDebounce   = time.Minute
)

type Config struct {
	Listen         string
	AuthToken      string
	AllowedOrigins []string
	Debounce       time.Duration
	Ignore         []string
	LogLevel       logging.Level
	Root           string
	ConfigFile     string
	Verbose        bool
	Sources        map[string]Source
}

// Source names the layer a setting was taken from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

type fileValues struct {
	Listen         *string   `yaml:"listen"`
	Token          *string   `yaml:"token"`
	AllowedOrigins *[]string `yaml:"allowed_origins"`
	Debounce       *string   `yaml:"debounce"`
	Ignore         *[]string `yaml:"ignore"`
	LogLevel       *string   `yaml:"log_level"`
	Root           *string   `yaml:"root"`
}

// RegisterFlags adds the config flags to a command's flag set.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a YAML config file")
	flags.String("listen", DefaultListen, "HTTP listen address")
	flags.String("token", "", "Bearer token required by the HTTP API")
	flags.StringSlice("allowed-origin", nil, "Extra origin allowed to open the event stream (repeatable)")
	flags.Duration("debounce", watcher.DefaultDebounce, "Quiet period before a change is reported")
	flags.StringSlice("ignore", nil, "Glob of paths to ignore, relative to the watched directory (repeatable)")
	flags.String("log-level", string(logging.LevelInfo), "Log level: debug, info, warning, error")
	flags.String("root", "", "Directory to watch on startup")
	flags.BoolP("verbose", "v", false, "Print resolved configuration on startup")
}

// Load resolves the configuration using the process environment.
func Load(flags *pflag.FlagSet) (Config, error) {
	return LoadWithEnv(flags, os.Getenv)
}

// LoadWithEnv resolves the configuration, reading environment variables
// through getenv. flags may be nil.
func LoadWithEnv(flags *pflag.FlagSet, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	cfg := Config{
		Listen:   DefaultListen,
		Debounce: watcher.DefaultDebounce,
		Ignore:   append([]string(nil), watcher.DefaultIgnorePatterns...),
		LogLevel: logging.LevelInfo,
		Sources:  make(map[string]Source),
	}
	for _, key := range []string{"listen", "token", "allowed-origins", "debounce", "ignore", "log-level", "root", "verbose"} {
		cfg.Sources[key] = SourceDefault
	}

	file, path, err := readConfigFile(flags, getenv)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfigFile = path
	if err := cfg.applyFile(file); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.applyFlags(flags); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the resolved values.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return errors.New("invalid listen: value cannot be empty")
	}
	if cfg.Debounce <= 0 || cfg.Debounce > MaxDebounce {
		return fmt.Errorf("invalid debounce %s: must be > 0 and <= %s", cfg.Debounce, MaxDebounce)
	}
	if _, err := watcher.NewIgnoreMatcher(cfg.Ignore); err != nil {
		return fmt.Errorf("invalid ignore: %w", err)
	}
	if _, ok := logging.ParseLevel(string(cfg.LogLevel)); !ok {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	return nil
}

// Fields renders the settings and their sources for a startup log line.
// The token value is never included.
func (cfg Config) Fields() map[string]string {
	token := ""
	if cfg.AuthToken != "" {
		token = "set"
	}
	fields := map[string]string{
		"listen":          cfg.Listen,
		"token":           token,
		"allowed-origins": strings.Join(cfg.AllowedOrigins, ","),
		"debounce":        cfg.Debounce.String(),
		"ignore":          strings.Join(cfg.Ignore, ","),
		"log-level":       string(cfg.LogLevel),
		"root":            cfg.Root,
		"config-file":     cfg.ConfigFile,
	}
	for key, source := range cfg.Sources {
		fields[key+".source"] = string(source)
	}
	return fields
}

// DefaultConfigPath is the file read when no path is given. It is skipped if
// missing.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "marknote", "config.yaml")
}

func readConfigFile(flags *pflag.FlagSet, getenv func(string) string) (fileValues, string, error) {
	path := strings.TrimSpace(getenv("MARKNOTE_CONFIG"))
	explicit := path != ""
	if flags != nil && flags.Changed("config") {
		value, err := flags.GetString("config")
		if err != nil {
			return fileValues{}, "", err
		}
		path = strings.TrimSpace(value)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return fileValues{}, "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return fileValues{}, "", nil
		}
		return fileValues{}, "", fmt.Errorf("read config file: %w", err)
	}
	var values fileValues
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fileValues{}, "", fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, path, nil
}

func (cfg *Config) applyFile(values fileValues) error {
	if values.Listen != nil {
		cfg.Listen = strings.TrimSpace(*values.Listen)
		cfg.Sources["listen"] = SourceFile
	}
	if values.Token != nil {
		cfg.AuthToken = *values.Token
		cfg.Sources["token"] = SourceFile
	}
	if values.AllowedOrigins != nil {
		cfg.AllowedOrigins = cleanList(*values.AllowedOrigins)
		cfg.Sources["allowed-origins"] = SourceFile
	}
	if values.Debounce != nil {
		parsed, err := time.ParseDuration(strings.TrimSpace(*values.Debounce))
		if err != nil {
			return fmt.Errorf("invalid debounce: %w", err)
		}
		cfg.Debounce = parsed
		cfg.Sources["debounce"] = SourceFile
	}
	if values.Ignore != nil {
		cfg.Ignore = cleanList(*values.Ignore)
		cfg.Sources["ignore"] = SourceFile
	}
	if values.LogLevel != nil {
		level, ok := logging.ParseLevel(*values.LogLevel)
		if !ok {
			return fmt.Errorf("invalid log_level %q", *values.LogLevel)
		}
		cfg.LogLevel = level
		cfg.Sources["log-level"] = SourceFile
	}
	if values.Root != nil {
		cfg.Root = strings.TrimSpace(*values.Root)
		cfg.Sources["root"] = SourceFile
	}
	return nil
}

func (cfg *Config) applyEnv(getenv func(string) string) error {
	if raw := strings.TrimSpace(getenv("MARKNOTE_LISTEN")); raw != "" {
		cfg.Listen = raw
		cfg.Sources["listen"] = SourceEnv
	}
	if raw := getenv("MARKNOTE_TOKEN"); raw != "" {
		cfg.AuthToken = raw
		cfg.Sources["token"] = SourceEnv
	}
	if raw := strings.TrimSpace(getenv("MARKNOTE_ALLOWED_ORIGINS")); raw != "" {
		cfg.AllowedOrigins = cleanList(strings.Split(raw, ","))
		cfg.Sources["allowed-origins"] = SourceEnv
	}
	if raw := strings.TrimSpace(getenv("MARKNOTE_DEBOUNCE")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid MARKNOTE_DEBOUNCE: %w", err)
		}
		cfg.Debounce = parsed
		cfg.Sources["debounce"] = SourceEnv
	}
	if raw := strings.TrimSpace(getenv("MARKNOTE_IGNORE")); raw != "" {
		cfg.Ignore = cleanList(strings.Split(raw, ","))
		cfg.Sources["ignore"] = SourceEnv
	}
	if raw := strings.TrimSpace(getenv("MARKNOTE_LOG_LEVEL")); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return fmt.Errorf("invalid MARKNOTE_LOG_LEVEL %q", raw)
		}
		cfg.LogLevel = level
		cfg.Sources["log-level"] = SourceEnv
	}
	if raw := strings.TrimSpace(getenv("MARKNOTE_ROOT")); raw != "" {
		cfg.Root = raw
		cfg.Sources["root"] = SourceEnv
	}
	return nil
}

func (cfg *Config) applyFlags(flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	if flags.Changed("listen") {
		value, err := flags.GetString("listen")
		if err != nil {
			return fmt.Errorf("invalid --listen: %w", err)
		}
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return errors.New("invalid --listen: value cannot be empty")
		}
		cfg.Listen = trimmed
		cfg.Sources["listen"] = SourceFlag
	}
	if flags.Changed("token") {
		value, err := flags.GetString("token")
		if err != nil {
			return fmt.Errorf("invalid --token: %w", err)
		}
		cfg.AuthToken = value
		cfg.Sources["token"] = SourceFlag
	}
	if flags.Changed("allowed-origin") {
		values, err := flags.GetStringSlice("allowed-origin")
		if err != nil {
			return fmt.Errorf("invalid --allowed-origin: %w", err)
		}
		cfg.AllowedOrigins = cleanList(values)
		cfg.Sources["allowed-origins"] = SourceFlag
	}
	if flags.Changed("debounce") {
		value, err := flags.GetDuration("debounce")
		if err != nil {
			return fmt.Errorf("invalid --debounce: %w", err)
		}
		cfg.Debounce = value
		cfg.Sources["debounce"] = SourceFlag
	}
	if flags.Changed("ignore") {
		values, err := flags.GetStringSlice("ignore")
		if err != nil {
			return fmt.Errorf("invalid --ignore: %w", err)
		}
		cfg.Ignore = cleanList(values)
		cfg.Sources["ignore"] = SourceFlag
	}
	if flags.Changed("log-level") {
		value, err := flags.GetString("log-level")
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		level, ok := logging.ParseLevel(value)
		if !ok {
			return fmt.Errorf("invalid --log-level %q", value)
		}
		cfg.LogLevel = level
		cfg.Sources["log-level"] = SourceFlag
	}
	if flags.Changed("root") {
		value, err := flags.GetString("root")
		if err != nil {
			return fmt.Errorf("invalid --root: %w", err)
		}
		cfg.Root = strings.TrimSpace(value)
		cfg.Sources["root"] = SourceFlag
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return fmt.Errorf("invalid --verbose: %w", err)
		}
		cfg.Verbose = value
		cfg.Sources["verbose"] = SourceFlag
	}
	return nil
}

func cleanList(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
