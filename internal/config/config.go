package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Auth     AuthConfig
	Client   ClientConfig
	Review   ReviewConfig
	Exposure ExposureConfig
	MCP      MCPConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Bind, strconv.Itoa(s.Port))
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	Issuer     string
	TokenTTL   time.Duration
	JWTSecret  string
	AdminToken string
}

type ClientConfig struct {
	BaseURL string
	Token   string
}

type ReviewConfig struct {
	Timezone    string
	WeekStart   string
	WrapScan    bool
	TagCacheTTL time.Duration
}

type ExposureConfig struct {
	Retention     time.Duration
	PruneSchedule string
}

type MCPConfig struct {
	ReviewerID string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Issuer:   "curate",
			TokenTTL: 720 * time.Hour,
		},
		Client: ClientConfig{
			BaseURL: "http://127.0.0.1:4100",
		},
		Review: ReviewConfig{
			Timezone:    "UTC",
			WeekStart:   "monday",
			TagCacheTTL: time.Minute,
		},
		Exposure: ExposureConfig{
			Retention:     720 * time.Hour,
			PruneSchedule: "@daily",
		},
	}
}

// Load reads configuration from the JSON file backend, then applies
// CURATE_* environment variables, then fills secrets from the secrets file
// when the environment did not provide them.
//
// The backend lives at $XDG_CONFIG_HOME/curate/config.json and the secrets
// file at $XDG_DATA_HOME/curate/secrets.json.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts secret storage for testing.
type secretStore interface {
	Get(account string) (string, error)
	Set(account, value string) error
}

func loadWith(b ConfigBackend, sec secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, sec)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("invalid config: storage.data_dir is empty")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Exposure.Retention <= 0 {
		return fmt.Errorf("invalid config: exposure.retention must be positive")
	}
	return nil
}

// ParseLevel maps a log.level value onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
