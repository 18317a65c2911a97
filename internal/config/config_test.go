package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// memSecrets is a test double for the secrets file.
type memSecrets map[string]string

func (m memSecrets) Get(account string) (string, error) {
	v, ok := m[account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m memSecrets) Set(account, value string) error {
	m[account] = value
	return nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	cfg, err := loadWith(newFileBackend(path), memSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:4100" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Auth.Issuer != "curate" {
		t.Errorf("Auth.Issuer = %q, want curate", cfg.Auth.Issuer)
	}
	if cfg.Auth.TokenTTL != 720*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 720h", cfg.Auth.TokenTTL)
	}
	if cfg.Review.WeekStart != "monday" || cfg.Review.Timezone != "UTC" || cfg.Review.WrapScan {
		t.Errorf("Review = %+v", cfg.Review)
	}
	if cfg.Review.TagCacheTTL != time.Minute {
		t.Errorf("Review.TagCacheTTL = %v, want 1m", cfg.Review.TagCacheTTL)
	}
	if cfg.Exposure.PruneSchedule != "@daily" || cfg.Exposure.Retention != 720*time.Hour {
		t.Errorf("Exposure = %+v", cfg.Exposure)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, "curate") {
		t.Errorf("Storage.DataDir = %q, want a curate directory", cfg.Storage.DataDir)
	}
}

// TestFileParsing verifies that typed fields are read from the JSON backend.
func TestFileParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "server.port": 5000,
  "server.bind": "0.0.0.0",
  "storage.data_dir": "/tmp/curate-test",
  "review.wrap_scan": "true",
  "review.week_start": "sunday",
  "auth.token_ttl": "24h",
  "mcp.reviewer_id": "alice"
}`)

	cfg, err := loadWith(newFileBackend(path), memSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 || cfg.Server.Bind != "0.0.0.0" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Storage.DataDir != "/tmp/curate-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if !cfg.Review.WrapScan {
		t.Error("Review.WrapScan = false, want true")
	}
	if cfg.Review.WeekStart != "sunday" {
		t.Errorf("Review.WeekStart = %q", cfg.Review.WeekStart)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v", cfg.Auth.TokenTTL)
	}
	if cfg.MCP.ReviewerID != "alice" {
		t.Errorf("MCP.ReviewerID = %q", cfg.MCP.ReviewerID)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server.port": 5000}`)

	t.Setenv("CURATE_SERVER_PORT", "6000")
	t.Setenv("CURATE_EXPOSURE_RETENTION", "48h")
	t.Setenv("CURATE_JWT_SECRET", "env-secret")

	cfg, err := loadWith(newFileBackend(path), memSecrets{"jwt_secret": "file-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Exposure.Retention != 48*time.Hour {
		t.Errorf("Exposure.Retention = %v, want 48h", cfg.Exposure.Retention)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("Auth.JWTSecret = %q, want env-secret", cfg.Auth.JWTSecret)
	}
}

// TestInvalidEnvIgnored verifies unparsable env values leave the default in place.
func TestInvalidEnvIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("CURATE_SERVER_PORT", "not-a-port")

	cfg, err := loadWith(newFileBackend(writeTempConfig(t, `{}`)), memSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100", cfg.Server.Port)
	}
}

// TestSecretsFallback verifies the secrets file is consulted when env is empty.
func TestSecretsFallback(t *testing.T) {
	clearEnv(t)

	sec := memSecrets{"admin_token": "file-admin", "client_token": "file-client"}
	cfg, err := loadWith(newFileBackend(writeTempConfig(t, `{}`)), sec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.AdminToken != "file-admin" {
		t.Errorf("Auth.AdminToken = %q", cfg.Auth.AdminToken)
	}
	if cfg.Client.Token != "file-client" {
		t.Errorf("Client.Token = %q", cfg.Client.Token)
	}
}

func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"auth.jwt_secret": "leaked"}`)

	cfg, err := loadWith(newFileBackend(path), memSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.JWTSecret != "" {
		t.Errorf("Auth.JWTSecret = %q, want secrets read only from env or secrets file", cfg.Auth.JWTSecret)
	}
}

func TestInvalidValues(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"bad duration": `{"auth.token_ttl": "forever"}`,
		"bad port":     `{"server.port": 70000}`,
		"bad level":    `{"log.level": "chatty"}`,
		"bad bool":     `{"review.wrap_scan": "maybe"}`,
	}
	for name, content := range cases {
		if _, err := loadWith(newFileBackend(writeTempConfig(t, content)), memSecrets{}); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "curate", "config.json")
	b := newFileBackend(path)

	if err := setKeyWith(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if err := setKeyWith(b, "review.tag_cache_ttl", "5m"); err != nil {
		t.Fatalf("setKeyWith: %v", err)
	}
	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "exposure.retention", "a while"); err == nil {
		t.Error("expected error for bad duration")
	}
	if err := setKeyWith(b, "auth.jwt_secret", "x"); err == nil {
		t.Error("expected error for secret key")
	}
	if err := setKeyWith(b, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	cfg, err := loadWith(newFileBackend(path), memSecrets{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want 4200", cfg.Server.Port)
	}
	if cfg.Review.TagCacheTTL != 5*time.Minute {
		t.Errorf("Review.TagCacheTTL = %v, want 5m", cfg.Review.TagCacheTTL)
	}
}

func TestEnsureSecret(t *testing.T) {
	sec := memSecrets{}

	first, err := ensureSecretWith(sec, "auth.jwt_secret")
	if err != nil {
		t.Fatalf("ensureSecretWith: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars", len(first))
	}
	second, err := ensureSecretWith(sec, "auth.jwt_secret")
	if err != nil {
		t.Fatalf("ensureSecretWith: %v", err)
	}
	if first != second {
		t.Error("secret regenerated on second call")
	}
	if _, err := ensureSecretWith(sec, "server.port"); err == nil {
		t.Error("expected error for non-secret key")
	}
}

func TestFileSecretsRoundTrip(t *testing.T) {
	f := fileSecrets{path: filepath.Join(t.TempDir(), "curate", "secrets.json")}

	if _, err := f.Get("jwt_secret"); err == nil {
		t.Fatal("expected error before file exists")
	}
	if err := f.Set("jwt_secret", "s1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Set("admin_token", "a1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := f.Get("jwt_secret")
	if err != nil || v != "s1" {
		t.Fatalf("Get = %q, %v; want s1", v, err)
	}

	info, err := os.Stat(f.path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secrets file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Auth.JWTSecret = "super-secret"

	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "super-secret") {
			t.Fatalf("ShowAll leaked secret for %s", ki.Key)
		}
		if ki.Key == "auth.jwt_secret" && ki.Value != "********" {
			t.Errorf("auth.jwt_secret shown as %q", ki.Value)
		}
	}
}

func TestValidKeysExcludesSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "auth.jwt_secret" || k == "auth.admin_token" || k == "client.token" {
			t.Errorf("ValidKeys includes secret %q", k)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error", ""} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
