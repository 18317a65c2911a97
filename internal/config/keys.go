package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secrets file entry; secrets only
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.bind", typ: kString, env: "CURATE_SERVER_BIND",
		apply:   func(cfg *Config, v any) { cfg.Server.Bind = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Bind },
	},
	{
		key: "server.port", typ: kInt, env: "CURATE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CURATE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CURATE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "auth.issuer", typ: kString, env: "CURATE_AUTH_ISSUER",
		apply:   func(cfg *Config, v any) { cfg.Auth.Issuer = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Issuer },
	},
	{
		key: "auth.token_ttl", typ: kDuration, env: "CURATE_AUTH_TOKEN_TTL",
		apply:   func(cfg *Config, v any) { cfg.Auth.TokenTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Auth.TokenTTL },
	},
	{
		key: "auth.jwt_secret", typ: kString, env: "CURATE_JWT_SECRET",
		secret: true, account: "jwt_secret",
		apply:   func(cfg *Config, v any) { cfg.Auth.JWTSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
	{
		key: "auth.admin_token", typ: kString, env: "CURATE_ADMIN_TOKEN",
		secret: true, account: "admin_token",
		apply:   func(cfg *Config, v any) { cfg.Auth.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.AdminToken },
	},
	{
		key: "client.base_url", typ: kString, env: "CURATE_CLIENT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Client.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.BaseURL },
	},
	{
		key: "client.token", typ: kString, env: "CURATE_CLIENT_TOKEN",
		secret: true, account: "client_token",
		apply:   func(cfg *Config, v any) { cfg.Client.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.Token },
	},
	{
		key: "review.timezone", typ: kString, env: "CURATE_REVIEW_TIMEZONE",
		apply:   func(cfg *Config, v any) { cfg.Review.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.Review.Timezone },
	},
	{
		key: "review.week_start", typ: kString, env: "CURATE_REVIEW_WEEK_START",
		apply:   func(cfg *Config, v any) { cfg.Review.WeekStart = v.(string) },
		extract: func(cfg Config) any { return cfg.Review.WeekStart },
	},
	{
		key: "review.wrap_scan", typ: kBool, env: "CURATE_REVIEW_WRAP_SCAN",
		apply:   func(cfg *Config, v any) { cfg.Review.WrapScan = v.(bool) },
		extract: func(cfg Config) any { return cfg.Review.WrapScan },
	},
	{
		key: "review.tag_cache_ttl", typ: kDuration, env: "CURATE_REVIEW_TAG_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Review.TagCacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Review.TagCacheTTL },
	},
	{
		key: "exposure.retention", typ: kDuration, env: "CURATE_EXPOSURE_RETENTION",
		apply:   func(cfg *Config, v any) { cfg.Exposure.Retention = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Exposure.Retention },
	},
	{
		key: "exposure.prune_schedule", typ: kString, env: "CURATE_EXPOSURE_PRUNE_SCHEDULE",
		apply:   func(cfg *Config, v any) { cfg.Exposure.PruneSchedule = v.(string) },
		extract: func(cfg Config) any { return cfg.Exposure.PruneSchedule },
	},
	{
		key: "mcp.reviewer_id", typ: kString, env: "CURATE_MCP_REVIEWER_ID",
		apply:   func(cfg *Config, v any) { cfg.MCP.ReviewerID = v.(string) },
		extract: func(cfg Config) any { return cfg.MCP.ReviewerID },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts a raw string into the Go value for typ.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				return fmt.Errorf("invalid value for %s=%q: %w", s.key, v, err)
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// applySecrets fills secrets the environment left empty.
func applySecrets(cfg *Config, sec secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := sec.Get(s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
