// Package config defines the top-level configuration for the copy tracker
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by COPYBOT_* environment
// variables.
type Config struct {
	Target     TargetConfig     `toml:"target"`
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Risk       RiskConfig       `toml:"risk"`
	State      StateConfig      `toml:"state"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// TargetConfig identifies the wallet being tracked and how it is watched.
type TargetConfig struct {
	Wallet       string   `toml:"wallet"`
	Feed         string   `toml:"feed"` // "poll" or "websocket"
	PollInterval duration `toml:"poll_interval"`
}

// WalletConfig holds the operator's own wallet credentials, required only in
// copy mode.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds API endpoints and CLOB credentials.
type PolymarketConfig struct {
	DataHost      string `toml:"data_host"`
	ClobHost      string `toml:"clob_host"`
	WsHost        string `toml:"ws_host"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// RiskConfig scales the target's fills down to the operator's budget.
type RiskConfig struct {
	Multiplier   float64 `toml:"multiplier"`
	MaxTradeUSDC float64 `toml:"max_trade_usdc"`
	DryRun       bool    `toml:"dry_run"`
}

// StateConfig controls local snapshot persistence.
type StateConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig holds connection parameters for the optional ledger mirror.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds connection parameters for the optional signal bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Channel    string `toml:"channel"`
}

// S3Config holds parameters for the optional snapshot archive.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// NotifyConfig holds chat alert settings.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Kinds             []string `toml:"kinds"`
}

// duration wraps time.Duration so TOML values like "30s" decode directly.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

var validModes = map[string]bool{
	"track": true,
	"copy":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFeeds = map[string]bool{
	"poll":      true,
	"websocket": true,
}

// Defaults returns the built-in configuration, suitable for track mode
// against the public APIs with no optional backends.
func Defaults() Config {
	return Config{
		Target: TargetConfig{
			Feed:         "poll",
			PollInterval: duration{30 * time.Second},
		},
		Polymarket: PolymarketConfig{
			DataHost: "https://data-api.polymarket.com",
			ClobHost: "https://clob.polymarket.com",
			WsHost:   "wss://ws-subscriptions-clob.polymarket.com",
		},
		Risk: RiskConfig{
			Multiplier:   1.0,
			MaxTradeUSDC: 100,
			DryRun:       true,
		},
		State: StateConfig{
			Path: "data/tracker_state.json",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Channel:    "fills",
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "copytracker-data",
			ForcePathStyle:  true,
			ArchiveInterval: duration{1 * time.Hour},
		},
		Mode:     "track",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency and returns a
// combined error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: track, copy)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Target.Wallet == "" {
		errs = append(errs, "target: wallet must not be empty")
	}
	if !validFeeds[strings.ToLower(c.Target.Feed)] {
		errs = append(errs, fmt.Sprintf("target: unknown feed %q (valid: poll, websocket)", c.Target.Feed))
	}
	if c.Target.PollInterval.Duration <= 0 {
		errs = append(errs, "target: poll_interval must be positive")
	}

	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}

	if c.Risk.Multiplier < 0 {
		errs = append(errs, "risk: multiplier must not be negative")
	}
	if c.Risk.MaxTradeUSDC < 0 {
		errs = append(errs, "risk: max_trade_usdc must not be negative")
	}

	if c.State.Path == "" {
		errs = append(errs, "state: path must not be empty")
	}

	// Copy mode trades with the operator's own wallet and needs CLOB access.
	if strings.ToLower(c.Mode) == "copy" && !c.Risk.DryRun {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for copy mode")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Polymarket.ClobHost == "" {
			errs = append(errs, "polymarket: clob_host must not be empty for copy mode")
		}
		ak := c.Polymarket.ApiKey != ""
		as := c.Polymarket.ApiSecret != ""
		ap := c.Polymarket.ApiPassphrase != ""
		if !(ak && as && ap) {
			errs = append(errs, "polymarket: api_key, api_secret, and api_passphrase must all be set for copy mode")
		}
	}

	if strings.ToLower(c.Target.Feed) == "websocket" && c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty for the websocket feed")
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.Channel == "" {
			errs = append(errs, "redis: channel must not be empty")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be positive")
		}
	}

	if (c.Notify.TelegramToken != "") != (c.Notify.TelegramChatID != "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
