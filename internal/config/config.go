// Package config defines the top-level configuration for the overnight
// paper-trading bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by OVERNIGHT_* environment
// variables.
type Config struct {
	Broker      BrokerConfig      `toml:"broker"`
	Engine      EngineConfig      `toml:"engine"`
	Instruments InstrumentsConfig `toml:"instruments"`
	Signal      SignalConfig      `toml:"signal"`
	Schedule    ScheduleConfig    `toml:"schedule"`
	Storage     StorageConfig     `toml:"storage"`
	Redis       RedisConfig       `toml:"redis"`
	Archive     ArchiveConfig     `toml:"archive"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	LogLevel    string            `toml:"log_level"`
}

// BrokerConfig holds quote-provider API credentials. The provider is used
// for quotes only; order placement is disabled by contract.
type BrokerConfig struct {
	BaseURL             string   `toml:"base_url"`
	APIKey              string   `toml:"api_key"`
	ClientCode          string   `toml:"client_code"`
	PIN                 string   `toml:"pin"`
	TOTPSecret          string   `toml:"totp_secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	SessionTTL          duration `toml:"session_ttl"`
	RequestTimeout      duration `toml:"request_timeout"`
}

// EngineConfig holds paper-trading sizing parameters.
type EngineConfig struct {
	StartingCash string `toml:"starting_cash"` // decimal string, e.g. "500000.00"
	CashBuffer   string `toml:"cash_buffer"`   // kept aside when sizing bundles
	StrikeStep   int    `toml:"strike_step"`
	LotSize      int    `toml:"lot_size"`
	PrimaryLots  int    `toml:"primary_lots"` // lots of the directional leg per bundle
	HedgeLots    int    `toml:"hedge_lots"`   // lots of the opposite-type leg per bundle
}

// InstrumentsConfig locates the broker scrip-master dump used for symbol
// resolution.
type InstrumentsConfig struct {
	DumpPath   string `toml:"dump_path"`
	Underlying string `toml:"underlying"` // index name, e.g. "NIFTY"
	Exchange   string `toml:"exchange"`   // options exchange, e.g. "NFO"
}

// SignalConfig tells the bot where the prediction pipeline publishes its
// latest directional signal.
type SignalConfig struct {
	RedisKey string   `toml:"redis_key"`
	MaxAge   duration `toml:"max_age"`
	// Static pins the signal for demo mode ("UP", "DOWN", "NEUTRAL"); empty
	// means read from Redis.
	Static string `toml:"static"`
}

// ScheduleConfig holds the two daily triggers. Cron specs are standard
// 5-field expressions evaluated in Timezone.
type ScheduleConfig struct {
	Timezone      string   `toml:"timezone"`
	EntryCron     string   `toml:"entry_cron"`
	ExitCron      string   `toml:"exit_cron"`
	CatchUpGrace  duration `toml:"catch_up_grace"`
	ActionTimeout duration `toml:"action_timeout"`
}

// StorageConfig selects and configures the ledger backend.
type StorageConfig struct {
	// Driver is "postgres" or "memory" (demo/tests only; not durable).
	Driver        string `toml:"driver"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ArchiveConfig holds S3 cold-storage parameters for closed trades.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Cron           string `toml:"cron"`
	RetentionDays  int    `toml:"retention_days"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. Values mirror the NIFTY
// overnight strategy this bot was built for.
func Defaults() Config {
	return Config{
		Broker: BrokerConfig{
			BaseURL:        "https://apiconnect.angelone.in",
			SessionTTL:     duration{40 * time.Minute},
			RequestTimeout: duration{10 * time.Second},
		},
		Engine: EngineConfig{
			StartingCash: "500000.00",
			CashBuffer:   "100.00",
			StrikeStep:   50,
			LotSize:      75,
			PrimaryLots:  2,
			HedgeLots:    1,
		},
		Instruments: InstrumentsConfig{
			DumpPath:   "data/instruments.json",
			Underlying: "NIFTY",
			Exchange:   "NFO",
		},
		Signal: SignalConfig{
			RedisKey: "signal:direction:latest",
			MaxAge:   duration{2 * time.Hour},
		},
		Schedule: ScheduleConfig{
			Timezone:      "Asia/Kolkata",
			EntryCron:     "28 15 * * 1,2,3,4,5",
			ExitCron:      "21 9 * * 1,2,3,4,5",
			CatchUpGrace:  duration{5 * time.Minute},
			ActionTimeout: duration{3 * time.Minute},
		},
		Storage: StorageConfig{
			Driver:        "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled: true,
			Addr:    "localhost:6379",
		},
		Archive: ArchiveConfig{
			Cron:          "0 4 * * 6",
			RetentionDays: 90,
			Region:        "ap-south-1",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		LogLevel: "info",
	}
}

// Validate checks cross-field constraints that the loader cannot express.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Storage.Driver) {
	case "postgres":
		if c.Storage.DSN == "" && (c.Storage.Host == "" || c.Storage.Database == "") {
			problems = append(problems, "storage: postgres driver needs dsn or host+database")
		}
	case "memory":
		// Nothing to check; not durable, demo only.
	default:
		problems = append(problems, fmt.Sprintf("storage: unknown driver %q", c.Storage.Driver))
	}

	if c.Engine.PrimaryLots <= 0 || c.Engine.HedgeLots < 0 {
		problems = append(problems, "engine: primary_lots must be positive and hedge_lots non-negative")
	}
	if c.Engine.StrikeStep <= 0 || c.Engine.LotSize <= 0 {
		problems = append(problems, "engine: strike_step and lot_size must be positive")
	}

	if c.Schedule.EntryCron == "" || c.Schedule.ExitCron == "" {
		problems = append(problems, "schedule: entry_cron and exit_cron are required")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("schedule: unknown timezone %q", c.Schedule.Timezone))
	}

	if c.Signal.Static != "" {
		switch strings.ToUpper(c.Signal.Static) {
		case "UP", "DOWN", "NEUTRAL":
		default:
			problems = append(problems, fmt.Sprintf("signal: invalid static direction %q", c.Signal.Static))
		}
	} else if c.Signal.RedisKey == "" {
		problems = append(problems, "signal: redis_key required unless static is set")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		problems = append(problems, "archive: bucket required when enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
