package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OVERNIGHT_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OVERNIGHT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Broker ──
	setStr(&cfg.Broker.BaseURL, "OVERNIGHT_BROKER_BASE_URL")
	setStr(&cfg.Broker.APIKey, "OVERNIGHT_BROKER_API_KEY")
	setStr(&cfg.Broker.ClientCode, "OVERNIGHT_BROKER_CLIENT_CODE")
	setStr(&cfg.Broker.PIN, "OVERNIGHT_BROKER_PIN")
	setStr(&cfg.Broker.TOTPSecret, "OVERNIGHT_BROKER_TOTP_SECRET")
	setStr(&cfg.Broker.EncryptedSecretPath, "OVERNIGHT_BROKER_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Broker.SecretPassword, "OVERNIGHT_BROKER_SECRET_PASSWORD")
	setDuration(&cfg.Broker.SessionTTL, "OVERNIGHT_BROKER_SESSION_TTL")
	setDuration(&cfg.Broker.RequestTimeout, "OVERNIGHT_BROKER_REQUEST_TIMEOUT")

	// ── Engine ──
	setStr(&cfg.Engine.StartingCash, "OVERNIGHT_ENGINE_STARTING_CASH")
	setStr(&cfg.Engine.CashBuffer, "OVERNIGHT_ENGINE_CASH_BUFFER")
	setInt(&cfg.Engine.StrikeStep, "OVERNIGHT_ENGINE_STRIKE_STEP")
	setInt(&cfg.Engine.LotSize, "OVERNIGHT_ENGINE_LOT_SIZE")
	setInt(&cfg.Engine.PrimaryLots, "OVERNIGHT_ENGINE_PRIMARY_LOTS")
	setInt(&cfg.Engine.HedgeLots, "OVERNIGHT_ENGINE_HEDGE_LOTS")

	// ── Instruments ──
	setStr(&cfg.Instruments.DumpPath, "OVERNIGHT_INSTRUMENTS_DUMP_PATH")
	setStr(&cfg.Instruments.Underlying, "OVERNIGHT_INSTRUMENTS_UNDERLYING")
	setStr(&cfg.Instruments.Exchange, "OVERNIGHT_INSTRUMENTS_EXCHANGE")

	// ── Signal ──
	setStr(&cfg.Signal.RedisKey, "OVERNIGHT_SIGNAL_REDIS_KEY")
	setDuration(&cfg.Signal.MaxAge, "OVERNIGHT_SIGNAL_MAX_AGE")
	setStr(&cfg.Signal.Static, "OVERNIGHT_SIGNAL_STATIC")

	// ── Schedule ──
	setStr(&cfg.Schedule.Timezone, "OVERNIGHT_SCHEDULE_TIMEZONE")
	setStr(&cfg.Schedule.EntryCron, "OVERNIGHT_SCHEDULE_ENTRY_CRON")
	setStr(&cfg.Schedule.ExitCron, "OVERNIGHT_SCHEDULE_EXIT_CRON")
	setDuration(&cfg.Schedule.CatchUpGrace, "OVERNIGHT_SCHEDULE_CATCH_UP_GRACE")
	setDuration(&cfg.Schedule.ActionTimeout, "OVERNIGHT_SCHEDULE_ACTION_TIMEOUT")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "OVERNIGHT_STORAGE_DRIVER")
	setStr(&cfg.Storage.DSN, "OVERNIGHT_STORAGE_DSN")
	setStr(&cfg.Storage.Host, "OVERNIGHT_STORAGE_HOST")
	setInt(&cfg.Storage.Port, "OVERNIGHT_STORAGE_PORT")
	setStr(&cfg.Storage.Database, "OVERNIGHT_STORAGE_DATABASE")
	setStr(&cfg.Storage.User, "OVERNIGHT_STORAGE_USER")
	setStr(&cfg.Storage.Password, "OVERNIGHT_STORAGE_PASSWORD")
	setStr(&cfg.Storage.SSLMode, "OVERNIGHT_STORAGE_SSLMODE")
	setInt(&cfg.Storage.PoolMaxConns, "OVERNIGHT_STORAGE_POOL_MAX_CONNS")
	setInt(&cfg.Storage.PoolMinConns, "OVERNIGHT_STORAGE_POOL_MIN_CONNS")
	setBool(&cfg.Storage.RunMigrations, "OVERNIGHT_STORAGE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "OVERNIGHT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "OVERNIGHT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OVERNIGHT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OVERNIGHT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OVERNIGHT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OVERNIGHT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OVERNIGHT_REDIS_TLS_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "OVERNIGHT_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "OVERNIGHT_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "OVERNIGHT_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Endpoint, "OVERNIGHT_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "OVERNIGHT_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "OVERNIGHT_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "OVERNIGHT_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "OVERNIGHT_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "OVERNIGHT_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "OVERNIGHT_ARCHIVE_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OVERNIGHT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OVERNIGHT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "OVERNIGHT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "OVERNIGHT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OVERNIGHT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OVERNIGHT_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "OVERNIGHT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "OVERNIGHT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
