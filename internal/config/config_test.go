package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateForMemoryDriver(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Signal.Static = "UP"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.Engine.StrikeStep)
	assert.Equal(t, 75, cfg.Engine.LotSize)
	assert.Equal(t, "500000.00", cfg.Engine.StartingCash)
	assert.Equal(t, 40*time.Minute, cfg.Broker.SessionTTL.Duration)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
log_level = "debug"

[engine]
starting_cash = "100000.00"

[schedule]
timezone = "Asia/Kolkata"
entry_cron = "30 15 * * 1,2,3,4,5"

[storage]
driver = "memory"

[signal]
static = "DOWN"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "100000.00", cfg.Engine.StartingCash)
	assert.Equal(t, "30 15 * * 1,2,3,4,5", cfg.Schedule.EntryCron)
	// Untouched defaults survive the merge.
	assert.Equal(t, "21 9 * * 1,2,3,4,5", cfg.Schedule.ExitCron)
	assert.Equal(t, 75, cfg.Engine.LotSize)
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("OVERNIGHT_BROKER_API_KEY", "from-env")
	t.Setenv("OVERNIGHT_ENGINE_LOT_SIZE", "25")
	t.Setenv("OVERNIGHT_SCHEDULE_CATCH_UP_GRACE", "7m")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Broker.APIKey)
	assert.Equal(t, 25, cfg.Engine.LotSize)
	assert.Equal(t, 7*time.Minute, cfg.Schedule.CatchUpGrace.Duration)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Driver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Signal.Static = "SIDEWAYS"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Signal.Static = "UP"
	cfg.Schedule.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Signal.Static = "UP"
	cfg.Archive.Enabled = true
	assert.Error(t, cfg.Validate(), "archive enabled without bucket")
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Broker.APIKey = "key"
	cfg.Broker.TOTPSecret = "SECRET"
	cfg.Storage.Password = "pw"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Broker.APIKey)
	assert.Equal(t, "***", red.Broker.TOTPSecret)
	assert.Equal(t, "***", red.Storage.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Original untouched.
	assert.Equal(t, "key", cfg.Broker.APIKey)
}
