package app

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		AppAddr:           ":8080",
		LogFormat:         "json",
		LogLevel:          "info",
		PGDSN:             "postgres://localhost/ledgerview",
		PGMaxConns:        10,
		RedisAddr:         "127.0.0.1:6379",
		ETLJobTTL:         time.Hour,
		ETLFetchTimeout:   time.Second,
		WorkerConcurrency: 5,
		PollInterval:      2 * time.Second,
		APIBaseURL:        "http://127.0.0.1:8080",
	}
}

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "POLL_INTERVAL", "PG_MAX_CONNS", "REDIS_DB"} {
		unsetenv(t, key)
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.ETLFetchTimeout)
	assert.Equal(t, int32(10), cfg.PGMaxConns)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("ETL_MAX_RETRY", "2")
	t.Setenv("ETL_SCHEDULE", "0 * * * *")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2, cfg.ETLMaxRetry)
	assert.Equal(t, "0 * * * *", cfg.ETLSchedule)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "0s")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg.LogFormat = "xml"
	cfg.LogLevel = "loud"
	cfg.ETLMaxRetry = -1
	cfg.APIBaseURL = "/relative"
	cfg.ETLSchedule = "every tuesday"
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"LOG_FORMAT", "LOG_LEVEL", "ETL_MAX_RETRY", "API_BASE_URL", "ETL_SCHEDULE"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateAcceptsScheduleDescriptors(t *testing.T) {
	cfg := validConfig()
	for _, spec := range []string{"0 2 * * *", "@hourly", "@every 30m"} {
		cfg.ETLSchedule = spec
		assert.NoError(t, cfg.Validate(), spec)
	}
}

func TestParseLevel(t *testing.T) {
	level, ok := parseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, level)

	_, ok = parseLevel("verbose")
	assert.False(t, ok)
}

func TestConnectionOptionsFromConfig(t *testing.T) {
	cfg := validConfig()
	cfg.PGMinConns = 2
	cfg.PGMaxConnIdleTime = time.Minute
	cfg.RedisPassword = "secret"
	cfg.RedisDB = 3

	pool := cfg.DatabaseOptions()
	assert.Equal(t, cfg.PGDSN, pool.DSN)
	assert.Equal(t, int32(10), pool.MaxConns)
	assert.Equal(t, int32(2), pool.MinConns)
	assert.Equal(t, time.Minute, pool.MaxConnIdleTime)

	redisOpts := cfg.RedisOptions()
	assert.Equal(t, "secret", redisOpts.Password)
	assert.Equal(t, 3, redisOpts.AsynqOpt().DB)
	assert.Equal(t, cfg.RedisAddr, redisOpts.AsynqOpt().Addr)
}

func TestValidateConnectionLimits(t *testing.T) {
	cfg := validConfig()
	cfg.PGMaxConns = 0
	cfg.PGMinConns = 4
	cfg.RedisDB = -1
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"PG_MAX_CONNS", "PG_MIN_CONNS", "REDIS_DB"} {
		assert.Contains(t, err.Error(), want)
	}
}
