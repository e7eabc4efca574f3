package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "clover-api", cfg.AppName)
	assert.Equal(t, 3002, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.DatabaseConnMaxLifetime)
	assert.Equal(t, 30*time.Second, cfg.MergeLockTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Equal(t, []string{"GET", "POST"}, cfg.AllowMethods)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, uint(3), cfg.EventPublishAttempts)
	assert.InDelta(t, 0.8, cfg.DuplicateThreshold, 1e-9)
	assert.InDelta(t, 0.45, cfg.WeightEmail, 1e-9)
	assert.Equal(t, 10, cfg.AutoMergeMaxPasses)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MERGE_LOCK_TTL", "5s")
	t.Setenv("DUPLICATE_THRESHOLD", "0.65")
	t.Setenv("PRETTY_LOGS", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.MergeLockTTL)
	assert.InDelta(t, 0.65, cfg.DuplicateThreshold, 1e-9)
	assert.True(t, cfg.PrettyLogs)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_NAME=leads_test\nREDIS_HOST=cache\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("DB_NAME")
		_ = os.Unsetenv("REDIS_HOST")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "leads_test", cfg.DatabaseName)
	assert.Equal(t, "cache", cfg.RedisHost)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"threshold above one", "DUPLICATE_THRESHOLD", "1.5"},
		{"negative weight", "WEIGHT_PHONE", "-0.1"},
		{"unknown exporter", "TRACING_EXPORTER", "jaeger"},
		{"exact below similar", "EXACT_MATCH_SCORE", "0.5"},
		{"zero passes", "AUTO_MERGE_MAX_PASSES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := &Config{
		DatabaseHost:     "db",
		DatabasePort:     "5432",
		DatabaseName:     "clover",
		DatabaseUserName: "app",
		DatabasePassword: "p@ss",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/clover?sslmode=disable", cfg.PostgresURL())

	cfg.DatabaseURL = "postgres://override/clover"
	assert.Equal(t, "postgres://override/clover", cfg.PostgresURL())
}
