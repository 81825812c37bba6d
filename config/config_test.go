package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "jobs_ge", cfg.Platform)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, []string{"json"}, cfg.Outputs)
	assert.Equal(t, 0.5, cfg.MaxFailureRatio)
	require.NoError(t, cfg.Request().Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PLATFORM", "cv_ge")
	t.Setenv("TARGET_COUNT", "42")
	t.Setenv("REQUIRE_SALARY", "true")
	t.Setenv("REQUEST_DELAY", "250ms")
	t.Setenv("REQUESTS_PER_SECOND", "1.5")
	t.Setenv("OUTPUT", "json, CSV ,,postgres")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	req := cfg.Request()
	assert.Equal(t, models.PlatformCvGe, req.Platform)
	assert.Equal(t, 42, req.TargetCount)
	assert.True(t, req.RequireSalary)
	assert.Equal(t, 250*time.Millisecond, req.BaseDelay)
	assert.Equal(t, 1.5, cfg.RequestsPerSecond)
	assert.Equal(t, 3, req.MaxRetries, "unparsable values keep the default")
	assert.Equal(t, []string{"json", "csv", "postgres"}, cfg.Outputs)
	assert.True(t, cfg.HasOutput("postgres"))
	assert.False(t, cfg.HasOutput("redis"))
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
platform: hr_ge
target_count: 20
http_timeout: 45s
outputs: [csv]
postgres_password: ${TEST_PG_PASSWORD}
schedule: "@every 6h"
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TEST_PG_PASSWORD", "s3cret")
	t.Setenv("TARGET_COUNT", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hr_ge", cfg.Platform)
	assert.Equal(t, 25, cfg.TargetCount, "env wins over the file")
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{"csv"}, cfg.Outputs)
	assert.Equal(t, "@every 6h", cfg.Schedule)
	assert.Contains(t, cfg.DSN(), "password=s3cret")
	assert.Equal(t, 5, cfg.MaxDetailConcurrency, "unset keys keep defaults")
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SCRAPER_TEST_HOST", "db")
	assert.Equal(t, "host=db port=${SCRAPER_TEST_UNSET}", expandEnvVars("host=${SCRAPER_TEST_HOST} port=${SCRAPER_TEST_UNSET}"))
}
