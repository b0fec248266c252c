package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("source:\n  dir: content\n"))
	require.NoError(t, err)

	assert.Equal(t, "content", cfg.Source.Dir)
	assert.Equal(t, []string{"**/*.md"}, cfg.Source.Include)
	assert.Equal(t, "content", cfg.Media.AssetRoot)
	assert.Positive(t, cfg.Build.Workers)
	assert.Equal(t, 300*time.Millisecond, cfg.Build.Debounce)
	assert.Equal(t, RetryBackoffExponential, cfg.LinkPreview.RetryBackoff)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		level    LogLevel
		format   LogFormat
		backoff  RetryBackoffMode
		warnings int
	}{
		{"canonical", Config{Logging: LoggingConfig{Level: "debug", Format: "json"}}, LogLevelDebug, LogFormatJSON, "", 0},
		{"case and space", Config{Logging: LoggingConfig{Level: " WARN "}}, LogLevelWarn, "", "", 1},
		{"unknown level", Config{Logging: LoggingConfig{Level: "loud"}}, LogLevelInfo, "", "", 1},
		{"backoff", Config{LinkPreview: LinkPreviewConfig{RetryBackoff: "Linear"}}, "", "", RetryBackoffLinear, 1},
		{"unknown backoff", Config{LinkPreview: LinkPreviewConfig{RetryBackoff: "random"}}, "", "", RetryBackoffExponential, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			res := Normalize(&cfg)
			assert.Equal(t, tt.level, cfg.Logging.Level)
			assert.Equal(t, tt.format, cfg.Logging.Format)
			assert.Equal(t, tt.backoff, cfg.LinkPreview.RetryBackoff)
			assert.Len(t, res.Warnings, tt.warnings)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad glob", func(c *Config) { c.Source.Include = []string{"[a"} }},
		{"inline above max", func(c *Config) { c.Media.InlineBelow = c.Media.MaxBytes + 1 }},
		{"negative retries", func(c *Config) { c.LinkPreview.MaxRetries = -1 }},
		{"initial above max", func(c *Config) { c.LinkPreview.RetryInitial = time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("DOCFOLD_TEST_DIR", "from-env")
	path := filepath.Join(t.TempDir(), "docfold.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  dir: ${DOCFOLD_TEST_DIR}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Source.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docfold.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "refuses to overwrite")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.LinkPreview.Enabled)
	assert.Equal(t, []string{"**/*.md", "**/*.html"}, cfg.Source.Include)
}
