// Package config loads docfold's YAML configuration.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// Config is the root configuration document.
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Output      OutputConfig      `yaml:"output"`
	Build       BuildConfig       `yaml:"build"`
	Media       MediaConfig       `yaml:"media"`
	LinkPreview LinkPreviewConfig `yaml:"link_preview"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
}

// SourceConfig says where documents come from.
type SourceConfig struct {
	Dir     string   `yaml:"dir"`
	Include []string `yaml:"include,omitempty"` // glob patterns relative to Dir
	Exclude []string `yaml:"exclude,omitempty"`
}

// OutputConfig says where compiled artifacts go.
type OutputConfig struct {
	Database string `yaml:"database"`
	Objects  string `yaml:"objects"`
	HTMLDir  string `yaml:"html_dir,omitempty"` // optional rendered HTML export
}

// BuildConfig tunes compilation.
type BuildConfig struct {
	Workers int `yaml:"workers"`
	// NamespaceIDs scopes position-derived ids to each document's slug.
	NamespaceIDs bool `yaml:"namespace_ids"`
	// GC removes stored objects no document of the build references.
	GC bool `yaml:"gc"`
	// Debounce delays watch-triggered rebuilds.
	Debounce time.Duration `yaml:"debounce"`
}

// MediaConfig controls image resolution.
type MediaConfig struct {
	AssetRoot string `yaml:"asset_root,omitempty"` // defaults to source.dir
	MaxBytes  int64  `yaml:"max_bytes"`
	// InlineBelow embeds images smaller than this many bytes as inline pointers.
	InlineBelow int64 `yaml:"inline_below,omitempty"`
}

// LinkPreviewConfig controls link card fetching.
type LinkPreviewConfig struct {
	Enabled      bool             `yaml:"enabled"`
	Timeout      time.Duration    `yaml:"timeout"`
	UserAgent    string           `yaml:"user_agent"`
	MaxBytes     int64            `yaml:"max_bytes"`
	RetryBackoff RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitial time.Duration    `yaml:"retry_initial"`
	RetryMax     time.Duration    `yaml:"retry_max"`
	MaxRetries   int              `yaml:"max_retries"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads configPath, expands ${VAR} references and applies defaults.
// Variables from .env files are loaded first; the process environment wins.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	// #nosec G304 - configPath is supplied by the operator
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "read config file").
			WithContext("path", configPath).
			Build()
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML, normalizes enums, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "unmarshal config").Build()
	}
	res := Normalize(&cfg)
	for _, w := range res.Warnings {
		_, _ = os.Stderr.WriteString("config: " + w + "\n")
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Init writes an example configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.Source.Include = []string{"**/*.md", "**/*.html", "**/*.hast.json"}
	example.Output.HTMLDir = "./public"
	example.LinkPreview.Enabled = true

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
