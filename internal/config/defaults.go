package config

import (
	"runtime"
	"time"
)

const (
	defaultSourceDir      = "./docs"
	defaultDatabase       = "./.docfold/docs.db"
	defaultObjects        = "./.docfold/objects"
	defaultMediaMaxBytes  = 20 << 20
	defaultLinkMaxBytes   = 1 << 20
	defaultLinkTimeout    = 5 * time.Second
	defaultUserAgent      = "docfold-linkpreview/1.0"
	defaultDebounce       = 300 * time.Millisecond
	defaultServerAddr     = "127.0.0.1:8080"
	defaultRetryInitial   = 500 * time.Millisecond
	defaultRetryMax       = 5 * time.Second
	defaultMaxRetries     = 2
	defaultWorkersCeiling = 8
)

// ApplyDefaults fills zero values.
func ApplyDefaults(c *Config) {
	if c.Source.Dir == "" {
		c.Source.Dir = defaultSourceDir
	}
	if len(c.Source.Include) == 0 {
		c.Source.Include = []string{"**/*.md"}
	}
	if c.Output.Database == "" {
		c.Output.Database = defaultDatabase
	}
	if c.Output.Objects == "" {
		c.Output.Objects = defaultObjects
	}
	if c.Build.Workers <= 0 {
		c.Build.Workers = min(runtime.NumCPU(), defaultWorkersCeiling)
	}
	if c.Build.Debounce <= 0 {
		c.Build.Debounce = defaultDebounce
	}
	if c.Media.AssetRoot == "" {
		c.Media.AssetRoot = c.Source.Dir
	}
	if c.Media.MaxBytes <= 0 {
		c.Media.MaxBytes = defaultMediaMaxBytes
	}
	lp := &c.LinkPreview
	if lp.Timeout <= 0 {
		lp.Timeout = defaultLinkTimeout
	}
	if lp.UserAgent == "" {
		lp.UserAgent = defaultUserAgent
	}
	if lp.MaxBytes <= 0 {
		lp.MaxBytes = defaultLinkMaxBytes
	}
	if lp.RetryBackoff == "" {
		lp.RetryBackoff = RetryBackoffExponential
	}
	if lp.RetryInitial <= 0 {
		lp.RetryInitial = defaultRetryInitial
	}
	if lp.RetryMax <= 0 {
		lp.RetryMax = defaultRetryMax
	}
	if lp.MaxRetries == 0 {
		lp.MaxRetries = defaultMaxRetries
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
}
