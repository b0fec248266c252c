package config

import (
	"path/filepath"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// Validate checks a defaulted configuration.
func (c *Config) Validate() error {
	if c.Source.Dir == "" {
		return invalid("source.dir", "must not be empty")
	}
	for _, pattern := range append(append([]string{}, c.Source.Include...), c.Source.Exclude...) {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return invalid("source.include", "bad glob pattern "+pattern)
		}
	}
	if c.Output.Database == "" {
		return invalid("output.database", "must not be empty")
	}
	if c.Output.Objects == "" {
		return invalid("output.objects", "must not be empty")
	}
	if c.Media.InlineBelow < 0 {
		return invalid("media.inline_below", "cannot be negative")
	}
	if c.Media.InlineBelow > c.Media.MaxBytes {
		return invalid("media.inline_below", "cannot exceed media.max_bytes")
	}
	if c.LinkPreview.MaxRetries < 0 {
		return invalid("link_preview.max_retries", "cannot be negative")
	}
	if c.LinkPreview.RetryInitial > c.LinkPreview.RetryMax {
		return invalid("link_preview.retry_initial", "cannot exceed retry_max")
	}
	if c.Server.Addr == "" {
		return invalid("server.addr", "must not be empty")
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.ConfigError(field + " " + msg).
		WithContext("field", field).
		Build()
}
