package config

import (
	"fmt"
	"strings"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeLogLevel maps user input to a LogLevel, or "" when unknown.
func NormalizeLogLevel(raw string) LogLevel {
	switch clean(raw) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return ""
	}
}

// NormalizeLogFormat maps user input to a LogFormat, or "" when unknown.
func NormalizeLogFormat(raw string) LogFormat {
	switch clean(raw) {
	case "json":
		return LogFormatJSON
	case "text":
		return LogFormatText
	default:
		return ""
	}
}

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch clean(raw) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	default:
		return ""
	}
}

// NormalizationResult captures coercions made while normalizing.
type NormalizationResult struct{ Warnings []string }

// Normalize canonicalizes enumerated fields in place. Unknown values fall back
// to the default with a warning.
func Normalize(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	normalizeEnum(res, "logging.level", &c.Logging.Level, NormalizeLogLevel, LogLevelInfo)
	normalizeEnum(res, "logging.format", &c.Logging.Format, NormalizeLogFormat, LogFormatText)
	normalizeEnum(res, "link_preview.retry_backoff", &c.LinkPreview.RetryBackoff, NormalizeRetryBackoff, RetryBackoffExponential)
	if c.Build.Workers < 0 {
		res.Warnings = append(res.Warnings, warnChanged("build.workers", c.Build.Workers, 0))
		c.Build.Workers = 0
	}
	return res
}

func normalizeEnum[T ~string](res *NormalizationResult, field string, v *T, norm func(string) T, def T) {
	if *v == "" {
		return
	}
	if n := norm(string(*v)); n != "" {
		if *v != n {
			res.Warnings = append(res.Warnings, warnChanged(field, *v, n))
			*v = n
		}
		return
	}
	res.Warnings = append(res.Warnings, warnUnknown(field, string(*v), string(def)))
	*v = def
}

func clean(raw string) string { return strings.ToLower(strings.TrimSpace(raw)) }

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string) string {
	return fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def)
}
