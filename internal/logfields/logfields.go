package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyDocument   = "document"
	KeyPath       = "path"
	KeyContentID  = "content_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyWorkers    = "workers"
	KeyKeepKind   = "keep_kind"
	KeyURL        = "url"
	KeyAttempt    = "attempt"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyStatus     = "status"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Document(slug string) slog.Attr  { return slog.String(KeyDocument, slug) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func ContentID(id string) slog.Attr   { return slog.String(KeyContentID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func KeepKind(kind string) slog.Attr  { return slog.String(KeyKeepKind, kind) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
