package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapterExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	assert.Equal(t, 0, adapter.ExitCodeFor(nil))
	assert.Equal(t, 2, adapter.ExitCodeFor(SchemaValidation("bad keep").Build()))
	assert.Equal(t, 11, adapter.ExitCodeFor(WrapError(errors.New("x"), CategoryBuild, "build").Build()))
	assert.Equal(t, 1, adapter.ExitCodeFor(errors.New("unknown error")))
}

func TestCLIErrorAdapterFormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	loud := NewCLIErrorAdapter(true, slog.Default())
	internal := InternalError("internal issue").Build()

	assert.Equal(t, "", quiet.FormatError(nil))
	assert.Contains(t, quiet.FormatError(internal), "use -v for details")
	assert.Contains(t, loud.FormatError(internal), "internal issue")
	assert.Equal(t, "Error: schema_validation: missing storage key", quiet.FormatError(SchemaValidation("missing storage key").Build()))
	assert.Equal(t, "Error: unknown error", quiet.FormatError(errors.New("unknown error")))
}

func TestCLIErrorAdapterHandleError(t *testing.T) {
	var out, logs bytes.Buffer
	adapter := NewCLIErrorAdapter(true, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(nil)
	assert.Equal(t, -1, code)

	adapter.HandleError(ConfigError("missing source dir").WithContext("field", "source.dir").Build())
	assert.Equal(t, 7, code)
	assert.Equal(t, "Error: config: missing source dir (field=source.dir)\n", out.String())
	assert.Contains(t, logs.String(), "category=config")
	assert.Contains(t, logs.String(), "field=source.dir")
}
