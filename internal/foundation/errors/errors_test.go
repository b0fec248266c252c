package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedErrorString(t *testing.T) {
	err := WrapError(errors.New("eof"), CategoryStorage, "read object").
		WithContext("hash", "ab12").
		WithContext("attempt", 2).
		Build()

	assert.Equal(t, "storage: read object (attempt=2 hash=ab12): eof", err.Error())
	assert.Equal(t, "read object", err.Message())
	assert.Equal(t, Fields{"hash": "ab12", "attempt": 2}, err.Fields())

	plain := ValidationError("no input").Build()
	assert.Equal(t, "validation: no input", plain.Error())
	assert.Nil(t, plain.Fields())
}

func TestFieldsAreCopied(t *testing.T) {
	err := NotFoundError("missing").WithContext("slug", "a").Build()
	f := err.Fields()
	f["slug"] = "b"
	assert.Equal(t, "a", err.Fields()["slug"])
}

func TestBuilderDoesNotAlias(t *testing.T) {
	b := SchemaValidation("bad")
	first := b.Build()
	second := b.WithContext("type", "video").Build()
	assert.NotSame(t, first, second)
	assert.Equal(t, CategorySchema, first.Category())
}

func TestCanRetry(t *testing.T) {
	tests := []struct {
		name string
		err  *ClassifiedError
		want bool
	}{
		{"network default", NetworkError("down").Build(), true},
		{"storage default", StorageError("disk").Build(), true},
		{"filesystem default", FileSystemError("io").Build(), true},
		{"schema default", SchemaValidation("bad").Build(), false},
		{"network forced never", NetworkError("404").WithRetry(RetryNever).Build(), false},
		{"compile forced retry", CompileError("flaky").Retryable().Build(), true},
		{"unknown category", NewError("other", "x").Build(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.CanRetry())
		})
	}
}

func TestCategoryTable(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		status   int
		exit     int
	}{
		{CategoryValidation, http.StatusBadRequest, 2},
		{CategorySchema, http.StatusUnprocessableEntity, 2},
		{CategoryUnsupportedNode, http.StatusUnprocessableEntity, 2},
		{CategoryNotFound, http.StatusNotFound, 3},
		{CategoryConfig, http.StatusBadRequest, 7},
		{CategoryNetwork, http.StatusBadGateway, 8},
		{CategoryInternal, http.StatusInternalServerError, 10},
		{CategoryStorage, http.StatusInternalServerError, 11},
		{CategoryRuntime, http.StatusServiceUnavailable, 12},
		{ErrorCategory("bogus"), http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.category.HTTPStatus())
			assert.Equal(t, tt.exit, tt.category.ExitCode())
		})
	}
}

func TestCategoryDetectionThroughWrapping(t *testing.T) {
	inner := SchemaValidation("unknown keep type").WithContext("type", "video").Build()
	outer := WrapError(inner, CategoryCompile, "compile document").Build()
	wrapped := fmt.Errorf("docs/a.md: %w", outer)

	assert.True(t, IsSchemaValidation(wrapped))
	assert.False(t, IsUnsupportedNodeKind(wrapped))
	assert.Equal(t, CategoryCompile, GetCategory(wrapped))
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	assert.True(t, errors.Is(wrapped, SchemaValidation("unknown keep type").Build()))

	c, ok := AsClassified(wrapped)
	require.True(t, ok)
	assert.Same(t, outer, c)

	kind := UnsupportedNodeKind("doctype").Build().Fields()["kind"]
	assert.Equal(t, "doctype", kind)
}

func TestWithContextOnBuiltError(t *testing.T) {
	base := StorageError("insert document").WithRetry(RetryNever).Build()
	withSlug := base.WithContext("slug", "guide")

	assert.Nil(t, base.Fields())
	assert.Equal(t, Fields{"slug": "guide"}, withSlug.Fields())
	assert.Equal(t, CategoryStorage, withSlug.Category())
	assert.False(t, withSlug.CanRetry())
	assert.Equal(t, "storage: insert document (slug=guide)", withSlug.Error())
}
