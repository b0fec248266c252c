package errors

import (
	"log/slog"
	"net/http"
)

// ErrorCategory classifies a failure for routing to exit codes, HTTP
// statuses and retry decisions.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// CategorySchema marks payloads that match none of the known document shapes.
	CategorySchema ErrorCategory = "schema_validation"
	// CategoryUnsupportedNode marks raw tree nodes the compiler cannot classify.
	CategoryUnsupportedNode ErrorCategory = "unsupported_node_kind"
	CategoryCompile         ErrorCategory = "compile"

	CategoryNetwork    ErrorCategory = "network"
	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryStorage    ErrorCategory = "storage"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

// class is everything the adapters need to know about a category.
type class struct {
	status    int
	exit      int
	retryable bool
	level     slog.Level
}

var classes = map[ErrorCategory]class{
	CategoryConfig:          {http.StatusBadRequest, 7, false, slog.LevelError},
	CategoryValidation:      {http.StatusBadRequest, 2, false, slog.LevelWarn},
	CategoryNotFound:        {http.StatusNotFound, 3, false, slog.LevelWarn},
	CategorySchema:          {http.StatusUnprocessableEntity, 2, false, slog.LevelWarn},
	CategoryUnsupportedNode: {http.StatusUnprocessableEntity, 2, false, slog.LevelWarn},
	CategoryCompile:         {http.StatusUnprocessableEntity, 11, false, slog.LevelError},
	CategoryNetwork:         {http.StatusBadGateway, 8, true, slog.LevelWarn},
	CategoryBuild:           {http.StatusUnprocessableEntity, 11, false, slog.LevelError},
	CategoryFileSystem:      {http.StatusInternalServerError, 11, true, slog.LevelError},
	CategoryStorage:         {http.StatusInternalServerError, 11, true, slog.LevelError},
	CategoryRuntime:         {http.StatusServiceUnavailable, 12, false, slog.LevelError},
	CategoryInternal:        {http.StatusInternalServerError, 10, false, slog.LevelError},
}

func (c ErrorCategory) class() class {
	if cl, ok := classes[c]; ok {
		return cl
	}
	return class{http.StatusInternalServerError, 1, false, slog.LevelError}
}

// HTTPStatus is the response status for failures of this category.
func (c ErrorCategory) HTTPStatus() int { return c.class().status }

// ExitCode is the process exit code for failures of this category.
func (c ErrorCategory) ExitCode() int { return c.class().exit }

// Retryable reports whether failures of this category are transient by default.
func (c ErrorCategory) Retryable() bool { return c.class().retryable }

// RetryStrategy overrides the category default on a single error.
type RetryStrategy string

const (
	RetryDefault RetryStrategy = ""
	RetryNever   RetryStrategy = "never"
	RetryBackoff RetryStrategy = "backoff"
)

// Fields carries structured details that end up in logs and HTTP error bodies.
type Fields map[string]any
