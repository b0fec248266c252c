// Package errors classifies docfold failures.
//
// Every ClassifiedError carries an ErrorCategory. The category alone decides
// the CLI exit code, the HTTP status and whether a retry loop may try again;
// a single error can override the retry decision with WithRetry.
//
// Compilation failures are never retried: a document that fails with
// UnsupportedNodeKind or SchemaValidation fails again until its input changes.
//
//	err := errors.SchemaValidation("unknown keep node type").
//		WithContext("type", kind).
//		Build()
package errors
