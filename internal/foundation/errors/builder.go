package errors

import "maps"

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{category: category, message: message}}
}

// WrapError classifies err under category with a message describing the
// failed operation.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	if b.err.fields == nil {
		b.err.fields = Fields{}
	}
	b.err.fields[key] = value
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

// Retryable marks the error transient regardless of its category.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	return b.WithRetry(RetryBackoff)
}

func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.fields = maps.Clone(b.err.fields)
	return &e
}

func ConfigError(message string) *ErrorBuilder { return NewError(CategoryConfig, message) }

func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }

// SchemaValidation is for payloads matching none of the known shapes.
func SchemaValidation(message string) *ErrorBuilder { return NewError(CategorySchema, message) }

// UnsupportedNodeKind is for raw node kinds the compiler has no rule for.
func UnsupportedNodeKind(kind string) *ErrorBuilder {
	return NewError(CategoryUnsupportedNode, "unsupported node kind").WithContext("kind", kind)
}

func CompileError(message string) *ErrorBuilder { return NewError(CategoryCompile, message) }

func NotFoundError(message string) *ErrorBuilder { return NewError(CategoryNotFound, message) }

func NetworkError(message string) *ErrorBuilder { return NewError(CategoryNetwork, message) }

func BuildError(message string) *ErrorBuilder { return NewError(CategoryBuild, message) }

func FileSystemError(message string) *ErrorBuilder { return NewError(CategoryFileSystem, message) }

func StorageError(message string) *ErrorBuilder { return NewError(CategoryStorage, message) }

func RuntimeError(message string) *ErrorBuilder { return NewError(CategoryRuntime, message) }

func InternalError(message string) *ErrorBuilder { return NewError(CategoryInternal, message) }
