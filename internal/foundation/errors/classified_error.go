package errors

import (
	stdErrors "errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ClassifiedError is an error tagged with a category and structured fields.
type ClassifiedError struct {
	category ErrorCategory
	retry    RetryStrategy
	message  string
	cause    error
	fields   Fields
}

func (e *ClassifiedError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.category))
	b.WriteString(": ")
	b.WriteString(e.message)
	if len(e.fields) > 0 {
		b.WriteString(" (")
		for i, k := range slices.Sorted(maps.Keys(e.fields)) {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.fields[k])
		}
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory { return e.category }

func (e *ClassifiedError) Message() string { return e.message }

// Fields returns a copy of the structured details.
func (e *ClassifiedError) Fields() Fields { return maps.Clone(e.fields) }

// WithContext returns a copy of e with key set.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	c := *e
	c.fields = maps.Clone(e.fields)
	if c.fields == nil {
		c.fields = Fields{}
	}
	c.fields[key] = value
	return &c
}

// CanRetry reports whether the operation that produced e may be attempted again.
func (e *ClassifiedError) CanRetry() bool {
	switch e.retry {
	case RetryNever:
		return false
	case RetryBackoff:
		return true
	default:
		return e.category.Retryable()
	}
}

// Is matches another ClassifiedError with the same category and message.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	return ok && e.category == other.category && e.message == other.message
}

// AsClassified returns the outermost ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stdErrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether any error in the chain belongs to category.
func HasCategory(err error, category ErrorCategory) bool {
	for err != nil {
		if c, ok := err.(*ClassifiedError); ok && c.category == category {
			return true
		}
		err = stdErrors.Unwrap(err)
	}
	return false
}

func IsSchemaValidation(err error) bool { return HasCategory(err, CategorySchema) }

func IsUnsupportedNodeKind(err error) bool { return HasCategory(err, CategoryUnsupportedNode) }

// GetCategory returns the outermost category, or CategoryInternal for
// unclassified errors.
func GetCategory(err error) ErrorCategory {
	if c, ok := AsClassified(err); ok {
		return c.category
	}
	return CategoryInternal
}
