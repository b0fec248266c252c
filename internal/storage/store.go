// Package storage keeps out-of-band blobs (images, Markdown bodies, rendered
// fragments) in content-addressed stores and resolves storage pointers to them.
package storage

import (
	"context"
	stdErrors "errors"
	"time"
)

// ObjectStore provides content-addressable blob storage. Objects are stored by
// the BLAKE3-256 hex digest of their data.
type ObjectStore interface {
	// Put stores an object and returns its content hash.
	// If the object already exists, it returns the existing hash without writing.
	Put(ctx context.Context, obj *Object) (hash string, err error)

	// Get retrieves an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, hash string) (*Object, error)

	// Exists checks if an object with the given hash exists.
	Exists(ctx context.Context, hash string) (bool, error)

	// Delete removes an object by its content hash.
	Delete(ctx context.Context, hash string) error

	// List returns all object hashes of the given kind; an empty kind lists everything.
	List(ctx context.Context, kind ObjectKind) ([]string, error)

	Close() error
}

// Object is a stored blob with its metadata.
type Object struct {
	Hash        string
	Kind        ObjectKind
	ContentType string
	Size        int64
	Data        []byte
	Metadata    Metadata
}

// Metadata is persisted next to each object.
type Metadata struct {
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	RefCount     int               `json:"ref_count"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// ObjectKind identifies what a stored blob holds.
type ObjectKind string

const (
	// ObjectImage is an image referenced by an image keep node.
	ObjectImage ObjectKind = "image"
	// ObjectMarkdown is a Markdown source body.
	ObjectMarkdown ObjectKind = "markdown"
	// ObjectRendered is a rendered HTML fragment.
	ObjectRendered ObjectKind = "rendered"
)

const (
	metaKind        = "object_kind"
	metaContentType = "content_type"
)

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Hash
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return stdErrors.As(err, &nf)
}
