package storage

import (
	"context"
	"encoding/base64"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Buckets and namespaces used for pointers into the object store.
const (
	MediaBucket     = "media"
	SourceNamespace = "sources"
)

// Resolver maps storage pointers to bytes and to URLs a browser can load.
//
// R2 and KV pointers are keyed by object hash and read from Objects; asset
// pointers are files under AssetRoot; inline pointers carry their own bytes.
type Resolver struct {
	Objects   ObjectStore
	AssetRoot string
	// BaseURL prefixes generated URLs, e.g. "/static". Empty means site root.
	BaseURL string
}

// Open returns the bytes a pointer refers to.
func (r *Resolver) Open(ctx context.Context, p keep.StoragePointer) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch loc := p.Location.(type) {
	case keep.R2:
		return r.object(ctx, loc.Key)
	case keep.KV:
		return r.object(ctx, loc.Key)
	case keep.Asset:
		return r.asset(loc.Path)
	case keep.Inline:
		data, err := loc.Bytes()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategorySchema, "decode inline pointer").Build()
		}
		return data, nil
	default:
		return nil, errors.InternalError("unhandled storage location").
			WithContext("scheme", string(p.Scheme())).
			Build()
	}
}

// URL returns where a browser can fetch the pointed-to blob. Inline pointers
// become data URLs using contentType.
func (r *Resolver) URL(p keep.StoragePointer, contentType string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	switch loc := p.Location.(type) {
	case keep.R2:
		return r.join("objects", loc.Key), nil
	case keep.KV:
		return r.join("objects", loc.Key), nil
	case keep.Asset:
		return r.join("assets", loc.Path), nil
	case keep.Inline:
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if loc.Base64 {
			return "data:" + contentType + ";base64," + loc.Content, nil
		}
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString([]byte(loc.Content)), nil
	default:
		return "", errors.InternalError("unhandled storage location").
			WithContext("scheme", string(p.Scheme())).
			Build()
	}
}

func (r *Resolver) join(kind, key string) string {
	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(path.Clean("/"+key), "/") {
		if part != "" {
			escaped = append(escaped, url.PathEscape(part))
		}
	}
	return strings.TrimSuffix(r.BaseURL, "/") + "/" + kind + "/" + strings.Join(escaped, "/")
}

func (r *Resolver) object(ctx context.Context, hash string) ([]byte, error) {
	if r.Objects == nil {
		return nil, errors.StorageError("no object store configured").WithContext("hash", hash).Build()
	}
	obj, err := r.Objects.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

func (r *Resolver) asset(rel string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, errors.ValidationError("asset path escapes asset root").WithContext("path", rel).Build()
	}
	full := filepath.Join(r.AssetRoot, clean)
	// #nosec G304 - full is confined to AssetRoot above
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("asset not found").WithContext("path", rel).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read asset").WithContext("path", rel).Build()
	}
	return data, nil
}

// ObjectPointer is the pointer under which a stored blob of kind is referenced.
func ObjectPointer(kind ObjectKind, hash string) keep.StoragePointer {
	if kind == ObjectMarkdown {
		return keep.PointTo(keep.KV{Namespace: SourceNamespace, Key: hash})
	}
	return keep.PointTo(keep.R2{Bucket: MediaBucket, Key: hash})
}
