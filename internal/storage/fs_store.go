package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/logfields"
)

// FSStore is a filesystem-based implementation of ObjectStore.
// It stores objects in a content-addressable layout:
//
//	<base>/
//	  objects/
//	    ab/
//	      cd1234...           (first 2 chars = subdir, rest = filename)
//	      cd1234....meta.json
//	  refs/
//	    builds/
//	      <build id>          (newline separated object hashes)
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a filesystem object store rooted at basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	dirs := []string{
		filepath.Join(basePath, "objects"),
		filepath.Join(basePath, "refs", "builds"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.WrapError(err, errors.CategoryStorage, "create object store directory").
				WithContext("path", dir).
				Build()
		}
	}
	return &FSStore{basePath: basePath}, nil
}

// Put stores an object and returns its content hash.
func (fs *FSStore) Put(_ context.Context, obj *Object) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	hash := obj.Hash
	if hash == "" {
		hash = contentid.Blob(obj.Data)
	}
	if !validHash(hash) {
		return "", errors.ValidationError("invalid object hash").WithContext("hash", hash).Build()
	}

	objectPath := fs.objectPath(hash)
	if _, err := os.Stat(objectPath); err == nil {
		if metadata, err := fs.readMetadata(hash); err == nil {
			metadata.RefCount++
			metadata.LastAccessed = time.Now()
			if err := fs.writeMetadata(hash, metadata); err != nil {
				return hash, err
			}
		}
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0o750); err != nil {
		return "", storageErr(err, "create object directory", hash)
	}
	tmp := objectPath + ".tmp"
	if err := os.WriteFile(tmp, obj.Data, 0o600); err != nil {
		return "", storageErr(err, "write object", hash)
	}
	if err := os.Rename(tmp, objectPath); err != nil {
		return "", storageErr(err, "commit object", hash)
	}

	now := time.Now()
	metadata := Metadata{
		CreatedAt:    now,
		LastAccessed: now,
		RefCount:     1,
		Custom:       make(map[string]string, len(obj.Metadata.Custom)+2),
	}
	for k, v := range obj.Metadata.Custom {
		metadata.Custom[k] = v
	}
	metadata.Custom[metaKind] = string(obj.Kind)
	if obj.ContentType != "" {
		metadata.Custom[metaContentType] = obj.ContentType
	}
	if err := fs.writeMetadata(hash, metadata); err != nil {
		return hash, err
	}
	return hash, nil
}

// Get retrieves an object by its content hash.
func (fs *FSStore) Get(_ context.Context, hash string) (*Object, error) {
	if !validHash(hash) {
		return nil, ErrNotFound{Hash: hash}
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// #nosec G304 - path is built from a validated hex hash
	data, err := os.ReadFile(fs.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Hash: hash}
		}
		return nil, storageErr(err, "read object", hash)
	}

	metadata, err := fs.readMetadata(hash)
	if err != nil {
		metadata = Metadata{CreatedAt: time.Now(), RefCount: 1, Custom: map[string]string{}}
	}
	metadata.LastAccessed = time.Now()
	if err := fs.writeMetadata(hash, metadata); err != nil {
		slog.Warn("Failed to update object metadata", logfields.Path(hash), logfields.Error(err))
	}

	return &Object{
		Hash:        hash,
		Kind:        ObjectKind(metadata.Custom[metaKind]),
		ContentType: metadata.Custom[metaContentType],
		Size:        int64(len(data)),
		Data:        data,
		Metadata:    metadata,
	}, nil
}

// Exists checks if an object with the given hash exists.
func (fs *FSStore) Exists(_ context.Context, hash string) (bool, error) {
	if !validHash(hash) {
		return false, nil
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, storageErr(err, "stat object", hash)
	}
	return true, nil
}

// Delete removes an object by its content hash.
func (fs *FSStore) Delete(ctx context.Context, hash string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.deleteUnlocked(ctx, hash)
}

// List returns all object hashes of the given kind.
func (fs *FSStore) List(ctx context.Context, kind ObjectKind) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.listUnlocked(ctx, kind)
}

// Close releases resources.
func (fs *FSStore) Close() error {
	return nil
}

// GC removes every object not in referenced and returns how many were removed.
func (fs *FSStore) GC(ctx context.Context, referenced map[string]bool) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	all, err := fs.listUnlocked(ctx, "")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, hash := range all {
		if referenced[hash] {
			continue
		}
		if err := fs.deleteUnlocked(ctx, hash); err != nil && !IsNotFound(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (fs *FSStore) listUnlocked(_ context.Context, kind ObjectKind) ([]string, error) {
	var hashes []string
	objectsDir := filepath.Join(fs.basePath, "objects")

	err := filepath.Walk(objectsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".meta.json") || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(objectsDir, path)
		if err != nil {
			return nil
		}
		hash := strings.ReplaceAll(rel, string(filepath.Separator), "")
		if kind != "" {
			metadata, err := fs.readMetadata(hash)
			if err != nil || ObjectKind(metadata.Custom[metaKind]) != kind {
				return nil
			}
		}
		hashes = append(hashes, hash)
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryStorage, "walk objects").Build()
	}
	return hashes, nil
}

func (fs *FSStore) deleteUnlocked(_ context.Context, hash string) error {
	if !validHash(hash) {
		return ErrNotFound{Hash: hash}
	}
	objectPath := fs.objectPath(hash)
	if err := os.Remove(objectPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound{Hash: hash}
		}
		return storageErr(err, "delete object", hash)
	}
	_ = os.Remove(fs.metadataPath(hash))
	_ = os.Remove(filepath.Dir(objectPath))
	return nil
}

func (fs *FSStore) objectPath(hash string) string {
	return filepath.Join(fs.basePath, "objects", hash[:2], hash[2:])
}

func (fs *FSStore) metadataPath(hash string) string {
	return fs.objectPath(hash) + ".meta.json"
}

func (fs *FSStore) readMetadata(hash string) (Metadata, error) {
	// #nosec G304 - path is built from a validated hex hash
	data, err := os.ReadFile(fs.metadataPath(hash))
	if err != nil {
		return Metadata{}, err
	}
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if metadata.Custom == nil {
		metadata.Custom = map[string]string{}
	}
	return metadata, nil
}

func (fs *FSStore) writeMetadata(hash string, metadata Metadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return storageErr(err, "marshal metadata", hash)
	}
	if err := os.WriteFile(fs.metadataPath(hash), data, 0o600); err != nil {
		return storageErr(err, "write metadata", hash)
	}
	return nil
}

// AddBuildRef records the object hashes a build referenced.
func (fs *FSStore) AddBuildRef(buildID string, hashes []string) error {
	if buildID == "" || strings.ContainsAny(buildID, `/\.`) {
		return errors.ValidationError("invalid build id").WithContext("build_id", buildID).Build()
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	refPath := filepath.Join(fs.basePath, "refs", "builds", buildID)
	if err := os.WriteFile(refPath, []byte(strings.Join(hashes, "\n")), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryStorage, "write build ref").
			WithContext("build_id", buildID).
			Build()
	}
	return nil
}

// GetBuildRef returns the object hashes recorded for a build, or nil.
func (fs *FSStore) GetBuildRef(buildID string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	refPath := filepath.Join(fs.basePath, "refs", "builds", buildID)
	// #nosec G304 - refPath is internal, buildID is validated on write
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.CategoryStorage, "read build ref").
			WithContext("build_id", buildID).
			Build()
	}
	var hashes []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			hashes = append(hashes, line)
		}
	}
	return hashes, nil
}

// validHash accepts lowercase hex digests of the length Blob produces.
func validHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func storageErr(err error, msg, hash string) error {
	return errors.WrapError(err, errors.CategoryStorage, msg).
		Retryable().
		WithContext("hash", hash).
		Build()
}
