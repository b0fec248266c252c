// Package docstore persists compiled documents in SQLite. Documents are
// validated before they are written and again when they are read back, so a
// renderer never sees a document that does not match the schema.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Record is one stored document.
type Record struct {
	Slug string
	// Path is the source path relative to the source directory.
	Path string
	// Fingerprint identifies the source revision the document was compiled from.
	Fingerprint string
	// Source points at the stored Markdown body, when there is one.
	Source   *keep.MarkdownReference
	Document *document.Document
	BuildID  string
	// UpdatedAt is set by Put.
	UpdatedAt time.Time
}

// Summary lists a stored document without decoding it.
type Summary struct {
	Slug        string
	Path        string
	Title       string
	RootType    document.RootType
	Fingerprint string
	UpdatedAt   time.Time
}

// Run is one build invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Documents  int
	Failed     int
	Outcome    string
}

// Failure is a document a build could not compile.
type Failure struct {
	BuildID  string
	Path     string
	Category string
	Message  string
}

// SQLiteStore implements document persistence on SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "create database directory").
				WithContext("path", dbPath).
				Build()
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeErr(err, "open sqlite database")
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, storeErr(err, "initialize schema")
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		slug TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		title TEXT NOT NULL,
		root_type TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		source TEXT,
		body BLOB NOT NULL,
		object_refs TEXT NOT NULL,
		build_id TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		documents INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		outcome TEXT
	);
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		path TEXT NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_failures_build ON failures(build_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put validates and stores a record, replacing any record with the same slug.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Document == nil {
		return errors.ValidationError("record has no document").Build()
	}
	if rec.Slug == "" {
		return errors.ValidationError("record has no slug").WithContext("path", rec.Path).Build()
	}
	if err := document.Validate(rec.Document); err != nil {
		return err
	}
	body, err := document.Encode(rec.Document)
	if err != nil {
		return err
	}
	var source []byte
	if rec.Source != nil {
		if err := rec.Source.Pointer.Validate(); err != nil {
			return err
		}
		if source, err = json.Marshal(rec.Source); err != nil {
			return storeErr(err, "marshal source reference")
		}
	}
	refs, err := json.Marshal(ObjectRefs(rec))
	if err != nil {
		return storeErr(err, "marshal object refs")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (slug, path, title, root_type, fingerprint, source, body, object_refs, build_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			path = excluded.path, title = excluded.title, root_type = excluded.root_type,
			fingerprint = excluded.fingerprint, source = excluded.source, body = excluded.body,
			object_refs = excluded.object_refs, build_id = excluded.build_id, updated_at = excluded.updated_at`,
		rec.Slug, rec.Path, rec.Document.Frontmatter.Title, string(rec.Document.Root.Type), rec.Fingerprint,
		nullable(source), body, string(refs), rec.BuildID, rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return storeErr(err, "insert document").WithContext("slug", rec.Slug)
	}
	return nil
}

// Get loads and validates the document stored under slug.
func (s *SQLiteStore) Get(ctx context.Context, slug string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec     = Record{Slug: slug}
		source  sql.NullString
		body    []byte
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT path, fingerprint, source, body, build_id, updated_at FROM documents WHERE slug = ?", slug,
	).Scan(&rec.Path, &rec.Fingerprint, &source, &body, &rec.BuildID, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("document not found").WithContext("slug", slug).Build()
	}
	if err != nil {
		return nil, storeErr(err, "query document").WithContext("slug", slug)
	}
	rec.UpdatedAt = time.Unix(0, updated).UTC()

	doc, err := document.Decode(body)
	if err != nil {
		return nil, errors.WrapError(err, errors.GetCategory(err), "stored document failed validation").
			WithContext("slug", slug).
			Build()
	}
	rec.Document = doc
	if source.Valid {
		var ref keep.MarkdownReference
		if err := json.Unmarshal([]byte(source.String), &ref); err != nil {
			return nil, errors.WrapError(err, errors.CategorySchema, "stored source reference is invalid").
				WithContext("slug", slug).
				Build()
		}
		rec.Source = &ref
	}
	return &rec, nil
}

// Fingerprint returns the stored fingerprint for the document at path.
func (s *SQLiteStore) Fingerprint(ctx context.Context, path string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fp string
	err := s.db.QueryRowContext(ctx, "SELECT fingerprint FROM documents WHERE path = ?", path).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr(err, "query fingerprint").WithContext("path", path)
	}
	return fp, true, nil
}

// List returns every stored document ordered by slug.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT slug, path, title, root_type, fingerprint, updated_at FROM documents ORDER BY slug")
	if err != nil {
		return nil, storeErr(err, "query documents")
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			root    string
			updated int64
		)
		if err := rows.Scan(&sum.Slug, &sum.Path, &sum.Title, &root, &sum.Fingerprint, &updated); err != nil {
			return nil, storeErr(err, "scan document")
		}
		sum.RootType = document.RootType(root)
		sum.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "iterate documents")
	}
	return out, nil
}

// Delete removes the document stored under slug.
func (s *SQLiteStore) Delete(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE slug = ?", slug)
	if err != nil {
		return storeErr(err, "delete document").WithContext("slug", slug)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError("document not found").WithContext("slug", slug).Build()
	}
	return nil
}

// DeleteMissing removes documents whose path is not in keep and returns their slugs.
func (s *SQLiteStore) DeleteMissing(ctx context.Context, keepPaths map[string]bool) ([]string, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, sum := range summaries {
		if keepPaths[sum.Path] {
			continue
		}
		if err := s.Delete(ctx, sum.Slug); err != nil {
			return removed, err
		}
		removed = append(removed, sum.Slug)
	}
	return removed, nil
}

// ReferencedObjects returns every object hash a stored document points at.
func (s *SQLiteStore) ReferencedObjects(ctx context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT object_refs FROM documents")
	if err != nil {
		return nil, storeErr(err, "query object refs")
	}
	defer func() { _ = rows.Close() }()

	refs := map[string]bool{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storeErr(err, "scan object refs")
		}
		var hashes []string
		if err := json.Unmarshal([]byte(raw), &hashes); err != nil {
			return nil, storeErr(err, "unmarshal object refs")
		}
		for _, h := range hashes {
			refs[h] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "iterate object refs")
	}
	return refs, nil
}

// StartRun records the start of a build and returns its id.
func (s *SQLiteStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "INSERT INTO runs (id, started_at) VALUES (?, ?)", id, time.Now().UnixNano()); err != nil {
		return "", storeErr(err, "insert run")
	}
	return id, nil
}

// FinishRun records a build's totals and outcome.
func (s *SQLiteStore) FinishRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, documents = ?, failed = ?, outcome = ? WHERE id = ?",
		time.Now().UnixNano(), run.Documents, run.Failed, run.Outcome, run.ID)
	if err != nil {
		return storeErr(err, "update run").WithContext("build_id", run.ID)
	}
	return nil
}

// RecordFailure stores why a document failed in a build.
func (s *SQLiteStore) RecordFailure(ctx context.Context, buildID, path string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO failures (build_id, path, category, message) VALUES (?, ?, ?, ?)",
		buildID, path, string(errors.GetCategory(cause)), cause.Error())
	if err != nil {
		return storeErr(err, "insert failure").WithContext("build_id", buildID)
	}
	return nil
}

// Runs returns the most recent builds, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, documents, failed, outcome FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, storeErr(err, "query runs")
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			run      Run
			started  int64
			finished sql.NullInt64
			outcome  sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Documents, &run.Failed, &outcome); err != nil {
			return nil, storeErr(err, "scan run")
		}
		run.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			run.FinishedAt = time.Unix(0, finished.Int64).UTC()
		}
		run.Outcome = outcome.String
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "iterate runs")
	}
	return out, nil
}

// Failures returns the failures recorded for a build.
func (s *SQLiteStore) Failures(ctx context.Context, buildID string) ([]Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT build_id, path, category, message FROM failures WHERE build_id = ? ORDER BY id", buildID)
	if err != nil {
		return nil, storeErr(err, "query failures")
	}
	defer func() { _ = rows.Close() }()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.BuildID, &f.Path, &f.Category, &f.Message); err != nil {
			return nil, storeErr(err, "scan failure")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "iterate failures")
	}
	return out, nil
}

// ObjectRefs lists the object store keys a record points at: stored images
// anywhere in the document or its footnotes, and the stored source body.
func ObjectRefs(rec *Record) []string {
	set := map[string]bool{}
	add := func(p keep.StoragePointer) {
		switch loc := p.Location.(type) {
		case keep.R2:
			set[loc.Key] = true
		case keep.KV:
			set[loc.Key] = true
		}
	}
	visit := func(n document.Node) {
		var k keep.Node
		switch v := n.(type) {
		case document.KeepEager:
			k = v.Keep
		case document.KeepLazy:
			k = v.Keep
		}
		if img, ok := k.(keep.Image); ok {
			add(img.Storage)
		}
	}
	if rec.Document != nil {
		document.Walk(rec.Document.Root.Children, visit)
		for _, fn := range rec.Document.Footnotes {
			document.Walk(fn.Content, visit)
		}
	}
	if rec.Source != nil {
		add(rec.Source.Pointer)
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func storeErr(err error, msg string) *errors.ClassifiedError {
	if strings.Contains(err.Error(), "database is locked") {
		return errors.WrapError(err, errors.CategoryStorage, msg).Retryable().Build()
	}
	return errors.WrapError(err, errors.CategoryStorage, msg).WithRetry(errors.RetryNever).Build()
}
