package docstore

import (
	"context"
	stdErrors "errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/fold"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func compileDoc(t *testing.T, src, title string) *document.Document {
	t.Helper()
	root, err := hast.FromHTMLString(src)
	require.NoError(t, err)
	forest, err := fold.Compile(root)
	require.NoError(t, err)
	doc, err := document.Assemble(forest, nil, document.SectionsFromHeadings(document.FromCompiled(forest.Nodes)), document.Frontmatter{Title: title})
	require.NoError(t, err)
	return doc
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	doc := compileDoc(t, `<h2 keep="heading" level="2" slug="a">A</h2><div><img keep="image" alt="x" width="1" height="1" content-type="image/png" storage='{"type":"r2","bucket":"media","key":"img1"}'></div>`, "Guide")
	src := &keep.MarkdownReference{
		Hash:        "md1",
		Size:        12,
		ContentType: "text/markdown",
		Meta:        keep.MarkdownReferenceMeta{Slug: "guide", Fingerprint: "fp"},
		Pointer:     keep.PointTo(keep.KV{Namespace: "sources", Key: "md1"}),
	}
	rec := &Record{Slug: "guide", Path: "guide.md", Fingerprint: "fp", Source: src, Document: doc, BuildID: "b1"}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, doc, got.Document)
	assert.Equal(t, src, got.Source)
	assert.Equal(t, "guide.md", got.Path)
	assert.Equal(t, "b1", got.BuildID)

	fp, ok, err := s.Fingerprint(ctx, "guide.md")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fp", fp)

	refs, err := s.ReferencedObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"img1": true, "md1": true}, refs)
}

func TestPutReplacesAndLists(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Put(ctx, &Record{Slug: "b", Path: "b.md", Fingerprint: "1", Document: compileDoc(t, "<p>one</p>", "B")}))
	require.NoError(t, s.Put(ctx, &Record{Slug: "a", Path: "a.md", Fingerprint: "1", Document: compileDoc(t, "<p>a</p>", "A")}))
	require.NoError(t, s.Put(ctx, &Record{Slug: "b", Path: "b.md", Fingerprint: "2", Document: compileDoc(t, "<p>two</p>", "B2")}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Slug)
	assert.Equal(t, "B2", list[1].Title)
	assert.Equal(t, "2", list[1].Fingerprint)
	assert.Equal(t, document.RootHTML, list[1].RootType)

	removed, err := s.DeleteMissing(ctx, map[string]bool{"a.md": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, removed)
}

func TestPutRejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	doc := compileDoc(t, `<h2 keep="heading" level="2" slug="a">A</h2>`, "")
	doc.Sections = []document.Section{{ID: "other", Level: 2, Title: "A"}}
	err := s.Put(ctx, &Record{Slug: "bad", Path: "bad.md", Document: doc})
	require.Error(t, err)
	assert.True(t, errors.IsSchemaValidation(err))

	_, err = s.Get(ctx, "bad")
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err), "nothing persisted")

	assert.Error(t, s.Put(ctx, &Record{Path: "x.md", Document: compileDoc(t, "<p>x</p>", "")}))
}

func TestGetRejectsCorruptRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Put(ctx, &Record{Slug: "x", Path: "x.md", Document: compileDoc(t, "<p>x</p>", "")}))

	_, err := s.db.ExecContext(ctx, `UPDATE documents SET body = ? WHERE slug = 'x'`,
		`{"frontmatter":{},"footnotes":null,"sections":null,"root":{"type":"tree","children":[{"type":"widget"}]}}`)
	require.NoError(t, err)

	_, err = s.Get(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.IsSchemaValidation(err))
}

func TestRunsAndFailures(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "docs.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	id, err := s.StartRun(ctx)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	require.NoError(t, s.RecordFailure(ctx, id, "bad.md", errors.UnsupportedNodeKind("doctype").Build()))
	require.NoError(t, s.RecordFailure(ctx, id, "worse.md", stdErrors.New("plain")))
	require.NoError(t, s.FinishRun(ctx, Run{ID: id, Documents: 3, Failed: 2, Outcome: "partial"}))

	runs, err := s.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Documents)
	assert.Equal(t, "partial", runs[0].Outcome)
	assert.False(t, runs[0].FinishedAt.IsZero())

	failures, err := s.Failures(ctx, id)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "unsupported_node_kind", failures[0].Category)
	assert.Equal(t, "internal", failures[1].Category)
}

func TestDeleteMissingSlug(t *testing.T) {
	err := newStore(t).Delete(context.Background(), "ghost")
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestClosedStoreErrorsCarrySlug(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	doc := compileDoc(t, `<p>x</p>`, "X")
	require.NoError(t, s.Close())

	err := s.Put(ctx, &Record{Slug: "guide", Path: "guide.md", Document: doc})
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryStorage, ce.Category())
	assert.Equal(t, "guide", ce.Fields()["slug"])
	assert.False(t, ce.CanRetry())

	_, err = s.Get(ctx, "guide")
	ce, ok = errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "guide", ce.Fields()["slug"])
}
