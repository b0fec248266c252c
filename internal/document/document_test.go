package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/fold"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

func compile(t *testing.T, src string) *fold.Forest {
	t.Helper()
	root, err := hast.FromHTMLString(src)
	require.NoError(t, err)
	forest, err := fold.Compile(root)
	require.NoError(t, err)
	return forest
}

func TestAssembleFoldedDocument(t *testing.T) {
	doc, err := Assemble(compile(t, `<p>hello <b>world</b></p>`), nil, nil, Frontmatter{Title: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, Root{Type: RootHTML, Content: `<p>hello <b>world</b></p>`}, doc.Root)
	require.NoError(t, Validate(doc))
}

func TestAssembleTreeDocument(t *testing.T) {
	forest := compile(t, `<div class="wrap"><p>static</p><pre keep="codeblock" lang="js">...</pre><!-- gone --></div>`)
	doc, err := Assemble(forest, nil, nil, Frontmatter{})
	require.NoError(t, err)

	require.Equal(t, RootTree, doc.Root.Type)
	require.Len(t, doc.Root.Children, 1)
	div, ok := doc.Root.Children[0].(Lazy)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"class": "wrap"}, div.Attrs)
	require.Len(t, div.Children, 2, "comment dropped")

	p, ok := div.Children[0].(Eager)
	require.True(t, ok)
	assert.Equal(t, "p", p.Tag)
	assert.Equal(t, "static", p.Content)

	pre, ok := div.Children[1].(KeepEager)
	require.True(t, ok)
	assert.Equal(t, keep.CodeBlock{Lang: "js", Lines: 1}, pre.Keep)
	assert.Equal(t, "...", pre.Content)
	require.NoError(t, Validate(doc))
}

func TestAssembleKeepLazy(t *testing.T) {
	forest := compile(t, `<blockquote keep="alert" kind="note"><p>see <sup keep="footnote_reference" id="1" reference="1" content="x">1</sup></p></blockquote>`)
	doc, err := Assemble(forest, []FootnoteDefinition{{ID: "1", Reference: 1, Content: Nodes{Text{Value: "x"}}}}, nil, Frontmatter{})
	require.NoError(t, err)

	alert, ok := doc.Root.Children[0].(KeepLazy)
	require.True(t, ok)
	assert.Equal(t, keep.Alert{Kind: keep.AlertNote}, alert.Keep)
	p, ok := alert.Children[0].(Lazy)
	require.True(t, ok)
	assert.Equal(t, Text{Value: "see "}, p.Children[0])
	ref, ok := p.Children[1].(KeepEager)
	require.True(t, ok)
	assert.Equal(t, keep.FootnoteReference{ID: "1", Reference: 1, Content: "x"}, ref.Keep)
	require.NoError(t, Validate(doc))
}

func TestDocumentRoundTrip(t *testing.T) {
	forest := compile(t, `<h2 keep="heading" level="2" slug="setup">Setup</h2><p>text</p><div><img keep="image" alt="a" width="4" height="3" content-type="image/png" storage='{"type":"r2","bucket":"media","key":"a.png"}'></div>`)
	doc, err := Assemble(forest,
		[]FootnoteDefinition{{ID: "n", Reference: 1, Content: Nodes{Text{Value: "note"}}}},
		[]Section{{ID: "setup", Level: 2, Title: "Setup", Content: "text"}},
		Frontmatter{Title: "T", Tags: []string{"a"}, Extra: map[string]any{"weight": float64(3)}},
	)
	require.NoError(t, err)
	require.NoError(t, Validate(doc))

	data, err := Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"keep_eager"`)
	assert.Contains(t, string(data), `"type":"lazy"`)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	validID := string(compile(t, `<div><pre keep="codeblock" lang="go">x</pre></div>`).Nodes[0].NodeID())
	tests := []struct {
		name string
		json string
	}{
		{"unknown root", `{"frontmatter":{},"footnotes":null,"sections":null,"root":{"type":"pdf"}}`},
		{"unknown node", `{"frontmatter":{},"footnotes":null,"sections":null,"root":{"type":"tree","children":[{"type":"widget"}]}}`},
		{"bad id", `{"frontmatter":{},"footnotes":null,"sections":null,"root":{"type":"tree","children":[{"type":"eager","id":"nope","tag":"p","content":""}]}}`},
		{"image pointer missing key", `{"frontmatter":{},"footnotes":null,"sections":null,"root":{"type":"tree","children":[{"type":"keep_eager","id":"` + validID + `","tag":"img","keep":{"type":"image","alt":"","width":1,"height":1,"content_type":"image/png","storage":{"type":"r2","bucket":"x"}},"content":""}]}}`},
		{"keep true", `{"frontmatter":{},"footnotes":null,"sections":null,"root":{"type":"tree","children":[{"type":"keep_eager","id":"` + validID + `","tag":"p","keep":true,"content":""}]}}`},
		{"dangling footnote", `{"frontmatter":{},"footnotes":[],"sections":null,"root":{"type":"tree","children":[{"type":"keep_eager","id":"` + validID + `","tag":"sup","keep":{"type":"footnote_reference","id":"a","reference":1,"content":""},"content":"1"}]}}`},
		{"section without heading", `{"frontmatter":{},"footnotes":null,"sections":[{"id":"x","level":2,"title":"X","content":""}],"root":{"type":"tree","children":[{"type":"text","value":"x"}]}}`},
		{"unknown field", `{"frontmatter":{},"footnotes":null,"sections":null,"root":{"type":"html","content":"","extra":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.json))
			require.Error(t, err)
			assert.True(t, errors.IsSchemaValidation(err), err.Error())
		})
	}
}

func TestValidateHeadingSectionAgreement(t *testing.T) {
	forest := compile(t, `<h2 keep="heading" level="2" slug="a">A</h2>`)
	doc, err := Assemble(forest, nil, []Section{{ID: "a", Level: 3, Title: "A"}}, Frontmatter{})
	require.NoError(t, err)
	err = Validate(doc)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "level"))

	doc.Sections = SectionsFromHeadings(doc.Root.Children)
	assert.Equal(t, []Section{{ID: "a", Level: 2, Title: "A"}}, doc.Sections)
	require.NoError(t, Validate(doc))
}
