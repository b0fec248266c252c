package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
	"git.home.luguber.info/inful/docfold/internal/markdown"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

// tracer records the dispatch sequence.
type tracer struct {
	calls []string
}

func (t *tracer) Text(v string) string { t.calls = append(t.calls, "text:"+v); return v }
func (t *tracer) Eager(el Element, content string) string {
	t.calls = append(t.calls, "eager:"+el.Tag)
	return "<" + el.Tag + ">" + content + "</" + el.Tag + ">"
}
func (t *tracer) Lazy(el Element, children string) string {
	t.calls = append(t.calls, "lazy:"+el.Tag)
	return "<" + el.Tag + ">" + children + "</" + el.Tag + ">"
}
func (t *tracer) Keep(k keep.Node, el Element, inner Inner) (string, error) {
	mode := "lazy"
	if inner.Eager {
		mode = "eager"
	}
	t.calls = append(t.calls, "keep:"+string(k.Type())+":"+mode)
	return "[" + inner.HTML + "]", nil
}
func (t *tracer) Footnotes(defs []Footnote) string {
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	t.calls = append(t.calls, "footnotes:"+strings.Join(ids, ","))
	return ""
}

func id(s string) contentid.ID {
	return contentid.Derive(contentid.DomainContent, "", []byte(s))
}

func sampleDoc() *document.Document {
	return &document.Document{
		Root: document.Root{Type: document.RootTree, Children: document.Nodes{
			document.Eager{ID: id("p"), Tag: "p", Content: "static <b>text</b>"},
			document.Lazy{ID: id("div"), Tag: "div", Children: document.Nodes{
				document.Text{Value: "a"},
				document.KeepEager{ID: id("h"), Tag: "h2", Keep: keep.Heading{Level: 2, Slug: "intro"}, Content: "Intro"},
			}},
			document.KeepLazy{ID: id("pre"), Tag: "pre", Keep: keep.CodeBlock{Lang: "go", Lines: 1}, Children: document.Nodes{
				document.Text{Value: "x"},
			}},
		}},
		Footnotes: []document.FootnoteDefinition{
			{ID: "b", Reference: 2, Content: document.Nodes{document.Text{Value: "second"}}},
			{ID: "a", Reference: 1, Content: document.Nodes{document.Text{Value: "first"}}},
		},
	}
}

func TestWalkDispatchesEveryCase(t *testing.T) {
	tr := &tracer{}
	out, err := Walk(sampleDoc(), tr)
	require.NoError(t, err)
	assert.Equal(t, "<p>static <b>text</b></p><div>a[Intro]</div>[x]", out)
	assert.Equal(t, []string{
		"eager:p",
		"text:a",
		"keep:heading:eager",
		"lazy:div",
		"text:x",
		"keep:codeblock:lazy",
		"text:second",
		"text:first",
		"footnotes:a,b",
	}, tr.calls)
}

func TestWalkHTMLRoot(t *testing.T) {
	doc := &document.Document{Root: document.Root{Type: document.RootHTML, Content: "<p>all static</p>"}}
	out, err := Walk(doc, &HTMLRenderer{})
	require.NoError(t, err)
	assert.Equal(t, "<p>all static</p>", out)
}

func TestWalkRejectsMalformedNodes(t *testing.T) {
	tests := []struct {
		name string
		doc  *document.Document
	}{
		{"unknown root", &document.Document{Root: document.Root{Type: "blob"}}},
		{"nil node", &document.Document{Root: document.Root{Type: document.RootTree, Children: document.Nodes{nil}}}},
		{"keep without payload", &document.Document{Root: document.Root{Type: document.RootTree, Children: document.Nodes{
			document.KeepEager{ID: id("x"), Tag: "div"},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Walk(tt.doc, &HTMLRenderer{})
			require.Error(t, err)
			assert.True(t, errors.IsSchemaValidation(err))
		})
	}
}

func TestHTMLRendererFromMarkdown(t *testing.T) {
	src := "# Getting Started\n\n" +
		"```go title=\"main.go\"\nfmt.Println(\"hi\")\nreturn\n```\n\n" +
		"> [!WARNING]\n> Mind the gap.\n\n" +
		"See the note[^gap].\n\n" +
		"[^gap]: It is wide.\n"
	res, err := markdown.New(markdown.Options{}).Convert(context.Background(), markdown.Source{Path: "a.md", Content: []byte(src)})
	require.NoError(t, err)

	out, err := Walk(res.Document, &HTMLRenderer{CopyButton: true})
	require.NoError(t, err)

	for _, want := range []string{
		`id="getting-started"`,
		`<a aria-label="Permalink" class="anchor" href="#getting-started">#</a>`,
		`<figure class="codeblock" data-lang="go"><figcaption>main.go</figcaption>`,
		`<ol class="line-numbers" aria-hidden="true"><li>1</li><li>2</li></ol>`,
		`class="copy-button"`,
		`alert alert-warning`,
		`<p class="alert-title">Warning</p>`,
		`<sup id="fnref-gap">`,
		`href="#fn-gap"`,
		`<li id="fn-gap" value="1">`,
		`href="#fnref-gap"`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "[!WARNING]")
}

func TestHTMLRendererImage(t *testing.T) {
	resolver := &storage.Resolver{}
	doc := &document.Document{Root: document.Root{Type: document.RootTree, Children: document.Nodes{
		document.KeepEager{ID: id("img"), Tag: "img", Attrs: map[string]string{"src": "cat.png", "title": "Cat"}, Keep: keep.Image{
			Alt:         "a cat",
			Blurhash:    "LEHV6nWB2yk8",
			Width:       640,
			Height:      480,
			ContentType: "image/png",
			Storage:     keep.PointTo(keep.Inline{Content: "iVBORw0K", Base64: true}),
		}},
	}}}

	out, err := Walk(doc, &HTMLRenderer{PointerURL: resolver.URL})
	require.NoError(t, err)
	assert.Equal(t,
		`<img alt="a cat" data-blurhash="LEHV6nWB2yk8" decoding="async" height="480" loading="lazy" `+
			`src="data:image/png;base64,iVBORw0K" style="aspect-ratio:640/480" title="Cat" width="640">`,
		out)

	_, err = Walk(doc, &HTMLRenderer{})
	assert.Error(t, err)
}

func TestHTMLRendererLinkCardEscapes(t *testing.T) {
	r := &HTMLRenderer{}
	out, err := r.Keep(keep.LinkCard{Href: "https://example.com/?a=1&b=2", Title: "<Example>", Description: "desc"}, Element{Tag: "p"}, Inner{})
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://example.com/?a=1&amp;b=2"`)
	assert.Contains(t, out, `&lt;Example&gt;`)
	assert.NotContains(t, out, "<p")

	_, err = r.Keep(keep.LinkCard{Href: "javascript:alert(1)", Title: "x"}, Element{Tag: "p"}, Inner{})
	assert.True(t, errors.IsSchemaValidation(err))
}

func TestWalkerCache(t *testing.T) {
	cache := contentid.NewLRU(64)
	tr := &tracer{}
	w := &Walker{Renderer: tr, Cache: cache, Scope: "doc-a"}

	first, err := w.Render(sampleDoc())
	require.NoError(t, err)
	n := len(tr.calls)
	second, err := w.Render(sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// Only the footnotes are rendered again; every id-bearing node is cached.
	assert.Equal(t, []string{"text:second", "text:first", "footnotes:a,b"}, tr.calls[n:])

	other := &Walker{Renderer: tr, Cache: cache, Scope: "doc-b"}
	n = len(tr.calls)
	_, err = other.Render(sampleDoc())
	require.NoError(t, err)
	assert.Len(t, tr.calls[n:], 9, "another scope misses the cache")
}
