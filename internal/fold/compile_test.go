package fold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

func span(line int) *hast.Position {
	return &hast.Position{
		Start: hast.Point{Line: line, Column: 1},
		End:   hast.Point{Line: line, Column: 20},
	}
}

func para(text string, pos *hast.Position) *hast.Element {
	el := hast.NewElement("p", nil, hast.NewText(text))
	el.Position = pos
	return el
}

func mustParse(t *testing.T, s string) *hast.Root {
	t.Helper()
	root, err := hast.FromHTMLString(s)
	require.NoError(t, err)
	return root
}

func TestCompileFullyStaticDocument(t *testing.T) {
	forest, err := Compile(mustParse(t, `<p>hello <b>world</b></p>`))
	require.NoError(t, err)

	assert.True(t, forest.Folded)
	assert.Equal(t, `<p>hello <b>world</b></p>`, forest.HTML)
	require.Len(t, forest.Nodes, 1)
	f, ok := forest.Nodes[0].(*Folded)
	require.True(t, ok)
	assert.Equal(t, Shell{Kind: ShellElement, TagName: "p"}, f.Shell)
	assert.Equal(t, `hello <b>world</b>`, f.Inner)
	assert.Equal(t, `<p>hello <b>world</b></p>`, f.OuterHTML())
	assert.True(t, f.ID.Valid())
	assert.True(t, forest.ID.Valid())
}

func TestCompileKeepInsideStaticContainer(t *testing.T) {
	forest, err := Compile(mustParse(t, `<div><p>static</p><pre keep="codeblock" lang="js">...</pre></div>`))
	require.NoError(t, err)

	assert.False(t, forest.Folded)
	assert.Empty(t, forest.HTML)
	require.Len(t, forest.Nodes, 1)

	div, ok := forest.Nodes[0].(*Partial)
	require.True(t, ok)
	assert.Equal(t, "div", div.Shell.TagName)
	assert.Nil(t, div.Keep)
	require.Len(t, div.Children, 2)

	p, ok := div.Children[0].(*Folded)
	require.True(t, ok)
	assert.Equal(t, "static", p.Inner)

	pre, ok := div.Children[1].(*Partial)
	require.True(t, ok)
	assert.Equal(t, keep.CodeBlock{Lang: "js", Lines: 1}, pre.Keep)
	require.Len(t, pre.Children, 1)
	text, ok := pre.Children[0].(*Folded)
	require.True(t, ok)
	assert.Equal(t, ShellText, text.Shell.Kind)
	assert.Equal(t, "...", text.Inner)
}

func TestPositionIDsDifferAcrossPositions(t *testing.T) {
	a, err := Compile(&hast.Root{Children: []hast.Node{para("static", span(3))}})
	require.NoError(t, err)
	b, err := Compile(&hast.Root{Children: []hast.Node{para("static", span(7))}})
	require.NoError(t, err)

	fa := a.Nodes[0].(*Folded)
	fb := b.Nodes[0].(*Folded)
	assert.Equal(t, fa.Inner, fb.Inner)
	assert.NotEqual(t, fa.ID, fb.ID)
}

func TestContentIDsDeduplicateWithoutPosition(t *testing.T) {
	a, err := (&Compiler{Namespace: "doc-a"}).Compile(&hast.Root{Children: []hast.Node{para("same", nil)}})
	require.NoError(t, err)
	b, err := (&Compiler{Namespace: "doc-b"}).Compile(&hast.Root{Children: []hast.Node{
		hast.NewElement("h1", nil, hast.NewText("other")),
		para("same", nil),
	}})
	require.NoError(t, err)

	assert.Equal(t, a.Nodes[0].NodeID(), b.Nodes[1].NodeID())
}

func TestNamespaceScopesPositionIDs(t *testing.T) {
	root := &hast.Root{Children: []hast.Node{para("x", span(1))}}
	a, err := (&Compiler{Namespace: "guides/a"}).Compile(root)
	require.NoError(t, err)
	b, err := (&Compiler{Namespace: "guides/b"}).Compile(root)
	require.NoError(t, err)
	assert.NotEqual(t, a.Nodes[0].NodeID(), b.Nodes[0].NodeID())
}

func TestKeepNodeIsNeverFolded(t *testing.T) {
	h := hast.NewElement("h2", hast.Properties{"id": "intro"}, hast.NewText("Intro"))
	h.Keep = keep.Heading{Level: 2, Slug: "intro"}
	forest, err := Compile(&hast.Root{Children: []hast.Node{h}})
	require.NoError(t, err)

	assert.False(t, forest.Folded)
	p, ok := forest.Nodes[0].(*Partial)
	require.True(t, ok)
	assert.Equal(t, keep.Heading{Level: 2, Slug: "intro"}, p.Keep)
	assert.Equal(t, hast.Properties{"id": "intro"}, p.Shell.Properties)
}

func TestCompileIsDeterministic(t *testing.T) {
	src := `<section><h2 keep="heading" level="2" slug="a">A</h2><p>one <em>two</em></p><!-- c --></section><p>tail</p>`
	a, err := Compile(mustParse(t, src))
	require.NoError(t, err)
	b, err := Compile(mustParse(t, src))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSiblingChangeKeepsPositionedIDs(t *testing.T) {
	build := func(sibling string) *Forest {
		heading := hast.NewElement("h2", nil, hast.NewText("Title"))
		heading.Keep = keep.Heading{Level: 2, Slug: "title"}
		heading.Position = span(1)
		forest, err := Compile(&hast.Root{Children: []hast.Node{
			heading,
			para("stable", span(3)),
			para(sibling, span(5)),
		}})
		require.NoError(t, err)
		return forest
	}
	a, b := build("before"), build("after")

	assert.Equal(t, a.Nodes[0].NodeID(), b.Nodes[0].NodeID())
	assert.Equal(t, a.Nodes[1].NodeID(), b.Nodes[1].NodeID())
	assert.Equal(t, a.Nodes[2].NodeID(), b.Nodes[2].NodeID(), "position unchanged")
	assert.NotEqual(t, a.Nodes[2].(*Folded).Inner, b.Nodes[2].(*Folded).Inner)
}

func TestPartialStructureIDTracksChildren(t *testing.T) {
	build := func(text string) *Partial {
		code := hast.NewElement("pre", nil, hast.NewText("x"))
		code.Keep = keep.CodeBlock{Lang: "go", Lines: 1}
		div := hast.NewElement("div", nil, para(text, nil), code)
		forest, err := Compile(&hast.Root{Children: []hast.Node{div}})
		require.NoError(t, err)
		return forest.Nodes[0].(*Partial)
	}
	assert.Equal(t, build("a").ID, build("a").ID)
	assert.NotEqual(t, build("a").ID, build("b").ID)
}

func TestPositionedPartialIDTracksChildren(t *testing.T) {
	build := func(text string, line int) *Partial {
		code := hast.NewElement("pre", nil, hast.NewText("x"))
		code.Keep = keep.CodeBlock{Lang: "go", Lines: 1}
		code.Position = span(line + 1)
		div := hast.NewElement("div", nil, para(text, span(line)), code)
		div.Position = span(line)
		forest, err := Compile(&hast.Root{Children: []hast.Node{div}})
		require.NoError(t, err)
		return forest.Nodes[0].(*Partial)
	}
	tests := []struct {
		name  string
		a, b  *Partial
		equal bool
	}{
		{"identical", build("a", 1), build("a", 1), true},
		{"child text changed", build("a", 1), build("b", 1), false},
		{"moved", build("a", 1), build("a", 4), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.equal {
				assert.Equal(t, tt.a.ID, tt.b.ID)
			} else {
				assert.NotEqual(t, tt.a.ID, tt.b.ID)
			}
		})
	}
}

func TestElementAndChildWithSameSpanGetDistinctIDs(t *testing.T) {
	img := hast.NewElement("img", hast.Properties{"src": "a.png"})
	img.Keep = keep.Image{Alt: "a", Width: 1, Height: 1, ContentType: "image/png",
		Storage: keep.PointTo(keep.Asset{Path: "a.png"})}
	img.Position = span(2)
	p := hast.NewElement("p", nil, img)
	p.Position = span(2)

	forest, err := Compile(&hast.Root{Children: []hast.Node{p}})
	require.NoError(t, err)
	outer := forest.Nodes[0].(*Partial)
	assert.NotEqual(t, outer.ID, outer.Children[0].NodeID())
}

func TestUnsupportedNodeKind(t *testing.T) {
	root := &hast.Root{Children: []hast.Node{
		hast.NewElement("div", nil, &hast.Other{Type: "mdxJsxFlowElement"}),
	}}
	_, err := Compile(root)
	require.Error(t, err)
	assert.True(t, errors.IsUnsupportedNodeKind(err))

	_, err = Compile(&hast.Root{Children: []hast.Node{&hast.Other{Type: "doctype"}}})
	assert.True(t, errors.IsUnsupportedNodeKind(err))
}

func TestFoldRejectsKeepSubtrees(t *testing.T) {
	h := hast.NewElement("h3", nil, hast.NewText("x"))
	h.Keep = keep.Heading{Level: 3, Slug: "x"}
	var c Compiler
	_, err := c.Fold(hast.NewElement("div", nil, h))
	require.Error(t, err)
	assert.Equal(t, errors.CategoryCompile, errors.GetCategory(err))

	f, err := c.Fold(hast.NewText("a & b"))
	require.NoError(t, err)
	assert.Equal(t, "a & b", f.Inner)
	assert.Equal(t, "a &amp; b", f.OuterHTML())
}

func TestClassifyDefersFolding(t *testing.T) {
	var c Compiler
	p := para("x", nil)
	cl, err := c.Classify(p)
	require.NoError(t, err)
	assert.True(t, cl.Foldable())
	assert.Same(t, p, cl.Raw())
	assert.Nil(t, cl.Partial())
}

func TestCompileNilRoot(t *testing.T) {
	_, err := Compile(nil)
	require.Error(t, err)
}
