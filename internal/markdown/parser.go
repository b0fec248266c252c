package markdown

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/frontmatter"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/slug"
)

// parser holds the state of one document conversion.
type parser struct {
	ctx     context.Context
	opts    Options
	docPath string
	md      goldmark.Markdown
	body    []byte
	lines   lineIndex
	slugger *slug.Slugger

	root      *hast.Root
	footnotes []Footnote
	labels    map[int]string
	previews  map[int]string
	warnings  []Warning
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
}

func newParser(ctx context.Context, opts Options, docPath string, parts frontmatter.Parts) *parser {
	return &parser{
		ctx:      ctx,
		opts:     opts,
		docPath:  docPath,
		md:       newMarkdown(),
		body:     parts.Body,
		lines:    newLineIndex(parts.Body, parts.Line, parts.Offset),
		slugger:  slug.New(),
		root:     &hast.Root{},
		labels:   map[int]string{},
		previews: map[int]string{},
	}
}

func (p *parser) run() error {
	doc := p.md.Parser().Parse(text.NewReader(p.body))

	var blocks []gmast.Node
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if list, ok := n.(*east.FootnoteList); ok {
			if err := p.collectFootnotes(list); err != nil {
				return err
			}
			continue
		}
		blocks = append(blocks, n)
	}

	for _, b := range blocks {
		nodes, err := p.block(b)
		if err != nil {
			return err
		}
		p.annotate(nodes, codeInfos(b, p.body), scopeDocument)
		p.root.Children = append(p.root.Children, nodes...)
	}
	return nil
}

// block renders one goldmark block and parses it back into raw nodes. The
// block's source span is attached when it produced exactly one element.
func (p *parser) block(n gmast.Node) ([]hast.Node, error) {
	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, p.body, n); err != nil {
		return nil, errors.WrapError(err, errors.CategoryCompile, "render markdown block").
			WithContext("block", n.Kind().String()).
			Build()
	}
	frag, err := hast.FromHTML(&buf)
	if err != nil {
		return nil, err
	}

	nodes := make([]hast.Node, 0, len(frag.Children))
	for _, c := range frag.Children {
		if t, ok := c.(*hast.Text); ok && strings.TrimSpace(t.Value) == "" {
			continue
		}
		nodes = append(nodes, c)
	}
	if len(nodes) == 1 {
		if el, ok := nodes[0].(*hast.Element); ok {
			if start, stop, ok := blockSpan(n); ok {
				el.Position = &hast.Position{Start: p.lines.point(start), End: p.lines.point(stop)}
			}
		}
	}
	return nodes, nil
}

func (p *parser) warn(stage, subject string, err error) {
	p.warnings = append(p.warnings, Warning{Stage: stage, Subject: subject, Err: err})
}

// blockSpan returns the byte range covered by the lines and text segments
// under n.
func blockSpan(n gmast.Node) (int, int, bool) {
	start, stop, found := 0, 0, false
	add := func(s, e int) {
		if e <= s {
			return
		}
		if !found || s < start {
			start = s
		}
		if !found || e > stop {
			stop = e
		}
		found = true
	}
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if c.Type() == gmast.TypeBlock {
			if lines := c.Lines(); lines != nil && lines.Len() > 0 {
				add(lines.At(0).Start, lines.At(lines.Len()-1).Stop)
			}
			if fc, ok := c.(*gmast.FencedCodeBlock); ok && fc.Info != nil {
				add(fc.Info.Segment.Start, fc.Info.Segment.Stop)
			}
			return gmast.WalkContinue, nil
		}
		if t, ok := c.(*gmast.Text); ok {
			add(t.Segment.Start, t.Segment.Stop)
		}
		return gmast.WalkContinue, nil
	})
	return start, stop, found
}

// lineIndex maps body offsets to source points.
type lineIndex struct {
	starts    []int
	firstLine int
	base      int
}

func newLineIndex(body []byte, firstLine, base int) lineIndex {
	starts := []int{0}
	for i, b := range body {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts, firstLine: firstLine, base: base}
}

func (l lineIndex) point(off int) hast.Point {
	i := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return hast.Point{
		Line:   l.firstLine + i,
		Column: off - l.starts[i] + 1,
		Offset: l.base + off,
	}
}
