package markdown

import (
	"strings"

	gmast "github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"git.home.luguber.info/inful/docfold/internal/hast"
)

// collectFootnotes converts goldmark's footnote list into definitions. Labels
// and previews are gathered first so references inside footnote bodies
// resolve regardless of order.
func (p *parser) collectFootnotes(list *east.FootnoteList) error {
	type rendered struct {
		label  string
		index  int
		blocks []gmast.Node
		nodes  [][]hast.Node
	}
	var all []rendered
	for c := list.FirstChild(); c != nil; c = c.NextSibling() {
		fn, ok := c.(*east.Footnote)
		if !ok || fn.Index < 1 {
			continue
		}
		r := rendered{label: string(fn.Ref), index: fn.Index}
		for b := fn.FirstChild(); b != nil; b = b.NextSibling() {
			nodes, err := p.block(b)
			if err != nil {
				return err
			}
			r.blocks = append(r.blocks, b)
			r.nodes = append(r.nodes, nodes)
		}
		var text []string
		for _, nodes := range r.nodes {
			for _, n := range nodes {
				text = append(text, plainText(n))
			}
		}
		p.labels[r.index] = r.label
		p.previews[r.index] = collapse(strings.Join(text, " "))
		all = append(all, r)
	}

	for _, r := range all {
		root := &hast.Root{}
		for i, nodes := range r.nodes {
			p.annotate(nodes, codeInfos(r.blocks[i], p.body), scopeFootnote)
			root.Children = append(root.Children, nodes...)
		}
		p.footnotes = append(p.footnotes, Footnote{
			Label:   r.label,
			Index:   r.index,
			Root:    root,
			Preview: p.previews[r.index],
		})
	}
	return nil
}

// plainText is the text content of n without footnote reference markers and
// footnote back links.
func plainText(n hast.Node) string {
	var b strings.Builder
	hast.Walk(n, func(x hast.Node) bool {
		switch v := x.(type) {
		case *hast.Text:
			b.WriteString(v.Value)
		case *hast.Element:
			if isFootnoteChrome(v) {
				return false
			}
		}
		return true
	})
	return b.String()
}

func isFootnoteChrome(el *hast.Element) bool {
	if el.TagName == "sup" {
		id, _ := el.Properties.Get("id")
		return strings.HasPrefix(id, "fnref")
	}
	if el.TagName == "a" {
		class, _ := el.Properties.Get("className")
		return strings.Contains(class, "footnote-backref")
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
