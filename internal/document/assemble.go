package document

import (
	"strings"

	"git.home.luguber.info/inful/docfold/internal/fold"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/hast"
)

// Assemble builds a document from a compiled forest. A fully folded forest
// becomes an html root; anything else becomes a tree root.
func Assemble(forest *fold.Forest, footnotes []FootnoteDefinition, sections []Section, fm Frontmatter) (*Document, error) {
	if forest == nil {
		return nil, errors.CompileError("assemble without a compiled root").Build()
	}
	doc := &Document{
		Frontmatter: fm,
		Footnotes:   footnotes,
		Sections:    sections,
	}
	if forest.Folded {
		doc.Root = Root{Type: RootHTML, Content: forest.HTML}
		return doc, nil
	}
	doc.Root = Root{Type: RootTree, Children: FromCompiled(forest.Nodes)}
	return doc, nil
}

// FromCompiled converts compiled nodes to wire nodes. Comments are dropped.
func FromCompiled(nodes []fold.Node) Nodes {
	out := make(Nodes, 0, len(nodes))
	for _, n := range nodes {
		if w := fromCompiled(n); w != nil {
			out = append(out, w)
		}
	}
	return out
}

func fromCompiled(n fold.Node) Node {
	switch v := n.(type) {
	case *fold.Folded:
		switch v.Shell.Kind {
		case fold.ShellText:
			return Text{Value: v.Inner}
		case fold.ShellElement:
			return Eager{ID: v.ID, Tag: v.Shell.TagName, Attrs: attrs(v.Shell.Properties), Content: v.Inner}
		default:
			return nil
		}
	case *fold.Partial:
		if v.Keep == nil {
			return Lazy{ID: v.ID, Tag: v.Shell.TagName, Attrs: attrs(v.Shell.Properties), Children: FromCompiled(v.Children)}
		}
		if content, ok := foldedContent(v.Children); ok {
			return KeepEager{ID: v.ID, Tag: v.Shell.TagName, Attrs: attrs(v.Shell.Properties), Keep: v.Keep, Content: content}
		}
		return KeepLazy{ID: v.ID, Tag: v.Shell.TagName, Attrs: attrs(v.Shell.Properties), Keep: v.Keep, Children: FromCompiled(v.Children)}
	default:
		return nil
	}
}

// foldedContent concatenates the serialized children when every child is folded.
func foldedContent(children []fold.Node) (string, bool) {
	var b strings.Builder
	for _, c := range children {
		f, ok := c.(*fold.Folded)
		if !ok {
			return "", false
		}
		b.WriteString(f.OuterHTML())
	}
	return b.String(), true
}

func attrs(props hast.Properties) map[string]string {
	list := hast.Attributes(props)
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]string, len(list))
	for _, a := range list {
		out[a.Key] = a.Val
	}
	return out
}
