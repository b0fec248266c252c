package fold

import (
	"fmt"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Compiler compiles raw trees. The zero value is ready to use.
type Compiler struct {
	// Namespace scopes position-derived ids, typically to the document slug.
	// Content-derived ids ignore it.
	Namespace string
}

// Classification is the result of classifying one raw node: either the
// original node, still foldable, or a materialized Partial.
type Classification struct {
	raw     hast.Node
	partial *Partial
}

// Foldable reports whether the node can still be folded by an ancestor.
func (c Classification) Foldable() bool { return c.partial == nil }

// Raw returns the unfolded node of a foldable classification.
func (c Classification) Raw() hast.Node { return c.raw }

// Partial returns the materialized node of a non-foldable classification.
func (c Classification) Partial() *Partial { return c.partial }

// Compile compiles a document root with the zero-value Compiler.
func Compile(root *hast.Root) (*Forest, error) {
	var c Compiler
	return c.Compile(root)
}

// Compile classifies every root child and force-folds the ones left foldable.
func (c *Compiler) Compile(root *hast.Root) (*Forest, error) {
	if root == nil {
		return nil, errors.CompileError("nil document root").Build()
	}
	classes := make([]Classification, 0, len(root.Children))
	allFoldable := true
	for _, child := range root.Children {
		cl, err := c.Classify(child)
		if err != nil {
			return nil, err
		}
		allFoldable = allFoldable && cl.Foldable()
		classes = append(classes, cl)
	}

	forest := &Forest{Folded: allFoldable}
	forest.Nodes = make([]Node, 0, len(classes))
	for _, cl := range classes {
		n, err := c.materialize(cl, "")
		if err != nil {
			return nil, err
		}
		forest.Nodes = append(forest.Nodes, n)
	}

	if allFoldable {
		html, err := hast.ChildrenHTML(root.Children)
		if err != nil {
			return nil, err
		}
		forest.HTML = html
		if root.Position != nil {
			forest.ID, err = c.positionID("root", root.Position)
		} else {
			forest.ID = contentid.Derive(contentid.DomainContent, "", []byte("root\x00"+html))
		}
		if err != nil {
			return nil, err
		}
		return forest, nil
	}

	var err error
	if root.Position != nil {
		forest.ID, err = c.positionID("root", root.Position)
	} else {
		forest.ID, err = contentid.Of(contentid.DomainStructure, "", structure{
			TagName:  "root",
			Children: ids(forest.Nodes),
		})
	}
	if err != nil {
		return nil, err
	}
	return forest, nil
}

// Classify runs the bottom-up fold decision for n. Text and comments are
// always foldable. An element is foldable when it is plain and every child is
// foldable; otherwise it becomes a Partial whose foldable children are folded.
func (c *Compiler) Classify(n hast.Node) (Classification, error) {
	switch v := n.(type) {
	case *hast.Text, *hast.Comment:
		return Classification{raw: n}, nil
	case *hast.Element:
		return c.classifyElement(v)
	case *hast.Other:
		return Classification{}, errors.UnsupportedNodeKind(v.Type).Build()
	default:
		return Classification{}, errors.UnsupportedNodeKind(fmt.Sprintf("%T", n)).Build()
	}
}

func (c *Compiler) classifyElement(el *hast.Element) (Classification, error) {
	classes := make([]Classification, 0, len(el.Children))
	allFoldable := true
	for _, child := range el.Children {
		cl, err := c.Classify(child)
		if err != nil {
			return Classification{}, err
		}
		allFoldable = allFoldable && cl.Foldable()
		classes = append(classes, cl)
	}

	switch el.Keep.(type) {
	case nil:
		if allFoldable {
			return Classification{raw: el}, nil
		}
	case keep.Alert, keep.CodeBlock, keep.Heading, keep.Image, keep.LinkCard, keep.FootnoteReference:
	default:
		return Classification{}, errors.InternalError("unknown keep binding").
			WithContext("type", fmt.Sprintf("%T", el.Keep)).
			Build()
	}

	p := &Partial{
		Shell:    elementShell(el),
		Data:     el.Data,
		Keep:     el.Keep,
		Children: make([]Node, 0, len(classes)),
	}
	for _, cl := range classes {
		child, err := c.materialize(cl, el.TagName)
		if err != nil {
			return Classification{}, err
		}
		p.Children = append(p.Children, child)
	}

	st := structure{
		TagName:    el.TagName,
		Properties: el.Properties,
		Data:       el.Data,
		Keep:       el.Keep,
		Children:   ids(p.Children),
	}
	var err error
	if el.Position != nil {
		p.ID, err = contentid.Of(contentid.DomainPosition, c.Namespace, struct {
			Position hast.Position `json:"position"`
			structure
		}{*el.Position, st})
	} else {
		p.ID, err = contentid.Of(contentid.DomainStructure, "", st)
	}
	if err != nil {
		return Classification{}, err
	}
	return Classification{partial: p}, nil
}

func (c *Compiler) materialize(cl Classification, parentTag string) (Node, error) {
	if !cl.Foldable() {
		return cl.partial, nil
	}
	return c.fold(cl.raw, parentTag)
}

// Fold force-materializes a foldable node. Folding an element that is, or
// contains, a keep binding is a compile error.
func (c *Compiler) Fold(n hast.Node) (*Folded, error) {
	var bound *hast.Element
	hast.Walk(n, func(x hast.Node) bool {
		if el, ok := x.(*hast.Element); ok && el.IsKeep() && bound == nil {
			bound = el
		}
		return bound == nil
	})
	if bound != nil {
		return nil, errors.CompileError("cannot fold a keep node").
			WithContext("tag", bound.TagName).
			WithContext("keep_kind", string(bound.Keep.Type())).
			Build()
	}
	return c.fold(n, "")
}

func (c *Compiler) fold(n hast.Node, parentTag string) (*Folded, error) {
	f := &Folded{}
	switch v := n.(type) {
	case *hast.Text:
		f.Shell = Shell{Kind: ShellText}
		f.Inner = v.Value
		if hast.IsRawText(parentTag) {
			f.outer = v.Value
		} else {
			outer, err := hast.OuterHTML(v)
			if err != nil {
				return nil, err
			}
			f.outer = outer
		}
	case *hast.Comment:
		f.Shell = Shell{Kind: ShellComment}
		f.Inner = v.Value
		outer, err := hast.OuterHTML(v)
		if err != nil {
			return nil, err
		}
		f.outer = outer
	case *hast.Element:
		f.Shell = elementShell(v)
		inner, err := hast.InnerHTML(v)
		if err != nil {
			return nil, err
		}
		outer, err := hast.OuterHTML(v)
		if err != nil {
			return nil, err
		}
		f.Inner, f.outer = inner, outer
	case *hast.Other:
		return nil, errors.UnsupportedNodeKind(v.Type).Build()
	default:
		return nil, errors.UnsupportedNodeKind(fmt.Sprintf("%T", n)).Build()
	}

	if pos := n.Pos(); pos != nil {
		id, err := c.positionID(shellLabel(f.Shell), pos)
		if err != nil {
			return nil, err
		}
		f.ID = id
		return f, nil
	}
	f.ID = contentid.Derive(contentid.DomainContent, "", []byte(string(f.Shell.Kind)+"\x00"+f.outer))
	return f, nil
}

// positionID hashes the span together with the node label, so an element and
// its only child sharing a span still get distinct ids.
func (c *Compiler) positionID(label string, pos *hast.Position) (contentid.ID, error) {
	return contentid.Of(contentid.DomainPosition, c.Namespace, struct {
		Label    string        `json:"label"`
		Position hast.Position `json:"position"`
	}{label, *pos})
}

// structure is the canonical input of a structure-derived id.
type structure struct {
	TagName    string          `json:"tagName"`
	Properties hast.Properties `json:"properties,omitempty"`
	Data       map[string]any  `json:"data,omitempty"`
	Keep       keep.Node       `json:"keep,omitempty"`
	Children   []contentid.ID  `json:"children"`
}

func elementShell(el *hast.Element) Shell {
	return Shell{Kind: ShellElement, TagName: el.TagName, Properties: el.Properties.Clone()}
}

func shellLabel(s Shell) string {
	if s.Kind == ShellElement {
		return s.TagName
	}
	return string(s.Kind)
}

func ids(nodes []Node) []contentid.ID {
	out := make([]contentid.ID, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeID()
	}
	return out
}
