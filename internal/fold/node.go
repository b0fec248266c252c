// Package fold compiles raw document trees into a hybrid folded/partial form.
//
// Subtrees with nothing live in them collapse into Folded leaves: a shell (tag
// and properties, no children) plus the serialized inner HTML. Elements bound
// to a keep node, and every ancestor of one, stay structured as Partial nodes
// whose children are themselves compiled. Every compiled node carries a
// content address. Compilation is a pure function of the input tree and the
// compiler's namespace.
package fold

import (
	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// ShellKind is the kind of node a shell was taken from.
type ShellKind string

const (
	ShellElement ShellKind = "element"
	ShellText    ShellKind = "text"
	ShellComment ShellKind = "comment"
)

// Shell is a node stripped of its children.
type Shell struct {
	Kind       ShellKind       `json:"kind"`
	TagName    string          `json:"tagName,omitempty"`
	Properties hast.Properties `json:"properties,omitempty"`
}

// Node is a compiled node: *Folded or *Partial.
type Node interface {
	NodeID() contentid.ID
	compiled()
}

// Folded is a collapsed subtree. For elements Inner holds the serialized
// children; for text and comments it holds the literal value.
type Folded struct {
	ID    contentid.ID
	Shell Shell
	Inner string

	outer string
}

// Partial is an element that keeps its structure.
type Partial struct {
	ID       contentid.ID
	Shell    Shell
	Data     map[string]any
	Keep     keep.Node
	Children []Node
}

func (f *Folded) NodeID() contentid.ID  { return f.ID }
func (p *Partial) NodeID() contentid.ID { return p.ID }

func (*Folded) compiled()  {}
func (*Partial) compiled() {}

// OuterHTML returns the serialized node including its own tag.
func (f *Folded) OuterHTML() string { return f.outer }

// IsElement reports whether the folded node came from an element.
func (f *Folded) IsElement() bool { return f.Shell.Kind == ShellElement }

// Forest is the compiled form of a document root.
type Forest struct {
	ID contentid.ID
	// Folded is true when no root child needed to stay structured. HTML then
	// holds the serialization of the whole document.
	Folded bool
	HTML   string
	// Nodes holds the compiled root children, force-folded where foldable.
	Nodes []Node
}
