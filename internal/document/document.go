// Package document defines the persisted form of a compiled Markdown document
// and the wire union renderers walk.
package document

import (
	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// NodeType discriminates wire nodes.
type NodeType string

const (
	TypeText      NodeType = "text"
	TypeEager     NodeType = "eager"
	TypeLazy      NodeType = "lazy"
	TypeKeepEager NodeType = "keep_eager"
	TypeKeepLazy  NodeType = "keep_lazy"
)

// Node is one of Text, Eager, Lazy, KeepEager or KeepLazy.
type Node interface {
	Type() NodeType
	wire()
}

// Nodes is an ordered node list with union-aware JSON decoding.
type Nodes []Node

// Text is literal text.
type Text struct {
	Value string `json:"value"`
}

// Eager is a folded element whose Content is trusted, pre-serialized markup.
type Eager struct {
	ID      contentid.ID      `json:"id"`
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Content string            `json:"content"`
}

// Lazy is a structured element without a keep binding.
type Lazy struct {
	ID       contentid.ID      `json:"id"`
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children Nodes             `json:"children"`
}

// KeepEager is a keep node whose children were all folded; Content holds
// their serialization.
type KeepEager struct {
	ID      contentid.ID      `json:"id"`
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Keep    keep.Node         `json:"keep"`
	Content string            `json:"content"`
}

// KeepLazy is a keep node with at least one structured child.
type KeepLazy struct {
	ID       contentid.ID      `json:"id"`
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Keep     keep.Node         `json:"keep"`
	Children Nodes             `json:"children"`
}

func (Text) Type() NodeType      { return TypeText }
func (Eager) Type() NodeType     { return TypeEager }
func (Lazy) Type() NodeType      { return TypeLazy }
func (KeepEager) Type() NodeType { return TypeKeepEager }
func (KeepLazy) Type() NodeType  { return TypeKeepLazy }

func (Text) wire()      {}
func (Eager) wire()     {}
func (Lazy) wire()      {}
func (KeepEager) wire() {}
func (KeepLazy) wire()  {}

// RootType discriminates document roots.
type RootType string

const (
	// RootHTML is a fully folded document held as one HTML blob.
	RootHTML RootType = "html"
	// RootTree is a document with at least one structured node.
	RootTree RootType = "tree"
)

// Root is the document body. Content is set for html roots, Children for tree roots.
type Root struct {
	Type     RootType `json:"type"`
	Content  string   `json:"content,omitempty"`
	Children Nodes    `json:"children,omitempty"`
}

// FootnoteDefinition is one entry of the document's footnote list.
type FootnoteDefinition struct {
	ID        string `json:"id"`
	Reference int    `json:"reference"`
	Content   Nodes  `json:"content"`
}

// Section is a heading-delimited slice of the document used for navigation
// and search. ID equals the heading's slug.
type Section struct {
	ID      string `json:"id"`
	Level   int    `json:"level"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Frontmatter holds the known frontmatter fields; anything else lands in Extra.
type Frontmatter struct {
	Title       string         `json:"title,omitempty" yaml:"title,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Date        string         `json:"date,omitempty" yaml:"date,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Draft       bool           `json:"draft,omitempty" yaml:"draft,omitempty"`
	Extra       map[string]any `json:"extra,omitempty" yaml:",inline"`
}

// Document is the compiled, persisted form of one source document.
type Document struct {
	Frontmatter Frontmatter          `json:"frontmatter"`
	Footnotes   []FootnoteDefinition `json:"footnotes"`
	Sections    []Section            `json:"sections"`
	Root        Root                 `json:"root"`
}

// Walk visits every node of the list depth-first.
func Walk(nodes Nodes, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		switch v := n.(type) {
		case Lazy:
			Walk(v.Children, fn)
		case KeepLazy:
			Walk(v.Children, fn)
		}
	}
}
