// Package hast models the raw document tree consumed by the fold compiler.
//
// The shape follows the hast (HTML abstract syntax tree) conventions used by
// Markdown toolchains: elements carry a tag name, a property map and children;
// text and comment nodes carry a literal value. Any node may carry the source
// span it was produced from. Elements additionally carry their keep binding,
// decided by upstream annotation before the tree reaches the classifier.
package hast

import (
	"sort"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Kind names of the node variants.
const (
	KindRoot    = "root"
	KindElement = "element"
	KindText    = "text"
	KindComment = "comment"
)

// Node is any raw tree node.
type Node interface {
	Kind() string
	Pos() *Position
}

// Point is a 1-based line/column location with an optional byte offset.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset,omitempty"`
}

// Position is a source span.
type Position struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Properties holds element properties. Values are string, float64, bool or []string.
type Properties map[string]any

// Element is a tagged node with children.
type Element struct {
	TagName    string
	Properties Properties
	Children   []Node
	Position   *Position
	// Data holds upstream annotations other than the keep binding.
	Data map[string]any
	// Keep is nil for plain elements.
	Keep keep.Node
}

// Text is a literal text node.
type Text struct {
	Value    string
	Position *Position
}

// Comment is an HTML comment node.
type Comment struct {
	Value    string
	Position *Position
}

// Other is a node of a kind the compiler does not model (doctype, raw, mdx nodes...).
type Other struct {
	Type     string
	Value    string
	Position *Position
}

// Root is the document container.
type Root struct {
	Children []Node
	Position *Position
}

func (*Element) Kind() string { return KindElement }
func (*Text) Kind() string    { return KindText }
func (*Comment) Kind() string { return KindComment }
func (o *Other) Kind() string { return o.Type }
func (*Root) Kind() string    { return KindRoot }

func (e *Element) Pos() *Position { return e.Position }
func (t *Text) Pos() *Position    { return t.Position }
func (c *Comment) Pos() *Position { return c.Position }
func (o *Other) Pos() *Position   { return o.Position }
func (r *Root) Pos() *Position    { return r.Position }

// IsKeep reports whether the element is bound to a keep node.
func (e *Element) IsKeep() bool { return e.Keep != nil }

// Get returns the property rendered as an attribute string and whether it is set.
func (p Properties) Get(name string) (string, bool) {
	v, ok := p[name]
	if !ok {
		return "", false
	}
	return formatValue(v)
}

// Names returns the property names in sorted order.
func (p Properties) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy with list values copied.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// formatValue renders a property value the way it appears in an HTML attribute.
// The second result is false for values that suppress the attribute (false booleans).
func formatValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return "", val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case []string:
		return strings.Join(val, " "), true
	case nil:
		return "", false
	default:
		return "", false
	}
}

// Walk visits n and its descendants depth-first. Returning false from fn skips
// the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range children(n) {
		Walk(c, fn)
	}
}

func children(n Node) []Node {
	switch v := n.(type) {
	case *Element:
		return v.Children
	case *Root:
		return v.Children
	default:
		return nil
	}
}

// TextContent concatenates the text of all descendant text nodes.
func TextContent(n Node) string {
	var b strings.Builder
	Walk(n, func(c Node) bool {
		if t, ok := c.(*Text); ok {
			b.WriteString(t.Value)
		}
		return true
	})
	return b.String()
}

// NewElement builds an element from string attributes, mostly for tests and
// synthetic nodes.
func NewElement(tag string, props Properties, children ...Node) *Element {
	return &Element{TagName: tag, Properties: props, Children: children}
}

// NewText builds a text node.
func NewText(value string) *Text { return &Text{Value: value} }
