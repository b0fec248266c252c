package hast

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Attributes that bind an element to a keep node kind.
const (
	KeepAttr     = "keep"
	DataKeepAttr = "data-keep"
)

var propertyAliases = map[string]string{
	"className":     "class",
	"htmlFor":       "for",
	"httpEquiv":     "http-equiv",
	"acceptCharset": "accept-charset",
}

var attributeAliases = map[string]string{
	"class":          "className",
	"for":            "htmlFor",
	"http-equiv":     "httpEquiv",
	"accept-charset": "acceptCharset",
}

// Elements whose text children are written without escaping.
var rawTextElements = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "noscript": true,
	"plaintext": true, "script": true, "style": true, "xmp": true,
}

// AttributeName maps a hast property name to its HTML attribute name.
func AttributeName(prop string) string {
	if a, ok := propertyAliases[prop]; ok {
		return a
	}
	if strings.ContainsAny(prop, "-:") {
		return prop
	}
	for _, prefix := range []string{"data", "aria"} {
		if len(prop) > len(prefix) && strings.HasPrefix(prop, prefix) && isUpper(prop[len(prefix)]) {
			return prefix + kebab(prop[len(prefix):])
		}
	}
	return strings.ToLower(prop)
}

// PropertyName maps an HTML attribute name to its hast property name.
func PropertyName(attr string) string {
	if p, ok := attributeAliases[attr]; ok {
		return p
	}
	return attr
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func kebab(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUpper(c) {
			b.WriteByte('-')
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// FromHTML parses an HTML fragment in body context into a raw tree.
// Elements carrying a keep or data-keep attribute are bound to the named keep
// kind, built from the element's remaining attributes; the consumed attributes
// are removed from the element's properties.
func FromHTML(r io.Reader) (*Root, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategorySchema, "parse html fragment").Build()
	}
	root := &Root{}
	for _, n := range nodes {
		c, err := fromHTMLNode(n)
		if err != nil {
			return nil, err
		}
		if c != nil {
			root.Children = append(root.Children, c)
		}
	}
	return root, nil
}

// FromHTMLString is FromHTML over a string.
func FromHTMLString(s string) (*Root, error) {
	return FromHTML(strings.NewReader(s))
}

func fromHTMLNode(n *html.Node) (Node, error) {
	switch n.Type {
	case html.TextNode:
		return &Text{Value: n.Data}, nil
	case html.CommentNode:
		return &Comment{Value: n.Data}, nil
	case html.DoctypeNode:
		return &Other{Type: "doctype", Value: n.Data}, nil
	case html.RawNode:
		return &Other{Type: "raw", Value: n.Data}, nil
	case html.ElementNode:
		el := &Element{TagName: n.Data}
		if len(n.Attr) > 0 {
			el.Properties = make(Properties, len(n.Attr))
			for _, a := range n.Attr {
				if a.Namespace != "" {
					continue
				}
				name := PropertyName(a.Key)
				if name == "className" {
					el.Properties[name] = strings.Fields(a.Val)
					continue
				}
				el.Properties[name] = a.Val
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			child, err := fromHTMLNode(c)
			if err != nil {
				return nil, err
			}
			if child != nil {
				el.Children = append(el.Children, child)
			}
		}
		if err := bindKeep(el); err != nil {
			return nil, err
		}
		return el, nil
	default:
		return nil, nil
	}
}

// keepMarkers are the property names that carry a keep kind, in lookup order.
var keepMarkers = []string{KeepAttr, DataKeepAttr, "dataKeep"}

func keepKind(p Properties) (string, bool) {
	for _, name := range keepMarkers {
		if kind, ok := p.Get(name); ok {
			return kind, true
		}
	}
	return "", false
}

// bindKeep turns an element's keep marker property and its schema attributes
// into a keep payload. Elements without a marker are left untouched.
func bindKeep(el *Element) error {
	kind, ok := keepKind(el.Properties)
	if !ok {
		return nil
	}
	attrs := make(map[string]string, len(el.Properties))
	for name := range el.Properties {
		if v, set := el.Properties.Get(name); set {
			attrs[AttributeName(name)] = v
		}
	}
	if keep.Type(kind) == keep.TypeCodeBlock {
		if _, given := attrs["lines"]; !given {
			if _, given := attrs["data-lines"]; !given {
				attrs["lines"] = strconv.Itoa(CountLines(TextContent(el)))
			}
		}
	}
	k, err := keep.FromAttributes(kind, attrs)
	if err != nil {
		return errors.WrapError(err, errors.CategorySchema, "invalid keep attributes").
			WithContext("tag", el.TagName).
			Build()
	}
	el.Keep = k
	for _, name := range keepMarkers {
		delete(el.Properties, name)
	}
	for _, name := range keep.AttributeNames(kind) {
		delete(el.Properties, name)
	}
	if len(el.Properties) == 0 {
		el.Properties = nil
	}
	return nil
}

// CountLines counts the lines of a code listing, ignoring one trailing newline.
func CountLines(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(code, "\n"), "\n") + 1
}
