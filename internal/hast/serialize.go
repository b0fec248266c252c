package hast

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// ToHTMLNode converts a raw node into an x/net/html node tree. Attributes are
// emitted in sorted order so serialization is deterministic.
func ToHTMLNode(n Node) (*html.Node, error) {
	switch v := n.(type) {
	case *Element:
		out := &html.Node{
			Type:     html.ElementNode,
			Data:     v.TagName,
			DataAtom: atom.Lookup([]byte(v.TagName)),
			Attr:     Attributes(v.Properties),
		}
		for _, c := range v.Children {
			child, err := ToHTMLNode(c)
			if err != nil {
				return nil, err
			}
			out.AppendChild(child)
		}
		return out, nil
	case *Text:
		return &html.Node{Type: html.TextNode, Data: v.Value}, nil
	case *Comment:
		return &html.Node{Type: html.CommentNode, Data: v.Value}, nil
	case *Root:
		out := &html.Node{Type: html.DocumentNode}
		for _, c := range v.Children {
			child, err := ToHTMLNode(c)
			if err != nil {
				return nil, err
			}
			out.AppendChild(child)
		}
		return out, nil
	case *Other:
		return nil, errors.UnsupportedNodeKind(v.Type).Build()
	default:
		return nil, errors.UnsupportedNodeKind(fmt.Sprintf("%T", n)).Build()
	}
}

// Attributes converts properties to sorted HTML attributes. False booleans are omitted.
func Attributes(props Properties) []html.Attribute {
	if len(props) == 0 {
		return nil
	}
	attrs := make([]html.Attribute, 0, len(props))
	for _, name := range props.Names() {
		val, ok := props.Get(name)
		if !ok {
			continue
		}
		attrs = append(attrs, html.Attribute{Key: AttributeName(name), Val: val})
	}
	return attrs
}

// Render writes the HTML serialization of n.
func Render(w io.Writer, n Node) error {
	hn, err := ToHTMLNode(n)
	if err != nil {
		return err
	}
	if hn.Type == html.DocumentNode {
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			if err := renderNode(w, c); err != nil {
				return err
			}
		}
		return nil
	}
	return renderNode(w, hn)
}

// OuterHTML serializes n including its own tag.
func OuterHTML(n Node) (string, error) {
	var b strings.Builder
	if err := Render(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

// InnerHTML serializes the children of el.
func InnerHTML(el *Element) (string, error) {
	hn, err := ToHTMLNode(el)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && rawTextElements[el.TagName] {
			b.WriteString(c.Data)
			continue
		}
		if err := renderNode(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// ChildrenHTML serializes a node list as siblings at the top level.
func ChildrenHTML(nodes []Node) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		if err := Render(&b, n); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func renderNode(w io.Writer, n *html.Node) error {
	if err := html.Render(w, n); err != nil {
		return errors.WrapError(err, errors.CategoryCompile, "serialize html").
			WithContext("tag", n.Data).
			Build()
	}
	return nil
}

// IsRawText reports whether text children of tag serialize without escaping.
func IsRawText(tag string) bool { return rawTextElements[tag] }
