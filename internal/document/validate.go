package document

import (
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Validate checks a document before it is trusted by a renderer: root shape,
// well-formed ids, keep payloads, footnote cross references and the
// agreement between heading keep nodes and sections.
func Validate(doc *Document) error {
	if doc == nil {
		return errors.SchemaValidation("nil document").Build()
	}
	v := &validator{headings: map[string]int{}}

	switch doc.Root.Type {
	case RootHTML:
		if len(doc.Root.Children) > 0 {
			return invalid("root", "html root has children")
		}
	case RootTree:
		if doc.Root.Content != "" {
			return invalid("root", "tree root has content")
		}
		if err := v.nodes(doc.Root.Children, "root.children"); err != nil {
			return err
		}
	default:
		return invalid("root.type", fmt.Sprintf("unknown root type %q", doc.Root.Type))
	}

	defs := make(map[string]int, len(doc.Footnotes))
	refs := make(map[int]bool, len(doc.Footnotes))
	for i, fn := range doc.Footnotes {
		path := "footnotes[" + strconv.Itoa(i) + "]"
		if fn.ID == "" {
			return invalid(path+".id", "empty footnote id")
		}
		if _, dup := defs[fn.ID]; dup {
			return invalid(path+".id", fmt.Sprintf("duplicate footnote id %q", fn.ID))
		}
		if fn.Reference < 1 || refs[fn.Reference] {
			return invalid(path+".reference", fmt.Sprintf("invalid or duplicate reference %d", fn.Reference))
		}
		defs[fn.ID] = fn.Reference
		refs[fn.Reference] = true
		if err := v.nodes(fn.Content, path+".content"); err != nil {
			return err
		}
	}
	for _, ref := range v.footnotes {
		n, ok := defs[ref.ID]
		if !ok {
			return invalid("footnote_reference", fmt.Sprintf("reference to undefined footnote %q", ref.ID))
		}
		if n != ref.Reference {
			return invalid("footnote_reference", fmt.Sprintf("footnote %q numbered %d, defined as %d", ref.ID, ref.Reference, n))
		}
	}

	seen := make(map[string]bool, len(doc.Sections))
	for i, s := range doc.Sections {
		path := "sections[" + strconv.Itoa(i) + "]"
		if s.ID == "" || seen[s.ID] {
			return invalid(path+".id", fmt.Sprintf("empty or duplicate section id %q", s.ID))
		}
		if s.Level < 1 || s.Level > 6 {
			return invalid(path+".level", fmt.Sprintf("level %d outside 1..6", s.Level))
		}
		seen[s.ID] = true
		if doc.Root.Type != RootTree {
			continue
		}
		level, ok := v.headings[s.ID]
		if !ok {
			return invalid(path+".id", fmt.Sprintf("section %q has no heading", s.ID))
		}
		if level != s.Level {
			return invalid(path+".level", fmt.Sprintf("section %q level %d, heading level %d", s.ID, s.Level, level))
		}
	}
	for slug := range v.headings {
		if !seen[slug] && len(doc.Sections) > 0 {
			return invalid("sections", fmt.Sprintf("heading %q has no section", slug))
		}
	}
	return nil
}

type validator struct {
	headings  map[string]int
	footnotes []keep.FootnoteReference
}

func (v *validator) nodes(nodes Nodes, path string) error {
	for i, n := range nodes {
		p := path + "[" + strconv.Itoa(i) + "]"
		if err := v.node(n, p); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) node(n Node, path string) error {
	switch x := n.(type) {
	case Text:
		return nil
	case Eager:
		return element(x.ID.Valid(), x.Tag, path)
	case Lazy:
		if err := element(x.ID.Valid(), x.Tag, path); err != nil {
			return err
		}
		return v.nodes(x.Children, path+".children")
	case KeepEager:
		if err := element(x.ID.Valid(), x.Tag, path); err != nil {
			return err
		}
		return v.keep(x.Keep, path)
	case KeepLazy:
		if err := element(x.ID.Valid(), x.Tag, path); err != nil {
			return err
		}
		if err := v.keep(x.Keep, path); err != nil {
			return err
		}
		return v.nodes(x.Children, path+".children")
	default:
		return invalid(path, fmt.Sprintf("unknown node %T", n))
	}
}

func (v *validator) keep(k keep.Node, path string) error {
	if k == nil {
		return invalid(path+".keep", "missing keep payload")
	}
	if err := k.Validate(); err != nil {
		return errors.WrapError(err, errors.CategorySchema, "invalid keep payload").
			WithContext("path", path).
			Build()
	}
	switch x := k.(type) {
	case keep.Heading:
		if _, dup := v.headings[x.Slug]; dup {
			return invalid(path+".keep.slug", fmt.Sprintf("duplicate heading slug %q", x.Slug))
		}
		v.headings[x.Slug] = x.Level
	case keep.FootnoteReference:
		v.footnotes = append(v.footnotes, x)
	}
	return nil
}

func element(validID bool, tag, path string) error {
	if !validID {
		return invalid(path+".id", "malformed content id")
	}
	if tag == "" {
		return invalid(path+".tag", "empty tag")
	}
	return nil
}

func invalid(path, msg string) error {
	return errors.SchemaValidation(msg).WithContext("path", path).Build()
}

// SectionsFromHeadings derives sections from the heading keep nodes of a tree,
// for sources that carry no separate section list.
func SectionsFromHeadings(nodes Nodes) []Section {
	var out []Section
	Walk(nodes, func(n Node) {
		var (
			k     keep.Node
			title string
		)
		switch x := n.(type) {
		case KeepEager:
			k = x.Keep
			if root, err := hast.FromHTMLString(x.Content); err == nil {
				title = hast.TextContent(root)
			}
		case KeepLazy:
			k = x.Keep
			title = nodesText(x.Children)
		}
		if h, ok := k.(keep.Heading); ok {
			out = append(out, Section{ID: h.Slug, Level: h.Level, Title: title})
		}
	})
	return out
}

func nodesText(nodes Nodes) string {
	var s string
	Walk(nodes, func(n Node) {
		switch x := n.(type) {
		case Text:
			s += x.Value
		case Eager:
			if root, err := hast.FromHTMLString(x.Content); err == nil {
				s += hast.TextContent(root)
			}
		case KeepEager:
			if root, err := hast.FromHTMLString(x.Content); err == nil {
				s += hast.TextContent(root)
			}
		}
	})
	return s
}
