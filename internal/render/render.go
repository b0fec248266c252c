// Package render interprets compiled documents.
//
// Walk dispatches the five node cases and the footnote list to a Renderer.
// Eager content is trusted markup and is never re-parsed; keep nodes receive
// their inner markup already rendered, so a kind-specific renderer only adds
// its own chrome.
package render

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Element is the tag, attributes and id of a structured node.
type Element struct {
	ID    contentid.ID
	Tag   string
	Attrs map[string]string
}

// Inner is the payload handed to a keep renderer.
type Inner struct {
	HTML string
	// Eager is set when HTML is the pre-serialized content of a keep_eager
	// node rather than rendered children.
	Eager bool
}

// Footnote is a footnote definition with its content rendered.
type Footnote struct {
	ID        string
	Reference int
	HTML      string
}

// Renderer produces markup for each node case.
type Renderer interface {
	Text(value string) string
	Eager(el Element, content string) string
	Lazy(el Element, children string) string
	Keep(k keep.Node, el Element, inner Inner) (string, error)
	// Footnotes renders the definitions, ordered by reference number.
	Footnotes(defs []Footnote) string
}

// Walker renders documents with an optional cache of rendered nodes.
//
// Node ids are only unique within their namespace, and position ids survive
// edits that keep a node's span. Set Scope to the document slug when a cache
// outlives one document, and drop the cache when documents are rebuilt.
type Walker struct {
	Renderer Renderer
	Cache    contentid.Cache
	Scope    string
}

// Walk renders doc with r.
func Walk(doc *document.Document, r Renderer) (string, error) {
	return (&Walker{Renderer: r}).Render(doc)
}

// Render renders the document body followed by its footnotes.
func (w *Walker) Render(doc *document.Document) (string, error) {
	if doc == nil {
		return "", errors.ValidationError("nil document").Build()
	}
	var b strings.Builder
	switch doc.Root.Type {
	case document.RootHTML:
		b.WriteString(doc.Root.Content)
	case document.RootTree:
		body, err := w.Nodes(doc.Root.Children)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
	default:
		return "", errors.SchemaValidation("unknown root type").
			WithContext("type", string(doc.Root.Type)).
			Build()
	}

	if len(doc.Footnotes) > 0 {
		defs := make([]Footnote, 0, len(doc.Footnotes))
		for _, fn := range doc.Footnotes {
			html, err := w.Nodes(fn.Content)
			if err != nil {
				return "", errors.WrapError(err, errors.GetCategory(err), "render footnote").
					WithContext("footnote", fn.ID).
					Build()
			}
			defs = append(defs, Footnote{ID: fn.ID, Reference: fn.Reference, HTML: html})
		}
		sort.SliceStable(defs, func(i, j int) bool { return defs[i].Reference < defs[j].Reference })
		b.WriteString(w.Renderer.Footnotes(defs))
	}
	return b.String(), nil
}

// Nodes renders a node list in order.
func (w *Walker) Nodes(nodes document.Nodes) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		s, err := w.Node(n)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// Node renders one node.
func (w *Walker) Node(n document.Node) (string, error) {
	switch v := n.(type) {
	case document.Text:
		return w.Renderer.Text(v.Value), nil
	case document.Eager:
		return w.cached(v.ID, func() (string, error) {
			return w.Renderer.Eager(Element{ID: v.ID, Tag: v.Tag, Attrs: v.Attrs}, v.Content), nil
		})
	case document.Lazy:
		return w.cached(v.ID, func() (string, error) {
			children, err := w.Nodes(v.Children)
			if err != nil {
				return "", err
			}
			return w.Renderer.Lazy(Element{ID: v.ID, Tag: v.Tag, Attrs: v.Attrs}, children), nil
		})
	case document.KeepEager:
		return w.cached(v.ID, func() (string, error) {
			return w.keep(v.Keep, Element{ID: v.ID, Tag: v.Tag, Attrs: v.Attrs}, Inner{HTML: v.Content, Eager: true})
		})
	case document.KeepLazy:
		return w.cached(v.ID, func() (string, error) {
			children, err := w.Nodes(v.Children)
			if err != nil {
				return "", err
			}
			return w.keep(v.Keep, Element{ID: v.ID, Tag: v.Tag, Attrs: v.Attrs}, Inner{HTML: children})
		})
	case nil:
		return "", errors.SchemaValidation("nil node").Build()
	default:
		return "", errors.SchemaValidation("unknown node type").
			WithContext("type", string(n.Type())).
			Build()
	}
}

func (w *Walker) keep(k keep.Node, el Element, inner Inner) (string, error) {
	if k == nil {
		return "", errors.SchemaValidation("keep node without payload").
			WithContext("id", el.ID.String()).
			Build()
	}
	return w.Renderer.Keep(k, el, inner)
}

func (w *Walker) cached(id contentid.ID, render func() (string, error)) (string, error) {
	if w.Cache == nil || id == "" {
		return render()
	}
	key := id
	if w.Scope != "" {
		key = contentid.Derive(contentid.DomainPosition, w.Scope, []byte(id))
	}
	if s, ok := w.Cache.Get(key); ok {
		return s, nil
	}
	s, err := render()
	if err != nil {
		return "", err
	}
	w.Cache.Add(key, s)
	return s, nil
}
