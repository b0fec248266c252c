package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// PointerURL maps a storage pointer to a URL a browser can load.
type PointerURL func(p keep.StoragePointer, contentType string) (string, error)

// HTMLRenderer renders documents to HTML with the chrome each keep kind needs.
type HTMLRenderer struct {
	// PointerURL resolves image storage. Required for documents with images.
	PointerURL PointerURL
	// CopyButton adds a copy button to code blocks.
	CopyButton bool
}

func (r *HTMLRenderer) Text(value string) string {
	return html.EscapeString(value)
}

func (r *HTMLRenderer) Eager(el Element, content string) string {
	return wrap(el.Tag, el.Attrs, content)
}

func (r *HTMLRenderer) Lazy(el Element, children string) string {
	return wrap(el.Tag, el.Attrs, children)
}

// Keep dispatches on the keep kind.
func (r *HTMLRenderer) Keep(k keep.Node, el Element, inner Inner) (string, error) {
	switch v := k.(type) {
	case keep.CodeBlock:
		return r.codeBlock(v, el, inner), nil
	case keep.Heading:
		return r.heading(v, el, inner), nil
	case keep.Alert:
		return r.alert(v, el, inner), nil
	case keep.Image:
		return r.image(v, el, inner)
	case keep.LinkCard:
		if err := v.Validate(); err != nil {
			return "", err
		}
		return r.linkCard(v), nil
	case keep.FootnoteReference:
		return r.footnoteReference(v), nil
	default:
		return "", errors.SchemaValidation("unknown keep node type").
			WithContext("type", fmt.Sprintf("%T", k)).
			Build()
	}
}

// codeBlock wraps the listing in a figure with an optional caption, a line
// number gutter and a copy button.
func (r *HTMLRenderer) codeBlock(k keep.CodeBlock, el Element, inner Inner) string {
	var b strings.Builder
	fig := map[string]string{"class": "codeblock"}
	if k.Lang != "" {
		fig["data-lang"] = k.Lang
	}
	b.WriteString(openTag("figure", fig))
	if k.Title != "" {
		b.WriteString("<figcaption>" + html.EscapeString(k.Title) + "</figcaption>")
	}
	b.WriteString(`<div class="codeblock-body">`)
	if k.Lines > 1 {
		b.WriteString(`<ol class="line-numbers" aria-hidden="true">`)
		for i := 1; i <= k.Lines; i++ {
			b.WriteString("<li>" + strconv.Itoa(i) + "</li>")
		}
		b.WriteString("</ol>")
	}
	attrs := with(el.Attrs, "data-id", el.ID.String())
	b.WriteString(wrap(el.Tag, attrs, inner.HTML))
	if r.CopyButton {
		b.WriteString(openTag("button", map[string]string{
			"type":             "button",
			"class":            "copy-button",
			"data-copy-target": el.ID.String(),
		}) + "Copy</button>")
	}
	b.WriteString("</div></figure>")
	return b.String()
}

func (r *HTMLRenderer) heading(k keep.Heading, el Element, inner Inner) string {
	tag := el.Tag
	if tag == "" {
		tag = "h" + strconv.Itoa(k.Level)
	}
	anchor := openTag("a", map[string]string{
		"class":      "anchor",
		"href":       "#" + k.Slug,
		"aria-label": "Permalink",
	}) + "#</a>"
	return wrap(tag, with(el.Attrs, "id", k.Slug), inner.HTML+anchor)
}

func (r *HTMLRenderer) alert(k keep.Alert, el Element, inner Inner) string {
	attrs := with(el.Attrs, "class", strings.TrimSpace(el.Attrs["class"]+" alert alert-"+string(k.Kind)))
	attrs["role"] = "note"
	title := `<p class="alert-title">` + html.EscapeString(cases.Title(language.English).String(string(k.Kind))) + "</p>"
	return wrap(el.Tag, attrs, title+inner.HTML)
}

func (r *HTMLRenderer) image(k keep.Image, el Element, inner Inner) (string, error) {
	if r.PointerURL == nil {
		return "", errors.RuntimeError("no pointer resolver for image").Build()
	}
	src, err := r.PointerURL(k.Storage, k.ContentType)
	if err != nil {
		return "", err
	}
	attrs := map[string]string{
		"src":      src,
		"alt":      k.Alt,
		"loading":  "lazy",
		"decoding": "async",
	}
	for name, v := range el.Attrs {
		if name == "title" || name == "class" {
			attrs[name] = v
		}
	}
	if k.Width > 0 && k.Height > 0 {
		attrs["width"] = strconv.Itoa(k.Width)
		attrs["height"] = strconv.Itoa(k.Height)
		attrs["style"] = fmt.Sprintf("aspect-ratio:%d/%d", k.Width, k.Height)
	}
	if k.Blurhash != "" {
		attrs["data-blurhash"] = k.Blurhash
	}
	img := openTag("img", attrs)
	if el.Tag == "" || el.Tag == "img" {
		return img, nil
	}
	return wrap(el.Tag, without(el.Attrs, "src", "alt"), img+inner.HTML), nil
}

func (r *HTMLRenderer) linkCard(k keep.LinkCard) string {
	var b strings.Builder
	b.WriteString(openTag("a", map[string]string{
		"class": "link-card",
		"href":  k.Href,
		"rel":   "noopener noreferrer",
	}))
	b.WriteString(`<span class="link-card-body">`)
	if k.Favicon != "" {
		b.WriteString(openTag("img", map[string]string{"class": "link-card-favicon", "src": k.Favicon, "alt": "", "loading": "lazy"}))
	}
	b.WriteString(`<span class="link-card-title">` + html.EscapeString(k.Title) + "</span>")
	if k.Description != "" {
		b.WriteString(`<span class="link-card-description">` + html.EscapeString(k.Description) + "</span>")
	}
	b.WriteString("</span>")
	if k.OGImage != "" {
		b.WriteString(openTag("img", map[string]string{"class": "link-card-image", "src": k.OGImage, "alt": "", "loading": "lazy"}))
	}
	b.WriteString("</a>")
	return b.String()
}

func (r *HTMLRenderer) footnoteReference(k keep.FootnoteReference) string {
	attrs := map[string]string{
		"href":             "#fn-" + k.ID,
		"class":            "footnote-ref",
		"role":             "doc-noteref",
		"aria-describedby": "footnote-label",
	}
	if k.Content != "" {
		attrs["title"] = k.Content
	}
	return `<sup id="fnref-` + html.EscapeString(k.ID) + `">` + wrap("a", attrs, strconv.Itoa(k.Reference)) + "</sup>"
}

// Footnotes renders the definition list.
func (r *HTMLRenderer) Footnotes(defs []Footnote) string {
	if len(defs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<section class="footnotes" role="doc-endnotes"><h2 id="footnote-label" class="sr-only">Footnotes</h2><ol>`)
	for _, d := range defs {
		b.WriteString(openTag("li", map[string]string{"id": "fn-" + d.ID, "value": strconv.Itoa(d.Reference)}))
		b.WriteString(d.HTML)
		b.WriteString(openTag("a", map[string]string{
			"href":       "#fnref-" + d.ID,
			"class":      "footnote-backref",
			"role":       "doc-backlink",
			"aria-label": "Back to reference " + strconv.Itoa(d.Reference),
		}) + "&#8617;</a></li>")
	}
	b.WriteString("</ol></section>")
	return b.String()
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

func wrap(tag string, attrs map[string]string, inner string) string {
	if voidElements[tag] {
		return openTag(tag, attrs)
	}
	return openTag(tag, attrs) + inner + "</" + tag + ">"
}

// openTag writes attributes in name order so output is deterministic.
func openTag(tag string, attrs map[string]string) string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("<" + tag)
	for _, name := range names {
		b.WriteString(" " + name + `="` + html.EscapeString(attrs[name]) + `"`)
	}
	b.WriteString(">")
	return b.String()
}

func with(attrs map[string]string, name, value string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out[name] = value
	return out
}

func without(attrs map[string]string, names ...string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}
