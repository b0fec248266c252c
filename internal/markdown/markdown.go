// Package markdown turns Markdown sources into annotated raw trees and
// compiled documents.
//
// Goldmark (GFM plus footnotes) parses the body. Every top-level block is
// rendered on its own and parsed back into raw nodes, so each block keeps the
// source span it came from. Annotation then binds keep nodes: headings get
// slugs, code blocks their language and title, alert blockquotes their kind,
// images and bare links are resolved through the optional collaborators, and
// footnote references are numbered against the extracted definitions.
package markdown

import (
	"context"
	stdErrors "errors"

	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/fold"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/frontmatter"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// ImageResolver turns a local image reference into stored object metadata.
type ImageResolver interface {
	ResolveImage(ctx context.Context, docPath, src string) (keep.ImageReference, error)
}

// LinkPreviewer fetches preview data for a bare link.
type LinkPreviewer interface {
	Preview(ctx context.Context, href string) (keep.LinkCard, error)
}

// Options configures a Converter. Both collaborators are optional; without
// them images and bare links stay plain HTML.
type Options struct {
	Images ImageResolver
	Links  LinkPreviewer
}

// Source is one Markdown document to convert.
type Source struct {
	// Path is the source-relative path; relative image references resolve against it.
	Path string
	// Namespace scopes position-derived ids. Empty disables scoping.
	Namespace string
	Content   []byte
}

// Warning is a non-fatal problem met while annotating a document.
type Warning struct {
	Stage   string
	Subject string
	Err     error
}

func (w Warning) Error() string {
	return w.Stage + " " + w.Subject + ": " + w.Err.Error()
}

// Footnote is an extracted, annotated footnote definition.
type Footnote struct {
	Label   string
	Index   int
	Root    *hast.Root
	Preview string
}

// Parsed is an annotated, not yet compiled document.
type Parsed struct {
	Root        *hast.Root
	Footnotes   []Footnote
	Sections    []document.Section
	Frontmatter document.Frontmatter
	Warnings    []Warning
	// RawFrontmatter and Body are the split source, kept for fingerprinting.
	RawFrontmatter string
	Body           string
}

// Result carries every intermediate form of a converted document.
type Result struct {
	*Parsed
	Forest   *fold.Forest
	Document *document.Document
}

// Converter converts Markdown sources. It holds no per-document state and may
// be shared between goroutines.
type Converter struct {
	opts Options
}

// New returns a Converter.
func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// Parse splits frontmatter, parses the body and returns the annotated raw
// tree with footnotes, sections and frontmatter, without compiling.
func (c *Converter) Parse(ctx context.Context, src Source) (*Parsed, error) {
	parts, err := frontmatter.Split(src.Content)
	if err != nil {
		if stdErrors.Is(err, frontmatter.ErrMissingClosingDelimiter) {
			return nil, errors.WrapError(err, errors.CategoryValidation, "invalid frontmatter").
				WithContext("path", src.Path).
				Build()
		}
		return nil, err
	}
	var fm document.Frontmatter
	if err := frontmatter.Decode(parts.Raw, &fm); err != nil {
		return nil, err
	}

	p := newParser(ctx, c.opts, src.Path, parts)
	if err := p.run(); err != nil {
		return nil, errors.WrapError(err, errors.GetCategory(err), "parse markdown").
			WithContext("path", src.Path).
			Build()
	}
	return &Parsed{
		Root:           p.root,
		Footnotes:      p.footnotes,
		Sections:       Sections(p.root),
		Frontmatter:    fm,
		Warnings:       p.warnings,
		RawFrontmatter: string(parts.Raw),
		Body:           string(parts.Body),
	}, nil
}

// Convert parses and compiles a source into a validated document.
func (c *Converter) Convert(ctx context.Context, src Source) (*Result, error) {
	parsed, err := c.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	compiler := &fold.Compiler{Namespace: src.Namespace}

	defs := make([]document.FootnoteDefinition, 0, len(parsed.Footnotes))
	for _, fn := range parsed.Footnotes {
		forest, err := compiler.Compile(fn.Root)
		if err != nil {
			return nil, errors.WrapError(err, errors.GetCategory(err), "compile footnote").
				WithContext("footnote", fn.Label).
				Build()
		}
		defs = append(defs, document.FootnoteDefinition{
			ID:        fn.Label,
			Reference: fn.Index,
			Content:   document.FromCompiled(forest.Nodes),
		})
	}

	forest, err := compiler.Compile(parsed.Root)
	if err != nil {
		return nil, err
	}
	doc, err := document.Assemble(forest, defs, parsed.Sections, parsed.Frontmatter)
	if err != nil {
		return nil, err
	}
	if err := document.Validate(doc); err != nil {
		return nil, err
	}
	return &Result{Parsed: parsed, Forest: forest, Document: doc}, nil
}
