package build

import (
	"bytes"
	"context"
	stdErrors "errors"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/fold"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/frontmatter"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
	"git.home.luguber.info/inful/docfold/internal/markdown"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

// Compiled is a source compiled in memory, before it is stored.
type Compiled struct {
	Kind     SourceKind
	Slug     string
	Forest   *fold.Forest
	Document *document.Document
	Warnings []markdown.Warning
	// Body is the Markdown body without frontmatter.
	Body []byte
}

// Stats summarizes the compiled forest.
func (c *Compiled) Stats() fold.Stats {
	return fold.Flatten(c.Forest).Stats()
}

// Compile compiles one source without touching any store.
func (b *Builder) Compile(ctx context.Context, src Source, content []byte) (*Compiled, error) {
	slug := Slug(src.Path)
	namespace := ""
	if b.cfg.Build.NamespaceIDs {
		namespace = slug
	}

	switch src.Kind() {
	case KindMarkdown:
		res, err := b.converter.Convert(ctx, markdown.Source{Path: src.Path, Namespace: namespace, Content: content})
		if err != nil {
			return nil, err
		}
		return &Compiled{
			Kind:     KindMarkdown,
			Slug:     slug,
			Forest:   res.Forest,
			Document: res.Document,
			Warnings: res.Warnings,
			Body:     []byte(res.Body),
		}, nil
	case KindHTML:
		forest, doc, err := CompileHTML(content, namespace)
		if err != nil {
			return nil, err
		}
		return &Compiled{Kind: KindHTML, Slug: slug, Forest: forest, Document: doc}, nil
	case KindHast:
		forest, doc, err := CompileHast(content, namespace)
		if err != nil {
			return nil, err
		}
		return &Compiled{Kind: KindHast, Slug: slug, Forest: forest, Document: doc}, nil
	default:
		return nil, errors.ValidationError("unsupported source type").WithContext("path", src.Path).Build()
	}
}

// CompileHTML compiles an annotated HTML fragment. Sections come from its
// heading keep nodes and the title from its first h1.
func CompileHTML(content []byte, namespace string) (*fold.Forest, *document.Document, error) {
	root, err := hast.FromHTML(bytes.NewReader(content))
	if err != nil {
		return nil, nil, err
	}
	return compileRoot(root, namespace)
}

// CompileHast compiles a hast JSON tree the same way as CompileHTML.
func CompileHast(content []byte, namespace string) (*fold.Forest, *document.Document, error) {
	root, err := hast.DecodeRoot(content)
	if err != nil {
		return nil, nil, err
	}
	return compileRoot(root, namespace)
}

func compileRoot(root *hast.Root, namespace string) (*fold.Forest, *document.Document, error) {
	forest, err := (&fold.Compiler{Namespace: namespace}).Compile(root)
	if err != nil {
		return nil, nil, err
	}
	fm := document.Frontmatter{Title: firstHeading(root)}
	doc, err := document.Assemble(forest, nil, document.SectionsFromHeadings(document.FromCompiled(forest.Nodes)), fm)
	if err != nil {
		return nil, nil, err
	}
	if err := document.Validate(doc); err != nil {
		return nil, nil, err
	}
	return forest, doc, nil
}

func firstHeading(root *hast.Root) string {
	title := ""
	for _, c := range root.Children {
		hast.Walk(c, func(n hast.Node) bool {
			if title != "" {
				return false
			}
			if el, ok := n.(*hast.Element); ok && el.TagName == "h1" {
				title = strings.Join(strings.Fields(hast.TextContent(el)), " ")
				return false
			}
			return true
		})
	}
	return title
}

// Fingerprint identifies a source revision. Markdown sources use the mdfp
// fingerprint of their frontmatter and body; other sources hash their bytes.
func Fingerprint(src Source, content []byte) (string, error) {
	if src.Kind() != KindMarkdown {
		return contentid.Blob(content), nil
	}
	parts, err := frontmatter.Split(content)
	if err != nil {
		if stdErrors.Is(err, frontmatter.ErrMissingClosingDelimiter) {
			return "", errors.WrapError(err, errors.CategoryValidation, "invalid frontmatter").
				WithContext("path", src.Path).
				Build()
		}
		return "", err
	}
	fm := strings.TrimSuffix(string(parts.Raw), parts.Newline)
	return mdfp.CalculateFingerprintFromParts(fm, string(parts.Body)), nil
}

// storeBody writes a Markdown body to the object store and returns its reference.
func storeBody(ctx context.Context, objects storage.ObjectStore, slug, fingerprint string, body []byte) (*keep.MarkdownReference, error) {
	hash, err := objects.Put(ctx, &storage.Object{
		Kind:        storage.ObjectMarkdown,
		ContentType: "text/markdown; charset=utf-8",
		Data:        body,
		Metadata:    storage.Metadata{Custom: map[string]string{"slug": slug}},
	})
	if err != nil {
		return nil, err
	}
	return &keep.MarkdownReference{
		Hash:        hash,
		Size:        int64(len(body)),
		ContentType: "text/markdown; charset=utf-8",
		Meta:        keep.MarkdownReferenceMeta{Slug: slug, Fingerprint: fingerprint},
		Pointer:     storage.ObjectPointer(storage.ObjectMarkdown, hash),
	}, nil
}

func joinSource(dir, rel string) string {
	return filepath.Join(dir, filepath.FromSlash(rel))
}
