package server

import (
	"encoding/json"
	"html/template"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
	"git.home.luguber.info/inful/docfold/internal/render"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .Title}}{{.Title}}{{else}}{{.Slug}}{{end}}</title>
{{- if .Description}}
<meta name="description" content="{{.Description}}">
{{- end}}
</head>
<body>
<article data-slug="{{.Slug}}">
{{.Body}}
</article>
</body>
</html>
`))

type page struct {
	Slug        string
	Title       string
	Description string
	Body        template.HTML
}

// documentSummary is one entry of GET /docs.
type documentSummary struct {
	Slug        string    `json:"slug"`
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	Root        string    `json:"root"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.docs.List(r.Context())
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	out := make([]documentSummary, 0, len(list))
	for _, d := range list {
		out = append(out, documentSummary{
			Slug:        d.Slug,
			Path:        d.Path,
			Title:       d.Title,
			Root:        string(d.RootType),
			Fingerprint: d.Fingerprint,
			UpdatedAt:   d.UpdatedAt,
		})
	}
	writeJSON(w, out)
}

// handleDocument serves /docs/{slug} as HTML and /docs/{slug}.json as the
// compiled document. Slugs may contain slashes.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	slug := strings.Trim(chi.URLParam(r, "*"), "/")
	asJSON := strings.HasSuffix(slug, ".json")
	slug = strings.TrimSuffix(slug, ".json")
	if slug == "" {
		s.adapter.WriteErrorResponse(w, r, errors.ValidationError("missing document slug").Build())
		return
	}

	rec, err := s.docs.Get(r.Context(), slug)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}

	if asJSON {
		data, err := document.Encode(rec.Document)
		if err != nil {
			s.adapter.WriteErrorResponse(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"`+rec.Fingerprint+`"`)
		_, _ = w.Write(data)
		return
	}

	walker := &render.Walker{Renderer: s.renderer, Scope: slug}
	if c := s.cache.Load(); c != nil {
		walker.Cache = c
	}
	body, err := walker.Render(rec.Document)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", `"`+rec.Fingerprint+`"`)
	if err := WritePage(w, slug, rec.Document, body); err != nil {
		s.logger.Warn("Failed to write page", "slug", slug, "error", err)
	}
}

// WritePage wraps a rendered document body in a standalone HTML page.
func WritePage(w io.Writer, slug string, doc *document.Document, body string) error {
	return pageTemplate.Execute(w, page{
		Slug:        slug,
		Title:       doc.Frontmatter.Title,
		Description: doc.Frontmatter.Description,
		Body:        template.HTML(body), //nolint:gosec // compiled document markup is trusted
	})
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if s.resolver.Objects == nil {
		s.adapter.WriteErrorResponse(w, r, errors.NotFoundError("object store not configured").Build())
		return
	}
	obj, err := s.resolver.Objects.Get(r.Context(), hash)
	if err != nil {
		if storage.IsNotFound(err) {
			err = errors.NotFoundError("object not found").WithContext("hash", hash).Build()
		}
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(obj.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+hash+`"`)
	_, _ = w.Write(obj.Data)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	data, err := s.resolver.Open(r.Context(), keep.PointTo(keep.Asset{Path: rel}))
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(rel))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
