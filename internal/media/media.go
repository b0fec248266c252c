// Package media resolves local image references into stored objects with the
// metadata an image keep node needs before its bytes are fetched.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

const contentTypeSVG = "image/svg+xml"

// Resolver reads images below Root and stores them in Objects.
type Resolver struct {
	// Root is the directory document paths and absolute image paths resolve against.
	Root string
	// Docs is the directory document paths are relative to. Empty means Root.
	Docs    string
	Objects storage.ObjectStore
	// MaxBytes rejects larger images. Zero disables the limit.
	MaxBytes int64
	// InlineBelow embeds smaller images in the document as inline pointers.
	InlineBelow int64
}

// ResolveImage loads src, as referenced from the document at docPath, and
// returns its object reference.
func (r *Resolver) ResolveImage(ctx context.Context, docPath, src string) (keep.ImageReference, error) {
	if r.Docs != "" && r.Docs != r.Root {
		if rebased, err := filepath.Rel(r.Root, filepath.Join(r.Docs, filepath.FromSlash(docPath))); err == nil {
			docPath = filepath.ToSlash(rebased)
		}
	}
	rel, err := r.locate(docPath, src)
	if err != nil {
		return keep.ImageReference{}, err
	}
	data, err := r.read(rel)
	if err != nil {
		return keep.ImageReference{}, err
	}

	width, height, contentType, err := imageInfo(rel, data)
	if err != nil {
		return keep.ImageReference{}, err
	}

	var placeholder string
	if contentType != contentTypeSVG {
		if placeholder, err = blurhashOf(rel, data); err != nil {
			return keep.ImageReference{}, err
		}
	}

	hash := contentid.Blob(data)
	ref := keep.ImageReference{
		Hash:        hash,
		Size:        int64(len(data)),
		ContentType: contentType,
		Meta: keep.ImageReferenceMeta{
			Width:     width,
			Height:    height,
			Blurhash:  placeholder,
			DerivedID: string(contentid.Derive(contentid.DomainContent, "image", []byte(hash))),
		},
	}

	if r.InlineBelow > 0 && int64(len(data)) < r.InlineBelow {
		ref.Pointer = keep.PointTo(keep.Inline{Content: base64.StdEncoding.EncodeToString(data), Base64: true})
		return ref, nil
	}
	if r.Objects == nil {
		ref.Pointer = keep.PointTo(keep.Asset{Path: filepath.ToSlash(rel)})
		return ref, nil
	}
	if _, err := r.Objects.Put(ctx, &storage.Object{
		Hash:        hash,
		Kind:        storage.ObjectImage,
		ContentType: contentType,
		Data:        data,
		Metadata:    storage.Metadata{Custom: map[string]string{"source": filepath.ToSlash(rel)}},
	}); err != nil {
		return keep.ImageReference{}, err
	}
	ref.Pointer = storage.ObjectPointer(storage.ObjectImage, hash)
	return ref, nil
}

// locate turns an image reference into a path relative to Root.
func (r *Resolver) locate(docPath, src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", errors.ValidationError("image reference is not a local path").WithContext("src", src).Build()
	}
	p := u.Path
	if p == "" {
		return "", errors.ValidationError("empty image path").WithContext("src", src).Build()
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(filepath.ToSlash(docPath)), p)
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return "", errors.ValidationError("empty image path").WithContext("src", src).Build()
	}
	return filepath.FromSlash(p), nil
}

func (r *Resolver) read(rel string) ([]byte, error) {
	full := filepath.Join(r.Root, rel)
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("image not found").WithContext("path", rel).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "stat image").WithContext("path", rel).Build()
	}
	if info.IsDir() {
		return nil, errors.ValidationError("image path is a directory").WithContext("path", rel).Build()
	}
	if r.MaxBytes > 0 && info.Size() > r.MaxBytes {
		return nil, errors.ValidationError("image exceeds size limit").
			WithContext("path", rel).
			WithContext("size", info.Size()).
			WithContext("max_bytes", r.MaxBytes).
			Build()
	}
	// #nosec G304 - full is confined below Root by locate
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read image").WithContext("path", rel).Build()
	}
	return data, nil
}

// imageInfo reports an image's pixel dimensions and content type.
func imageInfo(rel string, data []byte) (int, int, string, error) {
	if strings.EqualFold(filepath.Ext(rel), ".svg") {
		w, h, err := svgSize(data)
		if err != nil {
			return 0, 0, "", errors.WrapError(err, errors.CategoryValidation, "read svg dimensions").
				WithContext("path", rel).
				Build()
		}
		return w, h, contentTypeSVG, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", errors.WrapError(err, errors.CategoryValidation, "unsupported image").
			WithContext("path", rel).
			Build()
	}
	contentType := "image/" + format
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		contentType = detected
	}
	return cfg.Width, cfg.Height, contentType, nil
}

func blurhashOf(rel string, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryValidation, "decode image").
			WithContext("path", rel).
			Build()
	}
	return Blurhash(img, blurhashX, blurhashY)
}

// svgSize reads width and height from the root svg element, falling back to
// its viewBox.
func svgSize(data []byte) (int, int, error) {
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return 0, 0, errors.ValidationError("no svg element").Build()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "svg" {
				continue
			}
			attrs := map[string]string{}
			for _, a := range tok.Attr {
				attrs[strings.ToLower(a.Key)] = a.Val
			}
			w, wok := svgLength(attrs["width"])
			h, hok := svgLength(attrs["height"])
			if wok && hok {
				return w, h, nil
			}
			if vb := strings.Fields(strings.ReplaceAll(attrs["viewbox"], ",", " ")); len(vb) == 4 {
				vw, err1 := strconv.ParseFloat(vb[2], 64)
				vh, err2 := strconv.ParseFloat(vb[3], 64)
				if err1 == nil && err2 == nil && vw > 0 && vh > 0 {
					return int(math.Round(vw)), int(math.Round(vh)), nil
				}
			}
			return 0, 0, nil
		}
	}
}

func svgLength(v string) (int, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(math.Round(f)), true
}
