// Package keep defines the closed set of node kinds that survive folding.
//
// A keep node is the payload attached to an element that the client runtime must
// still treat structurally: code blocks, headings, images, link cards, footnote
// references and alert boxes. The set is closed; a payload that does not match one
// of the six shapes is a schema violation, never a pass-through.
package keep

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// Type discriminates keep node kinds on the wire.
type Type string

const (
	TypeAlert             Type = "alert"
	TypeCodeBlock         Type = "codeblock"
	TypeHeading           Type = "heading"
	TypeImage             Type = "image"
	TypeLinkCard          Type = "link_card"
	TypeFootnoteReference Type = "footnote_reference"
)

// Node is one variant of the keep union.
type Node interface {
	Type() Type
	Validate() error
	isKeep()
}

// AlertKind enumerates GitHub-style alert boxes.
type AlertKind string

const (
	AlertNote      AlertKind = "note"
	AlertTip       AlertKind = "tip"
	AlertImportant AlertKind = "important"
	AlertWarning   AlertKind = "warning"
	AlertCaution   AlertKind = "caution"
)

// AlertKinds lists the accepted alert kinds in display order.
var AlertKinds = []AlertKind{AlertNote, AlertTip, AlertImportant, AlertWarning, AlertCaution}

// Alert is a callout box (> [!NOTE]).
type Alert struct {
	Kind AlertKind `json:"kind"`
}

// CodeBlock is a fenced or indented code block.
type CodeBlock struct {
	Lang  string `json:"lang"`
	Title string `json:"title,omitempty"`
	Lines int    `json:"lines"`
}

// Heading is an h1..h6 element with its anchor slug.
type Heading struct {
	Level int    `json:"level"`
	Slug  string `json:"slug"`
}

// Image references an image blob stored out of band.
type Image struct {
	Alt         string         `json:"alt"`
	Blurhash    string         `json:"blurhash"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	ContentType string         `json:"content_type"`
	Storage     StoragePointer `json:"storage"`
}

// LinkCard is a bare link expanded into a preview card.
type LinkCard struct {
	Href        string `json:"href"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
	OGImage     string `json:"og_image,omitempty"`
}

// FootnoteReference is an inline [^label] reference.
type FootnoteReference struct {
	ID        string `json:"id"`
	Reference int    `json:"reference"`
	Content   string `json:"content"`
}

func (Alert) Type() Type             { return TypeAlert }
func (CodeBlock) Type() Type         { return TypeCodeBlock }
func (Heading) Type() Type           { return TypeHeading }
func (Image) Type() Type             { return TypeImage }
func (LinkCard) Type() Type          { return TypeLinkCard }
func (FootnoteReference) Type() Type { return TypeFootnoteReference }

func (Alert) isKeep()             {}
func (CodeBlock) isKeep()         {}
func (Heading) isKeep()           {}
func (Image) isKeep()             {}
func (LinkCard) isKeep()          {}
func (FootnoteReference) isKeep() {}

// Validate checks the alert kind.
func (a Alert) Validate() error {
	for _, k := range AlertKinds {
		if a.Kind == k {
			return nil
		}
	}
	return invalid(TypeAlert, "kind", "unknown alert kind %q", string(a.Kind))
}

// Validate checks the line count.
func (c CodeBlock) Validate() error {
	if c.Lines < 0 {
		return invalid(TypeCodeBlock, "lines", "negative line count %d", c.Lines)
	}
	return nil
}

// Validate checks the heading level and slug.
func (h Heading) Validate() error {
	if h.Level < 1 || h.Level > 6 {
		return invalid(TypeHeading, "level", "level %d outside 1..6", h.Level)
	}
	if h.Slug == "" {
		return invalid(TypeHeading, "slug", "empty slug")
	}
	return nil
}

// Validate checks dimensions and the storage pointer.
func (i Image) Validate() error {
	if i.Width < 0 || i.Height < 0 {
		return invalid(TypeImage, "width", "negative dimensions %dx%d", i.Width, i.Height)
	}
	if err := i.Storage.Validate(); err != nil {
		return errors.WrapError(err, errors.CategorySchema, "invalid image storage").
			WithContext("type", string(TypeImage)).
			Build()
	}
	return nil
}

// Validate requires an absolute http or https href.
func (l LinkCard) Validate() error {
	if l.Href == "" {
		return invalid(TypeLinkCard, "href", "empty href")
	}
	u, err := url.Parse(l.Href)
	if err != nil || !u.IsAbs() {
		return invalid(TypeLinkCard, "href", "href %q is not an absolute URL", l.Href)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return invalid(TypeLinkCard, "href", "href scheme %q is not http or https", u.Scheme)
	}
	return nil
}

// Validate requires a label and a 1-based reference number.
func (f FootnoteReference) Validate() error {
	if f.ID == "" {
		return invalid(TypeFootnoteReference, "id", "empty footnote id")
	}
	if f.Reference < 1 {
		return invalid(TypeFootnoteReference, "reference", "reference %d must be >= 1", f.Reference)
	}
	return nil
}

func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	return marshalTagged(string(TypeAlert), plain(a))
}

func (c CodeBlock) MarshalJSON() ([]byte, error) {
	type plain CodeBlock
	return marshalTagged(string(TypeCodeBlock), plain(c))
}

func (h Heading) MarshalJSON() ([]byte, error) {
	type plain Heading
	return marshalTagged(string(TypeHeading), plain(h))
}

func (i Image) MarshalJSON() ([]byte, error) {
	type plain Image
	return marshalTagged(string(TypeImage), plain(i))
}

func (l LinkCard) MarshalJSON() ([]byte, error) {
	type plain LinkCard
	return marshalTagged(string(TypeLinkCard), plain(l))
}

func (f FootnoteReference) MarshalJSON() ([]byte, error) {
	type plain FootnoteReference
	return marshalTagged(string(TypeFootnoteReference), plain(f))
}

// marshalTagged encodes v as a JSON object with a leading "type" member.
func marshalTagged(tag string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head := []byte(`{"type":` + strconv.Quote(tag))
	if len(body) <= 2 {
		return append(head, '}'), nil
	}
	head = append(head, ',')
	return append(head, body[1:]...), nil
}
