package keep

import (
	"encoding/base64"
	"encoding/json"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// Scheme discriminates storage locations on the wire.
type Scheme string

const (
	SchemeR2     Scheme = "r2"
	SchemeKV     Scheme = "kv"
	SchemeAsset  Scheme = "asset"
	SchemeInline Scheme = "inline"
)

// Location says where a blob lives, independent of what the blob means.
type Location interface {
	Scheme() Scheme
	validate() error
}

// R2 is an object in a bucket-shaped store.
type R2 struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// KV is a value in a namespaced key-value store.
type KV struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

// Asset is a file shipped with the site.
type Asset struct {
	Path string `json:"path"`
}

// Inline carries the blob itself, optionally base64 encoded.
type Inline struct {
	Content string `json:"content"`
	Base64  bool   `json:"base64,omitempty"`
}

func (R2) Scheme() Scheme     { return SchemeR2 }
func (KV) Scheme() Scheme     { return SchemeKV }
func (Asset) Scheme() Scheme  { return SchemeAsset }
func (Inline) Scheme() Scheme { return SchemeInline }

func (r R2) validate() error {
	if r.Bucket == "" || r.Key == "" {
		return pointerInvalid(SchemeR2, "bucket and key are required")
	}
	return nil
}

func (k KV) validate() error {
	if k.Namespace == "" || k.Key == "" {
		return pointerInvalid(SchemeKV, "namespace and key are required")
	}
	return nil
}

func (a Asset) validate() error {
	if a.Path == "" {
		return pointerInvalid(SchemeAsset, "path is required")
	}
	return nil
}

func (i Inline) validate() error {
	if i.Base64 {
		if _, err := base64.StdEncoding.DecodeString(i.Content); err != nil {
			return pointerInvalid(SchemeInline, "content is not valid base64")
		}
	}
	return nil
}

// Bytes returns the inline payload, decoding base64 when flagged.
func (i Inline) Bytes() ([]byte, error) {
	if !i.Base64 {
		return []byte(i.Content), nil
	}
	return base64.StdEncoding.DecodeString(i.Content)
}

var pointerSchemas = map[Scheme]struct {
	required []string
	decode   func([]byte) (Location, error)
}{
	SchemeR2:     {required: []string{"bucket", "key"}, decode: strictLocation[R2]},
	SchemeKV:     {required: []string{"namespace", "key"}, decode: strictLocation[KV]},
	SchemeAsset:  {required: []string{"path"}, decode: strictLocation[Asset]},
	SchemeInline: {required: []string{"content"}, decode: strictLocation[Inline]},
}

// StoragePointer wraps one Location and encodes it with a "type" tag.
type StoragePointer struct {
	Location
}

// PointTo wraps a location.
func PointTo(loc Location) StoragePointer {
	return StoragePointer{Location: loc}
}

// Validate checks that a location is set and well formed.
func (p StoragePointer) Validate() error {
	if p.Location == nil {
		return errors.SchemaValidation("storage pointer has no location").Build()
	}
	return p.Location.validate()
}

// MarshalJSON encodes the location with its scheme tag.
func (p StoragePointer) MarshalJSON() ([]byte, error) {
	if p.Location == nil {
		return []byte("null"), nil
	}
	return marshalTagged(string(p.Location.Scheme()), p.Location)
}

// UnmarshalJSON strictly decodes one of the four pointer shapes.
func (p *StoragePointer) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	t, err := typeTag(fields)
	if err != nil {
		return err
	}
	s, ok := pointerSchemas[Scheme(t)]
	if !ok {
		return errors.SchemaValidation("unknown storage pointer type").WithContext("type", t).Build()
	}
	delete(fields, "type")
	for _, key := range s.required {
		if _, present := fields[key]; !present {
			return pointerInvalid(Scheme(t), "missing required field "+key)
		}
	}
	rest, err := json.Marshal(fields)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "re-encode storage pointer").Build()
	}
	loc, err := s.decode(rest)
	if err != nil {
		return err
	}
	if err := loc.validate(); err != nil {
		return err
	}
	p.Location = loc
	return nil
}

func strictLocation[T Location](data []byte) (Location, error) {
	var v T
	if err := strictUnmarshal(data, &v); err != nil {
		var zero T
		return nil, errors.WrapError(err, errors.CategorySchema, "payload does not match storage pointer schema").
			WithContext("type", string(zero.Scheme())).
			Build()
	}
	return v, nil
}

func pointerInvalid(s Scheme, msg string) error {
	return errors.SchemaValidation(msg).WithContext("storage", string(s)).Build()
}
