package keep

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

type schema struct {
	required []string
	optional []string
	ints     []string
	decode   func([]byte) (Node, error)
}

var schemas = map[Type]schema{
	TypeAlert: {
		required: []string{"kind"},
		decode:   strictNode[Alert],
	},
	TypeCodeBlock: {
		required: []string{"lang", "lines"},
		optional: []string{"title"},
		ints:     []string{"lines"},
		decode:   strictNode[CodeBlock],
	},
	TypeHeading: {
		required: []string{"level", "slug"},
		ints:     []string{"level"},
		decode:   strictNode[Heading],
	},
	TypeImage: {
		required: []string{"alt", "width", "height", "content_type", "storage"},
		optional: []string{"blurhash"},
		ints:     []string{"width", "height"},
		decode:   strictNode[Image],
	},
	TypeLinkCard: {
		required: []string{"href", "title"},
		optional: []string{"description", "favicon", "og_image"},
		decode:   strictNode[LinkCard],
	},
	TypeFootnoteReference: {
		required: []string{"id", "reference", "content"},
		ints:     []string{"reference"},
		decode:   strictNode[FootnoteReference],
	},
}

// Types returns the known keep node types, sorted.
func Types() []Type {
	out := make([]Type, 0, len(schemas))
	for t := range schemas {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Encode serializes a keep node with its type tag.
func Encode(n Node) ([]byte, error) {
	if n == nil {
		return nil, errors.SchemaValidation("nil keep node").Build()
	}
	return json.Marshal(n)
}

// Decode parses and validates a keep payload. Any payload that is not exactly one
// of the known shapes fails with a SchemaValidation error.
func Decode(data []byte) (Node, error) {
	fields, err := objectFields(data)
	if err != nil {
		return nil, err
	}
	t, err := typeTag(fields)
	if err != nil {
		return nil, err
	}
	s, ok := schemas[Type(t)]
	if !ok {
		return nil, errors.SchemaValidation("unknown keep node type").WithContext("type", t).Build()
	}
	delete(fields, "type")
	for _, key := range s.required {
		if _, present := fields[key]; !present {
			return nil, invalid(Type(t), key, "missing required field")
		}
	}
	rest, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "re-encode keep payload").Build()
	}
	n, err := s.decode(rest)
	if err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// FromAttributes builds a keep node of the given type from element attributes.
// Each schema field is looked up as-is and with a "data-" prefix; underscores may
// be written as hyphens. Integer fields are parsed from their attribute text and
// the storage field holds a JSON-encoded pointer.
func FromAttributes(kind string, attrs map[string]string) (Node, error) {
	s, ok := schemas[Type(kind)]
	if !ok {
		return nil, errors.SchemaValidation("unknown keep node type").WithContext("type", kind).Build()
	}
	fields := map[string]any{"type": kind}
	for _, key := range append(append([]string{}, s.required...), s.optional...) {
		raw, found := lookupAttr(attrs, key)
		if !found {
			continue
		}
		switch {
		case contains(s.ints, key):
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, invalid(Type(kind), key, "attribute %q is not an integer", raw)
			}
			fields[key] = n
		case key == "storage":
			fields[key] = json.RawMessage(raw)
		default:
			fields[key] = raw
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategorySchema, "encode keep attributes").
			WithContext("type", kind).
			Build()
	}
	return Decode(data)
}

// AttributeNames returns every attribute name FromAttributes may consume for kind.
func AttributeNames(kind string) []string {
	s, ok := schemas[Type(kind)]
	if !ok {
		return nil
	}
	var names []string
	for _, key := range append(append([]string{}, s.required...), s.optional...) {
		names = append(names, attrVariants(key)...)
	}
	return names
}

func lookupAttr(attrs map[string]string, key string) (string, bool) {
	for _, name := range attrVariants(key) {
		if v, ok := attrs[name]; ok {
			return v, true
		}
	}
	return "", false
}

func attrVariants(key string) []string {
	hyphen := strings.ReplaceAll(key, "_", "-")
	variants := []string{key, "data-" + hyphen}
	if hyphen != key {
		variants = append(variants, hyphen)
	}
	return variants
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func strictNode[T Node](data []byte) (Node, error) {
	var v T
	if err := strictUnmarshal(data, &v); err != nil {
		var zero T
		return nil, errors.WrapError(err, errors.CategorySchema, "payload does not match keep schema").
			WithContext("type", string(zero.Type())).
			Build()
	}
	return v, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, errors.SchemaValidation("payload is not a JSON object").WithCause(err).Build()
	}
	return fields, nil
}

func typeTag(fields map[string]json.RawMessage) (string, error) {
	raw, ok := fields["type"]
	if !ok {
		return "", errors.SchemaValidation("payload has no type tag").Build()
	}
	var t string
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", errors.SchemaValidation("type tag is not a string").WithCause(err).Build()
	}
	return t, nil
}

func invalid(t Type, field, format string, args ...any) error {
	return errors.SchemaValidation(fmt.Sprintf(format, args...)).
		WithContext("type", string(t)).
		WithContext("field", field).
		Build()
}
