package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Encode serializes a document to JSON.
func Encode(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "encode document").Build()
	}
	return data, nil
}

// Decode parses and validates a document. A document that fails validation is
// never returned.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := strictUnmarshal(data, &doc); err != nil {
		return nil, schemaWrap(err, "decode document")
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	type plain Text
	return tagged(TypeText, plain(t))
}

func (e Eager) MarshalJSON() ([]byte, error) {
	type plain Eager
	return tagged(TypeEager, plain(e))
}

func (l Lazy) MarshalJSON() ([]byte, error) {
	type plain Lazy
	if l.Children == nil {
		l.Children = Nodes{}
	}
	return tagged(TypeLazy, plain(l))
}

func (k KeepEager) MarshalJSON() ([]byte, error) {
	type plain KeepEager
	return tagged(TypeKeepEager, plain(k))
}

func (k KeepLazy) MarshalJSON() ([]byte, error) {
	type plain KeepLazy
	if k.Children == nil {
		k.Children = Nodes{}
	}
	return tagged(TypeKeepLazy, plain(k))
}

// tagged encodes v and prepends the "type" member.
func tagged(t NodeType, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	tag, _ := json.Marshal(string(t))
	buf.Write(tag)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes each element by its "type" member.
func (ns *Nodes) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Nodes, 0, len(raws))
	for i, raw := range raws {
		n, err := decodeNode(raw)
		if err != nil {
			return errors.WrapError(err, errors.CategorySchema, "invalid node").
				WithContext("index", i).
				Build()
		}
		out = append(out, n)
	}
	*ns = out
	return nil
}

type keepEagerWire struct {
	ID      contentid.ID      `json:"id"`
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Keep    json.RawMessage   `json:"keep"`
	Content string            `json:"content"`
}

type keepLazyWire struct {
	ID       contentid.ID      `json:"id"`
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Keep     json.RawMessage   `json:"keep"`
	Children Nodes             `json:"children"`
}

func decodeNode(raw json.RawMessage) (Node, error) {
	var head struct {
		Type NodeType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	body, err := withoutType(raw)
	if err != nil {
		return nil, err
	}
	switch head.Type {
	case TypeText:
		var n Text
		err = strictUnmarshal(body, &n)
		return n, err
	case TypeEager:
		var n Eager
		err = strictUnmarshal(body, &n)
		return n, err
	case TypeLazy:
		var n Lazy
		err = strictUnmarshal(body, &n)
		return n, err
	case TypeKeepEager:
		var w keepEagerWire
		if err := strictUnmarshal(body, &w); err != nil {
			return nil, err
		}
		k, err := decodeKeep(w.Keep)
		if err != nil {
			return nil, err
		}
		return KeepEager{ID: w.ID, Tag: w.Tag, Attrs: w.Attrs, Keep: k, Content: w.Content}, nil
	case TypeKeepLazy:
		var w keepLazyWire
		if err := strictUnmarshal(body, &w); err != nil {
			return nil, err
		}
		k, err := decodeKeep(w.Keep)
		if err != nil {
			return nil, err
		}
		return KeepLazy{ID: w.ID, Tag: w.Tag, Attrs: w.Attrs, Keep: k, Children: w.Children}, nil
	default:
		return nil, errors.SchemaValidation(fmt.Sprintf("unknown node type %q", head.Type)).Build()
	}
}

func decodeKeep(raw json.RawMessage) (keep.Node, error) {
	if len(raw) == 0 {
		return nil, errors.SchemaValidation("keep node without payload").Build()
	}
	return keep.Decode(raw)
}

// withoutType strips the discriminator so the body can be decoded strictly.
func withoutType(raw json.RawMessage) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "type")
	return json.Marshal(fields)
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func schemaWrap(err error, msg string) error {
	if errors.IsSchemaValidation(err) {
		return err
	}
	return errors.WrapError(err, errors.CategorySchema, msg).Build()
}
