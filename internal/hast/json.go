package hast

import (
	"encoding/json"
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// wireNode is the hast JSON shape shared by every node kind.
type wireNode struct {
	Type       string                     `json:"type"`
	TagName    string                     `json:"tagName,omitempty"`
	Properties map[string]any             `json:"properties,omitempty"`
	Children   []json.RawMessage          `json:"children,omitempty"`
	Value      string                     `json:"value,omitempty"`
	Position   *Position                  `json:"position,omitempty"`
	Data       map[string]json.RawMessage `json:"data,omitempty"`
}

// DecodeRoot parses a hast JSON document. A top-level node that is not a root
// is wrapped in one.
func DecodeRoot(data []byte) (*Root, error) {
	n, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if r, ok := n.(*Root); ok {
		return r, nil
	}
	return &Root{Children: []Node{n}}, nil
}

// Decode parses a single hast JSON node. Unknown node types decode to *Other.
func Decode(data []byte) (Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.WrapError(err, errors.CategorySchema, "invalid hast node").Build()
	}
	return fromWire(&w, "$")
}

func fromWire(w *wireNode, path string) (Node, error) {
	switch w.Type {
	case KindRoot:
		kids, err := decodeChildren(w.Children, path)
		if err != nil {
			return nil, err
		}
		return &Root{Children: kids, Position: w.Position}, nil
	case KindElement:
		return elementFromWire(w, path)
	case KindText:
		return &Text{Value: w.Value, Position: w.Position}, nil
	case KindComment:
		return &Comment{Value: w.Value, Position: w.Position}, nil
	case "":
		return nil, schemaError(path, "node has no type")
	default:
		return &Other{Type: w.Type, Value: w.Value, Position: w.Position}, nil
	}
}

func elementFromWire(w *wireNode, path string) (*Element, error) {
	if w.TagName == "" {
		return nil, schemaError(path, "element has no tagName")
	}
	props, err := normalizeProperties(w.Properties, path)
	if err != nil {
		return nil, err
	}
	el := &Element{TagName: w.TagName, Properties: props, Position: w.Position}
	var keepRaw json.RawMessage
	for name, raw := range w.Data {
		if name == "keep" {
			keepRaw = raw
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, schemaError(path, fmt.Sprintf("data.%s is not valid JSON", name))
		}
		if el.Data == nil {
			el.Data = map[string]any{}
		}
		el.Data[name] = v
	}
	el.Children, err = decodeChildren(w.Children, path)
	if err != nil {
		return nil, err
	}
	if err := bindWireKeep(el, keepRaw, path); err != nil {
		return nil, err
	}
	return el, nil
}

// bindWireKeep applies data.keep. A payload object is decoded as is; the
// boolean marker true binds from the element's properties exactly like
// FromHTML does. Without data.keep, keep marker properties still bind.
func bindWireKeep(el *Element, raw json.RawMessage, path string) error {
	var marker bool
	switch {
	case len(raw) == 0:
		return wrapKeep(bindKeep(el), path)
	case json.Unmarshal(raw, &marker) == nil:
		if !marker {
			return wrapKeep(bindKeep(el), path)
		}
		if _, ok := keepKind(el.Properties); !ok {
			return schemaError(path, "data.keep is true but no keep property names the kind")
		}
		return wrapKeep(bindKeep(el), path)
	}
	k, err := keep.Decode(raw)
	if err != nil {
		return errors.WrapError(err, errors.CategorySchema, "invalid keep payload").
			WithContext("path", path).
			Build()
	}
	el.Keep = k
	return nil
}

func wrapKeep(err error, path string) error {
	if err == nil {
		return nil
	}
	return errors.WrapError(err, errors.CategorySchema, "invalid keep marker").
		WithContext("path", path).
		Build()
}

func decodeChildren(raws []json.RawMessage, path string) ([]Node, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]Node, 0, len(raws))
	for i, raw := range raws {
		childPath := path + ".children[" + strconv.Itoa(i) + "]"
		var w wireNode
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, errors.WrapError(err, errors.CategorySchema, "invalid hast node").
				WithContext("path", childPath).
				Build()
		}
		n, err := fromWire(&w, childPath)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// normalizeProperties restricts decoded JSON values to the property value types.
// Lists of numbers are kept as their string forms; nulls are dropped.
func normalizeProperties(in map[string]any, path string) (Properties, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(Properties, len(in))
	for name, v := range in {
		switch val := v.(type) {
		case nil:
		case string, bool, float64:
			out[name] = val
		case []any:
			list := make([]string, 0, len(val))
			for _, item := range val {
				switch iv := item.(type) {
				case string:
					list = append(list, iv)
				case float64:
					list = append(list, strconv.FormatFloat(iv, 'f', -1, 64))
				default:
					return nil, schemaError(path, fmt.Sprintf("property %q has a non-scalar list item", name))
				}
			}
			out[name] = list
		default:
			return nil, schemaError(path, fmt.Sprintf("property %q has unsupported value type %T", name, v))
		}
	}
	return out, nil
}

// Encode serializes a node (or root) to hast JSON.
func Encode(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func toWire(n Node) (*wireNode, error) {
	switch v := n.(type) {
	case *Root:
		kids, err := encodeChildren(v.Children)
		if err != nil {
			return nil, err
		}
		return &wireNode{Type: KindRoot, Children: kids, Position: v.Position}, nil
	case *Element:
		kids, err := encodeChildren(v.Children)
		if err != nil {
			return nil, err
		}
		w := &wireNode{
			Type:       KindElement,
			TagName:    v.TagName,
			Properties: map[string]any(v.Properties),
			Children:   kids,
			Position:   v.Position,
		}
		if len(v.Data) > 0 || v.Keep != nil {
			w.Data = make(map[string]json.RawMessage, len(v.Data)+1)
			for name, val := range v.Data {
				raw, err := json.Marshal(val)
				if err != nil {
					return nil, errors.WrapError(err, errors.CategoryInternal, "encode element data").
						WithContext("field", name).
						Build()
				}
				w.Data[name] = raw
			}
			if v.Keep != nil {
				raw, err := keep.Encode(v.Keep)
				if err != nil {
					return nil, err
				}
				w.Data["keep"] = raw
			}
		}
		return w, nil
	case *Text:
		return &wireNode{Type: KindText, Value: v.Value, Position: v.Position}, nil
	case *Comment:
		return &wireNode{Type: KindComment, Value: v.Value, Position: v.Position}, nil
	case *Other:
		return &wireNode{Type: v.Type, Value: v.Value, Position: v.Position}, nil
	default:
		return nil, errors.UnsupportedNodeKind(fmt.Sprintf("%T", n)).Build()
	}
}

func encodeChildren(kids []Node) ([]json.RawMessage, error) {
	if len(kids) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, 0, len(kids))
	for _, c := range kids {
		w, err := toWire(c)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(w)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "encode hast node").Build()
		}
		out = append(out, raw)
	}
	return out, nil
}

func schemaError(path, msg string) error {
	return errors.SchemaValidation(msg).WithContext("path", path).Build()
}
