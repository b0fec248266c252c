// Package frontmatter splits YAML frontmatter off Markdown sources and decodes it.
package frontmatter

import (
	"bytes"
	stdErrors "errors"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = stdErrors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Parts is a source split into raw frontmatter and body.
type Parts struct {
	// Raw is the YAML between the delimiters, nil when the source has none.
	Raw  []byte
	Body []byte
	Had  bool
	// Offset is the byte offset of Body within the source.
	Offset int
	// Line is the 1-based source line Body starts on.
	Line int
	// Newline is "\r\n" when the source uses CRLF line endings, else "\n".
	Newline string
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
//
// If the document does not start with a YAML frontmatter delimiter, Had is
// false and Body is the full input.
func Split(content []byte) (Parts, error) {
	nl := detectNewline(content)
	p := Parts{Body: content, Line: 1, Newline: nl}

	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return p, nil
	}

	start := len(open)
	closing := []byte("---" + nl)
	if bytes.HasPrefix(content[start:], closing) {
		return p.at(content, []byte{}, start+len(closing)), nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		return Parts{Newline: nl}, ErrMissingClosingDelimiter
	}
	return p.at(content, content[start:start+idx+len(nl)], start+idx+len(closeSeq)), nil
}

func (p Parts) at(content, raw []byte, bodyStart int) Parts {
	p.Raw = raw
	p.Had = true
	p.Body = content[bodyStart:]
	p.Offset = bodyStart
	p.Line = 1 + bytes.Count(content[:bodyStart], []byte("\n"))
	return p
}

// Decode unmarshals raw frontmatter YAML into v. Empty input leaves v untouched.
func Decode(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid frontmatter").
			Build()
	}
	return nil
}

// ParseYAML parses raw YAML frontmatter into a map.
func ParseYAML(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := Decode(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
