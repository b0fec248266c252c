// Package contentid derives deterministic identifiers for compiled nodes.
//
// Ids are BLAKE3-256 digests rendered as unpadded base64url (43 characters). The
// derivation domain is hashed ahead of the payload, so a position-derived id can
// never equal a content-derived one even for identical bytes.
package contentid

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"

	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
)

// ID is an opaque content address.
type ID string

// EncodedLen is the length of every well-formed ID.
const EncodedLen = 43

// Domain names the input an ID was derived from.
type Domain string

const (
	// DomainPosition ids hash a source span (optionally scoped to a document).
	DomainPosition Domain = "position"
	// DomainContent ids hash serialized markup; they are never scoped.
	DomainContent Domain = "content"
	// DomainStructure ids hash a partial node's shell plus its children's ids.
	DomainStructure Domain = "structure"
)

// Derive hashes payload under domain and scope.
func Derive(domain Domain, scope string, payload []byte) ID {
	h := blake3.New()
	_, _ = h.WriteString(string(domain))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(scope)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)
	return ID(base64.RawURLEncoding.EncodeToString(h.Sum(nil)))
}

// Of canonicalizes v and derives an ID from it.
func Of(domain Domain, scope string, v any) (ID, error) {
	payload, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return Derive(domain, scope, payload), nil
}

// Canonical encodes v as JSON with sorted object keys and no HTML escaping.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "canonical encoding failed").Build()
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Parse checks that s is a well-formed ID.
func Parse(s string) (ID, error) {
	if len(s) != EncodedLen {
		return "", errors.SchemaValidation("malformed content id").WithContext("id", s).Build()
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return "", errors.SchemaValidation("malformed content id").WithContext("id", s).WithCause(err).Build()
	}
	return ID(s), nil
}

// Valid reports whether id is well formed.
func (id ID) Valid() bool {
	_, err := Parse(string(id))
	return err == nil
}

func (id ID) String() string { return string(id) }

// Short returns a prefix suitable for log lines.
func (id ID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}

// Blob returns the hex BLAKE3-256 digest of a stored blob.
func Blob(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
