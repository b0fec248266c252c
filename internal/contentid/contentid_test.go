package contentid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	a := Derive(DomainContent, "", []byte("<p>hello</p>"))
	b := Derive(DomainContent, "", []byte("<p>hello</p>"))
	assert.Equal(t, a, b)
	assert.Len(t, string(a), EncodedLen)
	assert.True(t, a.Valid())
}

func TestDerive_DomainAndScopeSeparation(t *testing.T) {
	payload := []byte(`{"start":{"line":1}}`)
	pos := Derive(DomainPosition, "", payload)
	content := Derive(DomainContent, "", payload)
	scoped := Derive(DomainPosition, "guide/intro", payload)

	assert.NotEqual(t, pos, content)
	assert.NotEqual(t, pos, scoped)
	assert.NotEqual(t, Derive(DomainContent, "", []byte("a")), Derive(DomainContent, "", []byte("b")))
}

func TestCanonical_SortsKeysAndKeepsMarkup(t *testing.T) {
	out, err := Canonical(map[string]any{"b": 1, "a": "<em>x</em>"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<em>x</em>","b":1}`, string(out))

	id1, err := Of(DomainStructure, "", map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	id2, err := Of(DomainStructure, "", map[string]any{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	_, err = Canonical(make(chan int))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	id := Derive(DomainContent, "", []byte("x"))
	got, err := Parse(string(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, bad := range []string{"", "short", string(id)[:42] + "!"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, string(id)[:12], id.Short())
}

func TestBlob(t *testing.T) {
	assert.Len(t, Blob([]byte("abc")), 64)
	assert.Equal(t, Blob([]byte("abc")), Blob([]byte("abc")))
}

func TestLRU(t *testing.T) {
	c := NewLRU(2)
	a, b, d := ID("a"), ID("b"), ID("d")

	c.Add(a, "A")
	c.Add(b, "B")
	v, ok := c.Get(a)
	require.True(t, ok)
	assert.Equal(t, "A", v)

	c.Add(d, "D") // evicts b, the least recently used
	_, ok = c.Get(b)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}
