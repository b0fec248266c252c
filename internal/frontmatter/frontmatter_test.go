package frontmatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	p, err := Split(input)
	require.NoError(t, err)
	require.False(t, p.Had)
	require.Nil(t, p.Raw)
	require.Equal(t, input, p.Body)
	require.Equal(t, 1, p.Line)
	require.Equal(t, 0, p.Offset)
}

func TestSplit_YAMLFrontmatter_ReportsBodyLine(t *testing.T) {
	input := []byte("---\ntitle: Hi\ntags: [a]\n---\n# Title\n")

	p, err := Split(input)
	require.NoError(t, err)
	require.True(t, p.Had)
	require.Equal(t, []byte("title: Hi\ntags: [a]\n"), p.Raw)
	require.Equal(t, []byte("# Title\n"), p.Body)
	require.Equal(t, 5, p.Line)
	require.Equal(t, len(input)-len("# Title\n"), p.Offset)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	p, err := Split([]byte("---\nkey: value\n# Title\n"))
	require.Error(t, err)
	require.False(t, p.Had)
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
}

func TestSplit_CRLF_SplitsFrontmatterAndBody(t *testing.T) {
	p, err := Split([]byte("---\r\nkey: value\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, p.Had)
	require.Equal(t, "\r\n", p.Newline)
	require.Equal(t, []byte("key: value\r\n"), p.Raw)
	require.Equal(t, []byte("# Title\r\n"), p.Body)
	require.Equal(t, 4, p.Line)
}

func TestSplit_EmptyFrontmatterBlock_SplitsAsHadWithEmptyFrontmatter(t *testing.T) {
	p, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, p.Had)
	require.Empty(t, p.Raw)
	require.Equal(t, []byte("# Title\n"), p.Body)
	require.Equal(t, 3, p.Line)
}

func TestDecode_TypedAndInline(t *testing.T) {
	var fm struct {
		Title string         `yaml:"title"`
		Extra map[string]any `yaml:",inline"`
	}
	require.NoError(t, Decode([]byte("title: Hi\nweight: 3\n"), &fm))
	require.Equal(t, "Hi", fm.Title)
	require.Equal(t, map[string]any{"weight": 3}, fm.Extra)
}

func TestDecode_InvalidYAML_ReturnsError(t *testing.T) {
	var fm map[string]any
	require.Error(t, Decode([]byte("title: [unclosed\n"), &fm))
}

func TestParseYAML_Empty(t *testing.T) {
	fields, err := ParseYAML(nil)
	require.NoError(t, err)
	require.Empty(t, fields)
}
