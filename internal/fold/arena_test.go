package fold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docfold/internal/keep"
)

func TestFlattenAndStats(t *testing.T) {
	forest, err := Compile(mustParse(t,
		`<div><p>static</p><pre keep="codeblock" lang="js">x</pre></div><p>tail</p>`))
	require.NoError(t, err)

	arena := Flatten(forest)
	require.Len(t, arena.Entries, 5)
	assert.Equal(t, []int{0, 4}, arena.Roots)

	div := arena.Entries[0]
	assert.Equal(t, -1, div.Parent)
	assert.Equal(t, []int{1, 2}, div.Children)
	assert.False(t, div.Folded)

	pre := arena.Entries[2]
	assert.Equal(t, keep.TypeCodeBlock, pre.Keep)
	assert.Equal(t, []int{3}, pre.Children)
	assert.Equal(t, []int{0, 2, 3}, arena.Path(3))

	stats := arena.Stats()
	assert.Equal(t, 5, stats.Nodes)
	assert.Equal(t, 3, stats.Folded)
	assert.Equal(t, 2, stats.Partial)
	assert.Equal(t, 1, stats.Keep)
	assert.Equal(t, 1, stats.KeepByType[keep.TypeCodeBlock])
	assert.Equal(t, 2, stats.MaxDepth)
	assert.Equal(t, len("static")+len("x")+len("tail"), stats.InnerBytes)
}

func TestFlattenNil(t *testing.T) {
	assert.Empty(t, Flatten(nil).Entries)
}
