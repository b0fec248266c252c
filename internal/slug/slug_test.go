package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  Getting Started!  ", "getting-started"},
		{"API v2.0 (beta)", "api-v20-beta"},
		{"Crème Brûlée", "creme-brulee"},
		{"snake_case and-kebab", "snake_case-and-kebab"},
		{"日本語 見出し", "日本語-見出し"},
		{"???", Fallback},
		{"", Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestSluggerDeduplicates(t *testing.T) {
	s := New()
	assert.Equal(t, "intro", s.Slug("Intro"))
	assert.Equal(t, "intro-1", s.Slug("Intro"))
	assert.Equal(t, "intro-2", s.Slug("intro"))
	assert.Equal(t, "intro-1-1", s.Slug("Intro 1"))

	s.Reset()
	assert.Equal(t, "intro", s.Slug("Intro"))
}
