package markdown

import (
	"strings"

	"git.home.luguber.info/inful/docfold/internal/document"
	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

// Sections splits an annotated tree at its heading keep nodes, in document
// order. Text before the first heading belongs to no section.
func Sections(root *hast.Root) []document.Section {
	var (
		out     []document.Section
		content []string
	)
	flush := func() {
		if len(out) > 0 {
			out[len(out)-1].Content = collapse(strings.Join(content, " "))
		}
		content = content[:0]
	}
	hast.Walk(root, func(n hast.Node) bool {
		switch v := n.(type) {
		case *hast.Element:
			if h, ok := v.Keep.(keep.Heading); ok {
				flush()
				out = append(out, document.Section{
					ID:    h.Slug,
					Level: h.Level,
					Title: collapse(plainText(v)),
				})
				return false
			}
			if isFootnoteChrome(v) {
				return false
			}
		case *hast.Text:
			content = append(content, v.Value)
		}
		return true
	})
	flush()
	return out
}
