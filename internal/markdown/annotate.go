package markdown

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	gmast "github.com/yuin/goldmark/ast"

	"git.home.luguber.info/inful/docfold/internal/hast"
	"git.home.luguber.info/inful/docfold/internal/keep"
)

type scope int

const (
	scopeDocument scope = iota
	// Footnote bodies skip heading slugs: their headings are not sections.
	scopeFootnote
)

var (
	titleAttr   = regexp.MustCompile(`title=(?:"([^"]*)"|'([^']*)'|(\S+))`)
	alertMarker = regexp.MustCompile(`(?i)^\s*\[!(note|tip|important|warning|caution)\][ \t]*\r?\n?`)
	footnoteRef = regexp.MustCompile(`^#fn:(\d+)$`)
)

type codeInfo struct {
	lang  string
	title string
}

// codeInfos collects the fence info of every code block under n in document order.
func codeInfos(n gmast.Node, source []byte) []codeInfo {
	var infos []codeInfo
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *gmast.FencedCodeBlock:
			info := codeInfo{lang: string(v.Language(source))}
			if v.Info != nil {
				if m := titleAttr.FindSubmatch(v.Info.Segment.Value(source)); m != nil {
					info.title = string(m[1]) + string(m[2]) + string(m[3])
				}
			}
			infos = append(infos, info)
		case *gmast.CodeBlock:
			infos = append(infos, codeInfo{})
		}
		return gmast.WalkContinue, nil
	})
	return infos
}

// annotate binds keep nodes within the raw nodes of one block.
func (p *parser) annotate(nodes []hast.Node, infos []codeInfo, sc scope) {
	var pres []*hast.Element
	for _, n := range nodes {
		hast.Walk(n, func(x hast.Node) bool {
			if el, ok := x.(*hast.Element); ok && el.TagName == "pre" && codeChild(el) != nil {
				pres = append(pres, el)
			}
			return true
		})
	}
	zipped := map[*hast.Element]codeInfo{}
	if len(pres) == len(infos) {
		for i, el := range pres {
			zipped[el] = infos[i]
		}
	}

	for _, n := range nodes {
		hast.Walk(n, func(x hast.Node) bool {
			el, ok := x.(*hast.Element)
			if !ok || el.Keep != nil {
				return true
			}
			switch el.TagName {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				if sc == scopeDocument {
					p.heading(el)
				}
			case "pre":
				p.codeBlock(el, zipped)
			case "blockquote":
				p.alert(el)
			case "img":
				p.image(el)
			case "sup":
				p.footnoteReference(el)
			}
			return true
		})
		if el, ok := n.(*hast.Element); ok && el.TagName == "p" && el.Keep == nil {
			p.linkCard(el)
		}
	}
}

func (p *parser) heading(el *hast.Element) {
	level, _ := strconv.Atoi(el.TagName[1:])
	seed := plainText(el)
	if id, ok := el.Properties.Get("id"); ok && id != "" {
		seed = id
	}
	s := p.slugger.Slug(seed)
	if el.Properties == nil {
		el.Properties = hast.Properties{}
	}
	el.Properties["id"] = s
	el.Keep = keep.Heading{Level: level, Slug: s}
}

func codeChild(pre *hast.Element) *hast.Element {
	for _, c := range pre.Children {
		if el, ok := c.(*hast.Element); ok && el.TagName == "code" {
			return el
		}
	}
	return nil
}

func (p *parser) codeBlock(pre *hast.Element, zipped map[*hast.Element]codeInfo) {
	code := codeChild(pre)
	if code == nil {
		return
	}
	info, ok := zipped[pre]
	if !ok {
		info = codeInfo{lang: languageClass(code)}
	}
	pre.Keep = keep.CodeBlock{
		Lang:  info.lang,
		Title: info.title,
		Lines: hast.CountLines(hast.TextContent(code)),
	}
}

func languageClass(code *hast.Element) string {
	classes, _ := code.Properties["className"].([]string)
	for _, c := range classes {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}

// alert turns a blockquote opening with a [!KIND] marker into an alert box
// and removes the marker.
func (p *parser) alert(bq *hast.Element) {
	var first *hast.Element
	for _, c := range bq.Children {
		if el, ok := c.(*hast.Element); ok {
			first = el
			break
		}
	}
	if first == nil || first.TagName != "p" || len(first.Children) == 0 {
		return
	}
	t, ok := first.Children[0].(*hast.Text)
	if !ok {
		return
	}
	m := alertMarker.FindStringSubmatch(t.Value)
	if m == nil {
		return
	}
	t.Value = t.Value[len(m[0]):]
	if t.Value == "" {
		first.Children = first.Children[1:]
	}
	if len(first.Children) == 0 || strings.TrimSpace(hast.TextContent(first)) == "" && !hasElement(first) {
		bq.Children = removeNode(bq.Children, first)
	}
	bq.Keep = keep.Alert{Kind: keep.AlertKind(strings.ToLower(m[1]))}
}

func hasElement(el *hast.Element) bool {
	for _, c := range el.Children {
		if _, ok := c.(*hast.Element); ok {
			return true
		}
	}
	return false
}

func removeNode(list []hast.Node, target hast.Node) []hast.Node {
	out := list[:0]
	for _, n := range list {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

func (p *parser) image(img *hast.Element) {
	if p.opts.Images == nil {
		return
	}
	src, _ := img.Properties.Get("src")
	if src == "" || isExternal(src) {
		return
	}
	ref, err := p.opts.Images.ResolveImage(p.ctx, p.docPath, src)
	if err != nil {
		p.warn("image", src, err)
		return
	}
	alt, _ := img.Properties.Get("alt")
	k := keep.ImageFromReference(alt, ref)
	if err := k.Validate(); err != nil {
		p.warn("image", src, err)
		return
	}
	img.Keep = k
}

func isExternal(src string) bool {
	if strings.HasPrefix(src, "//") || strings.HasPrefix(src, "data:") {
		return true
	}
	u, err := url.Parse(src)
	return err == nil && u.Scheme != ""
}

// footnoteReference binds the sup element goldmark renders for [^label].
func (p *parser) footnoteReference(sup *hast.Element) {
	id, _ := sup.Properties.Get("id")
	if !strings.HasPrefix(id, "fnref") {
		return
	}
	for _, c := range sup.Children {
		a, ok := c.(*hast.Element)
		if !ok || a.TagName != "a" {
			continue
		}
		href, _ := a.Properties.Get("href")
		m := footnoteRef.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		label, ok := p.labels[n]
		if !ok {
			continue
		}
		sup.Keep = keep.FootnoteReference{ID: label, Reference: n, Content: p.previews[n]}
		return
	}
}

// linkCard turns a paragraph holding nothing but a bare absolute link into a
// link preview card.
func (p *parser) linkCard(para *hast.Element) {
	if p.opts.Links == nil {
		return
	}
	var link *hast.Element
	for _, c := range para.Children {
		switch v := c.(type) {
		case *hast.Text:
			if strings.TrimSpace(v.Value) != "" {
				return
			}
		case *hast.Element:
			if link != nil || v.TagName != "a" {
				return
			}
			link = v
		default:
			return
		}
	}
	if link == nil {
		return
	}
	href, _ := link.Properties.Get("href")
	if strings.TrimSpace(hast.TextContent(link)) != href {
		return
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return
	}
	card, err := p.opts.Links.Preview(p.ctx, href)
	if err != nil {
		p.warn("link_preview", href, err)
		return
	}
	card.Href = href
	if card.Title == "" {
		card.Title = href
	}
	if err := card.Validate(); err != nil {
		p.warn("link_preview", href, err)
		return
	}
	para.Keep = card
}
