// Package linkpreview fetches Open Graph metadata for link cards.
package linkpreview

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docfold/internal/config"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/keep"
	"git.home.luguber.info/inful/docfold/internal/logfields"
	"git.home.luguber.info/inful/docfold/internal/metrics"
	"git.home.luguber.info/inful/docfold/internal/retry"
)

const maxRedirects = 5

// Fetcher retrieves link cards over HTTP. Results, including failures, are
// memoized per href for the lifetime of the Fetcher.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	policy    retry.Policy
	recorder  metrics.Recorder

	mu    sync.Mutex
	cards map[string]result
}

type result struct {
	card keep.LinkCard
	err  error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRecorder records retries.
func WithRecorder(r metrics.Recorder) Option {
	return func(f *Fetcher) { f.recorder = r }
}

// New creates a Fetcher from link preview configuration.
func New(cfg config.LinkPreviewConfig, opts ...Option) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	f := &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		policy:    retry.FromConfig(cfg),
		recorder:  metrics.NoopRecorder{},
		cards:     map[string]result{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Preview returns the link card for href.
func (f *Fetcher) Preview(ctx context.Context, href string) (keep.LinkCard, error) {
	f.mu.Lock()
	if r, ok := f.cards[href]; ok {
		f.mu.Unlock()
		return r.card, r.err
	}
	f.mu.Unlock()

	start := time.Now()
	var card keep.LinkCard
	err := f.policy.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			f.recorder.IncRetry("link_preview")
			slog.Debug("Retrying link preview", logfields.URL(href), logfields.Attempt(attempt))
		}
		var err error
		card, err = f.fetch(ctx, href)
		return err
	})
	if err != nil {
		slog.Warn("Link preview failed", logfields.URL(href), logfields.Error(err))
	} else {
		slog.Debug("Fetched link preview", logfields.URL(href),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	}

	f.mu.Lock()
	f.cards[href] = result{card: card, err: err}
	f.mu.Unlock()
	return card, err
}

func (f *Fetcher) fetch(ctx context.Context, href string) (keep.LinkCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return keep.LinkCard{}, errors.WrapError(err, errors.CategoryValidation, "build preview request").
			WithContext("url", href).
			Build()
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return keep.LinkCard{}, errors.WrapError(err, errors.CategoryNetwork, "fetch link preview").
			Retryable().
			WithContext("url", href).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		b := errors.NetworkError("link preview returned HTTP " + strconv.Itoa(resp.StatusCode)).
			WithContext("url", href).
			WithContext("status", resp.StatusCode)
		// Client errors will not change on retry.
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			b = b.WithRetry(errors.RetryNever)
		}
		return keep.LinkCard{}, b.Build()
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "" && mt != "text/html" && mt != "application/xhtml+xml" {
		return keep.LinkCard{Href: href, Title: href}, nil
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes)
	}
	final := resp.Request.URL
	if final == nil {
		final, _ = url.Parse(href)
	}
	return Extract(body, href, final)
}

// Extract reads preview metadata from an HTML page. Relative favicon and
// image URLs resolve against base.
func Extract(r io.Reader, href string, base *url.URL) (keep.LinkCard, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return keep.LinkCard{}, errors.WrapError(err, errors.CategoryValidation, "parse preview page").
			WithContext("url", href).
			Build()
	}

	var (
		meta  = map[string]string{}
		title string
		icon  string
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				key := getAttr(n, "property")
				if key == "" {
					key = getAttr(n, "name")
				}
				key = strings.ToLower(key)
				if _, seen := meta[key]; key != "" && !seen {
					meta[key] = strings.TrimSpace(getAttr(n, "content"))
				}
			case "title":
				if title == "" {
					title = strings.Join(strings.Fields(textOf(n)), " ")
				}
			case "link":
				if icon == "" && isIconRel(getAttr(n, "rel")) {
					icon = getAttr(n, "href")
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	card := keep.LinkCard{
		Href:        href,
		Title:       firstOf(meta["og:title"], meta["twitter:title"], title, href),
		Description: firstOf(meta["og:description"], meta["twitter:description"], meta["description"]),
		Favicon:     resolve(base, icon),
		OGImage:     resolve(base, firstOf(meta["og:image"], meta["og:image:url"], meta["twitter:image"])),
	}
	if card.Favicon == "" && base != nil {
		card.Favicon = base.ResolveReference(&url.URL{Path: "/favicon.ico"}).String()
	}
	return card, nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func isIconRel(rel string) bool {
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if r == "icon" {
			return true
		}
	}
	return false
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
