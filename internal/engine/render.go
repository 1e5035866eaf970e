package engine

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Page is a rendered document. Scripts and callers share it, so access goes
// through its lock.
type Page struct {
	URL     string
	Blocked int

	mu  sync.Mutex
	doc *goquery.Document
}

func (p *Page) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pageTitle(p.doc, p.URL)
}

func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, err := p.doc.Html()
	if err != nil {
		return ""
	}
	return out
}

// withDocument runs fn while holding the page.
func (p *Page) withDocument(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

type renderOptions struct {
	javaScript  bool
	blockImages bool
	// intercept reports whether a subresource must be dropped.
	intercept func(url string) bool
}

// subresources are the attributes that make the engine fetch something.
var subresources = []struct{ selector, attr string }{
	{"img[src]", "src"},
	{"script[src]", "src"},
	{"iframe[src]", "src"},
	{"link[href]", "href"},
	{"source[src]", "src"},
	{"video[src]", "src"},
	{"audio[src]", "src"},
	{"embed[src]", "src"},
	{"object[data]", "data"},
}

var ugc = bluemonday.UGCPolicy()

// decodeBody converts body to UTF-8 using the declared charset, or a detected
// one when none is declared.
func decodeBody(body []byte, contentType string) string {
	if !strings.Contains(strings.ToLower(contentType), "charset=") {
		contentType = "text/html; charset=" + detectCharset(body)
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(out)
}

func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil || result.Charset == "" {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// renderPage parses and cleans a document. It returns the page and the inline
// scripts it carried, which the caller runs in the sandbox.
func renderPage(pageURL, mediaType, text string, opts renderOptions) (*Page, []string, error) {
	if mediaType == "text/plain" {
		text = "<html><head></head><body><pre>" + html.EscapeString(text) + "</pre></body></html>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid page url: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(href); err == nil {
			base = b
		}
	}

	page := &Page{URL: pageURL, doc: doc}

	if opts.intercept != nil {
		for _, sub := range subresources {
			doc.Find(sub.selector).Each(func(_ int, s *goquery.Selection) {
				abs := resolveURL(s.AttrOr(sub.attr, ""), base)
				if abs != "" && opts.intercept(abs) {
					s.Remove()
					page.Blocked++
				}
			})
		}
	}
	if opts.blockImages {
		doc.Find("img").Remove()
	}

	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external || !isJavaScript(s.AttrOr("type", "")) {
			return
		}
		if code := strings.TrimSpace(s.Text()); code != "" {
			scripts = append(scripts, code)
		}
	})
	doc.Find("script").Remove()
	stripEventHandlers(doc)

	if !opts.javaScript {
		scripts = nil
		body := doc.Find("body")
		if inner, err := body.Html(); err == nil {
			body.SetHtml(ugc.Sanitize(inner))
		}
	}

	absolutize(doc, base)
	if doc.Find("head base").Length() == 0 {
		doc.Find("head").PrependHtml(fmt.Sprintf(`<base href="%s">`, html.EscapeString(base.String())))
	}

	return page, scripts, nil
}

// errorPage is shown when a load fails. It is never added to history.
func errorPage(failedURL string, cause error) *Page {
	markup := fmt.Sprintf(`<html><head><title>Problem loading page</title></head>`+
		`<body><h1>Problem loading page</h1><p class="url">%s</p><p class="cause">%s</p></body></html>`,
		html.EscapeString(failedURL), html.EscapeString(cause.Error()))
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(markup))
	return &Page{URL: failedURL, doc: doc}
}

func pageTitle(doc *goquery.Document, pageURL string) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		return u.Host
	}
	return pageURL
}

func isJavaScript(scriptType string) bool {
	switch strings.ToLower(strings.TrimSpace(scriptType)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}

func stripEventHandlers(doc *goquery.Document) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			var names []string
			for _, a := range n.Attr {
				if strings.HasPrefix(strings.ToLower(a.Key), "on") {
					names = append(names, a.Key)
				}
			}
			for _, name := range names {
				s.RemoveAttr(name)
			}
		}
	})
}

func absolutize(doc *goquery.Document, base *url.URL) {
	for _, ref := range []struct{ selector, attr string }{
		{"a[href]", "href"},
		{"img[src]", "src"},
		{"link[href]", "href"},
		{"form[action]", "action"},
		{"iframe[src]", "src"},
	} {
		doc.Find(ref.selector).Each(func(_ int, s *goquery.Selection) {
			if abs := resolveURL(s.AttrOr(ref.attr, ""), base); abs != "" {
				s.SetAttr(ref.attr, abs)
			}
		})
	}
}

// resolveURL makes href absolute. Fragments and non-fetchable schemes come
// back empty.
func resolveURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"data:", "javascript:", "mailto:", "tel:", "vbscript:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
