package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/engine/sandbox"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/ghostview/internal/webview"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type navMode int

const (
	modeNew navMode = iota
	modeReload
	modeHistory
)

type inlineData struct {
	body        []byte
	contentType string
}

type navigation struct {
	url        string
	historyURL string
	method     string
	form       url.Values
	headers    map[string]string
	inline     *inlineData
	mode       navMode
	index      int
}

type fetched struct {
	url         string
	status      int
	contentType string
	disposition string
	body        []byte
	length      int64
	cacheable   bool
}

const blankPage = "<html><head></head><body></body></html>"

// start supersedes any load in flight with nav.
func (e *Engine) start(nav navigation) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancel = cancel
	e.seq++
	seq := e.seq
	e.loadingURL = nav.url
	e.progress = 0
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer cancel()
		e.run(ctx, seq, nav)
	}()
}

func (e *Engine) run(ctx context.Context, seq uint64, nav navigation) {
	began := time.Now()
	if !e.report(seq, 10) {
		return
	}

	res, err := e.fetch(ctx, nav)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		e.fail(seq, nav.url, err)
		e.recordLoad("error", began)
		return
	}

	e.mu.Lock()
	if seq == e.seq {
		e.loadingURL = res.url
	}
	e.mu.Unlock()
	if !e.report(seq, 50) {
		return
	}

	mediaType, download := classify(res.contentType, res.disposition, res.body)
	if download && nav.inline == nil {
		e.download(seq, res, mediaType)
		e.recordLoad("download", began)
		return
	}

	page, err := e.render(ctx, res, mediaType)
	if err != nil {
		e.fail(seq, nav.url, err)
		e.recordLoad("error", began)
		return
	}
	if !e.report(seq, 80) {
		return
	}
	if !e.commit(seq, nav, page) {
		return
	}
	if res.cacheable {
		e.profile.cache.Put(&CacheEntry{
			URL:         res.url,
			ContentType: res.contentType,
			Body:        res.body,
			StoredAt:    time.Now(),
		})
	}
	e.report(seq, 100)
	e.recordLoad("ok", began)
}

// report publishes progress for the current load. It returns false once the
// load has been superseded.
func (e *Engine) report(seq uint64, progress int) bool {
	e.mu.Lock()
	if seq != e.seq || e.destroyed {
		e.mu.Unlock()
		return false
	}
	e.progress = progress
	l := e.listener
	e.mu.Unlock()

	if l != nil {
		l.OnProgressChanged(progress)
	}
	return true
}

func (e *Engine) fetch(ctx context.Context, nav navigation) (*fetched, error) {
	if nav.inline != nil {
		return &fetched{url: nav.url, contentType: nav.inline.contentType, body: nav.inline.body, length: int64(len(nav.inline.body))}, nil
	}
	if nav.url == "about:blank" {
		return &fetched{url: nav.url, contentType: "text/html; charset=utf-8", body: []byte(blankPage)}, nil
	}
	if nav.mode == modeHistory {
		if entry, ok := e.profile.cache.Get(nav.url); ok {
			return &fetched{url: entry.URL, status: http.StatusOK, contentType: entry.ContentType, body: entry.Body, length: int64(len(entry.Body))}, nil
		}
	}

	if !webview.IsHTTPURL(nav.url) {
		return nil, fmt.Errorf("unsupported address %q", nav.url)
	}

	method := strings.ToUpper(nav.method)
	if method == "" {
		method = http.MethodGet
	}
	req := httpclient.Request{
		Method:  method,
		URL:     nav.url,
		Headers: e.requestHeaders(nav.headers),
		Form:    nav.form,
		NoCache: nav.mode == modeReload,
	}
	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized {
		if creds, ok := e.storedCredentials(resp); ok {
			req.BasicAuth = &creds
			if retried, err := e.client.Do(ctx, req); err == nil {
				resp = retried
			}
		}
	}

	return &fetched{
		url:         resp.URL,
		status:      resp.Status,
		contentType: resp.Header.Get("Content-Type"),
		disposition: resp.Header.Get("Content-Disposition"),
		body:        resp.Body,
		length:      resp.ContentLength,
		cacheable:   method == http.MethodGet && resp.Status == http.StatusOK,
	}, nil
}

func (e *Engine) storedCredentials(resp *httpclient.Response) (httpclient.Credentials, bool) {
	challenge := resp.Header.Get("WWW-Authenticate")
	if !strings.HasPrefix(strings.ToLower(challenge), "basic") {
		return httpclient.Credentials{}, false
	}
	u, err := url.Parse(resp.URL)
	if err != nil {
		return httpclient.Credentials{}, false
	}
	return e.profile.database.HTTPAuthUsernamePassword(u.Hostname(), basicRealm(challenge))
}

func basicRealm(challenge string) string {
	i := strings.Index(strings.ToLower(challenge), "realm=")
	if i < 0 {
		return ""
	}
	realm := challenge[i+len("realm="):]
	if strings.HasPrefix(realm, `"`) {
		realm = realm[1:]
		if end := strings.Index(realm, `"`); end >= 0 {
			realm = realm[:end]
		}
	} else if end := strings.IndexAny(realm, ", "); end >= 0 {
		realm = realm[:end]
	}
	return realm
}

func (e *Engine) requestHeaders(extra map[string]string) map[string]string {
	e.mu.Lock()
	settings := e.settings
	e.mu.Unlock()

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if settings.UserAgent != "" {
		headers["User-Agent"] = settings.UserAgent
	}
	if settings.DoNotTrack {
		headers["DNT"] = "1"
	}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}

func (e *Engine) userAgent() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settings.UserAgent != "" {
		return e.settings.UserAgent
	}
	return httpclient.DefaultConfig().UserAgent
}

func (e *Engine) render(ctx context.Context, res *fetched, mediaType string) (*Page, error) {
	e.mu.Lock()
	settings := e.settings
	blocking := e.blocking
	e.mu.Unlock()

	opts := renderOptions{
		javaScript:  settings.JavaScriptEnabled && e.sandbox != nil,
		blockImages: settings.BlockImages,
	}
	if blocking {
		opts.intercept = e.events().ShouldInterceptRequest
	}

	page, scripts, err := renderPage(res.url, mediaType, decodeBody(res.body, res.contentType), opts)
	if err != nil {
		return nil, err
	}
	for _, script := range scripts {
		page.withDocument(func(doc *goquery.Document) {
			if _, err := e.sandbox.Execute(ctx, script, e.scriptEnv(page.URL, doc)); err != nil {
				e.logger.Debug("page script failed", zap.String("url", page.URL), zap.Error(err))
			}
		})
	}
	return page, nil
}

func (e *Engine) scriptEnv(pageURL string, doc *goquery.Document) sandbox.Env {
	return sandbox.Env{
		Document: sandbox.NewDocument(doc),
		Storage:  e.profile.storage.Origin(origin(pageURL)),
		Bridge:   e,
	}
}

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

// commit makes page current and records it in history.
func (e *Engine) commit(seq uint64, nav navigation, page *Page) bool {
	title := page.Title()
	item := webview.HistoryItem{URL: page.URL, OriginalURL: nav.url, Title: title}
	if nav.historyURL != "" {
		item.URL = nav.historyURL
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.seq || e.destroyed {
		return false
	}

	switch {
	case nav.mode == modeHistory && nav.index < len(e.history.Items):
		e.history.Current = nav.index
		e.history.Items[nav.index].Title = title
	case nav.mode == modeReload && e.history.CurrentItem() != nil:
		current := e.history.CurrentItem()
		current.URL = item.URL
		current.Title = title
	default:
		items := e.history.Items[:e.history.Current+1]
		if n := len(items); n > 0 && items[n-1].URL == item.URL {
			items[n-1] = item
		} else {
			items = append(items, item)
		}
		e.history = webview.History{Items: items, Current: len(items) - 1}
	}

	e.page = page
	e.inbox = nil
	e.loadingURL = page.URL
	e.matches = 0
	e.failedURL = ""
	switch {
	case strings.EqualFold(nav.method, http.MethodPost):
		e.postData = nav.form
	case nav.mode != modeReload:
		e.postData = nil
	}
	return true
}

func (e *Engine) fail(seq uint64, failedURL string, cause error) {
	page := errorPage(failedURL, cause)

	e.mu.Lock()
	if seq != e.seq || e.destroyed {
		e.mu.Unlock()
		return
	}
	e.page = page
	e.inbox = nil
	e.loadingURL = webview.InternalErrorURL
	e.failedURL = failedURL
	e.mu.Unlock()

	e.logger.Debug("load failed", zap.String("url", failedURL), zap.Error(cause))
	e.report(seq, 100)
}

// download hands the response to the listener and leaves the page as it was.
func (e *Engine) download(seq uint64, res *fetched, mediaType string) {
	e.mu.Lock()
	if seq != e.seq || e.destroyed {
		e.mu.Unlock()
		return
	}
	e.loadingURL = e.committedURL()
	l := e.listener
	e.mu.Unlock()

	length := res.length
	if length < 0 {
		length = int64(len(res.body))
	}
	if l != nil {
		l.OnDownloadStart(res.url, e.userAgent(), res.disposition, mediaType, length)
	}
	e.report(seq, 100)
}

func (e *Engine) recordLoad(outcome string, began time.Time) {
	if e.metrics != nil {
		e.metrics.RecordPageLoad(outcome, time.Since(began))
	}
}
