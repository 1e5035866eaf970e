package engine

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/engine/sandbox"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/ghostview/internal/webview"
	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

var (
	ErrNoPage      = errors.New("no page loaded")
	ErrNoSandbox   = errors.New("javascript is disabled")
	ErrDestroyed   = errors.New("engine destroyed")
	errMissingDeps = errors.New("engine needs a profile and an http client")
)

// PageLoadRecorder receives load outcomes.
type PageLoadRecorder interface {
	RecordPageLoad(outcome string, duration time.Duration)
}

type Options struct {
	Profile *Profile
	Client  *httpclient.Client
	// Sandbox runs page scripts. nil disables JavaScript.
	Sandbox  *sandbox.Pool
	Metrics  PageLoadRecorder
	Settings webview.Settings
	Logger   *zap.Logger
}

// Engine renders one tab.
type Engine struct {
	profile *Profile
	client  *httpclient.Client
	sandbox *sandbox.Pool
	metrics PageLoadRecorder
	logger  *zap.Logger

	ctx       context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu         sync.Mutex
	listener   webview.EngineListener
	settings   webview.Settings
	blocking   bool
	history    webview.History
	page       *Page
	loadingURL string
	progress   int
	matches    int
	postData   url.Values
	failedURL  string
	fullscreen bool
	inbox      []Message
	cancel     context.CancelFunc
	seq        uint64
	destroyed  bool
}

func New(opts Options) (*Engine, error) {
	if opts.Profile == nil || opts.Client == nil {
		return nil, errMissingDeps
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		profile:   opts.Profile,
		client:    opts.Client,
		sandbox:   opts.Sandbox,
		metrics:   opts.Metrics,
		logger:    logger.Named("engine"),
		ctx:       ctx,
		cancelAll: cancel,
		settings:  opts.Settings,
		blocking:  opts.Settings.ContentBlocking,
		history:   webview.History{Current: -1},
	}, nil
}

func (e *Engine) SetListener(l webview.EngineListener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

func (e *Engine) events() webview.EngineListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nopListener{}
	}
	return e.listener
}

func (e *Engine) LoadURL(rawURL string, headers map[string]string) {
	e.start(navigation{url: rawURL, headers: headers})
}

// LoadData shows data as if it had been served from baseURL. historyURL, when
// set, is the address recorded in history.
func (e *Engine) LoadData(baseURL, data, mimeType, encoding, historyURL string) {
	if baseURL == "" {
		baseURL = "about:blank"
	}
	contentType := mimeType
	if encoding != "" {
		contentType += "; charset=" + encoding
	}
	e.start(navigation{
		url:        baseURL,
		historyURL: historyURL,
		inline:     &inlineData{body: []byte(data), contentType: contentType},
	})
}

// Reload refetches the current entry, resubmitting its form if it had one.
// With no history it retries the last requested address.
func (e *Engine) Reload() {
	e.mu.Lock()
	nav := navigation{mode: modeReload}
	if webview.IsInternalErrorURL(e.loadingURL) && e.failedURL != "" {
		nav.url = e.failedURL
		nav.mode = modeNew
	} else if item := e.history.CurrentItem(); item != nil {
		nav.url = item.URL
		if e.postData != nil {
			nav.method = "POST"
			nav.form = e.postData
		}
	} else if e.loadingURL != "" && !webview.IsInternalErrorURL(e.loadingURL) {
		nav.url = e.loadingURL
	} else if e.page != nil {
		nav.url = e.page.URL
	}
	e.mu.Unlock()

	if nav.url != "" {
		e.start(nav)
	}
}

// Stop abandons the load in flight.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.seq++
	e.loadingURL = e.committedURL()
	e.progress = 100
}

func (e *Engine) GoBack()    { e.goTo(-1) }
func (e *Engine) GoForward() { e.goTo(1) }

func (e *Engine) goTo(delta int) {
	e.mu.Lock()
	index := e.history.Current + delta
	if index < 0 || index >= len(e.history.Items) {
		e.mu.Unlock()
		return
	}
	item := e.history.Items[index]
	e.mu.Unlock()

	e.start(navigation{url: item.URL, mode: modeHistory, index: index})
}

func (e *Engine) CanGoBack() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Current > 0
}

func (e *Engine) CanGoForward() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Current >= 0 && e.history.Current < len(e.history.Items)-1
}

func (e *Engine) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadingURL
}

func (e *Engine) Title() string {
	e.mu.Lock()
	page := e.page
	e.mu.Unlock()
	if page == nil {
		return ""
	}
	return page.Title()
}

func (e *Engine) Progress() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// HTML returns the rendered current page.
func (e *Engine) HTML() string {
	e.mu.Lock()
	page := e.page
	e.mu.Unlock()
	if page == nil {
		return ""
	}
	return page.HTML()
}

// History returns a copy of the back/forward list.
func (e *Engine) History() *webview.History {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneHistory(e.history)
}

// RestoreState replaces history with the one encoded in blob. Nothing is
// loaded. It returns nil, leaving history alone, if blob is unreadable.
func (e *Engine) RestoreState(blob []byte) *webview.History {
	if len(blob) == 0 {
		return nil
	}
	restored, err := decodeState(blob)
	if err != nil {
		e.logger.Debug("restore state rejected", zap.Error(err))
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = *cloneHistory(*restored)
	e.page = nil
	e.postData = nil
	return cloneHistory(e.history)
}

// SaveState encodes history, or returns nil when there is none.
func (e *Engine) SaveState() []byte {
	e.mu.Lock()
	history := *cloneHistory(e.history)
	e.mu.Unlock()

	if len(history.Items) == 0 {
		return nil
	}
	blob, err := encodeState(history)
	if err != nil {
		e.logger.Warn("save state failed", zap.Error(err))
		return nil
	}
	return blob
}

// ClearFormData forgets the form data kept for resubmitting the current entry.
func (e *Engine) ClearFormData() {
	e.mu.Lock()
	e.postData = nil
	e.mu.Unlock()
}

// ClearHistory drops every entry except the current one.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if item := e.history.CurrentItem(); item != nil {
		e.history = webview.History{Items: []webview.HistoryItem{*item}, Current: 0}
		return
	}
	e.history = webview.History{Current: -1}
}

func (e *Engine) ClearMatches() {
	e.mu.Lock()
	e.matches = 0
	e.mu.Unlock()
}

func (e *Engine) ClearSSLPreferences() {
	e.profile.ssl.Clear()
}

func (e *Engine) ClearCache(includeDiskFiles bool) {
	e.profile.cache.Clear(includeDiskFiles)
}

// AllowInsecureHost trusts host's certificate for the rest of the session.
func (e *Engine) AllowInsecureHost(host string) {
	e.profile.ssl.Allow(host)
}

// FindAll counts matches of query in the current page.
func (e *Engine) FindAll(query string) int {
	e.mu.Lock()
	page := e.page
	e.mu.Unlock()

	n := 0
	if page != nil {
		n = countMatches(page.HTML(), query)
	}
	e.mu.Lock()
	e.matches = n
	e.mu.Unlock()
	return n
}

// Matches is the count from the last FindAll.
func (e *Engine) Matches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matches
}

// EvaluateJavascript runs script against the current page and returns its
// value encoded as JSON.
func (e *Engine) EvaluateJavascript(ctx context.Context, script string) (string, error) {
	if e.sandbox == nil {
		return "", ErrNoSandbox
	}
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return "", ErrDestroyed
	}
	page := e.page
	e.mu.Unlock()

	var (
		result *sandbox.Result
		err    error
	)
	if page == nil {
		result, err = e.sandbox.Execute(ctx, script, sandbox.Env{Bridge: e})
	} else {
		page.withDocument(func(doc *goquery.Document) {
			result, err = e.sandbox.Execute(ctx, script, e.scriptEnv(page.URL, doc))
		})
	}
	if err != nil {
		return "", err
	}
	return sonic.MarshalString(result.Value)
}

func (e *Engine) ApplySettings(settings webview.Settings) {
	e.mu.Lock()
	e.settings = settings
	e.blocking = settings.ContentBlocking
	e.mu.Unlock()
}

func (e *Engine) DisableBlocking() {
	e.mu.Lock()
	e.blocking = false
	e.mu.Unlock()
}

// BlockingEnabled reports whether subresources are checked against the
// listener.
func (e *Engine) BlockingEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blocking
}

// FollowLink navigates as if the user clicked href on the current page. It
// returns false when the listener took the navigation.
func (e *Engine) FollowLink(href string) bool {
	target := e.resolve(href)
	if e.events().ShouldOverrideURLLoading(target) {
		return false
	}
	e.start(navigation{url: target})
	return true
}

// SubmitForm sends a form from the current page and remembers its values
// for autofill.
func (e *Engine) SubmitForm(action, method string, values url.Values) bool {
	target := e.resolve(action)
	if e.events().ShouldOverrideURLLoading(target) {
		return false
	}
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		e.profile.database.RecordForm(u.Hostname(), values)
	}
	e.start(navigation{url: target, method: method, form: values})
	return true
}

// Destroy stops all work and flushes the profile. The engine is unusable
// afterwards.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.listener = nil
	e.fullscreen = false
	e.page = nil
	e.mu.Unlock()

	e.cancelAll()
	e.wg.Wait()

	if err := e.profile.Flush(); err != nil {
		e.logger.Debug("profile flush failed", zap.Error(err))
	}
}

func (e *Engine) resolve(href string) string {
	e.mu.Lock()
	page := e.page
	e.mu.Unlock()
	if page == nil {
		return href
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return href
	}
	if abs := resolveURL(href, base); abs != "" {
		return abs
	}
	return href
}

// committedURL is the address of the page on screen. Callers hold e.mu.
func (e *Engine) committedURL() string {
	if e.page != nil {
		return e.page.URL
	}
	if item := e.history.CurrentItem(); item != nil {
		return item.URL
	}
	return ""
}

type nopListener struct{}

func (nopListener) OnProgressChanged(int)                                 {}
func (nopListener) ShouldOverrideURLLoading(string) bool                  { return false }
func (nopListener) ShouldInterceptRequest(string) bool                    { return false }
func (nopListener) OnDownloadStart(string, string, string, string, int64) {}
func (nopListener) OnShowCustomView(func())                               {}
func (nopListener) OnHideCustomView()                                     {}
