package webview

import (
	"context"
	"errors"
	"sync"
)

type loadCall struct {
	url     string
	headers map[string]string
}

// fakeEngine records every call made to it.
type fakeEngine struct {
	mu sync.Mutex

	calls    []string
	loads    []loadCall
	reloads  int
	url      string
	title    string
	progress int

	restored  *History
	saved     []byte
	settings  []Settings
	listener  EngineListener
	findCount int
	evalOut   string
	evalErr   error
	scripts   []string
}

func (e *fakeEngine) record(name string) {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.mu.Unlock()
}

func (e *fakeEngine) callNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) LoadURL(url string, headers map[string]string) {
	e.record("LoadURL")
	e.mu.Lock()
	e.loads = append(e.loads, loadCall{url: url, headers: headers})
	e.mu.Unlock()
}

func (e *fakeEngine) LoadData(baseURL, data, mimeType, encoding, historyURL string) {
	e.record("LoadData")
}

func (e *fakeEngine) Reload() {
	e.record("Reload")
	e.mu.Lock()
	e.reloads++
	e.mu.Unlock()
}

func (e *fakeEngine) Stop()              { e.record("Stop") }
func (e *fakeEngine) GoBack()            { e.record("GoBack") }
func (e *fakeEngine) GoForward()         { e.record("GoForward") }
func (e *fakeEngine) CanGoBack() bool    { return false }
func (e *fakeEngine) CanGoForward() bool { return false }

func (e *fakeEngine) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}

func (e *fakeEngine) Title() string { return e.title }
func (e *fakeEngine) Progress() int { return e.progress }

func (e *fakeEngine) RestoreState(blob []byte) *History {
	e.record("RestoreState")
	return e.restored
}

func (e *fakeEngine) SaveState() []byte {
	e.record("SaveState")
	return e.saved
}

func (e *fakeEngine) ClearFormData()               { e.record("ClearFormData") }
func (e *fakeEngine) ClearHistory()                { e.record("ClearHistory") }
func (e *fakeEngine) ClearMatches()                { e.record("ClearMatches") }
func (e *fakeEngine) ClearSSLPreferences()         { e.record("ClearSSLPreferences") }
func (e *fakeEngine) ClearCache(bool)              { e.record("ClearCache") }
func (e *fakeEngine) FindAll(string) int           { e.record("FindAll"); return e.findCount }
func (e *fakeEngine) DisableBlocking()             { e.record("DisableBlocking") }
func (e *fakeEngine) Destroy()                     { e.record("Destroy") }
func (e *fakeEngine) SetListener(l EngineListener) { e.listener = l }

func (e *fakeEngine) ApplySettings(s Settings) {
	e.record("ApplySettings")
	e.mu.Lock()
	e.settings = append(e.settings, s)
	e.mu.Unlock()
}

func (e *fakeEngine) EvaluateJavascript(ctx context.Context, script string) (string, error) {
	e.record("EvaluateJavascript")
	e.mu.Lock()
	e.scripts = append(e.scripts, script)
	e.mu.Unlock()
	return e.evalOut, e.evalErr
}

func (e *fakeEngine) loadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.loads)
}

// fakeProfile records store clears into a shared log.
type fakeProfile struct {
	mu       sync.Mutex
	calls    []string
	dataDir  string
	cacheDir string
}

func (p *fakeProfile) record(name string) {
	p.mu.Lock()
	p.calls = append(p.calls, name)
	p.mu.Unlock()
}

func (p *fakeProfile) Cookies() CookieStore { return fakeCookies{p} }
func (p *fakeProfile) Storage() WebStorage  { return fakeStorage{p} }
func (p *fakeProfile) Database() Database   { return fakeDatabase{p} }
func (p *fakeProfile) DataDir() string      { return p.dataDir }
func (p *fakeProfile) CacheDir() string     { return p.cacheDir }

type fakeCookies struct{ p *fakeProfile }

func (c fakeCookies) RemoveAllCookies(cb func(bool)) {
	c.p.record("RemoveAllCookies")
	if cb != nil {
		cb(true)
	}
}

type fakeStorage struct{ p *fakeProfile }

func (s fakeStorage) DeleteAllData() { s.p.record("DeleteAllData") }

type fakeDatabase struct{ p *fakeProfile }

func (d fakeDatabase) ClearFormData()                 { d.p.record("Database.ClearFormData") }
func (d fakeDatabase) ClearHTTPAuthUsernamePassword() { d.p.record("Database.ClearHTTPAuth") }

// fakeExecutor holds tasks until run is called.
type fakeExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (x *fakeExecutor) Submit(task func()) {
	x.mu.Lock()
	x.tasks = append(x.tasks, task)
	x.mu.Unlock()
}

func (x *fakeExecutor) submitted() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.tasks)
}

func (x *fakeExecutor) runAll() {
	x.mu.Lock()
	tasks := x.tasks
	x.tasks = nil
	x.mu.Unlock()
	for _, t := range tasks {
		t()
	}
}

type fakeSweeper struct {
	mu        sync.Mutex
	deleted   []string
	truncated []string
	err       error
}

func (s *fakeSweeper) DeleteDirectory(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	return s.err
}

func (s *fakeSweeper) TruncateDirectory(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncated = append(s.truncated, path)
	return s.err
}

var errSweep = errors.New("permission denied")

type fakeRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *fakeRecorder) Record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *fakeRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// recordingCallback captures every observer notification.
type recordingCallback struct {
	mu        sync.Mutex
	urls      []string
	progress  []int
	blocking  []bool
	downloads []Download
	enters    []FullscreenExit
	exits     int
}

func (c *recordingCallback) OnURLChanged(url string) {
	c.mu.Lock()
	c.urls = append(c.urls, url)
	c.mu.Unlock()
}

func (c *recordingCallback) OnProgress(p int) {
	c.mu.Lock()
	c.progress = append(c.progress, p)
	c.mu.Unlock()
}

func (c *recordingCallback) OnBlockingStateChanged(enabled bool) {
	c.mu.Lock()
	c.blocking = append(c.blocking, enabled)
	c.mu.Unlock()
}

func (c *recordingCallback) OnDownloadStart(d Download) {
	c.mu.Lock()
	c.downloads = append(c.downloads, d)
	c.mu.Unlock()
}

func (c *recordingCallback) OnEnterFullScreen(exit FullscreenExit) {
	c.mu.Lock()
	c.enters = append(c.enters, exit)
	c.mu.Unlock()
}

func (c *recordingCallback) OnExitFullScreen() {
	c.mu.Lock()
	c.exits++
	c.mu.Unlock()
}

func (c *recordingCallback) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls) + len(c.progress) + len(c.blocking) + len(c.downloads) + len(c.enters) + c.exits
}

// fakeSession is an in-memory Session.
type fakeSession struct {
	url  string
	blob []byte
}

func (s *fakeSession) URL() string                 { return s.url }
func (s *fakeSession) NavigationState() []byte     { return s.blob }
func (s *fakeSession) SetNavigationState(b []byte) { s.blob = b }

type fakeHandoff struct {
	schemes map[string]bool
	handed  []string
}

func (h *fakeHandoff) ShouldHandOff(url string) bool { return h.schemes[Scheme(url)] }
func (h *fakeHandoff) HandOff(url string)            { h.handed = append(h.handed, url) }

type fakeMatcher map[string]bool

func (m fakeMatcher) Matches(url string) bool { return m[url] }

type harness struct {
	engine   *fakeEngine
	profile  *fakeProfile
	executor *fakeExecutor
	sweeper  *fakeSweeper
	recorder *fakeRecorder
	handoff  *fakeHandoff
	view     *View
}

func newHarness(mod ...func(*Options)) *harness {
	h := &harness{
		engine:   &fakeEngine{},
		profile:  &fakeProfile{dataDir: "/data/profile", cacheDir: "/data/cache"},
		executor: &fakeExecutor{},
		sweeper:  &fakeSweeper{},
		recorder: &fakeRecorder{},
		handoff:  &fakeHandoff{schemes: map[string]bool{"mailto": true, "tel": true}},
	}
	opts := Options{
		Engine:           h.engine,
		Profile:          h.profile,
		Executor:         h.executor,
		Sweeper:          h.sweeper,
		Handoff:          h.handoff,
		Blocklist:        fakeMatcher{"https://tracker.example/pixel": true},
		Telemetry:        h.recorder,
		Settings:         DefaultSettings(),
		BlockingEnabled:  true,
		DownloadsEnabled: true,
		DownloadDir:      "Downloads",
	}
	for _, m := range mod {
		m(&opts)
	}
	v, err := New(opts)
	if err != nil {
		panic(err)
	}
	h.view = v
	return h
}
