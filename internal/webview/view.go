package webview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/fsutil"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// ScreenshotScript asks the engine sandbox for a capture of the viewport.
const ScreenshotScript = "captureViewport()"

var (
	ErrNoEngine   = errors.New("webview: engine is required")
	ErrNoProfile  = errors.New("webview: profile is required")
	ErrNoExecutor = errors.New("webview: executor is required")
	ErrNoOrigin   = errors.New("webview: target origin is required")
)

// Options configures a View. Engine, Profile and Executor are required.
type Options struct {
	Engine    Engine
	Profile   Profile
	Executor  Executor
	Sweeper   Sweeper
	Handoff   Handoff
	Blocklist Matcher
	Telemetry Recorder
	Logger    *zap.Logger

	Settings         Settings
	BlockingEnabled  bool
	DownloadsEnabled bool
	DownloadDir      string
}

// View is the façade a tab talks to. Calls through View run one at a time.
// Engine events are delivered on engine goroutines and do not take the view
// lock.
type View struct {
	mu sync.Mutex

	engine     Engine
	client     *Client
	reconciler *Reconciler
	cleaner    *Cleaner
	callbacks  *callbackRef
	telemetry  Recorder
	logger     *zap.Logger

	settings         Settings
	downloadsEnabled bool
	downloadDir      string
}

// New wires a View to its engine and registers itself as the engine
// listener.
func New(opts Options) (*View, error) {
	if opts.Engine == nil {
		return nil, ErrNoEngine
	}
	if opts.Profile == nil {
		return nil, ErrNoProfile
	}
	if opts.Executor == nil {
		return nil, ErrNoExecutor
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("webview")

	telemetry := opts.Telemetry
	if telemetry == nil {
		telemetry = nopRecorder{}
	}
	handoff := opts.Handoff
	if handoff == nil {
		handoff = NewSchemeHandoff(nil, logger)
	}
	sweeper := opts.Sweeper
	if sweeper == nil {
		sweeper = fsutil.NewSweeper(logger)
	}

	callbacks := &callbackRef{}
	client := newClient(opts.Engine, handoff, opts.Blocklist, callbacks, telemetry, logger)
	client.SetBlockingEnabled(opts.BlockingEnabled)

	v := &View{
		engine:    opts.Engine,
		client:    client,
		callbacks: callbacks,
		telemetry: telemetry,
		logger:    logger,
		reconciler: &Reconciler{
			engine:    opts.Engine,
			client:    client,
			telemetry: telemetry,
			logger:    logger,
		},
		cleaner: &Cleaner{
			engine:    opts.Engine,
			profile:   opts.Profile,
			executor:  opts.Executor,
			sweeper:   sweeper,
			telemetry: telemetry,
			logger:    logger,
		},
		settings:         opts.Settings,
		downloadsEnabled: opts.DownloadsEnabled,
		downloadDir:      opts.DownloadDir,
	}

	opts.Engine.SetListener(&engineListener{view: v})
	v.applyBlocking(opts.BlockingEnabled)
	return v, nil
}

// Restore points the engine at the session's page.
func (v *View) Restore(session Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reconciler.Restore(session)
}

// Save captures navigation state into session.
func (v *View) Save(session Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reconciler.Save(session)
}

func (v *View) Load(url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.client.Load(url)
}

// Cleanup erases all browsing data and schedules the disk sweep.
func (v *View) Cleanup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cleaner.Cleanup()
}

// ClearTabData drops this tab's history, pending form data and find matches.
func (v *View) ClearTabData() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cleaner.ClearEngine()
}

// Destroy tears the engine down and sweeps what it flushed on the way out.
func (v *View) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Destroy()
	v.cleaner.PurgeKnownLocations()
}

// SetCallback replaces the observer. nil detaches it.
func (v *View) SetCallback(cb Callback) {
	v.callbacks.set(cb)
}

func (v *View) Callback() Callback {
	return v.callbacks.get()
}

// SetBlockingEnabled switches content blocking and reconfigures the engine
// before returning.
func (v *View) SetBlockingEnabled(enabled bool) {
	v.mu.Lock()
	v.client.SetBlockingEnabled(enabled)
	v.applyBlocking(enabled)
	v.mu.Unlock()

	if enabled {
		v.telemetry.Record(monitoring.EventBlockingEnabled)
	} else {
		v.telemetry.Record(monitoring.EventBlockingDisabled)
	}
	if cb := v.callbacks.get(); cb != nil {
		cb.OnBlockingStateChanged(enabled)
	}
}

func (v *View) BlockingEnabled() bool {
	return v.client.BlockingEnabled()
}

// ApplySettings replaces the engine settings. Blocking stays as toggled.
func (v *View) ApplySettings(settings Settings) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settings = settings
	v.applyBlocking(v.client.BlockingEnabled())
}

func (v *View) applyBlocking(enabled bool) {
	if enabled {
		s := v.settings
		s.ContentBlocking = true
		v.engine.ApplySettings(s)
		return
	}
	v.engine.DisableBlocking()
}

// URL is the tracked current URL.
func (v *View) URL() string {
	return v.client.CurrentURL()
}

func (v *View) Title() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Title()
}

func (v *View) Progress() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.Progress()
}

func (v *View) Reload() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Reload()
}

func (v *View) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.Stop()
}

func (v *View) GoBack() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.GoBack()
}

func (v *View) GoForward() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.GoForward()
}

func (v *View) CanGoBack() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.CanGoBack()
}

func (v *View) CanGoForward() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.CanGoForward()
}

func (v *View) LoadData(baseURL, data, mimeType, encoding, historyURL string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.LoadData(baseURL, data, mimeType, encoding, historyURL)
}

// FindAll highlights query in the page and returns the match count.
func (v *View) FindAll(query string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.FindAll(query)
}

func (v *View) ClearMatches() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.engine.ClearMatches()
}

func (v *View) EvaluateJavascript(ctx context.Context, script string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.EvaluateJavascript(ctx, script)
}

// GrabScreenshot returns the engine's capture of the current viewport.
// Script results arrive JSON encoded; a value that is not a JSON string is
// returned as is.
func (v *View) GrabScreenshot(ctx context.Context) ([]byte, error) {
	out, err := v.EvaluateJavascript(ctx, ScreenshotScript)
	if err != nil {
		return nil, err
	}
	var shot string
	if err := sonic.UnmarshalString(out, &shot); err != nil {
		return []byte(out), nil
	}
	return []byte(shot), nil
}

// PostScreenshot posts screenshot to the page with window.postMessage,
// addressed to originURL. "*" addresses any origin.
func (v *View) PostScreenshot(ctx context.Context, screenshot, originURL string) error {
	if originURL == "" {
		return ErrNoOrigin
	}
	msg, err := jsString(screenshot)
	if err != nil {
		return err
	}
	target, err := jsString(originURL)
	if err != nil {
		return err
	}
	_, err = v.EvaluateJavascript(ctx, fmt.Sprintf("window.postMessage(%s, %s)", msg, target))
	return err
}

var lineTerminators = strings.NewReplacer("\u2028", `\u2028`, "\u2029", `\u2029`)

// jsString quotes s as a JavaScript string literal.
func jsString(s string) (string, error) {
	out, err := sonic.ConfigStd.MarshalToString(s)
	if err != nil {
		return "", fmt.Errorf("failed to quote script argument: %w", err)
	}
	return lineTerminators.Replace(out), nil
}

// ExitFullscreen does nothing: fullscreen is left through the FullscreenExit
// handed to the observer.
func (v *View) ExitFullscreen() {}

func (v *View) handleDownload(d Download) {
	if !v.downloadsEnabled {
		v.logger.Warn("download dropped, downloads disabled", zap.String("url", d.URL))
		v.telemetry.Record(monitoring.EventDownloadDropped)
		return
	}
	if !IsHTTPURL(d.URL) {
		v.logger.Warn("download dropped, unsupported scheme",
			zap.String("scheme", Scheme(d.URL)),
			zap.String("url", d.URL))
		v.telemetry.Record(monitoring.EventDownloadDropped)
		return
	}

	d.Destination = v.downloadDir
	v.telemetry.Record(monitoring.EventDownloadAccepted)
	if cb := v.callbacks.get(); cb != nil {
		cb.OnDownloadStart(d)
	}
}

// engineListener routes engine events into the view.
type engineListener struct {
	view *View
}

func (l *engineListener) OnProgressChanged(progress int) {
	l.view.client.OnProgressChanged(progress)
}

func (l *engineListener) ShouldOverrideURLLoading(url string) bool {
	return l.view.client.ShouldOverrideURLLoading(url)
}

func (l *engineListener) ShouldInterceptRequest(url string) bool {
	return l.view.client.ShouldInterceptRequest(url)
}

func (l *engineListener) OnDownloadStart(url, userAgent, contentDisposition, mimeType string, contentLength int64) {
	l.view.handleDownload(Download{
		URL:                url,
		UserAgent:          userAgent,
		ContentDisposition: contentDisposition,
		MimeType:           mimeType,
		ContentLength:      contentLength,
	})
}

func (l *engineListener) OnShowCustomView(exit func()) {
	if cb := l.view.callbacks.get(); cb != nil {
		cb.OnEnterFullScreen(FullscreenExit(exit))
	}
}

func (l *engineListener) OnHideCustomView() {
	if cb := l.view.callbacks.get(); cb != nil {
		cb.OnExitFullScreen()
	}
}
