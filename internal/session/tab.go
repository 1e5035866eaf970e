package session

import (
	"sync"

	"github.com/GriffinCanCode/ghostview/internal/engine"
	"github.com/GriffinCanCode/ghostview/internal/webview"
	"go.uber.org/zap"
)

// Tab is a live session: the View driving it and the hub its observers
// listen on. Tab is the View's callback.
type Tab struct {
	Session *Session
	View    *webview.View
	Engine  *engine.Engine

	hub    *Hub
	logger *zap.Logger

	mu   sync.Mutex
	exit webview.FullscreenExit
}

func (t *Tab) ID() string { return t.Session.ID }

func (t *Tab) Events() *Hub { return t.hub }

// Snapshot reports the session together with the engine's navigation
// state.
func (t *Tab) Snapshot() TabSnapshot {
	return TabSnapshot{
		Snapshot:     t.Session.Snapshot(),
		CanGoBack:    t.View.CanGoBack(),
		CanGoForward: t.View.CanGoForward(),
		Fullscreen:   t.Fullscreen(),
	}
}

type TabSnapshot struct {
	Snapshot
	CanGoBack    bool `json:"can_go_back"`
	CanGoForward bool `json:"can_go_forward"`
	Fullscreen   bool `json:"fullscreen"`
}

func (t *Tab) Fullscreen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exit != nil
}

// ExitFullscreen uses the handle the page gave when it went fullscreen.
func (t *Tab) ExitFullscreen() {
	t.mu.Lock()
	exit := t.exit
	t.exit = nil
	t.mu.Unlock()

	if exit != nil {
		exit()
		return
	}
	t.View.ExitFullscreen()
}

func (t *Tab) OnURLChanged(url string) {
	t.Session.SetURL(url)
	t.publish(Event{Type: EventURLChanged, URL: url})
}

func (t *Tab) OnProgress(progress int) {
	t.Session.SetProgress(progress)
	e := Event{Type: EventProgress, Progress: progress}
	if progress == 100 {
		title := t.Engine.Title()
		t.Session.SetTitle(title)
		e.Title = title
	}
	t.publish(e)
}

func (t *Tab) OnBlockingStateChanged(enabled bool) {
	t.Session.SetBlocking(enabled)
	t.publish(Event{Type: EventBlockingChanged, Blocking: &enabled})
}

func (t *Tab) OnDownloadStart(download webview.Download) {
	t.logger.Info("download offered", zap.String("mime", download.MimeType), zap.Int64("bytes", download.ContentLength))
	t.publish(Event{Type: EventDownload, URL: download.URL, Download: &download})
}

func (t *Tab) OnEnterFullScreen(exit webview.FullscreenExit) {
	t.mu.Lock()
	t.exit = exit
	t.mu.Unlock()
	t.publish(Event{Type: EventFullscreenEnter})
}

func (t *Tab) OnExitFullScreen() {
	t.mu.Lock()
	t.exit = nil
	t.mu.Unlock()
	t.publish(Event{Type: EventFullscreenExit})
}

// handOff receives URLs the engine cannot open and passes them to the UI.
func (t *Tab) handOff(url string) {
	t.publish(Event{Type: EventHandoff, URL: url})
}

func (t *Tab) publish(e Event) {
	e.TabID = t.Session.ID
	t.hub.Publish(e)
}
