package webview

import "sync"

// Download describes a file the engine wants to save.
type Download struct {
	URL                string `json:"url"`
	UserAgent          string `json:"user_agent"`
	ContentDisposition string `json:"content_disposition"`
	MimeType           string `json:"mime_type"`
	ContentLength      int64  `json:"content_length"`
	Destination        string `json:"destination"`
}

// FullscreenExit leaves fullscreen when called.
type FullscreenExit func()

// Callback observes a View. It may be swapped or cleared at any time.
type Callback interface {
	OnURLChanged(url string)
	OnProgress(progress int)
	OnBlockingStateChanged(enabled bool)
	OnDownloadStart(download Download)
	OnEnterFullScreen(exit FullscreenExit)
	OnExitFullScreen()
}

type callbackRef struct {
	mu sync.RWMutex
	cb Callback
}

func (r *callbackRef) get() Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cb
}

func (r *callbackRef) set(cb Callback) {
	r.mu.Lock()
	r.cb = cb
	r.mu.Unlock()
}
