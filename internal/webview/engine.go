package webview

import "context"

// Settings is the engine configuration re-applied when content blocking is
// switched on.
type Settings struct {
	UserAgent         string
	JavaScriptEnabled bool
	ContentBlocking   bool
	BlockImages       bool
	DoNotTrack        bool
}

// DefaultSettings are the privacy defaults for a new tab.
func DefaultSettings() Settings {
	return Settings{
		JavaScriptEnabled: true,
		ContentBlocking:   true,
		DoNotTrack:        true,
	}
}

// Engine is the rendering engine owned by one View.
type Engine interface {
	LoadURL(url string, headers map[string]string)
	LoadData(baseURL, data, mimeType, encoding, historyURL string)
	Reload()
	Stop()
	GoBack()
	GoForward()
	CanGoBack() bool
	CanGoForward() bool

	// URL is the page currently loading or loaded, or "".
	URL() string
	Title() string
	Progress() int

	// RestoreState rebuilds history metadata from blob without loading a page.
	// It returns nil for an empty or unreadable blob.
	RestoreState(blob []byte) *History
	SaveState() []byte

	ClearFormData()
	ClearHistory()
	ClearMatches()
	ClearSSLPreferences()
	ClearCache(includeDiskFiles bool)

	FindAll(query string) int
	EvaluateJavascript(ctx context.Context, script string) (string, error)

	ApplySettings(settings Settings)
	DisableBlocking()

	SetListener(listener EngineListener)
	Destroy()
}

// EngineListener receives engine events. Calls may arrive from engine
// goroutines.
type EngineListener interface {
	OnProgressChanged(progress int)
	// ShouldOverrideURLLoading is asked for link and script navigations only.
	// Server redirects never reach it.
	ShouldOverrideURLLoading(url string) bool
	ShouldInterceptRequest(url string) bool
	OnDownloadStart(url, userAgent, contentDisposition, mimeType string, contentLength int64)
	OnShowCustomView(exit func())
	OnHideCustomView()
}

// Profile exposes the engine-global stores shared by every tab.
type Profile interface {
	Cookies() CookieStore
	Storage() WebStorage
	Database() Database
	DataDir() string
	CacheDir() string
}

// CookieStore removes cookies asynchronously. The callback, when non-nil,
// receives whether anything was removed.
type CookieStore interface {
	RemoveAllCookies(callback func(removed bool))
}

type WebStorage interface {
	DeleteAllData()
}

type Database interface {
	ClearFormData()
	ClearHTTPAuthUsernamePassword()
}

// Executor runs tasks off the foreground sequence. Submit must not block.
type Executor interface {
	Submit(task func())
}

// Sweeper performs the filesystem half of a cleanup.
type Sweeper interface {
	DeleteDirectory(path string) error
	TruncateDirectory(path string) error
}

// Matcher decides whether a request is blocked.
type Matcher interface {
	Matches(url string) bool
}

// Recorder receives telemetry events.
type Recorder interface {
	Record(event string)
}

type nopRecorder struct{}

func (nopRecorder) Record(string) {}
