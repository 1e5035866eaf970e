package webview

// Session is the persisted side of a tab.
type Session interface {
	// URL is the page the tab was showing or loading when it was suspended.
	URL() string
	// NavigationState is the engine blob captured by the last Save, or nil.
	NavigationState() []byte
	SetNavigationState(blob []byte)
}
