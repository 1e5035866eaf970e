package webview

import (
	"net/url"
	"strings"
)

// InternalErrorURL is the address the engine reports while showing its own
// error page. It never becomes the current URL.
const InternalErrorURL = "data:text/html;charset=utf-8;base64,"

// RequestedWithHeader marks loads that did not come from ordinary page UI.
const RequestedWithHeader = "X-Requested-With"

func IsInternalErrorURL(u string) bool {
	return u == InternalErrorURL
}

// Scheme returns the lower-cased scheme of raw, or "" if it has none.
func Scheme(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// IsHTTPURL reports whether raw uses http or https.
func IsHTTPURL(raw string) bool {
	switch Scheme(raw) {
	case "http", "https":
		return true
	}
	return false
}
