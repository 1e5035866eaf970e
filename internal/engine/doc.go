// Package engine is a server-side rendering engine for ghostview tabs.
//
// An Engine fetches pages through internal/infrastructure/httpclient, renders
// them with goquery, runs their inline scripts in the goja sandbox and keeps
// the state a browser engine keeps: back/forward history, find-in-page
// matches, per-tab settings. The stores every tab shares live in a Profile.
//
// Loads run on their own goroutine and report 10, 50, 80 and 100 percent to
// the EngineListener. A page enters history only once its load finished;
// failed loads show an error page at webview.InternalErrorURL.
package engine
