// Package session keeps browser tabs alive and persists what they need to
// come back: the page address, the engine's navigation blob and the tab's
// privacy switches.
//
// A Manager owns the live tabs. Each Tab pairs a Session with the webview
// View driving it and republishes the View's callbacks as Events to
// websocket subscribers through a Hub. A Store writes sessions to disk so a
// tab can be resumed after a restart.
package session
