// Package webview keeps a browser tab's engine in step with its persisted
// session.
//
// The View façade composes three parts:
//   - Reconciler restores and captures navigation state.
//   - Client intercepts loads, hands foreign schemes off and tracks the
//     current URL.
//   - Cleaner wipes every store the engine writes to, then schedules a disk
//     sweep on a background executor.
//
// The engine itself is consumed through the Engine and Profile ports, so the
// package runs against the proxy engine in internal/engine or a test fake.
package webview
