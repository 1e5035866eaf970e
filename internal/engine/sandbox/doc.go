/*
Package sandbox evaluates page and caller scripts with goja.

Each execution gets an Env: the page Document (backed by goquery, so
querySelector accepts real CSS selectors), the origin's localStorage and a
Bridge back to the engine for fullscreen requests. Scripts have no network,
no timers and no module loader, and are interrupted after Config.Timeout.

Runtimes are pooled; a runtime is reset before it goes back to the pool so
nothing leaks from one page to the next.
*/
package sandbox
