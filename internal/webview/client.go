package webview

import (
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Client sits between the façade and the engine. It hands foreign URLs off,
// tags engine loads and keeps the optimistic current URL.
type Client struct {
	engine    Engine
	handoff   Handoff
	blocklist Matcher
	callbacks *callbackRef
	telemetry Recorder
	logger    *zap.Logger

	mu         sync.RWMutex
	currentURL string
	blocking   atomic.Bool
}

func newClient(engine Engine, handoff Handoff, blocklist Matcher, callbacks *callbackRef, telemetry Recorder, logger *zap.Logger) *Client {
	return &Client{
		engine:    engine,
		handoff:   handoff,
		blocklist: blocklist,
		callbacks: callbacks,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Load hands url off or loads it in the engine, then tracks it as current
// before the load has finished.
func (c *Client) Load(url string) {
	if c.handoff.ShouldHandOff(url) {
		c.handoff.HandOff(url)
		c.telemetry.Record(monitoring.EventHandoff)
	} else {
		c.engine.LoadURL(url, map[string]string{RequestedWithHeader: ""})
		c.telemetry.Record(monitoring.EventLoad)
	}
	c.NotifyCurrentURL(url)
}

// NotifyCurrentURL sets the tracked URL and tells the observer.
func (c *Client) NotifyCurrentURL(url string) {
	c.setCurrentURL(url)
	if cb := c.callbacks.get(); cb != nil {
		cb.OnURLChanged(url)
	}
}

// CurrentURL is the most recently initiated navigation, corrected by
// progress reports.
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

func (c *Client) setCurrentURL(url string) {
	c.mu.Lock()
	c.currentURL = url
	c.mu.Unlock()
}

func (c *Client) SetBlockingEnabled(enabled bool) {
	c.blocking.Store(enabled)
}

func (c *Client) BlockingEnabled() bool {
	return c.blocking.Load()
}

// OnProgressChanged picks up redirects: the engine URL replaces the tracked
// one unless it is the internal error page.
func (c *Client) OnProgressChanged(progress int) {
	cb := c.callbacks.get()
	if cb == nil {
		return
	}
	if url := c.engine.URL(); url != "" && !IsInternalErrorURL(url) {
		c.setCurrentURL(url)
		cb.OnURLChanged(url)
	}
	cb.OnProgress(progress)
}

// ShouldOverrideURLLoading returns true when the engine must not follow a
// link because it was handed off.
func (c *Client) ShouldOverrideURLLoading(url string) bool {
	if !c.handoff.ShouldHandOff(url) {
		return false
	}
	c.handoff.HandOff(url)
	c.telemetry.Record(monitoring.EventHandoff)
	return true
}

// ShouldInterceptRequest returns true when url must be blocked.
func (c *Client) ShouldInterceptRequest(url string) bool {
	if !c.blocking.Load() || c.blocklist == nil {
		return false
	}
	if !c.blocklist.Matches(url) {
		return false
	}
	c.telemetry.Record(monitoring.EventRequestBlocked)
	return true
}
