package http

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"

	"github.com/GriffinCanCode/ghostview/internal/engine"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ghostview/internal/session"
	"github.com/gin-gonic/gin"
)

// ListTabs lists live tabs
func (h *Handlers) ListTabs(c *gin.Context) {
	tabs := h.manager.Tabs()
	out := make([]session.TabSnapshot, 0, len(tabs))
	for _, tab := range tabs {
		out = append(out, tab.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"tabs": out})
}

// OpenTab opens a tab, optionally on a URL
func (h *Handlers) OpenTab(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	if !h.valid(c, ValidateString(req.URL, "url", MaxURLLength, false)) {
		return
	}

	timer := monitoring.NewTimer(h.metrics, "open")
	tab, err := h.manager.Open(req.URL)
	if err != nil {
		timer.Stop("error")
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	timer.Stop("ok")
	c.JSON(http.StatusCreated, tab.Snapshot())
}

func (h *Handlers) GetTab(c *gin.Context) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tab.Snapshot())
}

// CloseTab saves and closes a tab
func (h *Handlers) CloseTab(c *gin.Context) {
	timer := monitoring.NewTimer(h.metrics, "close")
	err := tracing.Trace(c.Request.Context(), h.tracer, "tab.close", func(context.Context) error {
		return h.manager.Close(c.Param("id"))
	})
	if err != nil {
		timer.Stop("error")
		h.fail(c, statusFor(err), err)
		return
	}
	timer.Stop("ok")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Load navigates a tab, handing off URLs the engine cannot open
func (h *Handlers) Load(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c, ValidateString(req.URL, "url", MaxURLLength, true)) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	timer := monitoring.NewTimer(h.metrics, "load")
	tab.View.Load(req.URL)
	timer.Stop("ok")
	c.JSON(http.StatusAccepted, tab.Snapshot())
}

// LoadData shows caller-supplied markup in a tab
func (h *Handlers) LoadData(c *gin.Context) {
	var req struct {
		BaseURL    string `json:"base_url"`
		Data       string `json:"data" binding:"required"`
		MimeType   string `json:"mime_type"`
		Encoding   string `json:"encoding"`
		HistoryURL string `json:"history_url"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c,
		ValidateString(req.BaseURL, "base_url", MaxURLLength, false),
		ValidateString(req.HistoryURL, "history_url", MaxURLLength, false),
		ValidateSize(req.Data, "data", MaxDataSize),
	) {
		return
	}
	if req.MimeType == "" {
		req.MimeType = "text/html"
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	tab.View.LoadData(req.BaseURL, req.Data, req.MimeType, req.Encoding, req.HistoryURL)
	c.JSON(http.StatusAccepted, tab.Snapshot())
}

func (h *Handlers) Reload(c *gin.Context) {
	h.navigate(c, "reload", func(tab *session.Tab) { tab.View.Reload() })
}

func (h *Handlers) Stop(c *gin.Context) {
	h.navigate(c, "stop", func(tab *session.Tab) { tab.View.Stop() })
}

func (h *Handlers) Back(c *gin.Context) {
	h.navigate(c, "back", func(tab *session.Tab) { tab.View.GoBack() })
}

func (h *Handlers) Forward(c *gin.Context) {
	h.navigate(c, "forward", func(tab *session.Tab) { tab.View.GoForward() })
}

func (h *Handlers) navigate(c *gin.Context, operation string, fn func(tab *session.Tab)) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	timer := monitoring.NewTimer(h.metrics, operation)
	fn(tab)
	timer.Stop("ok")
	c.JSON(http.StatusAccepted, tab.Snapshot())
}

// Click follows a link from the current page
func (h *Handlers) Click(c *gin.Context) {
	var req struct {
		Href string `json:"href" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c, ValidateString(req.Href, "href", MaxURLLength, true)) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	loaded := tab.Engine.FollowLink(req.Href)
	c.JSON(http.StatusAccepted, gin.H{"loading": loaded, "tab": tab.Snapshot()})
}

// Submit sends a form from the current page
func (h *Handlers) Submit(c *gin.Context) {
	var req struct {
		Action string              `json:"action"`
		Method string              `json:"method"`
		Fields map[string][]string `json:"fields"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c, ValidateString(req.Action, "action", MaxURLLength, false)) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	loaded := tab.Engine.SubmitForm(req.Action, req.Method, url.Values(req.Fields))
	c.JSON(http.StatusAccepted, gin.H{"loading": loaded, "tab": tab.Snapshot()})
}

// SaveTab writes a tab's navigation state to the store
func (h *Handlers) SaveTab(c *gin.Context) {
	timer := monitoring.NewTimer(h.metrics, "save")
	err := tracing.Trace(c.Request.Context(), h.tracer, "tab.save", func(context.Context) error {
		return h.manager.Save(c.Param("id"))
	})
	if err != nil {
		timer.Stop("error")
		h.fail(c, statusFor(err), err)
		return
	}
	timer.Stop("ok")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetBlocking switches content blocking for a tab
func (h *Handlers) SetBlocking(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	tab.View.SetBlockingEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"blocking": tab.View.BlockingEnabled()})
}

// Evaluate runs a script against the tab's page
func (h *Handlers) Evaluate(c *gin.Context) {
	var req struct {
		Script string `json:"script" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c, ValidateSize(req.Script, "script", MaxScriptSize)) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.evalTimeout)
	defer cancel()
	var result string
	err := tracing.Trace(ctx, h.tracer, "tab.eval", func(ctx context.Context) error {
		var err error
		result, err = tab.View.EvaluateJavascript(ctx, req.Script)
		return err
	})
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrNoSandbox) {
			status = http.StatusNotImplemented
		}
		h.fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Screenshot captures the viewport
func (h *Handlers) Screenshot(c *gin.Context) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.evalTimeout)
	defer cancel()
	shot, err := tab.View.GrabScreenshot(ctx)
	if err != nil {
		h.fail(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": base64.StdEncoding.EncodeToString(shot)})
}

// PostScreenshot posts a screenshot to the page through window.postMessage
func (h *Handlers) PostScreenshot(c *gin.Context) {
	var req struct {
		Screenshot string `json:"screenshot" binding:"required"`
		Origin     string `json:"origin" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c,
		ValidateSize(req.Screenshot, "screenshot", MaxDataSize),
		ValidateString(req.Origin, "origin", MaxURLLength, true),
	) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.evalTimeout)
	defer cancel()
	if err := tab.View.PostScreenshot(ctx, req.Screenshot, req.Origin); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, engine.ErrNoSandbox) {
			status = http.StatusNotImplemented
		}
		h.fail(c, status, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Find counts matches in the page
func (h *Handlers) Find(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c, ValidateString(req.Query, "query", MaxQueryLength, true)) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": tab.View.FindAll(req.Query)})
}

func (h *Handlers) ClearFind(c *gin.Context) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	tab.View.ClearMatches()
	c.Status(http.StatusNoContent)
}

// Authenticate stores HTTP auth credentials and retries the page
func (h *Handlers) Authenticate(c *gin.Context) {
	var req struct {
		Host     string `json:"host" binding:"required"`
		Realm    string `json:"realm"`
		Username string `json:"username" binding:"required"`
		Password string `json:"password"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c,
		ValidateHost(req.Host),
		ValidateString(req.Realm, "realm", MaxCredential, false),
		ValidateString(req.Username, "username", MaxCredential, true),
		ValidateString(req.Password, "password", MaxCredential, false),
	) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	h.manager.Profile().FormDatabase().SetHTTPAuthUsernamePassword(req.Host, req.Realm, req.Username, req.Password)
	tab.View.Reload()
	c.JSON(http.StatusAccepted, tab.Snapshot())
}

// AllowInsecureHost accepts a host's certificate and retries the page
func (h *Handlers) AllowInsecureHost(c *gin.Context) {
	var req struct {
		Host string `json:"host" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if !h.valid(c, ValidateHost(req.Host)) {
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	tab.Engine.AllowInsecureHost(req.Host)
	tab.View.Reload()
	c.JSON(http.StatusAccepted, tab.Snapshot())
}

func (h *Handlers) ExitFullscreen(c *gin.Context) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	tab.ExitFullscreen()
	c.JSON(http.StatusOK, tab.Snapshot())
}
