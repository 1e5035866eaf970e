package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/blocklist"
	"github.com/GriffinCanCode/ghostview/internal/engine"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/worker"
	"github.com/GriffinCanCode/ghostview/internal/session"
	"github.com/GriffinCanCode/ghostview/internal/webview"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 5 * time.Second

type apiFixture struct {
	router  *gin.Engine
	manager *session.Manager
	metrics *monitoring.Metrics
	site    *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><head><title>Page %s</title></head><body><p>hello</p><p>hello again</p></body></html>", r.URL.Path[1:])
	}))
	t.Cleanup(site.Close)

	profile, err := engine.NewProfile(t.TempDir(), t.TempDir(), nil)
	require.NoError(t, err)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Jar = profile.Jar()

	bg := worker.NewBackground(nil)
	t.Cleanup(bg.Close)

	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	manager, err := session.NewManager(session.Runtime{
		Profile:          profile,
		Client:           httpclient.New(cfg, nil),
		Executor:         bg,
		Blocklist:        blocklist.Default(),
		Metrics:          metrics,
		Settings:         webview.DefaultSettings(),
		BlockingEnabled:  true,
		DownloadsEnabled: true,
	}, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Shutdown() })

	router := gin.New()
	NewHandlers(manager, metrics, nil, nil).Register(router)

	return &apiFixture{router: router, manager: manager, metrics: metrics, site: site}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// open creates a tab on path and waits for it to finish loading.
func (f *apiFixture) open(t *testing.T, path string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/tabs", gin.H{"url": f.site.URL + path})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)
	f.awaitTitle(t, id, "Page "+path[1:])
	return id
}

func (f *apiFixture) awaitTitle(t *testing.T, id, title string) {
	t.Helper()
	require.Eventually(t, func() bool {
		w := f.do(t, http.MethodGet, "/tabs/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		body := decode(t, w)
		return body["title"] == title && body["progress"] == float64(100)
	}, wait, 10*time.Millisecond)
}

func TestRootAndHealth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ghostview", decode(t, w)["service"])

	w = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["tabs"])
}

func TestOpenAndListTabs(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodGet, "/tabs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tabs := decode(t, w)["tabs"].([]interface{})
	require.Len(t, tabs, 1)
	tab := tabs[0].(map[string]interface{})
	assert.Equal(t, id, tab["id"])
	assert.Equal(t, f.site.URL+"/a", tab["url"])
	assert.Equal(t, true, tab["blocking"])
}

func TestOpenWithoutBody(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/tabs", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "", decode(t, w)["url"])
}

func TestUnknownTab(t *testing.T) {
	f := newAPIFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/tabs/missing"},
		{http.MethodPost, "/tabs/missing/reload"},
		{http.MethodDelete, "/tabs/missing"},
		{http.MethodPost, "/tabs/missing/save"},
		{http.MethodPost, "/sessions/missing/resume"},
	} {
		w := f.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, false, decode(t, w)["success"])
	}
}

func TestLoadValidatesBody(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/load", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNavigation(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/load", gin.H{"url": f.site.URL + "/b"})
	require.Equal(t, http.StatusAccepted, w.Code)
	f.awaitTitle(t, id, "Page b")

	w = f.do(t, http.MethodGet, "/tabs/"+id, nil)
	assert.Equal(t, true, decode(t, w)["can_go_back"])

	w = f.do(t, http.MethodPost, "/tabs/"+id+"/back", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	f.awaitTitle(t, id, "Page a")

	w = f.do(t, http.MethodGet, "/tabs/"+id, nil)
	assert.Equal(t, true, decode(t, w)["can_go_forward"])

	f.do(t, http.MethodPost, "/tabs/"+id+"/forward", nil)
	f.awaitTitle(t, id, "Page b")
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/tabs/"+id+"/reload", nil).Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/tabs/"+id+"/stop", nil).Code)
}

func TestClickFollowsLink(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/click", gin.H{"href": "/c"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, decode(t, w)["loading"])
	f.awaitTitle(t, id, "Page c")
}

func TestLoadData(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/data", gin.H{
		"base_url": f.site.URL + "/inline",
		"data":     "<html><head><title>Inline</title></head><body>x</body></html>",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	f.awaitTitle(t, id, "Inline")
}

func TestFindAndClear(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/find", gin.H{"query": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["matches"])

	w = f.do(t, http.MethodDelete, "/tabs/"+id+"/find", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEvaluateWithoutSandbox(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/eval", gin.H{"script": "1 + 1"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = f.do(t, http.MethodGet, "/tabs/"+id+"/screenshot", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/tabs/"+id+"/screenshot", gin.H{"screenshot": "data:image/png;base64,AAAA", "origin": "*"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestPostScreenshotValidates(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/screenshot", gin.H{"screenshot": "data:image/png;base64,AAAA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/tabs/"+id+"/screenshot", gin.H{"screenshot": "x", "origin": "https://a.example/\x00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/tabs/missing/screenshot", gin.H{"screenshot": "x", "origin": "*"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetBlocking(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/blocking", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/tabs/"+id+"/blocking", gin.H{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["blocking"])

	tab, err := f.manager.Get(id)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !tab.Session.Blocking() }, wait, 10*time.Millisecond)
}

func TestAuthenticateStoresCredentials(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/auth", gin.H{
		"host":     "example.com",
		"realm":    "members",
		"username": "ada",
		"password": "secret",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	creds, ok := f.manager.Profile().FormDatabase().HTTPAuthUsernamePassword("example.com", "members")
	require.True(t, ok)
	assert.Equal(t, "ada", creds.Username)
	assert.Equal(t, "secret", creds.Password)
}

func TestAllowInsecureHost(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/ssl-exception", gin.H{"host": "self-signed.test"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, f.manager.Profile().SSLExceptions().Allowed("self-signed.test"))
}

func TestExitFullscreenWhenNotFullscreen(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/fullscreen/exit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["fullscreen"])
}

func TestSaveCloseResume(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/tabs/"+id+"/save", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/tabs/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/tabs/"+id, nil).Code)

	w := f.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	saved := decode(t, w)["sessions"].([]interface{})
	require.Len(t, saved, 1)
	assert.Equal(t, true, saved[0].(map[string]interface{})["has_state"])

	w = f.do(t, http.MethodPost, "/sessions/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])
	f.awaitTitle(t, id, "Page a")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/sessions/"+id, nil).Code)
	w = f.do(t, http.MethodGet, "/sessions", nil)
	assert.Empty(t, decode(t, w)["sessions"])
}

func TestErase(t *testing.T) {
	f := newAPIFixture(t)
	f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/erase", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), f.metrics.Count(monitoring.EventCleanup))
}

func TestRejectsInvalidInput(t *testing.T) {
	f := newAPIFixture(t)
	id := f.open(t, "/a")

	w := f.do(t, http.MethodPost, "/tabs/"+id+"/ssl-exception", gin.H{"host": "https://bad host/"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, f.manager.Profile().SSLExceptions().Allowed("bad host"))

	w = f.do(t, http.MethodPost, "/tabs/"+id+"/find", gin.H{"query": strings.Repeat("x", MaxQueryLength+1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/tabs", gin.H{"url": "http://a\x00b"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.manager.Tabs(), 1)
}
