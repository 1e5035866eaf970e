package ws

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	api "github.com/GriffinCanCode/ghostview/internal/api/http"
	"github.com/GriffinCanCode/ghostview/internal/blocklist"
	"github.com/GriffinCanCode/ghostview/internal/engine"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/worker"
	"github.com/GriffinCanCode/ghostview/internal/session"
	"github.com/GriffinCanCode/ghostview/internal/webview"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 5 * time.Second

func newServer(t *testing.T) (*httptest.Server, *session.Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>Page %s</title></head><body></body></html>", r.URL.Path[1:])
	}))
	t.Cleanup(site.Close)

	profile, err := engine.NewProfile(t.TempDir(), t.TempDir(), nil)
	require.NoError(t, err)
	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	bg := worker.NewBackground(nil)
	t.Cleanup(bg.Close)
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	manager, err := session.NewManager(session.Runtime{
		Profile:   profile,
		Client:    httpclient.New(cfg, nil),
		Executor:  bg,
		Blocklist: blocklist.Default(),
		Settings:  webview.DefaultSettings(),
	}, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Shutdown() })

	router := gin.New()
	router.GET("/tabs/:id/events", NewHandler(manager, monitoring.NewMetrics(), nil).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, manager, site
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tabs/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// await reads messages until one of type kind arrives.
func await(t *testing.T, conn *websocket.Conn, kind string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	for {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", kind)
		if msg["type"] == kind {
			return msg
		}
	}
}

func TestUnknownTabIsNotUpgraded(t *testing.T) {
	srv, _, _ := newServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tabs/missing/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshotAndPing(t *testing.T) {
	srv, manager, _ := newServer(t)
	tab, err := manager.Open("")
	require.NoError(t, err)

	conn := dial(t, srv, tab.ID())
	snap := await(t, conn, "snapshot")
	assert.Equal(t, tab.ID(), snap["tab"].(map[string]interface{})["id"])

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	await(t, conn, "pong")

	require.NoError(t, conn.WriteJSON(Message{Type: "bogus"}))
	assert.Equal(t, "unknown message type", await(t, conn, "error")["message"])
}

func TestLoadStreamsEvents(t *testing.T) {
	srv, manager, site := newServer(t)
	tab, err := manager.Open("")
	require.NoError(t, err)

	conn := dial(t, srv, tab.ID())
	await(t, conn, "snapshot")

	require.NoError(t, conn.WriteJSON(Message{Type: "load", URL: site.URL + "/a"}))
	changed := await(t, conn, session.EventURLChanged)
	assert.Equal(t, site.URL+"/a", changed["url"])

	for {
		progress := await(t, conn, session.EventProgress)
		if progress["progress"] == float64(100) {
			assert.Equal(t, "Page a", progress["title"])
			break
		}
	}
}

func TestMissingURLIsRejected(t *testing.T) {
	srv, manager, _ := newServer(t)
	tab, err := manager.Open("")
	require.NoError(t, err)

	conn := dial(t, srv, tab.ID())
	await(t, conn, "snapshot")
	require.NoError(t, conn.WriteJSON(Message{Type: "load"}))
	assert.Equal(t, "url is required", await(t, conn, "error")["message"])
}

func TestInvalidURLIsRejected(t *testing.T) {
	srv, manager, _ := newServer(t)
	tab, err := manager.Open("")
	require.NoError(t, err)

	conn := dial(t, srv, tab.ID())
	await(t, conn, "snapshot")

	require.NoError(t, conn.WriteJSON(Message{Type: "load", URL: "https://example.com/\x00"}))
	assert.Equal(t, "url contains invalid characters", await(t, conn, "error")["message"])

	long := "https://example.com/" + strings.Repeat("a", api.MaxURLLength)
	require.NoError(t, conn.WriteJSON(Message{Type: "load", URL: long}))
	assert.Contains(t, await(t, conn, "error")["message"], "must not exceed")
	assert.Empty(t, tab.View.URL())
}
