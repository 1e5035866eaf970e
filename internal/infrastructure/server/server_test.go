package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	root := t.TempDir()
	cfg.Logging.Level = "error"
	cfg.Engine.DataDir = filepath.Join(root, "data")
	cfg.Engine.CacheDir = filepath.Join(root, "cache")
	cfg.Engine.SandboxPool = 1
	cfg.Storage.SessionPath = filepath.Join(root, "sessions")
	cfg.RateLimit.Enabled = false
	return cfg
}

func TestServerRoutes(t *testing.T) {
	srv, err := NewServer(testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, srv.Close()) }()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tabs", strings.NewReader(`{"url":""}`)))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, srv.Manager().Tabs(), 1)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ghostview_http_requests_total")
}

func TestCloseSavesTabs(t *testing.T) {
	cfg := testConfig(t)
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	_, err = srv.Manager().Open("")
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	again, err := NewServer(cfg)
	require.NoError(t, err)
	defer again.Close()
	saved, err := again.Manager().Saved()
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestBadBlocklistFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Privacy.BlocklistPath = filepath.Join(t.TempDir(), "missing.yaml")

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	assert.NoError(t, srv.Close())
}
