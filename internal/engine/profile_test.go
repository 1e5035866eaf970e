package engine

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/webview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := NewProfile(t.TempDir(), t.TempDir(), nil)
	require.NoError(t, err)
	return p
}

func TestNewProfileRequiresDirectories(t *testing.T) {
	_, err := NewProfile("", t.TempDir(), nil)
	assert.Error(t, err)
}

func TestStateCodec(t *testing.T) {
	history := webview.History{
		Items: []webview.HistoryItem{
			{URL: "https://a.example/", OriginalURL: "http://a.example", Title: "A"},
			{URL: "https://b.example/", OriginalURL: "https://b.example/", Title: "B"},
		},
		Current: 1,
	}
	blob, err := encodeState(history)
	require.NoError(t, err)

	got, err := decodeState(blob)
	require.NoError(t, err)
	assert.Equal(t, history, *got)

	_, err = decodeState([]byte("not zstd"))
	assert.ErrorIs(t, err, errBadState)

	outOfRange, err := pack(savedState{Version: stateVersion, Items: history.Items, Current: 5})
	require.NoError(t, err)
	_, err = decodeState(outOfRange)
	assert.ErrorIs(t, err, errBadState)

	future, err := pack(savedState{Version: 9, Items: history.Items})
	require.NoError(t, err)
	_, err = decodeState(future)
	assert.ErrorIs(t, err, errBadState)
}

func TestProfileFlushAndReload(t *testing.T) {
	dataDir, cacheDir := t.TempDir(), t.TempDir()
	p, err := NewProfile(dataDir, cacheDir, nil)
	require.NoError(t, err)

	p.WebStorage().Origin("https://a.example").SetItem("theme", "dark")
	p.FormDatabase().RecordForm("a.example", url.Values{"email": {"ada@example.com", ""}})
	p.FormDatabase().SetHTTPAuthUsernamePassword("a.example", "admin", "ada", "secret")
	require.NoError(t, p.Flush())

	assert.FileExists(t, filepath.Join(dataDir, "Local Storage", "storage.json"))
	assert.FileExists(t, filepath.Join(dataDir, "webview.db"))

	reopened, err := NewProfile(dataDir, cacheDir, nil)
	require.NoError(t, err)
	v, ok := reopened.WebStorage().Origin("https://a.example").GetItem("theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
	assert.Equal(t, []string{"ada@example.com"}, reopened.FormDatabase().Suggestions("a.example", "email"))
	creds, ok := reopened.FormDatabase().HTTPAuthUsernamePassword("a.example", "admin")
	assert.True(t, ok)
	assert.Equal(t, "ada", creds.Username)
}

func TestProfileClearOperations(t *testing.T) {
	p := newTestProfile(t)
	p.WebStorage().Origin("https://a.example").SetItem("k", "v")
	p.FormDatabase().RecordForm("a.example", url.Values{"q": {"x"}})
	p.FormDatabase().SetHTTPAuthUsernamePassword("a.example", "r", "u", "p")

	p.Storage().DeleteAllData()
	p.Database().ClearFormData()
	assert.Zero(t, p.WebStorage().Len())
	assert.False(t, p.FormDatabase().HasFormData())
	assert.True(t, p.FormDatabase().HasHTTPAuthUsernamePassword())

	p.Database().ClearHTTPAuthUsernamePassword()
	assert.False(t, p.FormDatabase().HasHTTPAuthUsernamePassword())
}

func TestOriginStorageIsolation(t *testing.T) {
	p := newTestProfile(t)
	a := p.WebStorage().Origin("https://a.example")
	b := p.WebStorage().Origin("https://b.example")

	a.SetItem("k", "1")
	_, ok := b.GetItem("k")
	assert.False(t, ok)

	a.RemoveItem("k")
	_, ok = a.GetItem("k")
	assert.False(t, ok)

	b.SetItem("k", "2")
	b.Clear()
	assert.Zero(t, p.WebStorage().Len())
}

func TestCacheSurvivesMemoryLoss(t *testing.T) {
	p := newTestProfile(t)
	p.HTTPCache().Put(&CacheEntry{URL: "https://a.example/", ContentType: "text/html", Body: []byte("<p>a</p>"), StoredAt: time.Now()})

	p.HTTPCache().Clear(false)
	entry, ok := p.HTTPCache().Get("https://a.example/")
	require.True(t, ok)
	assert.Equal(t, []byte("<p>a</p>"), entry.Body)

	p.HTTPCache().Clear(true)
	_, ok = p.HTTPCache().Get("https://a.example/")
	assert.False(t, ok)
	entries, _ := os.ReadDir(filepath.Join(p.CacheDir(), "http"))
	assert.Empty(t, entries)
}

func TestCookieJarRemoveAll(t *testing.T) {
	jar := NewCookieJar()
	u, _ := url.Parse("https://www.shop.example.co.uk/")
	jar.SetCookies(u, []*http.Cookie{{Name: "id", Value: "1"}})
	assert.Equal(t, []string{"example.co.uk"}, jar.Sites())
	assert.Len(t, jar.Cookies(u), 1)

	done := make(chan bool, 1)
	jar.RemoveAllCookies(func(removed bool) { done <- removed })
	assert.True(t, <-done)
	assert.Empty(t, jar.Cookies(u))

	jar.RemoveAllCookies(func(removed bool) { done <- removed })
	assert.False(t, <-done)

	jar.RemoveAllCookies(nil)
}

func TestSSLExceptions(t *testing.T) {
	p := newTestProfile(t)
	p.SSLExceptions().Allow("self-signed.example")
	assert.True(t, p.SSLExceptions().Allowed("self-signed.example"))
	assert.False(t, p.SSLExceptions().Allowed("other.example"))
	p.SSLExceptions().Clear()
	assert.False(t, p.SSLExceptions().Allowed("self-signed.example"))
}
