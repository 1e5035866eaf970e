package httpclient

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	return cfg
}

func TestDoFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("<p>new</p>"))
	}))
	defer srv.Close()

	c := New(testConfig(), nil)
	resp, err := c.Do(context.Background(), Request{URL: srv.URL + "/old"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", resp.URL)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "<p>new</p>", string(resp.Body))
}

func TestDoSendsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c := New(testConfig(), nil)
	_, err := c.Do(context.Background(), Request{
		URL:       srv.URL,
		Headers:   map[string]string{"X-Requested-With": "", "DNT": "1"},
		BasicAuth: &Credentials{Username: "u", Password: "p"},
	})
	require.NoError(t, err)

	_, present := got["X-Requested-With"]
	assert.True(t, present)
	assert.Equal(t, "1", got.Get("DNT"))
	assert.Contains(t, got.Get("User-Agent"), "ghostview")
	assert.NotEmpty(t, got.Get("Authorization"))
}

func TestDoReturnsErrorPagesAsResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(testConfig(), nil)
	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 3
	c := New(cfg, nil)

	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoTripsHostBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testConfig(), nil)
	for i := 0; i < 5; i++ {
		resp, err := c.Do(context.Background(), Request{URL: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
	}

	_, err := c.Do(context.Background(), Request{URL: srv.URL})
	assert.ErrorIs(t, err, ErrHostUnavailable)
	assert.Len(t, c.OpenHosts(), 1)

	c.ResetHosts()
	assert.Empty(t, c.OpenHosts())
	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestDoUsesCookieJar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("sid")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(c.Value))
	}))
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Jar = jar
	c := New(cfg, nil)

	_, err = c.Do(context.Background(), Request{URL: srv.URL + "/set"})
	require.NoError(t, err)
	resp, err := c.Do(context.Background(), Request{URL: srv.URL + "/get"})
	require.NoError(t, err)
	assert.Equal(t, "abc", string(resp.Body))
}

func TestDoPostsForms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, _ = w.Write([]byte(r.Method + ":" + r.PostForm.Get("q")))
	}))
	defer srv.Close()

	c := New(testConfig(), nil)
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Form:   url.Values{"q": {"privacy"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "POST:privacy", string(resp.Body))
}

func TestDoRejectsBadURL(t *testing.T) {
	c := New(testConfig(), nil)
	_, err := c.Do(context.Background(), Request{URL: "not a url"})
	assert.Error(t, err)
}

func TestDoHonoursTLSExemptions(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer srv.Close()
	target := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)

	allowed := map[string]bool{}
	cfg := testConfig()
	cfg.TLSExempt = func(host string) bool { return allowed[host] }
	c := New(cfg, nil)

	_, err := c.Do(context.Background(), Request{URL: target})
	require.Error(t, err)

	allowed["localhost"] = true
	resp, err := c.Do(context.Background(), Request{URL: target})
	require.NoError(t, err)
	assert.Equal(t, "secure", string(resp.Body))
}
