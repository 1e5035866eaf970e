package engine

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// CookieJar is the profile's cookie store. Unlike net/http/cookiejar it can
// be emptied.
type CookieJar struct {
	mu    sync.RWMutex
	jar   *cookiejar.Jar
	sites map[string]struct{}
}

func NewCookieJar() *CookieJar {
	return &CookieJar{jar: newJar(), sites: make(map[string]struct{})}
}

func newJar() *cookiejar.Jar {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	j.sites[site(u.Hostname())] = struct{}{}
}

func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// RemoveAllCookies empties the jar in the background and then reports
// whether anything was stored.
func (j *CookieJar) RemoveAllCookies(callback func(removed bool)) {
	go func() {
		j.mu.Lock()
		removed := len(j.sites) > 0
		j.jar = newJar()
		j.sites = make(map[string]struct{})
		j.mu.Unlock()

		if callback != nil {
			callback(removed)
		}
	}()
}

// Sites lists the registrable domains that have set cookies.
func (j *CookieJar) Sites() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]string, 0, len(j.sites))
	for s := range j.sites {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func site(host string) string {
	if s, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return s
	}
	return host
}
