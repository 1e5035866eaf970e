// Package blocklist decides which requests content blocking suppresses.
//
// Rules are doublestar patterns. Host rules are matched against the request
// host; path rules are matched against host+path, so "**/pixel.gif" blocks the
// file on every site.
package blocklist

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Rules is the on-disk blocklist format.
type Rules struct {
	Hosts []string `yaml:"hosts" toml:"hosts"`
	Paths []string `yaml:"paths" toml:"paths"`
}

// List is an immutable set of compiled rules.
type List struct {
	hosts []string
	paths []string
}

var defaultRules = Rules{
	Hosts: []string{
		"doubleclick.net",
		"*.doubleclick.net",
		"google-analytics.com",
		"*.google-analytics.com",
		"googletagmanager.com",
		"*.googletagmanager.com",
		"*.scorecardresearch.com",
		"*.facebook.net",
		"*.adnxs.com",
		"*.criteo.com",
		"*.hotjar.com",
	},
	Paths: []string{
		"**/pixel.gif",
		"**/beacon.js",
		"**/analytics.js",
	},
}

// Default returns the built-in tracker list.
func Default() *List {
	l, _ := New(defaultRules)
	return l
}

// New validates and compiles rules.
func New(rules Rules) (*List, error) {
	l := &List{}
	for _, p := range rules.Hosts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid host pattern %q", p)
		}
		l.hosts = append(l.hosts, p)
	}
	for _, p := range rules.Paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid path pattern %q", p)
		}
		l.paths = append(l.paths, p)
	}
	return l, nil
}

// Load reads a YAML or TOML rules file, chosen by extension.
func Load(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blocklist: %w", err)
	}

	var rules Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rules)
	case ".toml":
		err = toml.Unmarshal(data, &rules)
	default:
		return nil, fmt.Errorf("unsupported blocklist format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse blocklist: %w", err)
	}
	return New(rules)
}

// LoadOrDefault loads path when set, falling back to the built-in list.
func LoadOrDefault(path string) (*List, error) {
	if path == "" {
		return Default(), nil
	}
	l, err := Load(path)
	if err != nil {
		return Default(), err
	}
	return l, nil
}

// Matches reports whether rawURL should be blocked.
func (l *List) Matches(rawURL string) bool {
	if l == nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, p := range l.hosts {
		if ok, _ := doublestar.Match(p, host); ok {
			return true
		}
	}

	target := host + u.EscapedPath()
	for _, p := range l.paths {
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.hosts) + len(l.paths)
}
