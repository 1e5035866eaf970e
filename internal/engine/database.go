package engine

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/httpclient"
	"github.com/bytedance/sonic"
)

// Database keeps autofill entries and HTTP auth credentials.
type Database struct {
	path string

	mu    sync.RWMutex
	forms map[string]map[string][]string
	auth  map[string]httpclient.Credentials
}

type databaseFile struct {
	Forms map[string]map[string][]string    `json:"forms"`
	Auth  map[string]httpclient.Credentials `json:"auth"`
}

func newDatabase(dataDir string) *Database {
	return &Database{
		path:  filepath.Join(dataDir, "webview.db"),
		forms: make(map[string]map[string][]string),
		auth:  make(map[string]httpclient.Credentials),
	}
}

// RecordForm remembers submitted non-empty values for host.
func (d *Database) RecordForm(host string, values url.Values) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fields, ok := d.forms[host]
	if !ok {
		fields = make(map[string][]string)
		d.forms[host] = fields
	}
	for name, vs := range values {
		for _, v := range vs {
			if v == "" || contains(fields[name], v) {
				continue
			}
			fields[name] = append(fields[name], v)
		}
	}
}

// Suggestions returns remembered values for one field.
func (d *Database) Suggestions(host, field string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := append([]string(nil), d.forms[host][field]...)
	sort.Strings(out)
	return out
}

func (d *Database) HasFormData() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.forms) > 0
}

func (d *Database) ClearFormData() {
	d.mu.Lock()
	d.forms = make(map[string]map[string][]string)
	d.mu.Unlock()
}

func (d *Database) SetHTTPAuthUsernamePassword(host, realm, username, password string) {
	d.mu.Lock()
	d.auth[authKey(host, realm)] = httpclient.Credentials{Username: username, Password: password}
	d.mu.Unlock()
}

func (d *Database) HTTPAuthUsernamePassword(host, realm string) (httpclient.Credentials, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.auth[authKey(host, realm)]
	return c, ok
}

func (d *Database) HasHTTPAuthUsernamePassword() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.auth) > 0
}

func (d *Database) ClearHTTPAuthUsernamePassword() {
	d.mu.Lock()
	d.auth = make(map[string]httpclient.Credentials)
	d.mu.Unlock()
}

func (d *Database) load() error {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var file databaseFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return err
	}
	d.mu.Lock()
	if file.Forms != nil {
		d.forms = file.Forms
	}
	if file.Auth != nil {
		d.auth = file.Auth
	}
	d.mu.Unlock()
	return nil
}

func (d *Database) flush() error {
	d.mu.RLock()
	if len(d.forms) == 0 && len(d.auth) == 0 {
		d.mu.RUnlock()
		return nil
	}
	data, err := sonic.Marshal(databaseFile{Forms: d.forms, Auth: d.auth})
	d.mu.RUnlock()
	if err != nil {
		return err
	}
	return writeFile(d.path, data)
}

func authKey(host, realm string) string {
	return host + "\x00" + realm
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
