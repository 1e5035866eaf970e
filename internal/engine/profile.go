package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/GriffinCanCode/ghostview/internal/webview"
	"go.uber.org/zap"
)

// Profile owns the stores every tab shares: cookies, site storage, the form
// and auth database, certificate exceptions and the HTTP cache.
type Profile struct {
	dataDir  string
	cacheDir string
	logger   *zap.Logger

	cookies  *CookieJar
	storage  *WebStorage
	database *Database
	ssl      *SSLExceptions
	cache    *Cache
}

// NewProfile opens the profile rooted at dataDir and cacheDir, loading
// anything a previous process flushed.
func NewProfile(dataDir, cacheDir string, logger *zap.Logger) (*Profile, error) {
	if dataDir == "" || cacheDir == "" {
		return nil, errors.New("profile needs data and cache directories")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{dataDir, cacheDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	p := &Profile{
		dataDir:  dataDir,
		cacheDir: cacheDir,
		logger:   logger.Named("profile"),
		cookies:  NewCookieJar(),
		storage:  newWebStorage(dataDir),
		database: newDatabase(dataDir),
		ssl:      newSSLExceptions(),
	}
	p.cache = newCache(cacheDir, p.logger)

	if err := p.storage.load(); err != nil {
		p.logger.Warn("discarding unreadable site storage", zap.Error(err))
	}
	if err := p.database.load(); err != nil {
		p.logger.Warn("discarding unreadable database", zap.Error(err))
	}
	return p, nil
}

func (p *Profile) Cookies() webview.CookieStore { return p.cookies }
func (p *Profile) Storage() webview.WebStorage  { return p.storage }
func (p *Profile) Database() webview.Database   { return p.database }
func (p *Profile) DataDir() string              { return p.dataDir }
func (p *Profile) CacheDir() string             { return p.cacheDir }

func (p *Profile) Jar() *CookieJar               { return p.cookies }
func (p *Profile) WebStorage() *WebStorage       { return p.storage }
func (p *Profile) FormDatabase() *Database       { return p.database }
func (p *Profile) SSLExceptions() *SSLExceptions { return p.ssl }
func (p *Profile) HTTPCache() *Cache             { return p.cache }

// Flush writes site storage and the database to the data directory.
func (p *Profile) Flush() error {
	return errors.Join(p.storage.flush(), p.database.flush())
}
