package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/ghostview/internal/engine"
	"github.com/GriffinCanCode/ghostview/internal/engine/sandbox"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ghostview/internal/webview"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Runtime is what every tab shares.
type Runtime struct {
	Profile   *engine.Profile
	Client    *httpclient.Client
	Sandbox   *sandbox.Pool
	Executor  webview.Executor
	Sweeper   webview.Sweeper
	Blocklist webview.Matcher
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger

	Settings         webview.Settings
	BlockingEnabled  bool
	DownloadsEnabled bool
	DownloadDir      string
}

// Manager owns the live tabs and their persistence.
type Manager struct {
	rt     Runtime
	store  *Store
	logger *zap.Logger

	mu       sync.RWMutex
	tabs     map[string]*Tab
	janitor  *webview.View
	resuming singleflight.Group
}

func NewManager(rt Runtime, store *Store) (*Manager, error) {
	if rt.Profile == nil || rt.Client == nil || rt.Executor == nil {
		return nil, errors.New("session manager needs a profile, an http client and an executor")
	}
	if store == nil {
		return nil, errors.New("session manager needs a store")
	}
	if rt.Metrics == nil {
		rt.Metrics = monitoring.NewMetrics()
	}
	if rt.Logger == nil {
		rt.Logger = zap.NewNop()
	}
	return &Manager{
		rt:     rt,
		store:  store,
		logger: rt.Logger.Named("session"),
		tabs:   make(map[string]*Tab),
	}, nil
}

// Open starts a tab on url.
func (m *Manager) Open(url string) (*Tab, error) {
	s := New(url, m.rt.BlockingEnabled)
	tab, err := m.start(s)
	if err != nil {
		return nil, err
	}
	m.logger.Info("tab opened", zap.String("tab", s.ID))
	return tab, nil
}

// Resume brings a stored session back as a live tab. A tab that is already
// live is returned as is. Concurrent calls for one id share a single tab.
func (m *Manager) Resume(id string) (*Tab, error) {
	if tab, err := m.Get(id); err == nil {
		return tab, nil
	}
	v, err, _ := m.resuming.Do(id, func() (any, error) {
		if tab, err := m.Get(id); err == nil {
			return tab, nil
		}
		s, err := m.store.Load(id)
		if err != nil {
			return nil, err
		}
		tab, err := m.start(s)
		if err != nil {
			return nil, err
		}
		m.logger.Info("tab resumed", zap.String("tab", id))
		return tab, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tab), nil
}

func (m *Manager) start(s *Session) (*Tab, error) {
	tab, err := m.build(s)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.tabs[s.ID] = tab
	n := len(m.tabs)
	m.mu.Unlock()
	m.rt.Metrics.SetTabsActive(n)

	tab.View.Restore(s)
	return tab, nil
}

func (m *Manager) build(s *Session) (*Tab, error) {
	logger := m.rt.Logger.With(zap.String("tab", s.ID))
	eng, err := engine.New(engine.Options{
		Profile:  m.rt.Profile,
		Client:   m.rt.Client,
		Sandbox:  m.rt.Sandbox,
		Metrics:  m.rt.Metrics,
		Settings: m.rt.Settings,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	tab := &Tab{Session: s, Engine: eng, hub: NewHub(64), logger: logger.Named("tab")}
	view, err := webview.New(webview.Options{
		Engine:           eng,
		Profile:          m.rt.Profile,
		Executor:         m.rt.Executor,
		Sweeper:          m.rt.Sweeper,
		Handoff:          webview.NewSchemeHandoff(tab.handOff, logger),
		Blocklist:        m.rt.Blocklist,
		Telemetry:        m.rt.Metrics,
		Logger:           logger,
		Settings:         m.rt.Settings,
		BlockingEnabled:  s.Blocking(),
		DownloadsEnabled: m.rt.DownloadsEnabled,
		DownloadDir:      m.rt.DownloadDir,
	})
	if err != nil {
		eng.Destroy()
		return nil, fmt.Errorf("failed to create view: %w", err)
	}
	tab.View = view
	view.SetCallback(tab)
	return tab, nil
}

func (m *Manager) Get(id string) (*Tab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tab, ok := m.tabs[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return tab, nil
}

// Tabs lists live tabs, oldest first.
func (m *Manager) Tabs() []*Tab {
	m.mu.RLock()
	out := make([]*Tab, 0, len(m.tabs))
	for _, tab := range m.tabs {
		out = append(out, tab)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Session.CreatedAt.Before(out[j].Session.CreatedAt) })
	return out
}

// Save captures a live tab's navigation state and writes it to the store.
func (m *Manager) Save(id string) error {
	tab, err := m.Get(id)
	if err != nil {
		return err
	}
	tab.View.Save(tab.Session)
	return m.store.Save(tab.Session)
}

// Close saves a tab and tears it down. The stored session remains.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	tab, ok := m.tabs[id]
	delete(m.tabs, id)
	n := len(m.tabs)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.rt.Metrics.SetTabsActive(n)

	err := m.shutdownTab(tab)
	m.logger.Info("tab closed", zap.String("tab", id))
	return err
}

// Saved lists stored sessions.
func (m *Manager) Saved() ([]Snapshot, error) {
	return m.store.List()
}

// Forget closes the tab if it is live and deletes its stored session.
func (m *Manager) Forget(id string) error {
	if err := m.Close(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return m.store.Delete(id)
}

// Erase wipes browsing data. Every live tab drops its history and form data,
// stored navigation state of live tabs is cleared, and the shared profile is
// wiped once with a single disk sweep. Host breakers start over.
func (m *Manager) Erase() error {
	tabs := m.Tabs()
	var errs []error
	for _, tab := range tabs {
		tab.View.ClearTabData()
		tab.Session.SetNavigationState(nil)
		if m.store.Has(tab.ID()) {
			errs = append(errs, m.store.Save(tab.Session))
		}
	}

	view, err := m.cleaner()
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	view.Cleanup()
	m.rt.Client.ResetHosts()
	m.logger.Info("browsing data erased", zap.Int("tabs", len(tabs)))
	return errors.Join(errs...)
}

// cleaner returns a view to run the profile cleanup through. Any tab will do
// since its own engine state is already cleared. With no tabs a detached view is kept for it.
func (m *Manager) cleaner() (*webview.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tab := range m.tabs {
		if tab.View != nil {
			return tab.View, nil
		}
	}
	if m.janitor != nil {
		return m.janitor, nil
	}
	eng, err := engine.New(engine.Options{Profile: m.rt.Profile, Client: m.rt.Client, Logger: m.rt.Logger})
	if err != nil {
		return nil, err
	}
	view, err := webview.New(webview.Options{
		Engine:    eng,
		Profile:   m.rt.Profile,
		Executor:  m.rt.Executor,
		Sweeper:   m.rt.Sweeper,
		Telemetry: m.rt.Metrics,
		Logger:    m.rt.Logger,
		Settings:  m.rt.Settings,
	})
	if err != nil {
		eng.Destroy()
		return nil, err
	}
	m.janitor = view
	return view, nil
}

// Shutdown saves and closes every tab.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	tabs := make([]*Tab, 0, len(m.tabs))
	for id, tab := range m.tabs {
		tabs = append(tabs, tab)
		delete(m.tabs, id)
	}
	janitor := m.janitor
	m.janitor = nil
	m.mu.Unlock()
	m.rt.Metrics.SetTabsActive(0)

	var errs []error
	for _, tab := range tabs {
		errs = append(errs, m.shutdownTab(tab))
	}
	if janitor != nil {
		janitor.Destroy()
	}
	return errors.Join(errs...)
}

func (m *Manager) shutdownTab(tab *Tab) error {
	tab.View.Save(tab.Session)
	err := m.store.Save(tab.Session)
	tab.publish(Event{Type: EventClosed})
	tab.View.SetCallback(nil)
	tab.View.Destroy()
	tab.hub.Close()
	return err
}

// Profile is the profile shared by every tab.
func (m *Manager) Profile() *engine.Profile {
	return m.rt.Profile
}
