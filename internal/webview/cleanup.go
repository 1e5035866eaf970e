package webview

import (
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Cleaner erases everything a tab left behind.
type Cleaner struct {
	engine    Engine
	profile   Profile
	executor  Executor
	sweeper   Sweeper
	telemetry Recorder
	logger    *zap.Logger
}

// Cleanup clears every in-engine store, then schedules the disk sweep.
// Nothing here reports failure.
func (c *Cleaner) Cleanup() {
	c.ClearEngine()
	c.engine.ClearSSLPreferences()
	c.engine.ClearCache(true)

	// Removal completes asynchronously and its result is not needed.
	c.profile.Cookies().RemoveAllCookies(nil)
	c.profile.Storage().DeleteAllData()

	db := c.profile.Database()
	db.ClearFormData()
	db.ClearHTTPAuthUsernamePassword()

	c.telemetry.Record(monitoring.EventCleanup)
	c.PurgeKnownLocations()
}

// ClearEngine clears the state held by this engine alone. The profile and
// the disk are left untouched.
func (c *Cleaner) ClearEngine() {
	c.engine.ClearFormData()
	c.engine.ClearHistory()
	c.engine.ClearMatches()
}

// PurgeKnownLocations submits one sweep of the engine's data and cache
// directories. The engine writes some files lazily, including at teardown,
// so the sweep also runs after Destroy.
func (c *Cleaner) PurgeKnownLocations() {
	dataDir := c.profile.DataDir()
	cacheDir := c.profile.CacheDir()

	c.executor.Submit(func() {
		if err := c.sweeper.DeleteDirectory(dataDir); err != nil {
			c.logger.Debug("data directory sweep failed", zap.String("path", dataDir), zap.Error(err))
			c.telemetry.Record(monitoring.EventSweepFailed)
		}
		if err := c.sweeper.TruncateDirectory(cacheDir); err != nil {
			c.logger.Debug("cache directory sweep failed", zap.String("path", cacheDir), zap.Error(err))
			c.telemetry.Record(monitoring.EventSweepFailed)
		}
	})
	c.telemetry.Record(monitoring.EventSweepScheduled)
}
