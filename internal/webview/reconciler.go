package webview

import (
	"bytes"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Reconciler moves navigation state between a Session and the engine.
type Reconciler struct {
	engine    Engine
	client    *Client
	telemetry Recorder
	logger    *zap.Logger
}

// Restore brings the engine back to the session's page. When the restored
// history already ends at that page it is reloaded; otherwise the page never
// finished loading before suspension and is loaded fresh.
func (r *Reconciler) Restore(session Session) {
	var history *History
	if blob := session.NavigationState(); len(blob) > 0 {
		history = r.engine.RestoreState(blob)
		if history == nil {
			r.logger.Debug("navigation state unreadable, loading directly", zap.Int("bytes", len(blob)))
		}
	}

	desired := session.URL()
	r.client.NotifyCurrentURL(desired)

	if item := history.CurrentItem(); item != nil && item.URL == desired {
		r.engine.Reload()
		r.telemetry.Record(monitoring.EventRestoreReload)
		return
	}

	if desired == "" {
		return
	}
	r.client.Load(desired)
	r.telemetry.Record(monitoring.EventRestoreLoad)
}

// Save stores a private copy of the engine's navigation state.
func (r *Reconciler) Save(session Session) {
	session.SetNavigationState(bytes.Clone(r.engine.SaveState()))
	r.telemetry.Record(monitoring.EventSave)
}
