package webview

import "go.uber.org/zap"

// Handoff decides which URLs leave the engine for an external handler.
type Handoff interface {
	ShouldHandOff(url string) bool
	HandOff(url string)
}

// engineSchemes are loaded in-engine. Everything else is handed off.
var engineSchemes = map[string]bool{
	"http":       true,
	"https":      true,
	"file":       true,
	"data":       true,
	"about":      true,
	"javascript": true,
	"blob":       true,
}

// SchemeHandoff hands off URLs whose scheme the engine cannot load (mailto,
// tel, intent, market and the like). Launch dispatches them.
type SchemeHandoff struct {
	Launch func(url string)
	logger *zap.Logger
}

func NewSchemeHandoff(launch func(url string), logger *zap.Logger) *SchemeHandoff {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemeHandoff{Launch: launch, logger: logger}
}

// ShouldHandOff is false for scheme-less input so the engine can report the
// failure itself.
func (h *SchemeHandoff) ShouldHandOff(url string) bool {
	scheme := Scheme(url)
	if scheme == "" {
		return false
	}
	return !engineSchemes[scheme]
}

func (h *SchemeHandoff) HandOff(url string) {
	h.logger.Debug("handing off url", zap.String("scheme", Scheme(url)))
	if h.Launch != nil {
		h.Launch(url)
	}
}
