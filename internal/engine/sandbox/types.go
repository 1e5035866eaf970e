package sandbox

import (
	"context"
	"time"
)

type Config struct {
	Timeout       time.Duration
	MaxCallStack  int
	EnableConsole bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
	}
}

type Result struct {
	Value      interface{}
	Console    []LogEntry
	DOMChanges []DOMChange
	Duration   time.Duration
}

type LogEntry struct {
	Level   string
	Message string
	Time    time.Time
}

// DOMChange records a script mutation of the page.
type DOMChange struct {
	Type     string
	Selector string
	Property string
	Value    string
}

// Bridge carries calls from page scripts to the engine.
type Bridge interface {
	Call(ctx context.Context, method string, args ...interface{}) (interface{}, error)
}

// Storage is one origin's localStorage.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
	Clear()
}

// Env is what a script can reach. Any field may be nil.
type Env struct {
	Document *Document
	Storage  Storage
	Bridge   Bridge
}

// Bridge methods understood by the engine.
const (
	MethodRequestFullscreen = "requestFullscreen"
	MethodExitFullscreen    = "exitFullscreen"
	// MethodPostMessage carries the message and the target origin.
	MethodPostMessage = "postMessage"
)
