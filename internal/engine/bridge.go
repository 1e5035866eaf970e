package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/engine/sandbox"
	"go.uber.org/zap"
)

// Call implements sandbox.Bridge for page scripts.
func (e *Engine) Call(_ context.Context, method string, args ...interface{}) (interface{}, error) {
	switch method {
	case sandbox.MethodPostMessage:
		if len(args) != 2 {
			return nil, fmt.Errorf("postMessage takes a message and a target origin")
		}
		target, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("postMessage target origin must be a string")
		}
		return e.deliver(args[0], target), nil
	case sandbox.MethodRequestFullscreen:
		e.enterFullscreen()
		return true, nil
	case sandbox.MethodExitFullscreen:
		e.ExitFullscreen()
		return true, nil
	}
	return nil, fmt.Errorf("unknown bridge method %q", method)
}

func (e *Engine) enterFullscreen() {
	e.mu.Lock()
	if e.fullscreen || e.destroyed {
		e.mu.Unlock()
		return
	}
	e.fullscreen = true
	l := e.listener
	e.mu.Unlock()

	if l != nil {
		l.OnShowCustomView(e.ExitFullscreen)
	}
}

// ExitFullscreen leaves fullscreen if the page entered it.
func (e *Engine) ExitFullscreen() {
	e.mu.Lock()
	if !e.fullscreen {
		e.mu.Unlock()
		return
	}
	e.fullscreen = false
	l := e.listener
	e.mu.Unlock()

	if l != nil {
		l.OnHideCustomView()
	}
}

func (e *Engine) Fullscreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreen
}

// maxInbox bounds the messages kept per engine.
const maxInbox = 32

// Message is a value posted to the current page.
type Message struct {
	Origin string
	Data   interface{}
	Time   time.Time
}

// deliver queues data for the current page when target is "*" or the page's
// own origin. Mismatched messages are dropped silently.
func (e *Engine) deliver(data interface{}, target string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.page == nil || e.destroyed {
		return false
	}
	pageOrigin := origin(e.page.URL)
	if target != "*" && target != pageOrigin {
		e.logger.Debug("message dropped", zap.String("target", target), zap.String("origin", pageOrigin))
		return false
	}
	e.inbox = append(e.inbox, Message{Origin: pageOrigin, Data: data, Time: time.Now()})
	if len(e.inbox) > maxInbox {
		e.inbox = e.inbox[len(e.inbox)-maxInbox:]
	}
	return true
}

// Messages returns what has been posted to the page, oldest first.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.inbox...)
}
