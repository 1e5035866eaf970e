package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

var ErrInterrupted = errors.New("script interrupted")

// Runtime is one goja VM with the host surface installed.
type Runtime struct {
	config Config

	mu sync.Mutex
	vm *goja.Runtime

	consoleMu sync.Mutex
	console   []LogEntry
}

func New(config Config) (*Runtime, error) {
	r := &Runtime{config: config}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs script against env. It stops at the configured timeout or
// when ctx is done.
func (r *Runtime) Execute(ctx context.Context, script string, env Env) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, errors.New("runtime closed")
	}

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()

	r.installEnv(ctx, env)

	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)

	vm := r.vm
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt("timeout")
		case <-ctx.Done():
			vm.Interrupt("cancelled")
		case <-done:
		}
	}()

	start := time.Now()
	val, err := vm.RunString(script)
	result := &Result{Duration: time.Since(start)}

	r.consoleMu.Lock()
	result.Console = append([]LogEntry(nil), r.console...)
	r.consoleMu.Unlock()
	if env.Document != nil {
		result.DOMChanges = env.Document.Changes()
	}

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return result, fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
		}
		return result, err
	}

	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		result.Value = val.Export()
	}
	return result, nil
}

// Reset replaces the VM so no state survives into the next execution.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reset()
}

func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
	return nil
}

func (r *Runtime) reset() error {
	vm := goja.New()
	if r.config.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(r.config.MaxCallStack)
	}
	r.vm = vm

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()

	for _, name := range []string{"require", "process", "module", "exports", "fetch", "XMLHttpRequest"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = vm.Set("setTimeout", noop)
	_ = vm.Set("setInterval", noop)

	if r.config.EnableConsole {
		console := vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error"} {
			_ = console.Set(level, r.consoleFunc(level))
		}
		_ = vm.Set("console", console)
	}
	return nil
}

func (r *Runtime) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()
		return goja.Undefined()
	}
}

func (r *Runtime) installEnv(ctx context.Context, env Env) {
	vm := r.vm

	if env.Document != nil {
		_ = vm.Set("document", r.documentObject(env.Document))
	} else {
		_ = vm.Set("document", goja.Undefined())
	}

	_ = vm.Set("captureViewport", func() string {
		if env.Document == nil {
			return ""
		}
		html, err := env.Document.HTML()
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return html
	})

	if env.Storage != nil {
		_ = vm.Set("localStorage", storageObject(vm, env.Storage))
	} else {
		_ = vm.Set("localStorage", goja.Undefined())
	}

	bridgeCall := func(method string) func() bool {
		return func() bool {
			if env.Bridge == nil {
				return false
			}
			if _, err := env.Bridge.Call(ctx, method); err != nil {
				panic(vm.NewGoError(err))
			}
			return true
		}
	}
	_ = vm.Set("requestFullscreen", bridgeCall(MethodRequestFullscreen))
	_ = vm.Set("exitFullscreen", bridgeCall(MethodExitFullscreen))

	window := vm.NewObject()
	_ = window.Set("postMessage", func(message goja.Value, targetOrigin string) bool {
		if env.Bridge == nil {
			return false
		}
		if _, err := env.Bridge.Call(ctx, MethodPostMessage, message.Export(), targetOrigin); err != nil {
			panic(vm.NewGoError(err))
		}
		return true
	})
	_ = vm.Set("window", window)
}

func (r *Runtime) documentObject(doc *Document) *goja.Object {
	vm := r.vm
	obj := vm.NewObject()

	first := func(selector string) interface{} {
		elems := doc.Query(selector)
		if len(elems) == 0 {
			return nil
		}
		return elementProxy(elems[0])
	}

	_ = obj.Set("querySelector", first)
	_ = obj.Set("querySelectorAll", func(selector string) []interface{} {
		elems := doc.Query(selector)
		out := make([]interface{}, 0, len(elems))
		for _, e := range elems {
			out = append(out, elementProxy(e))
		}
		return out
	})
	_ = obj.Set("getElementById", func(id string) interface{} {
		return first("#" + id)
	})
	_ = obj.Set("getElementsByTagName", func(tag string) []interface{} {
		elems := doc.Query(tag)
		out := make([]interface{}, 0, len(elems))
		for _, e := range elems {
			out = append(out, elementProxy(e))
		}
		return out
	})
	_ = obj.DefineAccessorProperty("title",
		vm.ToValue(func() string { return doc.Title() }),
		vm.ToValue(func(title string) { doc.SetTitle(title) }),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	return obj
}

func elementProxy(e *Element) map[string]interface{} {
	return map[string]interface{}{
		"tagName":      e.TagName(),
		"id":           e.ID(),
		"className":    e.ClassName(),
		"textContent":  e.TextContent(),
		"getAttribute": e.GetAttribute,
		"setAttribute": e.SetAttribute,
		"setText":      e.SetText,
		"remove":       e.Remove,
	}
}

func storageObject(vm *goja.Runtime, s Storage) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("getItem", func(key string) interface{} {
		if v, ok := s.GetItem(key); ok {
			return v
		}
		return nil
	})
	_ = obj.Set("setItem", func(key, value string) { s.SetItem(key, value) })
	_ = obj.Set("removeItem", func(key string) { s.RemoveItem(key) })
	_ = obj.Set("clear", func() { s.Clear() })
	return obj
}
