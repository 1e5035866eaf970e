// Package worker provides the background execution context used for work that
// must stay off the interactive path.
package worker

import (
	"sync"

	"go.uber.org/zap"
)

// Background runs submitted tasks one at a time, in submission order, on a
// single goroutine. Submit never blocks on the queue.
type Background struct {
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	running bool
	done    chan struct{}
}

// NewBackground starts the executor goroutine.
func NewBackground(logger *zap.Logger) *Background {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Background{
		logger: logger,
		done:   make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.loop()
	return b
}

// Submit queues a task. The caller keeps no handle on it. Tasks submitted after
// Close still run, each on its own goroutine.
func (b *Background) Submit(task func()) {
	if task == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		go b.run(task)
		return
	}
	b.queue = append(b.queue, task)
	b.mu.Unlock()
	b.cond.Signal()
}

// Flush blocks until every task queued before the call has finished.
func (b *Background) Flush() {
	done := make(chan struct{})
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.queue = append(b.queue, func() { close(done) })
	b.mu.Unlock()
	b.cond.Signal()
	<-done
}

// Pending returns the number of queued tasks, including one in flight.
func (b *Background) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.queue)
	if b.running {
		n++
	}
	return n
}

// Close stops accepting queued work, drains what is already queued and waits
// for the executor goroutine to exit.
func (b *Background) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
	<-b.done
}

func (b *Background) loop() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			b.mu.Unlock()
			return
		}
		task := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.running = true
		b.mu.Unlock()

		b.run(task)

		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}
}

func (b *Background) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("background task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
