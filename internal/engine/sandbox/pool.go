package sandbox

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("sandbox pool is closed")

// Pool lends out reusable runtimes.
type Pool struct {
	config   Config
	size     int
	runtimes chan *Runtime
	mu       sync.RWMutex
	closed   bool
}

func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	p := &Pool{
		config:   config,
		size:     size,
		runtimes: make(chan *Runtime, size),
	}
	for i := 0; i < size; i++ {
		rt, err := New(config)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.runtimes <- rt
	}
	return p, nil
}

// Acquire waits for a free runtime or for ctx to end.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case rt, ok := <-p.runtimes:
		if !ok {
			return nil, ErrPoolClosed
		}
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release resets rt and returns it to the pool.
func (p *Pool) Release(rt *Runtime) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		_ = rt.Close()
		return
	}
	if err := rt.Reset(); err != nil {
		_ = rt.Close()
		fresh, err := New(p.config)
		if err != nil {
			return
		}
		rt = fresh
	}
	select {
	case p.runtimes <- rt:
	default:
		_ = rt.Close()
	}
}

func (p *Pool) Execute(ctx context.Context, script string, env Env) (*Result, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(rt)
	return rt.Execute(ctx, script, env)
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.runtimes)
	for rt := range p.runtimes {
		_ = rt.Close()
	}
	return nil
}

type Stats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	Closed    bool `json:"closed"`
}

func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{Size: p.size, Available: len(p.runtimes), Closed: p.closed}
}
