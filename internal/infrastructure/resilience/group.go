package resilience

import "sync"

// Group hands out one breaker per key, so a failing host cannot trip loads
// of healthy ones.
type Group struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewGroup(settings Settings) *Group {
	return &Group{
		settings: settings,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use.
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[key]
	if !ok {
		b = New(key, g.settings)
		g.breakers[key] = b
	}
	return b
}

// States reports every known breaker that is not closed.
func (g *Group) States() map[string]State {
	g.mu.Lock()
	breakers := make([]*Breaker, 0, len(g.breakers))
	for _, b := range g.breakers {
		breakers = append(breakers, b)
	}
	g.mu.Unlock()

	out := make(map[string]State)
	for _, b := range breakers {
		if s := b.State(); s != StateClosed {
			out[b.Name()] = s
		}
	}
	return out
}

// Reset forgets every breaker.
func (g *Group) Reset() {
	g.mu.Lock()
	g.breakers = make(map[string]*Breaker)
	g.mu.Unlock()
}
