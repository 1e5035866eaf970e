package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		calls    []func() error
		want     State
	}{
		{
			name:  "stays closed on successes",
			calls: []func() error{ok, ok, ok},
			want:  StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
			},
			calls: []func() error{fail, fail, fail},
			want:  StateOpen,
		},
		{
			name: "success resets the streak",
			settings: Settings{
				ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
			},
			calls: []func() error{fail, ok, fail},
			want:  StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", tt.settings)
			for _, call := range tt.calls {
				_ = b.Execute(call)
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b := New("test", Settings{
		Timeout:     time.Minute,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	assert.ErrorIs(t, b.Execute(fail), errBoom)
	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	var transitions []string
	b := New("host", Settings{
		MaxRequests: 1,
		Timeout:     time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = func() time.Time { return now }

	_ = b.Execute(fail)
	require.Equal(t, StateOpen, b.State())

	now = now.Add(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ok))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerIgnoredErrorsDoNotTrip(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	notFound := errors.New("404")

	err := b.Execute(func() error { return notFound }, func(err error) bool { return errors.Is(err, notFound) })
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().TotalSuccesses)
}

func TestBreakerRecoversFromPanic(t *testing.T) {
	b := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	assert.Panics(t, func() {
		_ = b.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestGroupIsolatesKeys(t *testing.T) {
	g := NewGroup(Settings{
		Timeout:     time.Minute,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	_ = g.Get("down.example").Execute(fail)

	assert.Same(t, g.Get("down.example"), g.Get("down.example"))
	assert.Equal(t, StateOpen, g.Get("down.example").State())
	assert.Equal(t, StateClosed, g.Get("up.example").State())
	assert.Equal(t, map[string]State{"down.example": StateOpen}, g.States())

	g.Reset()
	assert.Empty(t, g.States())
}
