package usecase

import (
	"sync"

	"chatline/internal/domain"
)

// SendGuard allows at most one in-flight send per session. Unlike a lock it
// never waits: a second send is refused while the first is streaming.
type SendGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewSendGuard creates an empty guard.
func NewSendGuard() *SendGuard {
	return &SendGuard{inflight: make(map[string]struct{})}
}

// TryAcquire marks sessionID busy. It returns domain.ErrSendInFlight when a
// send for the session is already running. The release function is safe to
// call more than once.
func (g *SendGuard) TryAcquire(sessionID string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[sessionID]; busy {
		return nil, domain.ErrSendInFlight
	}
	g.inflight[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, sessionID)
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports whether a send for sessionID is in flight.
func (g *SendGuard) Busy(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inflight[sessionID]
	return busy
}

// ActiveCount returns the number of sessions with a send in flight.
func (g *SendGuard) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
