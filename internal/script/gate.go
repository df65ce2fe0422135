package script

import "sync"

// gate is the pause switch. Waiters read the state together with a channel
// that is closed on the next change, so nobody polls.
type gate struct {
	mu      sync.Mutex
	paused  bool
	changed chan struct{}
}

func newGate() *gate {
	return &gate{changed: make(chan struct{})}
}

func (g *gate) state() (paused bool, changed <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused, g.changed
}

func (g *gate) set(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused == paused {
		return
	}
	g.paused = paused
	close(g.changed)
	g.changed = make(chan struct{})
}

func (g *gate) toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = !g.paused
	close(g.changed)
	g.changed = make(chan struct{})
	return g.paused
}
