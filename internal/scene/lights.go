package scene

import (
	"sync"

	"github.com/jinzhu/copier"

	"heliview/internal/geom"
)

// Light is a point light. Position is in the primary object's local frame.
type Light struct {
	Position geom.Vec3
	Color    geom.Color
	Seq      uint64
}

// Lights is the ordered light registry.
type Lights struct {
	mu     sync.RWMutex
	lights []Light
}

// NewLights returns an empty registry.
func NewLights() *Lights {
	return &Lights{}
}

// Add appends a light and returns its index.
func (l *Lights) Add(pos geom.Vec3, c geom.Color, seq uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lights = append(l.lights, Light{Position: pos, Color: c, Seq: seq})
	return len(l.lights) - 1
}

// Recolor replaces the colour of the light at index and keeps its position.
// Stale writes are dropped as in Objects.Modify.
func (l *Lights) Recolor(index int, c geom.Color, seq uint64) (applied bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.lights) {
		return false, &IndexError{Kind: "light", Index: index, Len: len(l.lights)}
	}
	lt := &l.lights[index]
	if seq < lt.Seq {
		return false, nil
	}
	lt.Color = c
	lt.Seq = seq
	return true, nil
}

// Get returns a copy of the light at index.
func (l *Lights) Get(index int) (Light, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.lights) {
		return Light{}, &IndexError{Kind: "light", Index: index, Len: len(l.lights)}
	}
	return l.lights[index], nil
}

// Len returns the number of lights.
func (l *Lights) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lights)
}

// Clear removes every light.
func (l *Lights) Clear() {
	l.mu.Lock()
	l.lights = nil
	l.mu.Unlock()
}

// Snapshot returns a copy of the registry's contents.
func (l *Lights) Snapshot() []Light {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Light, 0, len(l.lights))
	if err := copier.Copy(&out, l.lights); err != nil {
		out = append(out[:0], l.lights...)
	}
	return out
}
