package scene

import (
	"fmt"
	"sync"

	"github.com/jinzhu/copier"

	"heliview/internal/geom"
	"heliview/internal/mesh"
)

// Attributes is the full set of per-object fields a CREATE or MODIFY supplies.
type Attributes struct {
	Position geom.Vec3
	Color    geom.Color
	// Rotation holds degrees about X, Y and Z, applied in that order.
	Rotation geom.Vec3
	Opacity  float64
	Label    string
}

// Validate checks the fields a caller can get wrong.
func (a Attributes) Validate() error {
	if !a.Position.Finite() {
		return fmt.Errorf("position is not finite")
	}
	if !a.Rotation.Finite() {
		return fmt.Errorf("rotation is not finite")
	}
	if !(a.Opacity >= 0 && a.Opacity <= 1) {
		return fmt.Errorf("opacity %v outside [0,1]", a.Opacity)
	}
	return nil
}

// Object is a placed mesh instance. Index 0 in the store is the primary
// object.
type Object struct {
	Mesh         *mesh.Mesh
	Attributes   Attributes
	LabelVisible bool
	// Seq is the sequence number of the last write that landed.
	Seq uint64
}

// Model returns the object's local transform: translation, then rotation
// about X, Y and Z.
func (o Object) Model() geom.Mat4 {
	a := o.Attributes
	return geom.Translate(a.Position).
		Mul(geom.RotateX(a.Rotation.X)).
		Mul(geom.RotateY(a.Rotation.Y)).
		Mul(geom.RotateZ(a.Rotation.Z))
}

// Anchor returns the object's centre in scene space: its mesh centroid
// offset by its position.
func (o Object) Anchor() geom.Vec3 {
	var c geom.Vec3
	if o.Mesh != nil {
		c = o.Mesh.Centroid
	}
	return c.Add(o.Attributes.Position)
}

// Objects is the ordered scene object store. Every mutation holds the write
// lock for its own duration only; readers get copies.
type Objects struct {
	mu      sync.RWMutex
	objects []Object
}

// NewObjects returns an empty store.
func NewObjects() *Objects {
	return &Objects{}
}

// Create appends an object and returns its index. Labels start visible.
func (s *Objects) Create(m *mesh.Mesh, a Attributes, seq uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, Object{Mesh: m, Attributes: a, LabelVisible: true, Seq: seq})
	return len(s.objects) - 1
}

// Modify replaces the attributes of the object at index. A write whose seq is
// older than the object's last write is dropped and reported with applied
// false, so racing modifications resolve to the latest command.
func (s *Objects) Modify(index int, a Attributes, seq uint64) (applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.objects) {
		return false, &IndexError{Kind: "object", Index: index, Len: len(s.objects)}
	}
	o := &s.objects[index]
	if seq < o.Seq {
		return false, nil
	}
	o.Attributes = a
	o.Seq = seq
	return true, nil
}

// SetLabelVisible shows or hides the label of the object at index.
func (s *Objects) SetLabelVisible(index int, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.objects) {
		return &IndexError{Kind: "object", Index: index, Len: len(s.objects)}
	}
	s.objects[index].LabelVisible = visible
	return nil
}

// Get returns a copy of the object at index.
func (s *Objects) Get(index int) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.objects) {
		return Object{}, &IndexError{Kind: "object", Index: index, Len: len(s.objects)}
	}
	return s.objects[index], nil
}

// Len returns the number of objects.
func (s *Objects) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Wipe removes every object.
func (s *Objects) Wipe() {
	s.mu.Lock()
	s.objects = nil
	s.mu.Unlock()
}

// Snapshot returns a copy of the store's contents. Meshes stay shared.
func (s *Objects) Snapshot() []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Object, 0, len(s.objects))
	if err := copier.Copy(&out, s.objects); err != nil {
		out = append(out[:0], s.objects...)
	}
	return out
}
