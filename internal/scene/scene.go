// Package scene holds the viewer's mutable world: the placed objects, the
// lights attached to the primary object, and the camera looking at them.
//
// Scene is written by the script goroutine and read by the render loop. Each
// component guards itself, so a frame never observes a half-applied mutation.
package scene

import (
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"

	"heliview/internal/camera"
	"heliview/internal/geom"
	"heliview/internal/mesh"
)

// IndexError reports a reference to an object or light that does not exist.
// Index is zero-based.
type IndexError struct {
	Kind  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s %d does not exist (%d present)", e.Kind, e.Index+1, e.Len)
}

// Scene composes the object store, light registry, camera and mesh library
// and enforces the rules that span them.
type Scene struct {
	Objects *Objects
	Lights  *Lights
	Camera  *camera.Camera
	meshes  *mesh.Library
	seq     atomic.Uint64
}

// New returns an empty scene whose meshes are read from fsys.
func New(fsys fs.FS, cam *camera.Camera) *Scene {
	return &Scene{
		Objects: NewObjects(),
		Lights:  NewLights(),
		Camera:  cam,
		meshes:  mesh.NewLibrary(fsys),
	}
}

// NextSeq returns a fresh write sequence number. Callers that defer a write
// take the number when the write is issued, not when it lands.
func (s *Scene) NextSeq() uint64 {
	return s.seq.Add(1)
}

// Mesh returns the shared mesh for path, loading it if needed.
func (s *Scene) Mesh(path string) (*mesh.Mesh, error) {
	return s.meshes.Get(path)
}

// Create loads meshPath and places a new object. It returns the new index.
// A new primary object becomes the centre of an anchored camera.
func (s *Scene) Create(meshPath string, a Attributes) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	m, err := s.meshes.Get(meshPath)
	if err != nil {
		return 0, err
	}
	i := s.Objects.Create(m, a, s.NextSeq())
	if i == 0 {
		if o, err := s.Objects.Get(0); err == nil {
			s.Camera.Retarget(o.Anchor())
		}
	}
	return i, nil
}

// Modify replaces the attributes of object index with a freshly stamped write.
func (s *Scene) Modify(index int, a Attributes) error {
	_, err := s.ModifyAt(s.NextSeq(), index, a)
	return err
}

// ModifyAt replaces the attributes of object index as write seq. Moving the
// primary object while the camera is anchored re-centres the orbit on it.
func (s *Scene) ModifyAt(seq uint64, index int, a Attributes) (applied bool, err error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	applied, err = s.Objects.Modify(index, a, seq)
	if err != nil || !applied {
		return applied, err
	}
	if index == 0 {
		if o, err := s.Objects.Get(0); err == nil {
			s.Camera.Retarget(o.Anchor())
		}
	}
	return true, nil
}

// SetLabelVisible shows or hides an object's label.
func (s *Scene) SetLabelVisible(index int, visible bool) error {
	return s.Objects.SetLabelVisible(index, visible)
}

// AddLight attaches a light to the primary object's frame.
func (s *Scene) AddLight(pos geom.Vec3, c geom.Color) (int, error) {
	if !pos.Finite() {
		return 0, fmt.Errorf("light position is not finite")
	}
	return s.Lights.Add(pos, c, s.NextSeq()), nil
}

// RecolorLight changes a light's colour with a freshly stamped write.
func (s *Scene) RecolorLight(index int, c geom.Color) error {
	_, err := s.RecolorLightAt(s.NextSeq(), index, c)
	return err
}

// RecolorLightAt changes a light's colour as write seq.
func (s *Scene) RecolorLightAt(seq uint64, index int, c geom.Color) (bool, error) {
	return s.Lights.Recolor(index, c, seq)
}

// Primary returns the primary object, if one exists.
func (s *Scene) Primary() (Object, bool) {
	o, err := s.Objects.Get(0)
	return o, err == nil
}

func (s *Scene) anchor() *geom.Vec3 {
	o, ok := s.Primary()
	if !ok {
		return nil
	}
	a := o.Anchor()
	return &a
}

// SetCamera applies a camera request. Entering AnchoredOrbit without a
// primary object is an IndexError.
func (s *Scene) SetCamera(req camera.Request) error {
	err := s.Camera.Apply(req, s.anchor())
	if errors.Is(err, camera.ErrNoAnchor) {
		return &IndexError{Kind: "object", Index: 0, Len: 0}
	}
	return err
}

// ToggleOrbit swaps between AnchoredOrbit and Free.
func (s *Scene) ToggleOrbit() error {
	err := s.Camera.ToggleOrbit(s.anchor())
	if errors.Is(err, camera.ErrNoAnchor) {
		return &IndexError{Kind: "object", Index: 0, Len: 0}
	}
	return err
}

// Wipe clears objects and lights. The camera keeps its pose; an anchored
// camera keeps orbiting the old centre until a new primary is created.
func (s *Scene) Wipe() {
	s.Objects.Wipe()
	s.Lights.Clear()
}

// ClosestPrimaryVertex returns the primary mesh vertex nearest p, in the
// primary object's local frame.
func (s *Scene) ClosestPrimaryVertex(p geom.Vec3) (geom.Vec3, bool) {
	o, ok := s.Primary()
	if !ok || o.Mesh == nil {
		return geom.Vec3{}, false
	}
	return o.Mesh.FindClosestVertex(p)
}

// Frame is everything the renderer needs for one frame.
type Frame struct {
	View    geom.Mat4
	Camera  camera.State
	Objects []Object
	Lights  []Light
}

// Frame snapshots the scene for drawing.
func (s *Scene) Frame() Frame {
	st := s.Camera.State()
	return Frame{
		View:    camera.ViewMatrix(st),
		Camera:  st,
		Objects: s.Objects.Snapshot(),
		Lights:  s.Lights.Snapshot(),
	}
}

// LightModel returns the transform that places lights in the primary object's
// frame: its translation and its X and Y rotation. Without a primary object
// lights sit in world space.
func (f Frame) LightModel() geom.Mat4 {
	if len(f.Objects) == 0 {
		return geom.Identity()
	}
	a := f.Objects[0].Attributes
	return geom.Translate(a.Position).
		Mul(geom.RotateX(a.Rotation.X)).
		Mul(geom.RotateY(a.Rotation.Y))
}
