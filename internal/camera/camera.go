// Package camera implements the viewer camera: a three-mode state machine
// (Free, Pan, AnchoredOrbit) and the view transform it produces.
package camera

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"heliview/internal/geom"
)

// Mode is the active camera mode.
type Mode int

const (
	// Free rotates and translates the camera in world space.
	Free Mode = iota
	// Pan keeps the orientation and turns pointer drags into translation.
	Pan
	// AnchoredOrbit parks the camera in front of the primary object; input
	// rotates the object about its own centroid.
	AnchoredOrbit
)

func (m Mode) String() string {
	switch m {
	case Free:
		return "free"
	case Pan:
		return "pan"
	case AnchoredOrbit:
		return "orbit"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is one of the three modes.
func (m Mode) Valid() bool {
	return m >= Free && m <= AnchoredOrbit
}

// ErrNoAnchor is returned when a transition into AnchoredOrbit has no primary
// object to anchor on.
var ErrNoAnchor = errors.New("camera: anchored orbit needs a primary object")

// Settings are the fixed distances and rates of the camera.
type Settings struct {
	// Standoff is the distance the camera is pushed back along Z when entering
	// and leaving AnchoredOrbit.
	Standoff float64
	// InitialDistance places the camera at (0, 0, -InitialDistance) on start.
	InitialDistance float64
	// PanSensitivity converts pointer pixels into world units in Pan mode.
	PanSensitivity float64
}

// DefaultSettings returns the settings the viewer ships with.
func DefaultSettings() Settings {
	return Settings{Standoff: 20, InitialDistance: 10, PanSensitivity: 0.03}
}

// State is a snapshot of the camera.
type State struct {
	Mode          Mode
	WorldPosition geom.Vec3
	WorldAngles   geom.Angles
	OrbitAngles   geom.Angles
	OrbitOffset   geom.Vec3
	SavedPosition geom.Vec3
	SavedAngles   geom.Angles
	// ZCorrection is -1 while the yaw faces backwards (90..270 degrees) so
	// Pan translation follows the visual forward axis.
	ZCorrection float64
}

// Request asks for a mode and the fields that mode drives. Angles are world
// angles for Free and Pan and orbit angles for AnchoredOrbit. Position is only
// used for Free and Pan.
type Request struct {
	Mode     Mode
	Angles   geom.Angles
	Position geom.Vec3
}

// Camera is safe for concurrent use: the script goroutine applies requests
// while the render loop reads the transform.
type Camera struct {
	mu  sync.RWMutex
	cfg Settings
	s   State
}

// New returns a camera in Free mode at (0, 0, -InitialDistance).
func New(cfg Settings) *Camera {
	c := &Camera{cfg: cfg}
	c.s = c.initial()
	return c
}

func (c *Camera) initial() State {
	return State{
		Mode:          Free,
		WorldPosition: geom.V3(0, 0, -c.cfg.InitialDistance),
		ZCorrection:   1,
	}
}

// Settings returns the camera's fixed settings.
func (c *Camera) Settings() Settings {
	return c.cfg
}

// State returns a copy of the current state.
func (c *Camera) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s
}

// Mode returns the active mode.
func (c *Camera) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Mode
}

// Reset returns the camera to its start-up state.
func (c *Camera) Reset() {
	c.mu.Lock()
	c.s = c.initial()
	c.mu.Unlock()
}

// Apply moves the camera into req.Mode, running the transition for the
// current and requested modes first, then sets the requested fields. anchor is
// the primary object's world-space centre (mesh centroid plus position); it may
// be nil unless the request enters AnchoredOrbit.
func (c *Camera) Apply(req Request, anchor *geom.Vec3) error {
	if !req.Mode.Valid() {
		return fmt.Errorf("camera: unknown mode %d", int(req.Mode))
	}
	if !req.Angles.Finite() || !req.Position.Finite() {
		return fmt.Errorf("camera: non-finite request")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transition(req.Mode, anchor); err != nil {
		return err
	}
	if req.Mode == AnchoredOrbit {
		c.s.OrbitAngles = req.Angles
		return nil
	}
	c.s.WorldPosition = req.Position
	c.s.WorldAngles = req.Angles
	c.s.ZCorrection = zCorrection(req.Angles.Yaw)
	return nil
}

// ToggleOrbit enters AnchoredOrbit from Free or Pan, or returns to Free.
func (c *Camera) ToggleOrbit(anchor *geom.Vec3) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	to := AnchoredOrbit
	if c.s.Mode == AnchoredOrbit {
		to = Free
	}
	return c.transition(to, anchor)
}

// ToggleFreePan swaps Free and Pan. It does nothing in AnchoredOrbit.
func (c *Camera) ToggleFreePan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.s.Mode {
	case Free:
		c.s.Mode = Pan
	case Pan:
		c.s.Mode = Free
	}
}

// Retarget re-centres the orbit on a moved primary object. It is a no-op
// outside AnchoredOrbit.
func (c *Camera) Retarget(anchor geom.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.Mode == AnchoredOrbit {
		c.s.OrbitOffset = anchor.Neg()
	}
}

// Drag applies a pointer drag of (dx, dy) pixels in the current mode.
func (c *Camera) Drag(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.s
	switch s.Mode {
	case Free:
		s.WorldAngles.Pitch += dy
		s.WorldAngles.Yaw += dx
		s.ZCorrection = zCorrection(s.WorldAngles.Yaw)
	case Pan:
		k := c.cfg.PanSensitivity
		sinP, cosP := math.Sincos(geom.Radians(s.WorldAngles.Pitch))
		sinY, cosY := math.Sincos(geom.Radians(s.WorldAngles.Yaw))
		s.WorldPosition.X += dx*k*cosY - dy*k*sinP*sinY
		s.WorldPosition.Y -= dy * k * cosP
		s.WorldPosition.Z -= -dx*k*sinY - dy*s.ZCorrection*k*sinP*sinP
	case AnchoredOrbit:
		s.OrbitAngles.Pitch += dy
		s.OrbitAngles.Yaw += dx
	}
}

// Transform returns the view transform, outermost first: world rotation,
// world translation, orbit rotation, orbit translation. Object model matrices
// are multiplied on the right of it.
func (c *Camera) Transform() geom.Mat4 {
	c.mu.RLock()
	s := c.s
	c.mu.RUnlock()
	return ViewMatrix(s)
}

// ViewMatrix builds the view transform for s.
func ViewMatrix(s State) geom.Mat4 {
	return geom.RotateX(s.WorldAngles.Pitch).
		Mul(geom.RotateY(s.WorldAngles.Yaw)).
		Mul(geom.Translate(s.WorldPosition)).
		Mul(geom.RotateX(s.OrbitAngles.Pitch)).
		Mul(geom.RotateY(s.OrbitAngles.Yaw)).
		Mul(geom.Translate(s.OrbitOffset))
}

func zCorrection(yaw float64) float64 {
	y := geom.NormalizeDegrees(yaw)
	if y > 90 && y < 270 {
		return -1
	}
	return 1
}
