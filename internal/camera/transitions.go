package camera

import "heliview/internal/geom"

type edge struct {
	from, to Mode
}

// transitionFunc mutates c.s on a mode change. The caller holds c.mu.
type transitionFunc func(c *Camera, to Mode, anchor *geom.Vec3) error

// transitions holds every (current, requested) pair. Pairs mapping to
// stayPut leave the state as is.
var transitions = map[edge]transitionFunc{
	{Free, Free}:                   stayPut,
	{Free, Pan}:                    switchMode,
	{Free, AnchoredOrbit}:          enterOrbit,
	{Pan, Pan}:                     stayPut,
	{Pan, Free}:                    switchMode,
	{Pan, AnchoredOrbit}:           enterOrbit,
	{AnchoredOrbit, AnchoredOrbit}: stayPut,
	{AnchoredOrbit, Free}:          exitOrbit,
	{AnchoredOrbit, Pan}:           exitOrbit,
}

func (c *Camera) transition(to Mode, anchor *geom.Vec3) error {
	fn, ok := transitions[edge{c.s.Mode, to}]
	if !ok {
		return nil
	}
	return fn(c, to, anchor)
}

func stayPut(*Camera, Mode, *geom.Vec3) error {
	return nil
}

func switchMode(c *Camera, to Mode, _ *geom.Vec3) error {
	c.s.Mode = to
	return nil
}

// enterOrbit saves the free pose and parks the camera Standoff units in front
// of the origin, with the orbit offset moving the primary's centre there.
func enterOrbit(c *Camera, _ Mode, anchor *geom.Vec3) error {
	if anchor == nil {
		return ErrNoAnchor
	}
	s := &c.s
	s.SavedPosition = s.WorldPosition
	s.SavedAngles = s.WorldAngles
	s.WorldPosition = geom.V3(0, 0, -c.cfg.Standoff)
	s.WorldAngles = geom.Angles{}
	s.OrbitOffset = anchor.Neg()
	s.OrbitAngles = geom.Angles{}
	s.Mode = AnchoredOrbit
	return nil
}

func exitOrbit(c *Camera, to Mode, _ *geom.Vec3) error {
	s := &c.s
	s.WorldPosition = s.SavedPosition.Add(geom.V3(0, 0, c.cfg.Standoff))
	s.WorldAngles = s.SavedAngles
	s.ZCorrection = zCorrection(s.WorldAngles.Yaw)
	s.OrbitOffset = geom.Vec3{}
	s.OrbitAngles = geom.Angles{}
	s.Mode = to
	return nil
}
