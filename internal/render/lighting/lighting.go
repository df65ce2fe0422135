// Package lighting computes flat per-face colours from the scene's point lights.
package lighting

import (
	"github.com/chewxy/math32"

	"heliview/internal/geom"
	"heliview/internal/scene"
)

const (
	// Ambient is the share of an object's colour visible with no light on it.
	Ambient = float32(0.3)
	diffuse = float32(0.7)
)

// Point is a light in world space.
type Point struct {
	Pos   [3]float32
	Color geom.Color
}

// WorldLights places the frame's lights in world space. Lights are stored
// in the primary object's frame and follow its position and X/Y rotation.
func WorldLights(f scene.Frame) []Point {
	if len(f.Lights) == 0 {
		return nil
	}
	m := f.LightModel()
	out := make([]Point, len(f.Lights))
	for i, l := range f.Lights {
		out[i] = Point{Pos: vec32(m.MulPoint(l.Position)), Color: l.Color}
	}
	return out
}

// Shade returns the colour of triangle a, b, c (in model space) of an object
// with the given model transform and base colour. Faces are lit from both
// sides. With no lights the base colour is returned unchanged.
func Shade(base geom.Color, model geom.Mat4, a, b, c geom.Vec3, lights []Point) geom.Color {
	if len(lights) == 0 {
		return base
	}
	wa, wb, wc := vec32(model.MulPoint(a)), vec32(model.MulPoint(b)), vec32(model.MulPoint(c))
	n, ok := normalize(cross(sub(wb, wa), sub(wc, wa)))
	if !ok {
		return base
	}
	centre := [3]float32{(wa[0] + wb[0] + wc[0]) / 3, (wa[1] + wb[1] + wc[1]) / 3, (wa[2] + wb[2] + wc[2]) / 3}

	k := [3]float32{Ambient, Ambient, Ambient}
	for _, l := range lights {
		dir, ok := normalize(sub(l.Pos, centre))
		if !ok {
			continue
		}
		lambert := math32.Abs(dot(n, dir)) * diffuse
		k[0] += lambert * float32(l.Color.R) / 255
		k[1] += lambert * float32(l.Color.G) / 255
		k[2] += lambert * float32(l.Color.B) / 255
	}
	return geom.RGB(scale(base.R, k[0]), scale(base.G, k[1]), scale(base.B, k[2]))
}

func scale(c uint8, k float32) uint8 {
	return uint8(math32.Min(255, math32.Round(float32(c)*k)))
}

func vec32(v geom.Vec3) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize(v [3]float32) ([3]float32, bool) {
	l := math32.Sqrt(dot(v, v))
	if l == 0 || math32.IsNaN(l) {
		return v, false
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}, true
}
