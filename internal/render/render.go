// Package render draws scene frames with raylib.
//
// Drawing happens in view space: the raylib camera sits at the origin looking
// down -Z and every position is first taken through the frame's view
// transform, so the camera state machine alone decides what is on screen.
package render

import (
	"github.com/chewxy/math32"
	rl "github.com/gen2brain/raylib-go/raylib"

	"heliview/internal/geom"
	"heliview/internal/render/lighting"
	"heliview/internal/scene"
)

const (
	groundY       = -1
	groundSize    = 60
	gridSlices    = 30
	gridSpacing   = 2
	markerRadius  = 0.15
	labelFontSize = 18
)

var (
	groundColor = rl.NewColor(28, 32, 38, 255)
	labelColor  = rl.NewColor(230, 230, 230, 255)
)

// cached holds a generated mesh and its material. Created lazily on first
// Draw so GPU resources are allocated after the window exists.
type cached struct {
	mesh rl.Mesh
	mtl  rl.Material
}

// Renderer draws scene.Frame values. It must be used on the window goroutine.
type Renderer struct {
	cache map[string]cached
	cam   rl.Camera3D
	// Grid draws reference lines over the ground plane.
	Grid bool
}

// New returns a renderer with a 60 degree perspective camera.
func New(grid bool) *Renderer {
	return &Renderer{
		cache: make(map[string]cached),
		cam: rl.Camera3D{
			Position:   rl.NewVector3(0, 0, 0),
			Target:     rl.NewVector3(0, 0, -1),
			Up:         rl.NewVector3(0, 1, 0),
			Fovy:       60,
			Projection: rl.CameraPerspective,
		},
		Grid: grid,
	}
}

func (r *Renderer) ensure(key string) cached {
	if c, ok := r.cache[key]; ok {
		return c
	}
	var mesh rl.Mesh
	switch key {
	case "marker":
		mesh = rl.GenMeshSphere(markerRadius, 12, 12)
	case "ground":
		mesh = rl.GenMeshPlane(groundSize, groundSize, 1, 1)
	}
	c := cached{mesh: mesh, mtl: rl.LoadMaterialDefault()}
	r.cache[key] = c
	return c
}

func (r *Renderer) drawCached(key string, transform geom.Mat4, col rl.Color) {
	c := r.ensure(key)
	if albedo := c.mtl.GetMap(rl.MapAlbedo); albedo != nil {
		albedo.Color = col
	}
	rl.DrawMesh(c.mesh, c.mtl, toMatrix(transform))
}

// Unload frees the cached GPU meshes. Call before the window closes.
func (r *Renderer) Unload() {
	for key, c := range r.cache {
		rl.UnloadMesh(&c.mesh)
		rl.UnloadMaterial(c.mtl)
		delete(r.cache, key)
	}
}

// Draw renders f: ground, objects, light markers, then labels on top.
// Call between BeginDrawing and EndDrawing.
func (r *Renderer) Draw(f scene.Frame) {
	lights := lighting.WorldLights(f)

	rl.BeginMode3D(r.cam)
	ground := f.View.Mul(geom.Translate(geom.V3(0, groundY, 0)))
	r.drawCached("ground", ground, groundColor)
	if r.Grid {
		rl.PushMatrix()
		m := ground.Float32()
		rl.MultMatrixf(m[:])
		rl.DrawGrid(gridSlices, gridSpacing)
		rl.PopMatrix()
	}
	for _, o := range f.Objects {
		drawObject(f.View, o, lights)
	}
	lightModel := f.View.Mul(f.LightModel())
	for _, l := range f.Lights {
		at := lightModel.MulPoint(l.Position)
		r.drawCached("marker", geom.Translate(at), rl.NewColor(l.Color.R, l.Color.G, l.Color.B, 255))
	}
	rl.EndMode3D()

	for _, o := range f.Objects {
		if !o.LabelVisible || o.Attributes.Label == "" {
			continue
		}
		at := f.View.Mul(o.Model()).MulPoint(geom.Vec3{})
		if at.Z >= 0 {
			continue
		}
		p := rl.GetWorldToScreen(rl.NewVector3(float32(at.X), float32(at.Y), float32(at.Z)), r.cam)
		rl.DrawText(o.Attributes.Label, int32(p.X), int32(p.Y), labelFontSize, labelColor)
	}
}

func drawObject(view geom.Mat4, o scene.Object, lights []lighting.Point) {
	if o.Mesh == nil {
		return
	}
	model := o.Model()
	alpha := uint8(math32.Round(math32.Min(1, math32.Max(0, float32(o.Attributes.Opacity))) * 255))
	m := view.Mul(model).Float32()

	rl.PushMatrix()
	rl.MultMatrixf(m[:])
	rl.Begin(rl.Triangles)
	o.Mesh.Triangles(func(a, b, c geom.Vec3) {
		col := lighting.Shade(o.Attributes.Color, model, a, b, c, lights)
		rl.Color4ub(col.R, col.G, col.B, alpha)
		rl.Vertex3f(float32(a.X), float32(a.Y), float32(a.Z))
		rl.Vertex3f(float32(b.X), float32(b.Y), float32(b.Z))
		rl.Vertex3f(float32(c.X), float32(c.Y), float32(c.Z))
	})
	rl.End()
	rl.PopMatrix()
}

func toMatrix(m geom.Mat4) rl.Matrix {
	f := m.Float32()
	return rl.Matrix{
		M0: f[0], M1: f[1], M2: f[2], M3: f[3],
		M4: f[4], M5: f[5], M6: f[6], M7: f[7],
		M8: f[8], M9: f[9], M10: f[10], M11: f[11],
		M12: f[12], M13: f[13], M14: f[14], M15: f[15],
	}
}
