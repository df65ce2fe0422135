// Package mesh loads polygon meshes from the line-oriented subset of the
// Wavefront OBJ format used by the viewer's model files.
package mesh

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"heliview/internal/geom"
)

// Mesh is an immutable polygon mesh. Faces hold zero-based vertex indices,
// three or four per face.
type Mesh struct {
	Path     string
	Vertices []geom.Vec3
	Faces    [][]int
	Centroid geom.Vec3
}

// ParseError reports a malformed mesh line. Line is 1-based; 0 means the error
// is not tied to a single line.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("mesh %s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("mesh %s: %s", e.Path, e.Msg)
}

// Load reads and parses the mesh at path in fsys.
func Load(fsys fs.FS, path string) (*Mesh, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads a mesh from r. name is used in errors and stored as Path.
// Lines other than "v" and "f" records are ignored.
func Parse(r io.Reader, name string) (*Mesh, error) {
	m := &Mesh{Path: name}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			v, err := parseVertex(fields[1:])
			if err != nil {
				return nil, &ParseError{Path: name, Line: lineNo, Msg: err.Error()}
			}
			m.Vertices = append(m.Vertices, v)
		case "f":
			face, err := parseFace(fields[1:], len(m.Vertices))
			if err != nil {
				return nil, &ParseError{Path: name, Line: lineNo, Msg: err.Error()}
			}
			m.Faces = append(m.Faces, face)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	m.Centroid = centroid(m.Vertices)
	return m, nil
}

func parseVertex(fields []string) (geom.Vec3, error) {
	if len(fields) < 3 {
		return geom.Vec3{}, fmt.Errorf("vertex needs 3 coordinates, got %d", len(fields))
	}
	var xyz [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("vertex coordinate %q: not a number", fields[i])
		}
		xyz[i] = f
	}
	v := geom.V3(xyz[0], xyz[1], xyz[2])
	if !v.Finite() {
		return geom.Vec3{}, fmt.Errorf("vertex coordinate is not finite")
	}
	return v, nil
}

// parseFace resolves "i", "i/t", "i/t/n" and "i//n" tokens against the
// nVerts vertices read so far. Negative indices count back from the last one.
func parseFace(fields []string, nVerts int) ([]int, error) {
	if len(fields) != 3 && len(fields) != 4 {
		return nil, fmt.Errorf("face must have 3 or 4 vertices, got %d", len(fields))
	}
	face := make([]int, 0, len(fields))
	for _, tok := range fields {
		if i := strings.IndexByte(tok, '/'); i >= 0 {
			tok = tok[:i]
		}
		idx, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("face index %q: not an integer", tok)
		}
		switch {
		case idx > 0:
			idx--
		case idx < 0:
			idx += nVerts
		default:
			return nil, fmt.Errorf("face index 0 is invalid (indices are 1-based)")
		}
		if idx < 0 || idx >= nVerts {
			return nil, fmt.Errorf("face index %s out of range (%d vertices)", tok, nVerts)
		}
		face = append(face, idx)
	}
	return face, nil
}

func centroid(vs []geom.Vec3) geom.Vec3 {
	if len(vs) == 0 {
		return geom.Vec3{}
	}
	var sum geom.Vec3
	for _, v := range vs {
		sum = sum.Add(v)
	}
	n := float64(len(vs))
	return geom.V3(sum.X/n, sum.Y/n, sum.Z/n)
}

// FindClosestVertex returns the vertex nearest to p. Ties go to the vertex
// that appears first in the file. ok is false when the mesh has no vertices.
func (m *Mesh) FindClosestVertex(p geom.Vec3) (v geom.Vec3, ok bool) {
	best := -1.0
	for _, cand := range m.Vertices {
		d := cand.Dist(p)
		if !ok || d < best {
			v, best, ok = cand, d, true
		}
	}
	return v, ok
}

// Triangles calls fn for each triangle of the mesh; quads are split along
// their first diagonal.
func (m *Mesh) Triangles(fn func(a, b, c geom.Vec3)) {
	for _, f := range m.Faces {
		fn(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
		if len(f) == 4 {
			fn(m.Vertices[f[0]], m.Vertices[f[2]], m.Vertices[f[3]])
		}
	}
}
