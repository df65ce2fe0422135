package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"heliview/internal/camera"
	"heliview/internal/geom"
	"heliview/internal/scene"
)

// Kind identifies a script command.
type Kind int

const (
	Create Kind = iota + 1
	Modify
	AddLight
	ModifyLight
	SetLabel
	SetCamera
	RestartFile
	NewFile
)

var kindNames = map[string]Kind{
	"CREATE":       Create,
	"MODIFY":       Modify,
	"ADD_LIGHT":    AddLight,
	"MODIFY_LIGHT": ModifyLight,
	"SET_LABEL":    SetLabel,
	"SET_CAMERA":   SetCamera,
	"RESTART_FILE": RestartFile,
	"NEW_FILE":     NewFile,
}

func (k Kind) String() string {
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ErrMalformedScript is returned when a top-level script does not open with CREATE.
var ErrMalformedScript = errors.New("script: first command must be CREATE")

// ParseError reports a line that does not follow the script grammar.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("script %s:%d: %s", e.File, e.Line, e.Msg)
}

// Command is one parsed script line. Only the fields its Kind uses are set.
// Index is zero-based; scripts count objects and lights from 1.
type Command struct {
	Kind Kind
	Time float64
	Line int
	Raw  string

	Index   int
	Mesh    string
	Attrs   scene.Attributes
	Light   geom.Vec3
	Color   geom.Color
	Visible bool
	Camera  camera.Request
	Path    string
}

// ParseLine parses one non-blank line of file at line number n.
func ParseLine(file string, n int, line string) (Command, error) {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	p := &lineParser{file: file, line: n, fields: fields}
	cmd := Command{Line: n, Raw: strings.TrimSpace(line)}

	kind, ok := kindNames[fields[0]]
	if !ok {
		return cmd, p.errorf("unknown command %q", fields[0])
	}
	cmd.Kind = kind
	if len(fields) < 2 {
		return cmd, p.errorf("%s: missing timestamp", kind)
	}
	t, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return cmd, p.errorf("%s: bad timestamp %q", kind, fields[1])
	}
	cmd.Time = t

	switch kind {
	case Create:
		// The object number column is optional; CREATE always appends.
		rest := fields[2:]
		if len(fields) == 15 {
			if _, err := strconv.Atoi(fields[2]); err != nil {
				return cmd, p.errorf("CREATE: bad object number %q", fields[2])
			}
			rest = fields[3:]
		} else if len(fields) != 14 {
			return cmd, p.errorf("CREATE: want 14 or 15 fields, got %d", len(fields))
		}
		if rest[0] == "" {
			return cmd, p.errorf("CREATE: empty mesh path")
		}
		cmd.Mesh = rest[0]
		cmd.Attrs, err = p.attributes(rest[1:])
	case Modify:
		if err = p.arity(kind, 14); err == nil {
			if cmd.Index, err = p.index(2); err == nil {
				cmd.Attrs, err = p.attributes(fields[3:])
			}
		}
	case AddLight:
		if err = p.arity(kind, 8); err == nil {
			if cmd.Light, err = p.vec(2); err == nil {
				cmd.Color, err = p.color(5)
			}
		}
	case ModifyLight:
		if err = p.arity(kind, 6); err == nil {
			if cmd.Index, err = p.index(2); err == nil {
				cmd.Color, err = p.color(3)
			}
		}
	case SetLabel:
		if err = p.arity(kind, 4); err == nil {
			if cmd.Index, err = p.index(2); err == nil {
				switch fields[3] {
				case "0":
				case "1":
					cmd.Visible = true
				default:
					err = p.errorf("SET_LABEL: visibility must be 0 or 1, got %q", fields[3])
				}
			}
		}
	case SetCamera:
		cmd.Camera, err = p.camera()
	case RestartFile:
		err = p.arity(kind, 2)
	case NewFile:
		if err = p.arity(kind, 3); err == nil {
			if fields[2] == "" {
				err = p.errorf("NEW_FILE: empty path")
			}
			cmd.Path = fields[2]
		}
	}
	return cmd, err
}

type lineParser struct {
	file   string
	line   int
	fields []string
}

func (p *lineParser) errorf(format string, args ...any) error {
	return &ParseError{File: p.file, Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *lineParser) arity(k Kind, n int) error {
	if len(p.fields) != n {
		return p.errorf("%s: want %d fields, got %d", k, n, len(p.fields))
	}
	return nil
}

func (p *lineParser) float(i int) (float64, error) {
	v, err := strconv.ParseFloat(p.fields[i], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, p.errorf("field %d: bad number %q", i+1, p.fields[i])
	}
	return v, nil
}

func (p *lineParser) vec(i int) (geom.Vec3, error) {
	var v [3]float64
	for k := range v {
		f, err := p.float(i + k)
		if err != nil {
			return geom.Vec3{}, err
		}
		v[k] = f
	}
	return geom.V3(v[0], v[1], v[2]), nil
}

func (p *lineParser) color(i int) (geom.Color, error) {
	var c [3]uint8
	for k := range c {
		n, err := strconv.Atoi(p.fields[i+k])
		if err != nil || n < 0 || n > 255 {
			return geom.Color{}, p.errorf("field %d: colour component %q not in 0..255", i+k+1, p.fields[i+k])
		}
		c[k] = uint8(n)
	}
	return geom.RGB(c[0], c[1], c[2]), nil
}

func (p *lineParser) index(i int) (int, error) {
	n, err := strconv.Atoi(p.fields[i])
	if err != nil || n < 1 {
		return 0, p.errorf("field %d: index %q must be a positive integer", i+1, p.fields[i])
	}
	return n - 1, nil
}

// attributes reads x,y,z, r,g,b, ax,ay,az, opacity, label from f.
func (p *lineParser) attributes(f []string) (scene.Attributes, error) {
	off := len(p.fields) - len(f)
	var a scene.Attributes
	var err error
	if a.Position, err = p.vec(off); err != nil {
		return a, err
	}
	if a.Color, err = p.color(off + 3); err != nil {
		return a, err
	}
	if a.Rotation, err = p.vec(off + 6); err != nil {
		return a, err
	}
	if a.Opacity, err = p.float(off + 9); err != nil {
		return a, err
	}
	a.Label = f[10]
	return a, nil
}

func (p *lineParser) camera() (camera.Request, error) {
	var req camera.Request
	n := len(p.fields)
	if n != 5 && n != 8 {
		return req, p.errorf("SET_CAMERA: want 5 or 8 fields, got %d", n)
	}
	mode, err := strconv.Atoi(p.fields[2])
	if err != nil || !camera.Mode(mode).Valid() {
		return req, p.errorf("SET_CAMERA: mode %q must be 0, 1 or 2", p.fields[2])
	}
	req.Mode = camera.Mode(mode)
	if req.Angles.Pitch, err = p.float(3); err != nil {
		return req, err
	}
	if req.Angles.Yaw, err = p.float(4); err != nil {
		return req, err
	}
	if n == 5 {
		if req.Mode != camera.AnchoredOrbit {
			return req, p.errorf("SET_CAMERA: %s mode needs a position", req.Mode)
		}
		return req, nil
	}
	req.Position, err = p.vec(5)
	return req, err
}
