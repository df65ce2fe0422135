// Package console is the manual input path: typed commands that create,
// edit and light objects, steer the camera and control playback. Lines come
// from stdin or from the in-window terminal.
package console

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"heliview/internal/camera"
	"heliview/internal/geom"
	"heliview/internal/logger"
	"heliview/internal/scene"
)

// InvalidInputError reports a manual entry that is not a valid number list.
// Nothing is changed when it is returned.
type InvalidInputError struct {
	Field string
	Value string
	Want  string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q: want %s", e.Field, e.Value, e.Want)
}

// Playback is the part of the script player the console drives.
type Playback interface {
	Pause()
	Resume()
	RequestRestart()
}

// Console executes command lines against a scene.
type Console struct {
	reg   *Registry
	scene *scene.Scene
	play  Playback
	log   *logger.Logger
}

// New returns a console for s. play may be nil when no script is loaded.
func New(s *scene.Scene, play Playback, log *logger.Logger) *Console {
	if log == nil {
		log = logger.Discard()
	}
	c := &Console{reg: NewRegistry(), scene: s, play: play, log: log}
	c.register()
	return c
}

// Exec runs one command line and returns its reply. The line and its outcome
// are logged.
func (c *Console) Exec(line string) (string, error) {
	c.log.Log("> " + line)
	args, err := Parse(line)
	if err == nil {
		var reply string
		reply, err = c.reg.Execute(args)
		if err == nil {
			if reply != "" {
				c.log.Log(reply)
			}
			return reply, nil
		}
	}
	c.log.Log(err.Error())
	return "", err
}

// Serve reads command lines from in until it is exhausted or ctx is done,
// writing replies to out. Errors are shown in red and do not stop the loop.
func (c *Console) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	term := termenv.NewOutput(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reply, err := c.Exec(line)
		if err != nil {
			fmt.Fprintln(out, term.String(err.Error()).Foreground(term.Color("1")))
			continue
		}
		if reply != "" {
			fmt.Fprintln(out, term.String(reply).Foreground(term.Color("2")))
		}
	}
	return sc.Err()
}

func (c *Console) register() {
	c.reg.Register("create", "create -mesh PATH [-pos x,y,z] [-color r,g,b] [-rot x,y,z] [-opacity a] [-label text]", c.create)
	c.reg.Register("modify", "modify INDEX [-pos x,y,z] [-color r,g,b] [-rot x,y,z] [-opacity a] [-label text]", c.modify)
	c.reg.Register("light", "light -pos x,y,z [-color r,g,b] [-snap] | light -index N -color r,g,b", c.light)
	c.reg.Register("label", "label INDEX on|off", c.label)
	c.reg.Register("camera", "camera -mode free|pan|orbit [-angles pitch,yaw] [-pos x,y,z]", c.camera)
	c.reg.Register("orbit", "orbit", c.orbit)
	c.reg.Register("closest", "closest x,y,z", c.closest)
	c.reg.Register("pause", "pause", c.playback("pause"))
	c.reg.Register("play", "play", c.playback("play"))
	c.reg.Register("restart", "restart", c.playback("restart"))
	c.reg.Register("help", "help", c.help)
}

// attrFlags binds the attribute flags shared by create and modify.
type attrFlags struct {
	fs      *flag.FlagSet
	pos     *string
	color   *string
	rot     *string
	opacity *string
	label   *string
}

func bindAttrs(fs *flag.FlagSet) attrFlags {
	return attrFlags{
		fs:      fs,
		pos:     fs.String("pos", "0,0,0", "position x,y,z"),
		color:   fs.String("color", "255,255,255", "colour r,g,b"),
		rot:     fs.String("rot", "0,0,0", "rotation in degrees x,y,z"),
		opacity: fs.String("opacity", "1", "opacity 0..1"),
		label:   fs.String("label", "", "label text"),
	}
}

// apply overwrites the fields of a that were given on the command line, or
// all of them when all is set.
func (f attrFlags) apply(a *scene.Attributes, all bool) error {
	set := map[string]bool{}
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	var err error
	if all || set["pos"] {
		if a.Position, err = parseVec("position", *f.pos); err != nil {
			return err
		}
	}
	if all || set["color"] {
		if a.Color, err = parseColor(*f.color); err != nil {
			return err
		}
	}
	if all || set["rot"] {
		if a.Rotation, err = parseVec("rotation", *f.rot); err != nil {
			return err
		}
	}
	if all || set["opacity"] {
		v, perr := strconv.ParseFloat(strings.TrimSpace(*f.opacity), 64)
		if perr != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidInputError{Field: "opacity", Value: *f.opacity, Want: "a number"}
		}
		a.Opacity = v
	}
	if all || set["label"] {
		a.Label = *f.label
	}
	return nil
}

func (c *Console) create(fs *flag.FlagSet) func([]string) (string, error) {
	mesh := fs.String("mesh", "", "mesh file")
	af := bindAttrs(fs)
	return func([]string) (string, error) {
		if *mesh == "" {
			return "", fmt.Errorf("create: -mesh is required")
		}
		var a scene.Attributes
		if err := af.apply(&a, true); err != nil {
			return "", err
		}
		i, err := c.scene.Create(*mesh, a)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("object %d created", i+1), nil
	}
}

func (c *Console) modify(fs *flag.FlagSet) func([]string) (string, error) {
	af := bindAttrs(fs)
	return func(args []string) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("modify: want one object index")
		}
		i, err := parseIndex(args[0])
		if err != nil {
			return "", err
		}
		o, err := c.scene.Objects.Get(i)
		if err != nil {
			return "", err
		}
		a := o.Attributes
		if err := af.apply(&a, false); err != nil {
			return "", err
		}
		if err := c.scene.Modify(i, a); err != nil {
			return "", err
		}
		return fmt.Sprintf("object %d modified", i+1), nil
	}
}

func (c *Console) light(fs *flag.FlagSet) func([]string) (string, error) {
	pos := fs.String("pos", "", "light position x,y,z in the primary object's frame")
	color := fs.String("color", "255,255,255", "colour r,g,b")
	snap := fs.Bool("snap", false, "move the light onto the nearest vertex of the primary mesh")
	index := fs.Int("index", 0, "recolour light N instead of adding one")
	return func([]string) (string, error) {
		col, err := parseColor(*color)
		if err != nil {
			return "", err
		}
		if *index > 0 {
			if err := c.scene.RecolorLight(*index-1, col); err != nil {
				return "", err
			}
			return fmt.Sprintf("light %d recoloured", *index), nil
		}
		p, err := parseVec("position", *pos)
		if err != nil {
			return "", err
		}
		if *snap {
			v, ok := c.scene.ClosestPrimaryVertex(p)
			if !ok {
				return "", fmt.Errorf("light: no primary mesh to snap to")
			}
			p = v
		}
		i, err := c.scene.AddLight(p, col)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("light %d added at %s", i+1, formatVec(p)), nil
	}
}

func (c *Console) label(*flag.FlagSet) func([]string) (string, error) {
	return func(args []string) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("label: want INDEX on|off")
		}
		i, err := parseIndex(args[0])
		if err != nil {
			return "", err
		}
		var visible bool
		switch args[1] {
		case "on", "1", "show":
			visible = true
		case "off", "0", "hide":
		default:
			return "", &InvalidInputError{Field: "visibility", Value: args[1], Want: "on or off"}
		}
		if err := c.scene.SetLabelVisible(i, visible); err != nil {
			return "", err
		}
		return fmt.Sprintf("label %d %s", i+1, args[1]), nil
	}
}

var modeNames = map[string]camera.Mode{
	"free": camera.Free, "0": camera.Free,
	"pan": camera.Pan, "1": camera.Pan,
	"orbit": camera.AnchoredOrbit, "2": camera.AnchoredOrbit,
}

func (c *Console) camera(fs *flag.FlagSet) func([]string) (string, error) {
	mode := fs.String("mode", "", "free, pan or orbit")
	angles := fs.String("angles", "0,0", "pitch,yaw in degrees")
	pos := fs.String("pos", "", "camera position x,y,z (free and pan)")
	return func([]string) (string, error) {
		m, ok := modeNames[strings.ToLower(*mode)]
		if !ok {
			return "", &InvalidInputError{Field: "mode", Value: *mode, Want: "free, pan or orbit"}
		}
		req := camera.Request{Mode: m}
		ang, err := parseFloats("angles", *angles, 2)
		if err != nil {
			return "", err
		}
		req.Angles = geom.Angles{Pitch: ang[0], Yaw: ang[1]}
		if m != camera.AnchoredOrbit {
			if *pos == "" {
				req.Position = c.scene.Camera.State().WorldPosition
			} else if req.Position, err = parseVec("position", *pos); err != nil {
				return "", err
			}
		}
		if err := c.scene.SetCamera(req); err != nil {
			return "", err
		}
		return "camera " + m.String(), nil
	}
}

func (c *Console) orbit(*flag.FlagSet) func([]string) (string, error) {
	return func([]string) (string, error) {
		if err := c.scene.ToggleOrbit(); err != nil {
			return "", err
		}
		return "camera " + c.scene.Camera.Mode().String(), nil
	}
}

func (c *Console) closest(*flag.FlagSet) func([]string) (string, error) {
	return func(args []string) (string, error) {
		p, err := parseVec("point", strings.Join(args, ","))
		if err != nil {
			return "", err
		}
		v, ok := c.scene.ClosestPrimaryVertex(p)
		if !ok {
			return "", fmt.Errorf("closest: no primary mesh")
		}
		return "closest vertex " + formatVec(v), nil
	}
}

func (c *Console) playback(what string) Builder {
	return func(*flag.FlagSet) func([]string) (string, error) {
		return func([]string) (string, error) {
			if c.play == nil {
				return "", fmt.Errorf("%s: no script is playing", what)
			}
			switch what {
			case "pause":
				c.play.Pause()
				return "paused", nil
			case "play":
				c.play.Resume()
				return "playing", nil
			}
			c.play.RequestRestart()
			return "restarting", nil
		}
	}
}

func (c *Console) help(*flag.FlagSet) func([]string) (string, error) {
	return func([]string) (string, error) {
		var b strings.Builder
		for i, name := range c.reg.Names() {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(c.reg.Usage(name))
		}
		return b.String(), nil
	}
}

func parseFloats(field, s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, &InvalidInputError{Field: field, Value: s, Want: fmt.Sprintf("%d comma separated numbers", n)}
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &InvalidInputError{Field: field, Value: s, Want: fmt.Sprintf("%d comma separated numbers", n)}
		}
		out[i] = v
	}
	return out, nil
}

func parseVec(field, s string) (geom.Vec3, error) {
	v, err := parseFloats(field, s, 3)
	if err != nil {
		return geom.Vec3{}, err
	}
	return geom.V3(v[0], v[1], v[2]), nil
}

func parseColor(s string) (geom.Color, error) {
	parts := strings.Split(s, ",")
	bad := &InvalidInputError{Field: "colour", Value: s, Want: "three integers 0..255"}
	if len(parts) != 3 {
		return geom.Color{}, bad
	}
	var c [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return geom.Color{}, bad
		}
		c[i] = uint8(n)
	}
	return geom.RGB(c[0], c[1], c[2]), nil
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, &InvalidInputError{Field: "index", Value: s, Want: "a positive integer"}
	}
	return n - 1, nil
}

func formatVec(v geom.Vec3) string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
