package console

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heliview/internal/camera"
	"heliview/internal/geom"
	"heliview/internal/logger"
	"heliview/internal/scene"
)

const tri = "v 0 0 0\nv 3 0 0\nv 0 3 0\nf 1 2 3\n"

type fakePlayback struct {
	calls []string
}

func (f *fakePlayback) Pause()          { f.calls = append(f.calls, "pause") }
func (f *fakePlayback) Resume()         { f.calls = append(f.calls, "resume") }
func (f *fakePlayback) RequestRestart() { f.calls = append(f.calls, "restart") }

func newConsole(t *testing.T, play Playback) (*Console, *scene.Scene) {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "heli body.obj", []byte(tri), 0o644))
	s := scene.New(fsys, camera.New(camera.DefaultSettings()))
	return New(s, play, logger.Discard()), s
}

func TestParseQuoting(t *testing.T) {
	args, err := Parse(`create -mesh "heli body.obj" -label 'main rotor'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"create", "-mesh", "heli body.obj", "-label", "main rotor"}, args)

	_, err = Parse(`create -mesh "unterminated`)
	assert.Error(t, err)
}

func TestCreateAndModify(t *testing.T) {
	c, s := newConsole(t, nil)
	reply, err := c.Exec(`create -mesh "heli body.obj" -pos 1,2,3 -color 255,0,0 -label heli`)
	require.NoError(t, err)
	assert.Equal(t, "object 1 created", reply)

	o, err := s.Objects.Get(0)
	require.NoError(t, err)
	assert.Equal(t, geom.V3(1, 2, 3), o.Attributes.Position)
	assert.Equal(t, 1.0, o.Attributes.Opacity)
	assert.Equal(t, "heli", o.Attributes.Label)

	reply, err = c.Exec("modify 1 -rot 0,90,0 -opacity 0.5")
	require.NoError(t, err)
	assert.Equal(t, "object 1 modified", reply)
	o, _ = s.Objects.Get(0)
	assert.Equal(t, geom.V3(1, 2, 3), o.Attributes.Position)
	assert.Equal(t, geom.V3(0, 90, 0), o.Attributes.Rotation)
	assert.Equal(t, 0.5, o.Attributes.Opacity)
	assert.Equal(t, "heli", o.Attributes.Label)
}

func TestModifyFlagsEitherSideOfIndex(t *testing.T) {
	c, s := newConsole(t, nil)
	_, err := c.Exec(`create -mesh "heli body.obj" -pos 1,2,3`)
	require.NoError(t, err)

	_, err = c.Exec("modify 1 -pos 4,5,6")
	require.NoError(t, err)
	o, _ := s.Objects.Get(0)
	assert.Equal(t, geom.V3(4, 5, 6), o.Attributes.Position)

	_, err = c.Exec("modify -opacity 0.5 1")
	require.NoError(t, err)
	o, _ = s.Objects.Get(0)
	assert.Equal(t, 0.5, o.Attributes.Opacity)
	assert.Equal(t, geom.V3(4, 5, 6), o.Attributes.Position)

	_, err = c.Exec("modify -pos -1,-2,-3 1 -label tail")
	require.NoError(t, err)
	o, _ = s.Objects.Get(0)
	assert.Equal(t, geom.V3(-1, -2, -3), o.Attributes.Position)
	assert.Equal(t, "tail", o.Attributes.Label)

	_, err = c.Exec("modify 1 1")
	assert.EqualError(t, err, "modify: want one object index")
}

func TestParseInterspersed(t *testing.T) {
	for _, tc := range []struct {
		args []string
		pos  []string
		snap bool
	}{
		{args: nil, pos: nil},
		{args: []string{"a", "-snap", "b"}, pos: []string{"a", "b"}, snap: true},
		{args: []string{"-snap", "a"}, pos: []string{"a"}, snap: true},
		{args: []string{"0.2", "-1", "-.5"}, pos: []string{"0.2", "-1", "-.5"}},
	} {
		fs := flag.NewFlagSet("t", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		snap := fs.Bool("snap", false, "")
		pos, err := parseInterspersed(fs, tc.args)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.pos, pos, tc.args)
		assert.Equal(t, tc.snap, *snap, tc.args)
	}
}

func TestFlagsDoNotLeakBetweenCalls(t *testing.T) {
	c, s := newConsole(t, nil)
	_, err := c.Exec(`create -mesh "heli body.obj" -pos 5,5,5`)
	require.NoError(t, err)
	_, err = c.Exec(`create -mesh "heli body.obj"`)
	require.NoError(t, err)
	o, _ := s.Objects.Get(1)
	assert.Equal(t, geom.V3(0, 0, 0), o.Attributes.Position)
}

func TestInvalidInputChangesNothing(t *testing.T) {
	c, s := newConsole(t, nil)
	_, err := c.Exec(`create -mesh "heli body.obj" -pos 1,2,3`)
	require.NoError(t, err)

	for _, line := range []string{
		"modify 1 -pos 1,two,3",
		"modify 1 -color 300,0,0",
		"modify 1 -opacity lots",
		"modify x",
		"light -pos 1,1",
		"label 1 maybe",
		"camera -mode sideways",
		"closest a,b,c",
	} {
		_, err := c.Exec(line)
		var ie *InvalidInputError
		assert.True(t, errors.As(err, &ie), line)
	}
	o, _ := s.Objects.Get(0)
	assert.Equal(t, geom.V3(1, 2, 3), o.Attributes.Position)
	assert.Equal(t, 0, s.Lights.Len())
}

func TestIndexErrors(t *testing.T) {
	c, _ := newConsole(t, nil)
	_, err := c.Exec("modify 3 -pos 0,0,0")
	var ie *scene.IndexError
	assert.True(t, errors.As(err, &ie))
	_, err = c.Exec("light -index 2 -color 1,2,3")
	assert.True(t, errors.As(err, &ie))
	_, err = c.Exec("orbit")
	assert.True(t, errors.As(err, &ie))
}

func TestLightSnap(t *testing.T) {
	c, s := newConsole(t, nil)
	_, err := c.Exec("light -pos 1,1,1 -snap")
	assert.Error(t, err)

	_, err = c.Exec(`create -mesh "heli body.obj"`)
	require.NoError(t, err)
	reply, err := c.Exec("light -pos 2.6,0.1,0 -color 255,255,0 -snap")
	require.NoError(t, err)
	assert.Equal(t, "light 1 added at (3, 0, 0)", reply)

	l, err := s.Lights.Get(0)
	require.NoError(t, err)
	assert.Equal(t, geom.V3(3, 0, 0), l.Position)

	_, err = c.Exec("light -index 1 -color 0,0,255")
	require.NoError(t, err)
	l, _ = s.Lights.Get(0)
	assert.Equal(t, geom.RGB(0, 0, 255), l.Color)

	reply, err = c.Exec("closest 0.2 0.1 0")
	require.NoError(t, err)
	assert.Equal(t, "closest vertex (0, 0, 0)", reply)

	reply, err = c.Exec("closest 2.8 -0.1 0")
	require.NoError(t, err)
	assert.Equal(t, "closest vertex (3, 0, 0)", reply)
}

func TestCameraAndOrbit(t *testing.T) {
	c, s := newConsole(t, nil)
	_, err := c.Exec(`create -mesh "heli body.obj"`)
	require.NoError(t, err)

	reply, err := c.Exec("camera -mode pan -angles 10,20 -pos 0,1,-5")
	require.NoError(t, err)
	assert.Equal(t, "camera pan", reply)
	st := s.Camera.State()
	assert.Equal(t, geom.V3(0, 1, -5), st.WorldPosition)
	assert.Equal(t, geom.Angles{Pitch: 10, Yaw: 20}, st.WorldAngles)

	reply, err = c.Exec("orbit")
	require.NoError(t, err)
	assert.Equal(t, "camera orbit", reply)
	reply, err = c.Exec("orbit")
	require.NoError(t, err)
	assert.Equal(t, "camera free", reply)
}

func TestLabel(t *testing.T) {
	c, s := newConsole(t, nil)
	_, err := c.Exec(`create -mesh "heli body.obj" -label heli`)
	require.NoError(t, err)
	_, err = c.Exec("label 1 off")
	require.NoError(t, err)
	o, _ := s.Objects.Get(0)
	assert.False(t, o.LabelVisible)
}

func TestPlaybackCommands(t *testing.T) {
	c, _ := newConsole(t, nil)
	_, err := c.Exec("pause")
	assert.Error(t, err)

	play := &fakePlayback{}
	c, _ = newConsole(t, play)
	for _, line := range []string{"pause", "play", "restart"} {
		_, err := c.Exec(line)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"pause", "resume", "restart"}, play.calls)
}

func TestUnknownCommand(t *testing.T) {
	c, _ := newConsole(t, nil)
	_, err := c.Exec("fly")
	assert.EqualError(t, err, "unknown command: fly")
	_, err = c.Exec("create -wings 2")
	assert.Error(t, err)
}

func TestHelpListsCommands(t *testing.T) {
	c, _ := newConsole(t, nil)
	reply, err := c.Exec("help")
	require.NoError(t, err)
	assert.Contains(t, reply, "closest x,y,z")
	assert.Contains(t, reply, "label INDEX on|off")
}

func TestServe(t *testing.T) {
	log := logger.Discard()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "tri.obj", []byte(tri), 0o644))
	s := scene.New(fsys, camera.New(camera.DefaultSettings()))
	c := New(s, nil, log)

	in := strings.NewReader("create -mesh tri.obj\n\nmodify 9\nlight -pos 1,1,1\n")
	var out bytes.Buffer
	require.NoError(t, c.Serve(context.Background(), in, &out))

	assert.Equal(t, 1, s.Objects.Len())
	assert.Equal(t, 1, s.Lights.Len())
	assert.Contains(t, out.String(), "object 1 created")
	assert.Contains(t, out.String(), "object 9 does not exist")
	assert.Contains(t, log.Lines()[0], "> create -mesh tri.obj")
}
