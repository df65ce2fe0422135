package script

import (
	"context"
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"testing"
	"time"

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

type event struct {
	what string
	at   time.Time
}

// recorder is a scene that reports the synchronous calls it receives.
type recorder struct {
	*scene.Scene
	events chan event
}

func (r *recorder) note(what string) {
	r.events <- event{what: what, at: time.Now()}
}

func (r *recorder) Create(meshPath string, a scene.Attributes) (int, error) {
	i, err := r.Scene.Create(meshPath, a)
	if err != nil {
		r.note("create failed")
		return i, err
	}
	r.note("create " + a.Label)
	return i, nil
}

func (r *recorder) AddLight(pos geom.Vec3, c geom.Color) (int, error) {
	r.note("light")
	return r.Scene.AddLight(pos, c)
}

func (r *recorder) Wipe() {
	r.note("wipe")
	r.Scene.Wipe()
}

func (r *recorder) expect(t *testing.T, want ...string) []time.Time {
	t.Helper()
	var at []time.Time
	for _, w := range want {
		select {
		case e := <-r.events:
			require.Equal(t, w, e.what)
			at = append(at, e.at)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
	return at
}

func setup(t *testing.T, files map[string]string) (*recorder, *Player, *logger.Logger) {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "tri.obj", []byte(tri), 0o644))
	for name, body := range files {
		require.NoError(t, hackpadfs.WriteFullFile(fsys, name, []byte(body), 0o644))
	}
	r := &recorder{
		Scene:  scene.New(fsys, camera.New(camera.DefaultSettings())),
		events: make(chan event, 256),
	}
	log := logger.Discard()
	return r, NewPlayer(fsys, r, log, WithSpeed(10)), log
}

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

const heli = "CREATE,0,tri.obj,0,0,0,255,0,0,0,0,0,1.0,heli"

func run(p *Player) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish")
		return nil
	}
}

func TestOpenRequiresCreateFirst(t *testing.T) {
	_, p, _ := setup(t, map[string]string{
		"light.log": lines("", "ADD_LIGHT,0,1,1,1,255,255,0", heli),
		"empty.log": "\n\n",
	})
	assert.ErrorIs(t, p.Open("light.log"), ErrMalformedScript)
	assert.ErrorIs(t, p.Open("empty.log"), ErrMalformedScript)
}

func TestOpenRejectsBadLine(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"bad.log": lines(heli, "ADD_LIGHT,1,1,1,1,255,255,0", "ADD_LIGHT,2,1,1"),
	})
	err := p.Open("bad.log")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Line)
	assert.Equal(t, 0, r.Objects.Len())
}

func TestOpenMissingMesh(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines("CREATE,0,nope.obj,0,0,0,255,0,0,0,0,0,1.0,heli"),
	})
	assert.ErrorIs(t, p.Open("a.log"), fs.ErrNotExist)
	assert.Equal(t, 0, r.Objects.Len())
}

func TestRunBeforeOpen(t *testing.T) {
	_, p, _ := setup(t, nil)
	assert.Error(t, p.Run(context.Background()))
}

func TestCreateThenLight(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines(heli, "ADD_LIGHT,1.0,1,1,1,255,255,0"),
	})
	require.NoError(t, p.Open("a.log"))
	r.expect(t, "create heli")
	require.Equal(t, 1, r.Objects.Len())

	start := time.Now()
	require.NoError(t, wait(t, run(p)))
	at := r.expect(t, "light")
	assert.InDelta(t, 0.1, at[0].Sub(start).Seconds(), 0.05)

	o, err := r.Objects.Get(0)
	require.NoError(t, err)
	assert.Equal(t, geom.V3(0, 0, 0), o.Attributes.Position)
	assert.Equal(t, "heli", o.Attributes.Label)
	require.Equal(t, 1, r.Lights.Len())
	l, err := r.Lights.Get(0)
	require.NoError(t, err)
	assert.Equal(t, geom.V3(1, 1, 1), l.Position)
	assert.Equal(t, geom.RGB(255, 255, 0), l.Color)

	st := p.Status()
	assert.True(t, st.Done)
	assert.Equal(t, 1.0, st.Time)
	assert.Equal(t, "a.log", st.File)
	assert.Equal(t, 2, st.Executed)
}

func TestTimingFollowsTimestampGaps(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines(
			heli,
			"ADD_LIGHT,1.0,1,0,0,1,1,1",
			"ADD_LIGHT,1.5,2,0,0,1,1,1",
			"ADD_LIGHT,3.0,3,0,0,1,1,1",
		),
	})
	require.NoError(t, p.Open("a.log"))
	r.expect(t, "create heli")

	start := time.Now()
	done := run(p)
	at := r.expect(t, "light", "light", "light")
	require.NoError(t, wait(t, done))

	gaps := []float64{
		at[0].Sub(start).Seconds(),
		at[1].Sub(at[0]).Seconds(),
		at[2].Sub(at[1]).Seconds(),
	}
	for i, want := range []float64{0.10, 0.05, 0.15} {
		assert.InDelta(t, want, gaps[i], 0.04, "gap %d", i)
	}
}

func TestLateCreateKeepsScheduleFromZero(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines(
			"CREATE,1.0,tri.obj,0,0,0,255,0,0,0,0,0,1.0,heli",
			"ADD_LIGHT,1.5,1,0,0,1,1,1",
			"RESTART_FILE,1.5",
		),
	})
	require.NoError(t, p.Open("a.log"))
	r.expect(t, "create heli")
	assert.Equal(t, 0.0, p.Status().Time)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- p.Run(ctx) }()

	at := r.expect(t, "light", "wipe", "create heli", "light")
	assert.InDelta(t, 0.15, at[0].Sub(start).Seconds(), 0.04)
	// after the restart the light lands at the same script time
	assert.InDelta(t, 0.15, at[3].Sub(at[1]).Seconds(), 0.04)
	cancel()
	assert.ErrorIs(t, wait(t, done), context.Canceled)
}

func TestPauseAddsPausedTime(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines(heli, "ADD_LIGHT,1.0,1,1,1,255,255,0"),
	})
	require.NoError(t, p.Open("a.log"))
	r.expect(t, "create heli")

	start := time.Now()
	done := run(p)
	time.Sleep(30 * time.Millisecond)
	p.Pause()
	assert.True(t, p.Status().Paused)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, r.Lights.Len())
	p.Resume()

	at := r.expect(t, "light")
	require.NoError(t, wait(t, done))
	gap := at[0].Sub(start).Seconds()
	assert.InDelta(t, 0.3, gap, 0.06)
	assert.Equal(t, 1.0, p.Status().Time)
}

func TestTogglePause(t *testing.T) {
	_, p, _ := setup(t, nil)
	assert.False(t, p.Paused())
	assert.True(t, p.TogglePause())
	assert.True(t, p.Paused())
	assert.False(t, p.TogglePause())
}

func TestRestartFile(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines(heli, "ADD_LIGHT,0.5,1,1,1,255,255,0", "RESTART_FILE,1.0"),
	})
	require.NoError(t, p.Open("a.log"))
	r.expect(t, "create heli")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	at := r.expect(t, "light", "wipe", "create heli", "light")
	// after the restart t is 0 again, so the second light waits the full 0.5
	assert.InDelta(t, 0.05, at[3].Sub(at[2]).Seconds(), 0.03)
	cancel()
	assert.ErrorIs(t, wait(t, done), context.Canceled)
}

func TestNewFileReturnsToOuterFile(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"main.log": lines(
			heli,
			"ADD_LIGHT,0.1,1,1,1,255,255,0",
			"NEW_FILE,0.2,sub.log",
			"",
			"ADD_LIGHT,0.3,2,2,2,0,0,255",
		),
		"sub.log": lines(
			"CREATE,0,tri.obj,5,5,5,0,255,0,0,0,0,1,sub",
			"ADD_LIGHT,0.1,3,3,3,1,1,1",
		),
	})
	require.NoError(t, p.Open("main.log"))
	r.expect(t, "create heli")

	done := run(p)
	at := r.expect(t, "light", "wipe", "create sub", "light", "wipe", "light")
	require.NoError(t, wait(t, done))

	// the outer file resumes at t=0.2, so its next light is 0.1 away
	assert.InDelta(t, 0.01, at[5].Sub(at[4]).Seconds(), 0.03)

	assert.Equal(t, 0, r.Objects.Len())
	require.Equal(t, 1, r.Lights.Len())
	l, _ := r.Lights.Get(0)
	assert.Equal(t, geom.V3(2, 2, 2), l.Position)

	st := p.Status()
	assert.Equal(t, "main.log", st.File)
	assert.Equal(t, 0, st.Depth)
	assert.Equal(t, 0.3, st.Time)
	assert.True(t, st.Done)
}

func TestNestedStatusDepth(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"main.log": lines(heli, "NEW_FILE,0,sub.log"),
		"sub.log":  lines("CREATE,0,tri.obj,0,0,0,0,255,0,0,0,0,1,sub", "ADD_LIGHT,50,1,1,1,1,1,1"),
	})
	require.NoError(t, p.Open("main.log"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	r.expect(t, "create heli", "wipe", "create sub")
	assert.Eventually(t, func() bool {
		st := p.Status()
		return st.Depth == 1 && st.File == "sub.log"
	}, time.Second, 5*time.Millisecond)
}

func TestNewFileMissingTargetEndsRun(t *testing.T) {
	_, p, _ := setup(t, map[string]string{
		"main.log": lines(heli, "NEW_FILE,0.1,missing.log"),
	})
	require.NoError(t, p.Open("main.log"))
	assert.ErrorIs(t, wait(t, run(p)), fs.ErrNotExist)
}

func TestNewFileWithBadLineEndsRun(t *testing.T) {
	_, p, _ := setup(t, map[string]string{
		"main.log": lines(heli, "NEW_FILE,0.1,sub.log"),
		"sub.log":  lines("CREATE,0,tri.obj", "ADD_LIGHT,0.1,3,3,3,1,1,1"),
	})
	require.NoError(t, p.Open("main.log"))
	var pe *ParseError
	assert.True(t, errors.As(wait(t, run(p)), &pe))
}

func TestCommandErrorsAreSkipped(t *testing.T) {
	r, p, log := setup(t, map[string]string{
		"a.log": lines(
			heli,
			"MODIFY,0.1,5,1,1,1,0,0,255,0,0,0,1,ghost",
			"MODIFY_LIGHT,0.1,3,1,2,3",
			"SET_LABEL,0.1,9,1",
			"MODIFY,0.1,1,1,1,1,0,0,255,0,0,0,7,heli",
			"CREATE,0.1,missing.obj,0,0,0,255,0,0,0,0,0,1.0,ghost",
			"ADD_LIGHT,0.2,1,1,1,255,255,0",
		),
	})
	require.NoError(t, p.Open("a.log"))
	r.expect(t, "create heli")
	require.NoError(t, wait(t, run(p)))
	p.Settle()

	assert.Equal(t, 1, r.Objects.Len())
	assert.Equal(t, 1, r.Lights.Len())
	o, _ := r.Objects.Get(0)
	assert.Equal(t, geom.V3(0, 0, 0), o.Attributes.Position)

	skipped := 0
	for _, line := range log.Lines() {
		if strings.Contains(line, "skipped") {
			skipped++
		}
	}
	assert.Equal(t, 5, skipped)
}

func TestModifiesResolveToLastIssued(t *testing.T) {
	var body []string
	body = append(body, heli)
	for i := 1; i <= 20; i++ {
		body = append(body, "MODIFY,0.1,1,"+strconv.Itoa(i)+",0,0,0,0,255,0,0,0,1,heli")
	}
	r, p, _ := setup(t, map[string]string{"a.log": lines(body...)})
	require.NoError(t, p.Open("a.log"))
	require.NoError(t, wait(t, run(p)))
	p.Settle()

	o, _ := r.Objects.Get(0)
	assert.Equal(t, 20.0, o.Attributes.Position.X)
}

func TestModifyPrimaryRetargetsOrbit(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines(
			heli,
			"SET_CAMERA,0.1,2,0,0",
			"MODIFY,0.2,1,4,0,2,255,0,0,0,0,0,1,heli",
		),
	})
	require.NoError(t, p.Open("a.log"))
	require.NoError(t, wait(t, run(p)))
	p.Settle()

	st := r.Camera.State()
	assert.Equal(t, camera.AnchoredOrbit, st.Mode)
	assert.Equal(t, geom.V3(-5, -1, -2), st.OrbitOffset)
}

func TestRequestRestartCutsWait(t *testing.T) {
	r, p, _ := setup(t, map[string]string{
		"a.log": lines(heli, "ADD_LIGHT,1000,1,1,1,255,255,0"),
	})
	require.NoError(t, p.Open("a.log"))
	r.expect(t, "create heli")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	p.RequestRestart()
	r.expect(t, "wipe", "create heli")

	// a paused player still restarts, but runs nothing until resumed
	p.Pause()
	p.RequestRestart()
	r.expect(t, "wipe")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, r.Objects.Len())
	p.Resume()
	r.expect(t, "create heli")

	cancel()
	assert.ErrorIs(t, wait(t, done), context.Canceled)
	assert.Equal(t, 0, r.Lights.Len())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "a.log  t=1.50s  playing", Status{File: "a.log", Time: 1.5}.String())
	assert.Equal(t, "b.log  t=0.00s  paused  depth 2", Status{File: "b.log", Depth: 2, Paused: true}.String())
	assert.Equal(t, "a.log  t=3.00s  finished", Status{File: "a.log", Time: 3, Done: true, Paused: true}.String())
}
