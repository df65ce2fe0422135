// Package script plays back timestamped scene scripts.
//
// A script is a text file of comma separated lines, COMMAND, timestamp, args.
// The Player waits out the gap between consecutive timestamps (scaled by its
// speed and suspended while paused), then applies the command to its Target.
// NEW_FILE suspends the current file on a stack and plays another one; when
// that file ends, playback resumes in the outer file where it left off.
package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hack-pad/hackpadfs"

	"heliview/internal/camera"
	"heliview/internal/geom"
	"heliview/internal/logger"
	"heliview/internal/scene"
)

// Target receives the commands. *scene.Scene implements it.
type Target interface {
	Create(meshPath string, a scene.Attributes) (int, error)
	ModifyAt(seq uint64, index int, a scene.Attributes) (bool, error)
	AddLight(pos geom.Vec3, c geom.Color) (int, error)
	RecolorLightAt(seq uint64, index int, c geom.Color) (bool, error)
	SetLabelVisible(index int, visible bool) error
	SetCamera(req camera.Request) error
	Wipe()
	NextSeq() uint64
}

var errRestart = errors.New("script: restart requested")

// Status is a snapshot of playback progress for display.
type Status struct {
	File     string
	Time     float64
	Depth    int
	Paused   bool
	Executed int
	Done     bool
}

func (s Status) String() string {
	state := "playing"
	switch {
	case s.Done:
		state = "finished"
	case s.Paused:
		state = "paused"
	}
	str := fmt.Sprintf("%s  t=%.2fs  %s", s.File, s.Time, state)
	if s.Depth > 0 {
		str += fmt.Sprintf("  depth %d", s.Depth)
	}
	return str
}

// Option configures a Player.
type Option func(*Player)

// WithSpeed scales playback; 2 plays twice as fast. Non-positive values are ignored.
func WithSpeed(f float64) Option {
	return func(p *Player) {
		if f > 0 {
			p.speed = f
		}
	}
}

// Player replays scripts from fsys onto a Target. Open it once, then call Run
// on its own goroutine. Pause, Resume, RequestRestart and Status are safe to
// call from any goroutine.
type Player struct {
	fsys   fs.FS
	target Target
	log    *logger.Logger
	speed  float64

	gate    *gate
	restart chan struct{}
	writes  sync.WaitGroup

	// Owned by the goroutine running Open and Run.
	cur   *cursor
	stack []frame
	t     float64

	mu     sync.Mutex
	status Status
}

// frame is a suspended outer file.
type frame struct {
	cur    *cursor
	offset int64
	line   int
	t      float64
}

// NewPlayer returns a Player reading scripts and their NEW_FILE targets from fsys.
func NewPlayer(fsys fs.FS, target Target, log *logger.Logger, opts ...Option) *Player {
	if log == nil {
		log = logger.Discard()
	}
	p := &Player{
		fsys:    fsys,
		target:  target,
		log:     log,
		speed:   1,
		gate:    newGate(),
		restart: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Open loads the top-level script, checks every line, and executes its
// opening CREATE so the primary object exists before playback starts.
func (p *Player) Open(name string) error {
	c, first, err := p.load(name)
	if err != nil {
		return err
	}
	if first == nil || first.Kind != Create {
		c.close()
		return fmt.Errorf("%s: %w", name, ErrMalformedScript)
	}
	cmd, _, err := c.next()
	if err != nil {
		c.close()
		return err
	}
	if _, err := p.target.Create(cmd.Mesh, cmd.Attrs); err != nil {
		c.close()
		return fmt.Errorf("script: %s:%d: %w", c.path, cmd.Line, err)
	}
	p.cur = c
	// the schedule starts at 0 as it does after RESTART_FILE
	p.t = 0
	p.log.Logf("opened %s", c.path)
	p.publish(true)
	return nil
}

// Run plays the script until the outermost file ends, the context is
// cancelled, or a structural error occurs (a file that cannot be read or
// parsed). Errors in individual commands are logged and playback continues.
func (p *Player) Run(ctx context.Context) error {
	if p.cur == nil {
		return errors.New("script: Run called before Open")
	}
	defer p.closeFiles()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-p.restart:
			if err := p.restartFile(); err != nil {
				return err
			}
			continue
		default:
		}

		cmd, ok, err := p.cur.next()
		if err != nil {
			return err
		}
		if !ok {
			more, err := p.pop()
			if err != nil {
				return err
			}
			if !more {
				p.log.Log("playback finished")
				p.mu.Lock()
				p.status.Done = true
				p.mu.Unlock()
				return nil
			}
			continue
		}

		if err := p.wait(ctx, cmd.Time-p.t); err != nil {
			if errors.Is(err, errRestart) {
				if err := p.restartFile(); err != nil {
					return err
				}
				continue
			}
			return err
		}
		p.t = cmd.Time
		if err := p.exec(cmd); err != nil {
			return err
		}
		p.publish(true)
	}
}

// Settle blocks until every dispatched MODIFY and MODIFY_LIGHT has landed.
func (p *Player) Settle() {
	p.writes.Wait()
}

// Pause suspends playback at the current wait.
func (p *Player) Pause() { p.gate.set(true) }

// Resume continues a paused playback.
func (p *Player) Resume() { p.gate.set(false) }

// TogglePause flips the pause state and reports whether playback is now paused.
func (p *Player) TogglePause() bool { return p.gate.toggle() }

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	paused, _ := p.gate.state()
	return paused
}

// RequestRestart restarts the current file at the next command boundary,
// cutting short any wait in progress.
func (p *Player) RequestRestart() {
	select {
	case p.restart <- struct{}{}:
	default:
	}
}

// Status returns the current playback position.
func (p *Player) Status() Status {
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()
	s.Paused = p.Paused()
	return s
}

func (p *Player) publish(executed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		p.status.File = p.cur.path
	}
	p.status.Time = p.t
	p.status.Depth = len(p.stack)
	if executed {
		p.status.Executed++
	}
}

// wait sleeps for delta script seconds. Time spent paused is not counted.
func (p *Player) wait(ctx context.Context, delta float64) error {
	remaining := time.Duration(delta / p.speed * float64(time.Second))
	for {
		paused, changed := p.gate.state()
		if paused {
			select {
			case <-changed:
				continue
			case <-p.restart:
				return errRestart
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if remaining <= 0 {
			return nil
		}
		start := time.Now()
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
			return nil
		case <-changed:
			timer.Stop()
			remaining -= time.Since(start)
		case <-p.restart:
			timer.Stop()
			return errRestart
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (p *Player) exec(cmd Command) error {
	where := fmt.Sprintf("%s:%d", p.cur.path, cmd.Line)
	p.log.Logf("%s %s", where, cmd.Raw)

	var err error
	switch cmd.Kind {
	case Create:
		_, err = p.target.Create(cmd.Mesh, cmd.Attrs)
	case Modify:
		seq := p.target.NextSeq()
		p.writes.Go(func() {
			applied, err := p.target.ModifyAt(seq, cmd.Index, cmd.Attrs)
			p.landed(where, cmd, applied, err)
		})
	case ModifyLight:
		seq := p.target.NextSeq()
		p.writes.Go(func() {
			applied, err := p.target.RecolorLightAt(seq, cmd.Index, cmd.Color)
			p.landed(where, cmd, applied, err)
		})
	case AddLight:
		_, err = p.target.AddLight(cmd.Light, cmd.Color)
	case SetLabel:
		err = p.target.SetLabelVisible(cmd.Index, cmd.Visible)
	case SetCamera:
		err = p.target.SetCamera(cmd.Camera)
	case RestartFile:
		return p.restartFile()
	case NewFile:
		return p.newFile(cmd)
	}
	if err != nil {
		p.log.Logf("%s %s skipped: %v", where, cmd.Kind, err)
	}
	return nil
}

func (p *Player) landed(where string, cmd Command, applied bool, err error) {
	switch {
	case err != nil:
		p.log.Logf("%s %s skipped: %v", where, cmd.Kind, err)
	case !applied:
		p.log.Logf("%s %s superseded by a later write", where, cmd.Kind)
	}
}

func (p *Player) restartFile() error {
	p.target.Wipe()
	if err := p.cur.seek(0, 0); err != nil {
		return err
	}
	p.t = 0
	p.log.Logf("restarting %s", p.cur.path)
	p.publish(false)
	return nil
}

func (p *Player) newFile(cmd Command) error {
	next, _, err := p.load(cmd.Path)
	if err != nil {
		return fmt.Errorf("script: %s:%d: NEW_FILE: %w", p.cur.path, cmd.Line, err)
	}
	p.stack = append(p.stack, frame{cur: p.cur, offset: p.cur.offset, line: p.cur.line, t: p.t})
	p.target.Wipe()
	p.cur = next
	p.t = 0
	p.log.Logf("entering %s", next.path)
	p.publish(false)
	return nil
}

// pop resumes the innermost suspended file. It reports false when none is left.
func (p *Player) pop() (bool, error) {
	if len(p.stack) == 0 {
		return false, nil
	}
	fr := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.cur.close()
	p.target.Wipe()
	p.cur = fr.cur
	if err := p.cur.seek(fr.offset, fr.line); err != nil {
		return false, err
	}
	p.t = fr.t
	p.log.Logf("returning to %s", p.cur.path)
	p.publish(false)
	return true, nil
}

func (p *Player) closeFiles() {
	for _, fr := range p.stack {
		fr.cur.close()
	}
	p.stack = nil
	if p.cur != nil {
		p.cur.close()
	}
}

// load opens name and parses every line so a bad file is rejected before
// anything from it runs. The cursor is left at the start of the file.
func (p *Player) load(name string) (*cursor, *Command, error) {
	name = path.Clean(name)
	f, err := p.fsys.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("script: %w", err)
	}
	c := &cursor{path: name, f: f, r: bufio.NewReader(f)}
	var first *Command
	for {
		cmd, ok, err := c.next()
		if err != nil {
			c.close()
			return nil, nil, err
		}
		if !ok {
			break
		}
		if first == nil {
			first = &cmd
		}
	}
	if err := c.seek(0, 0); err != nil {
		c.close()
		return nil, nil, err
	}
	return c, first, nil
}

// cursor reads one script file line by line and tracks the byte offset of
// the next unread line.
type cursor struct {
	path   string
	f      fs.File
	r      *bufio.Reader
	offset int64
	line   int
}

// next returns the next non-blank line, parsed. ok is false at end of file.
func (c *cursor) next() (cmd Command, ok bool, err error) {
	for {
		s, err := c.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return Command{}, false, fmt.Errorf("script: read %s: %w", c.path, err)
		}
		if s == "" {
			return Command{}, false, nil
		}
		c.offset += int64(len(s))
		c.line++
		if strings.TrimSpace(s) == "" {
			continue
		}
		cmd, err := ParseLine(c.path, c.line, s)
		if err != nil {
			return Command{}, false, err
		}
		return cmd, true, nil
	}
}

func (c *cursor) seek(offset int64, line int) error {
	if _, err := hackpadfs.SeekFile(c.f, offset, io.SeekStart); err != nil {
		return fmt.Errorf("script: seek %s: %w", c.path, err)
	}
	c.r.Reset(c.f)
	c.offset = offset
	c.line = line
	return nil
}

func (c *cursor) close() {
	_ = c.f.Close()
}
