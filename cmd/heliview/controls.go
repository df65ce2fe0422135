package main

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"heliview/internal/capture"
	"heliview/internal/graphics"
	"heliview/internal/hud"
	"heliview/internal/logger"
	"heliview/internal/render"
	"heliview/internal/scene"
	"heliview/internal/script"
	"heliview/internal/terminal"
	"heliview/internal/viewerconfig"
)

const hint = "` console   space free/pan   O orbit   P pause   R restart   F12 capture"

// controls turns window input into camera and playback actions and draws
// each frame. player is nil in mesh mode.
type controls struct {
	scene    *scene.Scene
	player   *script.Player
	term     *terminal.Terminal
	hud      *hud.HUD
	renderer *render.Renderer
	log      *logger.Logger
	capture  viewerconfig.Capture

	captureNext bool
}

func (c *controls) update() {
	c.term.Update()
	if c.term.IsOpen() {
		return
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		c.scene.Camera.ToggleFreePan()
	}
	if rl.IsKeyPressed(rl.KeyO) {
		if err := c.scene.ToggleOrbit(); err != nil {
			c.log.Log(err.Error())
		}
	}
	if c.player != nil {
		if rl.IsKeyPressed(rl.KeyP) {
			if c.player.TogglePause() {
				c.log.Log("paused")
			} else {
				c.log.Log("playing")
			}
		}
		if rl.IsKeyPressed(rl.KeyR) {
			c.player.RequestRestart()
		}
	}
	if rl.IsKeyPressed(rl.KeyF12) {
		c.captureNext = true
	}
	if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		if d := rl.GetMouseDelta(); d.X != 0 || d.Y != 0 {
			c.scene.Camera.Drag(float64(d.X), float64(d.Y))
		}
	}
}

func (c *controls) draw() {
	f := c.scene.Frame()
	c.renderer.Draw(f)

	status := "mesh mode"
	var t float64
	if c.player != nil {
		st := c.player.Status()
		status = st.String()
		t = st.Time
	}
	c.hud.Draw(
		status,
		fmt.Sprintf("camera %s   objects %d   lights %d", f.Camera.Mode, len(f.Objects), len(f.Lights)),
		hint,
	)
	c.term.Draw()

	if c.captureNext {
		c.captureNext = false
		img := graphics.Screenshot()
		name := capture.Name(time.Now(), t)
		go func() {
			path, err := capture.Save(c.capture.Dir, name, img, c.capture.MaxWidth)
			if err != nil {
				c.log.Log(err.Error())
				return
			}
			c.log.Logf("saved %s", path)
		}()
	}
}
