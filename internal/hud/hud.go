package hud

import (
	"fmt"
	"runtime"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	fontSize   = 20
	padding    = 12
	lineHeight = fontSize + 4
	// updateInterval: only refresh FPS/Mem text every N frames to reduce allocations.
	updateInterval = 30
)

var statusBg = rl.NewColor(0, 0, 0, 140)

// HUD draws the playback status (top-left) and, when enabled, the FPS and
// memory counters (top-right). Overlays other than status are off by default.
type HUD struct {
	ShowFPS      bool
	ShowMemAlloc bool
	frameCount   uint32
	lastFpsText  string
	lastMemText  string
	lastMemStats runtime.MemStats
}

// New returns a HUD with the FPS counter shown or hidden.
func New(showFPS bool) *HUD {
	return &HUD{ShowFPS: showFPS}
}

// Draw renders the status lines and any enabled counters. Call after the
// scene so the overlay is on top.
func (h *HUD) Draw(status ...string) {
	y := int32(padding)
	for _, line := range status {
		if line == "" {
			continue
		}
		w := rl.MeasureText(line, fontSize)
		rl.DrawRectangle(padding-4, y-2, w+8, lineHeight, statusBg)
		rl.DrawText(line, padding, y, fontSize, rl.RayWhite)
		y += lineHeight
	}
	h.drawCounters()
}

func (h *HUD) drawCounters() {
	h.frameCount++
	update := (h.frameCount % updateInterval) == 0
	if h.ShowFPS && h.lastFpsText == "" {
		update = true
	}
	if h.ShowMemAlloc && h.lastMemText == "" {
		update = true
	}

	screenW := int32(rl.GetScreenWidth())
	y := int32(padding)

	if h.ShowFPS {
		if update {
			h.lastFpsText = fmt.Sprintf("FPS: %d", rl.GetFPS())
		}
		w := rl.MeasureText(h.lastFpsText, fontSize)
		rl.DrawText(h.lastFpsText, screenW-w-padding, y, fontSize, rl.Green)
		y += lineHeight
	}
	if h.ShowMemAlloc {
		if update {
			runtime.ReadMemStats(&h.lastMemStats)
			h.lastMemText = fmt.Sprintf("Mem: %.2f MiB", float64(h.lastMemStats.Alloc)/(1024*1024))
		}
		w := rl.MeasureText(h.lastMemText, fontSize)
		rl.DrawText(h.lastMemText, screenW-w-padding, y, fontSize, rl.Green)
	}
}
