package graphics

import (
	"image"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Window describes the window Run opens.
type Window struct {
	Width, Height int32
	FPS           int32
	Title         string
	// OnClose runs after the last frame, while the GPU context still exists.
	OnClose func()
}

var background = rl.NewColor(12, 14, 18, 255)

// Run opens the window and runs the main loop on the calling goroutine. Each
// frame it calls update (input), then clears the screen and calls draw. It
// returns when the window is closed; ESC is left to the terminal, so closing
// is done with the window button.
func Run(w Window, update, draw func()) {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(w.Width, w.Height, w.Title)
	defer rl.CloseWindow()

	rl.SetExitKey(rl.KeyNull)
	rl.SetTargetFPS(w.FPS)

	for !rl.WindowShouldClose() {
		update()

		rl.BeginDrawing()
		rl.ClearBackground(background)
		draw()
		rl.EndDrawing()
	}
	if w.OnClose != nil {
		w.OnClose()
	}
}

// Screenshot returns the current contents of the window.
func Screenshot() image.Image {
	img := rl.LoadImageFromScreen()
	defer rl.UnloadImage(img)
	return img.ToImage()
}
