// Package capture saves rendered frames as PNG files.
package capture

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/anthonynsimon/bild/transform"
)

// Scale returns img shrunk to at most maxWidth pixels wide, keeping its
// aspect ratio. Images already narrow enough, or maxWidth <= 0, are returned
// unchanged.
func Scale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	return transform.Resize(img, maxWidth, h, transform.Linear)
}

// Name returns the file name for a frame taken at t of script time.
func Name(now time.Time, scriptTime float64) string {
	return fmt.Sprintf("frame-%s-t%07.2f.png", now.Format("20060102-150405"), scriptTime)
}

// Save writes img, scaled to maxWidth, as a PNG in dir and returns its path.
func Save(dir, name string, img image.Image, maxWidth int) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	if err := png.Encode(f, Scale(img, maxWidth)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("capture: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	return path, nil
}
