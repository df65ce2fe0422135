package viewerconfig

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"heliview/internal/camera"
	"heliview/internal/logger"
)

// DefaultPath is the preferences file, relative to the process working directory.
const DefaultPath = "config/heliview.yaml"

// Window configures the render surface.
type Window struct {
	Width  int32  `yaml:"width"`
	Height int32  `yaml:"height"`
	FPS    int32  `yaml:"fps"`
	Title  string `yaml:"title"`
}

// Camera mirrors camera.Settings in the file.
type Camera struct {
	Standoff        float64 `yaml:"standoff"`
	InitialDistance float64 `yaml:"initial_distance"`
	PanSensitivity  float64 `yaml:"pan_sensitivity"`
}

// Playback configures the script player.
type Playback struct {
	// Speed scales script time; 2 plays twice as fast.
	Speed float64 `yaml:"speed"`
	// Watch restarts playback when the top-level script changes on disk.
	Watch bool `yaml:"watch"`
	// WatchDebounce coalesces bursts of file events from editors.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// Capture configures F12 frame captures.
type Capture struct {
	Dir string `yaml:"dir"`
	// MaxWidth downscales captures wider than this; 0 keeps the window size.
	MaxWidth int `yaml:"max_width"`
}

// Prefs holds viewer preferences. Persisted across runs.
type Prefs struct {
	Window      Window   `yaml:"window"`
	Camera      Camera   `yaml:"camera"`
	Playback    Playback `yaml:"playback"`
	Capture     Capture  `yaml:"capture"`
	LogFile     string   `yaml:"log_file"`
	ShowFPS     bool     `yaml:"show_fps"`
	GridVisible bool     `yaml:"grid_visible"`
}

// Default returns the preferences the viewer ships with.
func Default() Prefs {
	cs := camera.DefaultSettings()
	return Prefs{
		Window: Window{Width: 900, Height: 650, FPS: 60, Title: "heliview"},
		Camera: Camera{
			Standoff:        cs.Standoff,
			InitialDistance: cs.InitialDistance,
			PanSensitivity:  cs.PanSensitivity,
		},
		Playback:    Playback{Speed: 1, WatchDebounce: 250 * time.Millisecond},
		Capture:     Capture{Dir: "captures"},
		LogFile:     logger.DefaultPath,
		ShowFPS:     false,
		GridVisible: true,
	}
}

// CameraSettings converts the camera section.
func (p Prefs) CameraSettings() camera.Settings {
	return camera.Settings{
		Standoff:        p.Camera.Standoff,
		InitialDistance: p.Camera.InitialDistance,
		PanSensitivity:  p.Camera.PanSensitivity,
	}
}

// Load reads preferences from path. Fields missing from the file keep their
// defaults. If the file is missing or invalid, Load returns Default() and does
// not create a file; the error says why.
func Load(path string) (Prefs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), err
	}
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Default(), err
	}
	p.sanitize()
	return p, nil
}

// sanitize replaces values that would stall or break the viewer.
func (p *Prefs) sanitize() {
	d := Default()
	if p.Playback.Speed <= 0 {
		p.Playback.Speed = d.Playback.Speed
	}
	if p.Window.Width <= 0 || p.Window.Height <= 0 {
		p.Window.Width, p.Window.Height = d.Window.Width, d.Window.Height
	}
	if p.Window.FPS <= 0 {
		p.Window.FPS = d.Window.FPS
	}
	if p.Camera.Standoff <= 0 {
		p.Camera.Standoff = d.Camera.Standoff
	}
}

// Save writes preferences to path, creating its directory if needed.
func Save(path string, p Prefs) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
