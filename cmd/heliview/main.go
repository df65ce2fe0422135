package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"heliview/internal/camera"
	"heliview/internal/console"
	"heliview/internal/geom"
	"heliview/internal/graphics"
	"heliview/internal/hud"
	"heliview/internal/logger"
	"heliview/internal/render"
	"heliview/internal/scene"
	"heliview/internal/script"
	"heliview/internal/terminal"
	"heliview/internal/viewerconfig"
	"heliview/internal/watch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "heliview:", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", viewerconfig.DefaultPath, "preferences file")
	watchScript := flag.Bool("watch", false, "restart playback when the script file changes")
	speed := flag.Float64("speed", 0, "playback speed, 1 is real time (overrides the config file)")
	meshPath := flag.String("mesh", "", "open a mesh without a script and drive it from the console")
	noConsole := flag.Bool("no-console", false, "do not read commands from stdin")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: heliview [flags] script.log\n       heliview [flags] -mesh model.obj\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	prefs, err := viewerconfig.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "heliview: %s: %v (using defaults)\n", *cfgPath, err)
	} else if _, statErr := os.Stat(*cfgPath); errors.Is(statErr, os.ErrNotExist) {
		_ = viewerconfig.Save(*cfgPath, prefs)
	}
	if *speed > 0 {
		prefs.Playback.Speed = *speed
	}
	if *watchScript {
		prefs.Playback.Watch = true
	}

	log := logger.New(prefs.LogFile)
	cam := camera.New(prefs.CameraSettings())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		scn    *scene.Scene
		player *script.Player
	)
	switch {
	case flag.NArg() == 1:
		scriptPath := flag.Arg(0)
		fsys := os.DirFS(filepath.Dir(scriptPath))
		scn = scene.New(fsys, cam)
		player = script.NewPlayer(fsys, scn, log, script.WithSpeed(prefs.Playback.Speed))
		if err := player.Open(filepath.Base(scriptPath)); err != nil {
			return err
		}
		go func() {
			if err := player.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Logf("playback stopped: %v", err)
			}
		}()
		if prefs.Playback.Watch {
			w, err := watch.New(scriptPath, prefs.Playback.WatchDebounce, log)
			if err != nil {
				return err
			}
			go func() { _ = w.Run(ctx, player.RequestRestart) }()
		}
	case flag.NArg() == 0 && *meshPath != "":
		name := filepath.Base(*meshPath)
		scn = scene.New(os.DirFS(filepath.Dir(*meshPath)), cam)
		a := scene.Attributes{Color: geom.RGB(200, 200, 200), Opacity: 1, Label: name}
		if _, err := scn.Create(name, a); err != nil {
			return err
		}
		log.Logf("opened %s", *meshPath)
	default:
		flag.Usage()
		return errors.New("need one script file or -mesh")
	}

	// a nil *script.Player must not reach the console as a non-nil interface
	var play console.Playback
	if player != nil {
		play = player
	}
	con := console.New(scn, play, log)
	if !*noConsole {
		go func() { _ = con.Serve(ctx, os.Stdin, os.Stdout) }()
	}

	rdr := render.New(prefs.GridVisible)
	ctl := &controls{
		scene:    scn,
		player:   player,
		term:     terminal.New(log, con),
		hud:      hud.New(prefs.ShowFPS),
		renderer: rdr,
		log:      log,
		capture:  prefs.Capture,
	}
	graphics.Run(graphics.Window{
		Width:   prefs.Window.Width,
		Height:  prefs.Window.Height,
		FPS:     prefs.Window.FPS,
		Title:   prefs.Window.Title,
		OnClose: rdr.Unload,
	}, ctl.update, ctl.draw)
	return nil
}
