// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/devblok/orbiter/asset"
	"github.com/devblok/orbiter/core"
	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/gfx/headless"
	"github.com/devblok/orbiter/scene"
	"github.com/fsnotify/fsnotify"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// Animation periods of the default scene
const (
	earthDay     = 10 * time.Second
	orbitPeriod  = 4 * time.Second
	screenWidth  = 800
	screenHeight = 600
)

type viewer struct {
	cfg      core.Configuration
	fetcher  asset.Fetcher
	backend  gfx.Backend
	renderer gfx.Renderer

	scene         *scene.Scene
	satelliteBase glm.Mat4
}

func (v *viewer) load(ctx context.Context) (*scene.Scene, error) {
	c := scene.NewCoordinator(asset.NewQueue(v.fetcher), v.backend)

	var (
		loaded  *scene.Scene
		failure error
	)
	c.OnReady(func(s *scene.Scene) { loaded = s })
	c.OnFailure(func(err error) { failure = err })

	if err := c.LoadManifest(v.cfg.Assets.Manifest); err != nil {
		return nil, err
	}
	if err := c.Run(ctx); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if loaded == nil {
		return nil, errors.New("scene never became ready")
	}
	for name, err := range loaded.Failed {
		log.WithField("program", name).WithError(err).Warn("program left out of the scene")
	}
	return loaded, nil
}

func (v *viewer) install(s *scene.Scene) {
	if v.scene != nil {
		v.scene.Release()
	}
	v.scene = s
	if sat := s.Model("satellite"); sat != nil {
		v.satelliteBase = sat.Position()
	}
}

// Run loads the scene and animates it until frames are drawn, ctx is
// cancelled or, with frames at 0, forever.
func (v *viewer) Run(ctx context.Context, frames int, watch bool) error {
	s, err := v.load(ctx)
	if err != nil {
		return err
	}
	v.install(s)
	defer func() { v.scene.Release() }()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watch {
		watcher, err := newWatcher(v.cfg.Assets.Root)
		if err != nil {
			return err
		}
		defer watcher.Close()
		events, errs = watcher.Events, watcher.Errors
	}

	t := core.NewTime(v.cfg.Time)
	defer t.Stop()

	projection := glm.Perspective(glm.DegToRad(45), float32(screenWidth)/screenHeight, 0.1, 100)
	camera := glm.LookAtV(glm.Vec3{0, 3, 10}, glm.Vec3{0, 0, 0}, glm.Vec3{0, 1, 0})
	view := projection.Mul4(camera)

	var drawn int
EventLoop:
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted")
			break EventLoop
		case <-t.FpsTicker().C:
			v.animate(t.Elapsed())
			if err := v.scene.Draw(v.renderer, view); err != nil {
				return err
			}
			drawn++
			if frames > 0 && drawn >= frames {
				break EventLoop
			}
		case ev := <-events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.WithField("file", ev.Name).Info("assets changed, reloading")
			s, err := v.load(ctx)
			if err != nil {
				log.WithError(err).Error("reload failed, keeping the current scene")
				continue
			}
			v.install(s)
		case err := <-errs:
			log.WithError(err).Warn("watcher error")
		}
	}

	fields := log.Fields{"frames": drawn}
	if hb, ok := v.backend.(*headless.Backend); ok {
		stats := hb.Stats()
		fields["draws"] = stats.Draws
		fields["live"] = stats.Live
	}
	log.WithFields(fields).Info("done")
	return nil
}

// animate spins the Earth and moves the satellite along its orbit.
func (v *viewer) animate(elapsed time.Duration) {
	if earth := v.scene.Model("earth"); earth != nil {
		earth.SetRotation(glm.HomogRotate3DY(angle(elapsed, earthDay)))
	}
	if sat := v.scene.Model("satellite"); sat != nil {
		orbit := glm.HomogRotate3DY(angle(elapsed, orbitPeriod))
		sat.SetPosition(orbit.Mul4(v.satelliteBase))
		sat.SetRotation(glm.HomogRotate3DY(-angle(elapsed, orbitPeriod)))
	}
}

func angle(elapsed, period time.Duration) float32 {
	turns := float64(elapsed%period) / float64(period)
	return float32(2 * math.Pi * turns)
}

// newWatcher watches root and every directory below it.
func newWatcher(root string) (*fsnotify.Watcher, error) {
	if root == "" {
		return nil, errors.New("-watch needs " + core.EnvAssets + " to point at a directory")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}
