// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path"
	"strings"

	"github.com/devblok/orbiter/asset"
	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/model"
	"github.com/devblok/orbiter/shader"
	log "github.com/sirupsen/logrus"
)

// package errors
var (
	ErrDuplicateObject = errors.New("object name already loaded")
	ErrIncomplete      = errors.New("program is missing a shader")
	ErrMalformed       = errors.New("malformed scene document")
)

// NewCoordinator creates a coordinator loading through queue and
// compiling through backend. It takes over the queue's terminal handlers.
func NewCoordinator(queue *asset.Queue, backend gfx.Backend) *Coordinator {
	c := &Coordinator{
		Logger:   log.StandardLogger(),
		queue:    queue,
		backend:  backend,
		programs: make(map[string]*shader.Program),
		models:   make(map[string]*model.RenderModel),
		failed:   make(map[string]error),
	}
	queue.OnError(c.queueFailed)
	queue.OnDone(c.queueDone)
	return c
}

// Coordinator turns arriving descriptors into units, programs and models
// and enqueues the loads they depend on. Its state is only touched from
// queue callbacks, which run one at a time.
type Coordinator struct {
	Logger log.FieldLogger

	queue   *asset.Queue
	backend gfx.Backend

	programs     map[string]*shader.Program
	programOrder []string
	models       map[string]*model.RenderModel
	modelOrder   []string
	pending      int
	failed       map[string]error

	errs     []error
	queueErr error
	done     bool
	finished bool

	onReady   []func(*Scene)
	onFailure []func(error)
}

// OnReady registers a handler fired once the scene is fully loaded.
func (c *Coordinator) OnReady(fn func(*Scene)) {
	c.onReady = append(c.onReady, fn)
}

// OnFailure registers a handler fired once if the scene cannot load.
func (c *Coordinator) OnFailure(fn func(error)) {
	c.onFailure = append(c.onFailure, fn)
}

// Queue returns the queue the coordinator loads through.
func (c *Coordinator) Queue() *asset.Queue { return c.queue }

// Pending returns the number of programs waiting to be linked.
func (c *Coordinator) Pending() int { return c.pending }

// Program returns a program by name, linked or not.
func (c *Coordinator) Program(name string) *shader.Program { return c.programs[name] }

// Model returns a model by object name.
func (c *Coordinator) Model(name string) *model.RenderModel { return c.models[name] }

// LoadManifest loads every document listed by the manifest at locator.
func (c *Coordinator) LoadManifest(locator string) error {
	_, err := c.queue.Load(locator, asset.Document, func(t *asset.Task) {
		if t.Failed() {
			return
		}
		var m Manifest
		if err := t.Document().Decode(&m); err != nil {
			c.malformed(locator, err)
			return
		}
		c.Logger.WithFields(log.Fields{
			"locator":   locator,
			"documents": m.Len(),
		}).Debug("manifest loaded")

		for _, l := range m.Programs {
			c.enqueued(c.LoadProgram(l))
		}
		for _, l := range m.Shaders {
			c.enqueued(c.LoadShader(l))
		}
		for _, l := range m.Objects {
			c.enqueued(c.LoadObject(l))
		}
	})
	return err
}

// LoadShader loads a shader descriptor and everything it refers to.
func (c *Coordinator) LoadShader(locator string) error {
	_, err := c.queue.Load(locator, asset.Document, func(t *asset.Task) {
		if t.Failed() {
			return
		}
		var d shader.Descriptor
		if err := t.Document().Decode(&d); err != nil {
			c.malformed(locator, err)
			return
		}
		if err := d.Validate(); err != nil {
			c.malformed(locator, err)
			return
		}
		c.addShader(d)
	})
	return err
}

// LoadProgram loads a program descriptor carrying both stages.
func (c *Coordinator) LoadProgram(locator string) error {
	_, err := c.queue.Load(locator, asset.Document, func(t *asset.Task) {
		if t.Failed() {
			return
		}
		var d shader.ProgramDescriptor
		if err := t.Document().Decode(&d); err != nil {
			c.malformed(locator, err)
			return
		}
		stages, err := d.Stages()
		if err != nil {
			c.malformed(locator, err)
			return
		}
		for _, s := range stages {
			c.addShader(s)
		}
	})
	return err
}

// LoadObject loads an object descriptor, or imports a Collada file when
// the locator ends in .dae.
func (c *Coordinator) LoadObject(locator string) error {
	if strings.EqualFold(path.Ext(locator), ".dae") {
		_, err := c.queue.Load(locator, asset.Text, func(t *asset.Task) {
			if t.Failed() {
				return
			}
			d, err := model.ImportCollada(locator, []byte(t.Text()))
			if err != nil {
				c.malformed(locator, err)
				return
			}
			c.addObject(d)
		})
		return err
	}

	_, err := c.queue.Load(locator, asset.Document, func(t *asset.Task) {
		if t.Failed() {
			return
		}
		var d model.ObjectDescriptor
		if err := t.Document().Decode(&d); err != nil {
			c.malformed(locator, err)
			return
		}
		c.addObject(d)
	})
	return err
}

// Run drives the queue. See asset.Queue.Run.
func (c *Coordinator) Run(ctx context.Context) error {
	return c.queue.Run(ctx)
}

func (c *Coordinator) addShader(d shader.Descriptor) {
	p := c.program(d.Name)
	unit := shader.NewUnit(c.backend, d)
	unit.Logger = c.Logger
	if err := p.AddShader(unit); err != nil {
		return
	}
	_, err := c.queue.Load(d.SourceLocator, asset.Text, func(t *asset.Task) {
		if t.Failed() {
			return
		}
		// failures reach the program through the unit
		unit.SetSourceAndCompile(t.Text())
	})
	c.enqueued(err)
}

func (c *Coordinator) program(name string) *shader.Program {
	if p, ok := c.programs[name]; ok {
		return p
	}
	p := shader.NewProgram(c.backend, name)
	p.Logger = c.Logger
	p.OnLinked(c.programLinked)
	p.OnFailed(c.programFailed)
	c.programs[name] = p
	c.programOrder = append(c.programOrder, name)
	c.pending++
	return p
}

func (c *Coordinator) programLinked(p *shader.Program) {
	c.pending--
	c.Logger.WithFields(log.Fields{
		"program": p.Name(),
		"pending": c.pending,
	}).Info("program linked")
	c.check()
}

func (c *Coordinator) programFailed(p *shader.Program, err error) {
	c.pending--
	c.failed[p.Name()] = err
	c.check()
}

func (c *Coordinator) addObject(d model.ObjectDescriptor) {
	logger := c.Logger.WithField("object", d.ObjectName)
	if d.ObjectName == "" {
		c.malformed("object", errors.New("object without name"))
		return
	}
	if _, ok := c.models[d.ObjectName]; ok {
		c.errs = append(c.errs, fmt.Errorf("%w: %s", ErrDuplicateObject, d.ObjectName))
		logger.Error("object name already loaded")
		return
	}
	if d.Program == "" {
		logger.Warn("object without program will not be drawn")
	}

	rm := model.NewRenderModel(d)
	for idx, f := range d.MeshFragments {
		mesh, err := model.NewMesh(f, logger.WithField("fragment", idx))
		if err != nil {
			logger.WithField("fragment", idx).WithError(err).Warn("skipping mesh fragment")
			continue
		}
		rm.Add(mesh)

		tex, ok := mesh.(model.TextureInstaller)
		if !ok {
			continue
		}
		if tex.TextureLocator() == "" {
			tex.SetImage(blank())
			continue
		}
		_, err = c.queue.Load(tex.TextureLocator(), asset.Image, func(t *asset.Task) {
			if t.Failed() {
				return
			}
			tex.SetImage(t.Image())
		})
		c.enqueued(err)
	}

	c.models[d.ObjectName] = rm
	c.modelOrder = append(c.modelOrder, d.ObjectName)
	logger.WithField("meshes", len(rm.Meshes())).Debug("object created")
}

func blank() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	return img
}

func (c *Coordinator) malformed(locator string, err error) {
	c.Logger.WithField("locator", locator).WithError(err).Error("malformed document")
	c.errs = append(c.errs, fmt.Errorf("%w: %s: %s", ErrMalformed, locator, err.Error()))
}

func (c *Coordinator) enqueued(err error) {
	if err != nil {
		c.Logger.WithError(err).Error("could not enqueue load")
		c.errs = append(c.errs, err)
	}
}

func (c *Coordinator) queueFailed(err error) {
	c.queueErr = err
}

func (c *Coordinator) queueDone() {
	c.done = true
	if c.queueErr == nil && len(c.errs) == 0 {
		// every compile and link has run by now
		for _, name := range c.programOrder {
			p := c.programs[name]
			if p.State() != shader.Linked && p.State() != shader.Failed {
				p.Fail(fmt.Errorf("%w: %s", ErrIncomplete, name))
			}
		}
	}
	c.check()
}

// check fires ready or failure once the queue is done and no program is
// pending.
func (c *Coordinator) check() {
	if c.finished || !c.done {
		return
	}
	errs := c.errs
	if c.queueErr != nil {
		errs = append([]error{c.queueErr}, errs...)
	}
	if len(errs) > 0 {
		c.finish(nil, errors.Join(errs...))
		return
	}
	if c.pending > 0 {
		return
	}

	s := &Scene{
		Programs: make(map[string]*shader.Program),
		Failed:   make(map[string]error, len(c.failed)),
	}
	for name, err := range c.failed {
		s.Failed[name] = err
	}
	for _, name := range c.programOrder {
		if p := c.programs[name]; p.State() == shader.Linked {
			s.Programs[name] = p
		}
	}
	for _, name := range c.modelOrder {
		rm := c.models[name]
		if err := rm.Upload(c.backend); err != nil {
			for _, uploaded := range s.Models {
				uploaded.Release()
			}
			c.finish(nil, err)
			return
		}
		s.Models = append(s.Models, rm)
	}
	c.finish(s, nil)
}

func (c *Coordinator) finish(s *Scene, err error) {
	c.finished = true
	if err != nil {
		c.Logger.WithError(err).Error("scene failed to load")
		// nothing is handed over, so nothing may stay on the device
		for _, p := range c.programs {
			p.Release()
		}
		for _, fn := range c.onFailure {
			fn(err)
		}
		return
	}
	c.Logger.WithFields(log.Fields{
		"programs": len(s.Programs),
		"models":   len(s.Models),
		"failed":   len(s.Failed),
	}).Info("scene ready")
	for _, fn := range c.onReady {
		fn(s)
	}
}
