// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scene coordinates the loading of a whole scene: descriptors,
// shader sources, meshes and textures go through one asset queue, and the
// scene is handed over once every program is linked and every asset has
// arrived.
package scene

import (
	"fmt"
	"sort"

	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/model"
	"github.com/devblok/orbiter/shader"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// Scene is the loaded result: linked programs and uploaded models.
type Scene struct {
	Programs map[string]*shader.Program
	Models   []*model.RenderModel

	// Failed holds the programs that could not be compiled or linked.
	Failed map[string]error
}

// Program returns a linked program by name.
func (s *Scene) Program(name string) *shader.Program {
	return s.Programs[name]
}

// Model returns a model by object name.
func (s *Scene) Model(name string) *model.RenderModel {
	for _, m := range s.Models {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// ProgramNames returns the linked program names, sorted.
func (s *Scene) ProgramNames() []string {
	names := make([]string, 0, len(s.Programs))
	for name := range s.Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Draw draws every model whose program linked.
func (s *Scene) Draw(r gfx.Renderer, view glm.Mat4) error {
	for _, m := range s.Models {
		p, ok := s.Programs[m.Program()]
		if !ok {
			log.WithFields(log.Fields{
				"object":  m.Name(),
				"program": m.Program(),
			}).Debug("skipping object without a linked program")
			continue
		}
		if err := m.Draw(r, p.Handle(), view); err != nil {
			return fmt.Errorf("draw: %w", err)
		}
	}
	return nil
}

// Release frees every model and program.
func (s *Scene) Release() {
	for _, m := range s.Models {
		m.Release()
	}
	for _, p := range s.Programs {
		p.Release()
	}
}
