// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model turns object descriptors into render models: positioned
// sets of mesh buffers that can be uploaded and drawn through a gfx
// backend.
package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/devblok/orbiter/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// package errors
var (
	ErrUnknownKind = errors.New("unknown mesh fragment kind")
	ErrNoVertices  = errors.New("mesh fragment has no vertices")
	ErrNoImage     = errors.New("texture image not installed")
	ErrNotUploaded = errors.New("mesh is not uploaded")
)

// Object represents the engine supported model
type Object interface {

	// SetPosition sets the object's current position in space.
	// Has to be thread-safe
	SetPosition(glm.Mat4)

	// Position gets the object's current position in space.
	// Has to be thread-safe
	Position() glm.Mat4

	// SetRotation sets the object's rotation matrix.
	// Has to be thread-safe
	SetRotation(glm.Mat4)

	// Rotation gets the object's rotation matrix.
	// Has to be thread-safe
	Rotation() glm.Mat4

	// Meshes returns the buffers the object is drawn with.
	Meshes() []Mesh
}

// ObjectDescriptor is the document an object is built from.
type ObjectDescriptor struct {
	ObjectName     string               `json:"objectName" yaml:"objectName" toml:"objectName"`
	ObjectPosition []float32            `json:"objectPosition" yaml:"objectPosition" toml:"objectPosition"`
	Program        string               `json:"program,omitempty" yaml:"program,omitempty" toml:"program,omitempty"`
	MeshFragments  []FragmentDescriptor `json:"meshFragments" yaml:"meshFragments" toml:"meshFragments"`
}

// PositionMatrix builds the placement of the object from x, y, z and
// pitch, heading, roll in degrees. Missing values count as zero.
func PositionMatrix(values []float32) glm.Mat4 {
	var p [6]float32
	copy(p[:], values)
	translate := glm.Translate3D(p[0], p[1], p[2])
	pitch := glm.HomogRotate3D(glm.DegToRad(p[3]), glm.Vec3{1, 0, 0})
	heading := glm.HomogRotate3D(glm.DegToRad(p[4]), glm.Vec3{0, 1, 0})
	roll := glm.HomogRotate3D(glm.DegToRad(p[5]), glm.Vec3{0, 0, 1})
	return translate.Mul4(heading).Mul4(pitch).Mul4(roll)
}

// NewRenderModel creates a model with the placement of d and no meshes.
// A malformed position is logged and padded.
func NewRenderModel(d ObjectDescriptor) *RenderModel {
	if len(d.ObjectPosition) != 6 {
		log.WithFields(log.Fields{
			"object": d.ObjectName,
			"values": len(d.ObjectPosition),
		}).Warn("object position needs 6 values, using zeros for the rest")
	}
	return &RenderModel{
		name:     d.ObjectName,
		program:  d.Program,
		position: PositionMatrix(d.ObjectPosition),
		rotation: glm.Ident4(),
	}
}

// RenderModel is a named object with its meshes.
type RenderModel struct {
	name    string
	program string

	mutex    sync.RWMutex
	position glm.Mat4
	rotation glm.Mat4
	meshes   []Mesh
}

// Name returns the object name.
func (rm *RenderModel) Name() string { return rm.name }

// Program returns the name of the program the model is drawn with.
func (rm *RenderModel) Program() string { return rm.program }

// SetPosition implements interface
func (rm *RenderModel) SetPosition(pos glm.Mat4) {
	rm.mutex.Lock()
	rm.position = pos
	rm.mutex.Unlock()
}

// Position implements interface
func (rm *RenderModel) Position() glm.Mat4 {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	return rm.position
}

// SetRotation implements interface
func (rm *RenderModel) SetRotation(rot glm.Mat4) {
	rm.mutex.Lock()
	rm.rotation = rot
	rm.mutex.Unlock()
}

// Rotation implements interface
func (rm *RenderModel) Rotation() glm.Mat4 {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	return rm.rotation
}

// Transform is the position followed by the rotation.
func (rm *RenderModel) Transform() glm.Mat4 {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	return rm.position.Mul4(rm.rotation)
}

// Add appends a mesh.
func (rm *RenderModel) Add(m Mesh) {
	rm.mutex.Lock()
	rm.meshes = append(rm.meshes, m)
	rm.mutex.Unlock()
}

// Meshes implements interface
func (rm *RenderModel) Meshes() []Mesh {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	return append([]Mesh(nil), rm.meshes...)
}

// Upload uploads every mesh. If one fails, the meshes uploaded before it
// are released again.
func (rm *RenderModel) Upload(b gfx.Backend) error {
	meshes := rm.Meshes()
	for idx, m := range meshes {
		if err := m.Upload(b); err != nil {
			for _, uploaded := range meshes[:idx] {
				uploaded.Release()
			}
			return fmt.Errorf("object %s, mesh %d: %w", rm.name, idx, err)
		}
	}
	return nil
}

// Draw issues one draw call per mesh with the model matrix placed under
// parent.
func (rm *RenderModel) Draw(r gfx.Renderer, program gfx.ProgramHandle, parent glm.Mat4) error {
	transform := parent.Mul4(rm.Transform())
	for _, m := range rm.Meshes() {
		call := m.DrawCall(program, transform)
		if call.Vertices == nil {
			return fmt.Errorf("object %s: %w", rm.name, ErrNotUploaded)
		}
		if err := r.Draw(call); err != nil {
			return fmt.Errorf("object %s: %w", rm.name, err)
		}
	}
	return nil
}

// Release frees every mesh.
func (rm *RenderModel) Release() {
	for _, m := range rm.Meshes() {
		m.Release()
	}
}
