// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package shader holds the compile and link state machines of GPU
// programs. A Unit compiles one stage once its source arrives; a Program
// attaches its two units as they compile and links exactly once, when
// both are in.
package shader

import (
	"errors"
	"fmt"
	"sort"

	"github.com/devblok/orbiter/gfx"
	log "github.com/sirupsen/logrus"
)

// package errors
var (
	ErrEmptySource    = errors.New("empty shader source")
	ErrAlreadySet     = errors.New("shader source already set")
	ErrSlotFilled     = errors.New("program already has a shader of this kind")
	ErrProgramDone    = errors.New("program already linked or failed")
	ErrDescriptor     = errors.New("invalid shader descriptor")
	ErrCompileBlocked = errors.New("a shader of the program failed to compile")
)

// UnitState is the compile state of a Unit.
type UnitState int

// Unit states
const (
	Waiting UnitState = iota
	Compiled
	CompileFailed
)

// NewUnit creates a unit for the stage described by d. Its source is set
// later, when the source asset arrives.
func NewUnit(backend gfx.Backend, d Descriptor) *Unit {
	return &Unit{
		Logger:         log.StandardLogger(),
		backend:        backend,
		name:           d.Name,
		kind:           d.ShaderType,
		locator:        d.SourceLocator,
		attributeNames: d.AttributeNames,
		uniformNames:   d.UniformNames,
	}
}

// Unit is a single vertex or fragment shader.
type Unit struct {
	Logger log.FieldLogger

	backend gfx.Backend
	name    string
	kind    gfx.ShaderKind
	locator string

	state  UnitState
	source string
	handle gfx.ShaderHandle
	err    error

	attributeNames map[string]string
	uniformNames   map[string]string
	attributes     map[string]gfx.Location
	uniforms       map[string]gfx.Location

	onCompiled func(*Unit)
	onFailed   func(*Unit, error)
}

// Name returns the name of the program the unit belongs to.
func (u *Unit) Name() string { return u.name }

// Kind implements gfx.Compilable
func (u *Unit) Kind() gfx.ShaderKind { return u.kind }

// Locator returns where the source is loaded from.
func (u *Unit) Locator() string { return u.locator }

// State returns the compile state.
func (u *Unit) State() UnitState { return u.state }

// Source returns the source text, empty until it is set.
func (u *Unit) Source() string { return u.source }

// Handle returns the compiled shader, nil until compiled.
func (u *Unit) Handle() gfx.ShaderHandle { return u.handle }

// Err returns the compile error of a failed unit.
func (u *Unit) Err() error { return u.err }

// SetSourceAndCompile sets the source and compiles it. Empty source is a
// compile failure. The compiled listener runs once on success; on failure
// the failed listener runs instead and the error is returned.
func (u *Unit) SetSourceAndCompile(source string) error {
	if u.state != Waiting || u.source != "" {
		return ErrAlreadySet
	}
	if source == "" {
		return u.failCompile(ErrEmptySource)
	}
	u.source = source

	handle, err := u.backend.CompileShader(u.kind, source)
	if err != nil {
		return u.failCompile(err)
	}
	u.handle = handle
	u.state = Compiled

	u.Logger.WithFields(log.Fields{
		"program": u.name,
		"kind":    u.kind,
	}).Debug("shader compiled")
	if u.onCompiled != nil {
		u.onCompiled(u)
	}
	return nil
}

func (u *Unit) failCompile(err error) error {
	u.state = CompileFailed
	u.err = fmt.Errorf("compile %s shader of %q: %w", u.kind, u.name, err)
	u.Logger.WithFields(log.Fields{
		"program": u.name,
		"kind":    u.kind,
		"locator": u.locator,
	}).WithError(err).Error("shader failed to compile")
	if u.onFailed != nil {
		u.onFailed(u, u.err)
	}
	return u.err
}

// listen sets the listeners the owning program reacts to.
func (u *Unit) listen(compiled func(*Unit), failed func(*Unit, error)) {
	u.onCompiled = compiled
	u.onFailed = failed
}

// Bind implements gfx.Bindable. It resolves the declared attribute and
// uniform names against the linked program.
func (u *Unit) Bind(b gfx.Backend, program gfx.ProgramHandle) error {
	u.attributes = make(map[string]gfx.Location, len(u.attributeNames))
	u.uniforms = make(map[string]gfx.Location, len(u.uniformNames))

	for _, key := range sortedKeys(u.attributeNames) {
		loc, err := b.AttributeLocation(program, u.attributeNames[key])
		if err != nil {
			return fmt.Errorf("attribute %s: %w", key, err)
		}
		u.attributes[key] = loc
	}
	for _, key := range sortedKeys(u.uniformNames) {
		loc, err := b.UniformLocation(program, u.uniformNames[key])
		if err != nil {
			return fmt.Errorf("uniform %s: %w", key, err)
		}
		u.uniforms[key] = loc
	}
	return nil
}

// Attribute returns the location bound for an attribute key.
func (u *Unit) Attribute(key string) (gfx.Location, bool) {
	loc, ok := u.attributes[key]
	return loc, ok
}

// Uniform returns the location bound for a uniform key.
func (u *Unit) Uniform(key string) (gfx.Location, bool) {
	loc, ok := u.uniforms[key]
	return loc, ok
}

// Release frees the compiled shader.
func (u *Unit) Release() {
	if u.handle != nil {
		u.handle.Release()
		u.handle = nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
