// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shader

import (
	"fmt"

	"github.com/devblok/orbiter/gfx"
	log "github.com/sirupsen/logrus"
)

// ProgramState is the link state of a Program.
type ProgramState int

// Program states
const (
	Empty ProgramState = iota
	OneAttached
	BothAttached
	Linked
	Failed
)

func (s ProgramState) String() string {
	switch s {
	case Empty:
		return "empty"
	case OneAttached:
		return "one attached"
	case BothAttached:
		return "both attached"
	case Linked:
		return "linked"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewProgram creates a program with empty slots.
func NewProgram(backend gfx.Backend, name string) *Program {
	p := &Program{
		Logger:  log.StandardLogger(),
		backend: backend,
		name:    name,
	}
	p.ErrorHandler = func(err error) {
		p.Logger.WithField("program", p.name).WithError(err).Error("program unusable")
	}
	return p
}

// Program owns a vertex and a fragment unit and links them once both
// are compiled.
type Program struct {
	Logger log.FieldLogger

	// ErrorHandler is called once when the program fails to compile or
	// link. It logs by default.
	ErrorHandler func(error)

	backend gfx.Backend
	name    string

	vertex, fragment *Unit
	attached         int
	state            ProgramState
	handle           gfx.ProgramHandle
	err              error
	linkAttempts     int

	onLinked []func(*Program)
	onFailed []func(*Program, error)
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// State returns the current link state.
func (p *Program) State() ProgramState { return p.state }

// Handle returns the linked program, nil until linked.
func (p *Program) Handle() gfx.ProgramHandle { return p.handle }

// Err returns the error of a failed program.
func (p *Program) Err() error { return p.err }

// LinkAttempts returns how many times linking was tried.
func (p *Program) LinkAttempts() int { return p.linkAttempts }

// Vertex returns the vertex unit, nil until added.
func (p *Program) Vertex() *Unit { return p.vertex }

// Fragment returns the fragment unit, nil until added.
func (p *Program) Fragment() *Unit { return p.fragment }

// Attribute looks the key up in the vertex then the fragment unit.
func (p *Program) Attribute(key string) gfx.Location {
	for _, u := range []*Unit{p.vertex, p.fragment} {
		if u == nil {
			continue
		}
		if loc, ok := u.Attribute(key); ok {
			return loc
		}
	}
	return gfx.InvalidLocation
}

// Uniform looks the key up in the vertex then the fragment unit.
func (p *Program) Uniform(key string) gfx.Location {
	for _, u := range []*Unit{p.vertex, p.fragment} {
		if u == nil {
			continue
		}
		if loc, ok := u.Uniform(key); ok {
			return loc
		}
	}
	return gfx.InvalidLocation
}

// AddShader stores u in the slot of its kind. A filled slot rejects the
// unit and leaves the program untouched. The unit is attached as soon as
// it compiles, right away if it already has.
func (p *Program) AddShader(u *Unit) error {
	fields := log.Fields{"program": p.name, "kind": u.Kind()}
	if p.state == Linked || p.state == Failed {
		p.Logger.WithFields(fields).Warn("shader added to finished program")
		return ErrProgramDone
	}

	var slot **Unit
	switch u.Kind() {
	case gfx.VertexShader:
		slot = &p.vertex
	case gfx.FragmentShader:
		slot = &p.fragment
	default:
		return gfx.ErrUnknownShaderKind
	}
	if *slot != nil {
		p.Logger.WithFields(fields).Warn("shader slot already filled")
		return ErrSlotFilled
	}
	*slot = u

	switch u.State() {
	case Compiled:
		p.attach(u)
	case CompileFailed:
		p.fail(fmt.Errorf("%w: %w", ErrCompileBlocked, u.Err()))
	default:
		u.listen(p.attach, func(_ *Unit, err error) {
			p.fail(fmt.Errorf("%w: %w", ErrCompileBlocked, err))
		})
	}
	return nil
}

func (p *Program) attach(u *Unit) {
	if p.state == Failed {
		// a sibling failed first, nothing will link this stage
		u.Release()
		return
	}
	if p.state == Linked {
		return
	}
	p.attached++
	if p.attached == 1 {
		p.state = OneAttached
		return
	}
	p.state = BothAttached
	p.link()
}

func (p *Program) link() {
	p.linkAttempts++
	handle, err := p.backend.LinkProgram(p.vertex.Handle(), p.fragment.Handle())
	if err != nil {
		p.fail(fmt.Errorf("link %q: %w", p.name, err))
		return
	}
	p.handle = handle

	for _, u := range []*Unit{p.vertex, p.fragment} {
		if err := u.Bind(p.backend, handle); err != nil {
			p.fail(fmt.Errorf("bind %s shader of %q: %w", u.Kind(), p.name, err))
			return
		}
	}
	p.state = Linked
	p.Logger.WithField("program", p.name).Debug("program linked")

	for _, fn := range p.onLinked {
		fn(p)
	}
}

// Fail moves an unfinished program to Failed. Linked and failed programs
// are left alone.
func (p *Program) Fail(err error) {
	p.fail(err)
}

func (p *Program) fail(err error) {
	if p.state == Linked || p.state == Failed {
		return
	}
	p.state = Failed
	p.err = err
	p.Release()
	if p.ErrorHandler != nil {
		p.ErrorHandler(err)
	}
	for _, fn := range p.onFailed {
		fn(p, err)
	}
}

// OnLinked subscribes fn to the link event. Subscribers run once, in
// subscription order. Subscribing to a linked program calls fn at once.
func (p *Program) OnLinked(fn func(*Program)) {
	if p.state == Linked {
		fn(p)
		return
	}
	p.onLinked = append(p.onLinked, fn)
}

// OnFailed subscribes fn to the failure of the program. Subscribing to a
// failed program calls fn at once.
func (p *Program) OnFailed(fn func(*Program, error)) {
	if p.state == Failed {
		fn(p, p.err)
		return
	}
	p.onFailed = append(p.onFailed, fn)
}

// Release frees the program and its shaders. A failed program releases
// itself.
func (p *Program) Release() {
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
	if p.vertex != nil {
		p.vertex.Release()
	}
	if p.fragment != nil {
		p.fragment.Release()
	}
}
