// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package headless implements a gfx.Backend that keeps everything in host
// memory. It performs the checks a driver would make on compile and link
// and records every call, which makes it usable without a GPU.
package headless

import (
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"
	"sync"

	"github.com/devblok/orbiter/gfx"
)

// package errors
var (
	ErrCompile = errors.New("shader compilation failed")
	ErrLink    = errors.New("program link failed")
)

var (
	attributeDecl = regexp.MustCompile(`\b(?:attribute|in)\s+\w+\s+(\w+)\s*;`)
	uniformDecl   = regexp.MustCompile(`\buniform\s+\w+\s+(\w+)\s*;`)
	entryPoint    = regexp.MustCompile(`\bvoid\s+main\s*\(`)
)

// Stats counts the calls made into a Backend.
type Stats struct {
	Compiles, CompileFailures int
	Links, LinkFailures       int
	Buffers, Textures         int
	Draws                     int

	// Live counts the handles created and not yet released.
	Live int
}

// New creates an empty headless backend.
func New() *Backend {
	return &Backend{}
}

// Backend is the headless gfx.Backend.
type Backend struct {
	mutex sync.Mutex
	stats Stats
}

// Stats returns a snapshot of the recorded calls.
func (b *Backend) Stats() Stats {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.stats
}

// CompileShader implements interface. A source compiles when it declares
// a main entry point.
func (b *Backend) CompileShader(kind gfx.ShaderKind, source string) (gfx.ShaderHandle, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stats.Compiles++

	if kind != gfx.VertexShader && kind != gfx.FragmentShader {
		b.stats.CompileFailures++
		return nil, fmt.Errorf("%w: %s", ErrCompile, gfx.ErrUnknownShaderKind)
	}
	if !entryPoint.MatchString(source) {
		b.stats.CompileFailures++
		return nil, fmt.Errorf("%w: %s shader has no main()", ErrCompile, kind)
	}
	b.stats.Live++
	return &Shader{
		resource:   resource{backend: b},
		kind:       kind,
		attributes: declared(attributeDecl, source, kind == gfx.VertexShader),
		uniforms:   declared(uniformDecl, source, true),
	}, nil
}

func declared(re *regexp.Regexp, source string, enabled bool) []string {
	if !enabled {
		return nil
	}
	var names []string
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

// LinkProgram implements interface
func (b *Backend) LinkProgram(vertex, fragment gfx.ShaderHandle) (gfx.ProgramHandle, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stats.Links++

	vs, ok := vertex.(*Shader)
	if !ok || vs.released {
		b.stats.LinkFailures++
		return nil, fmt.Errorf("%w: vertex: %s", ErrLink, gfx.ErrInvalidHandle)
	}
	fs, ok := fragment.(*Shader)
	if !ok || fs.released {
		b.stats.LinkFailures++
		return nil, fmt.Errorf("%w: fragment: %s", ErrLink, gfx.ErrInvalidHandle)
	}
	if vs.kind != gfx.VertexShader || fs.kind != gfx.FragmentShader {
		b.stats.LinkFailures++
		return nil, fmt.Errorf("%w: stages %s and %s", ErrLink, vs.kind, fs.kind)
	}

	b.stats.Live++
	p := &Program{
		resource:  resource{backend: b},
		locations: make(map[string]gfx.Location),
	}
	for idx, name := range vs.attributes {
		p.locations["a:"+name] = gfx.Location(idx)
	}
	var next gfx.Location
	for _, name := range append(vs.uniforms, fs.uniforms...) {
		if _, ok := p.locations["u:"+name]; ok {
			continue
		}
		p.locations["u:"+name] = next
		next++
	}
	return p, nil
}

// AttributeLocation implements interface
func (b *Backend) AttributeLocation(program gfx.ProgramHandle, name string) (gfx.Location, error) {
	return b.lookup(program, "a:"+name)
}

// UniformLocation implements interface
func (b *Backend) UniformLocation(program gfx.ProgramHandle, name string) (gfx.Location, error) {
	return b.lookup(program, "u:"+name)
}

func (b *Backend) lookup(program gfx.ProgramHandle, key string) (gfx.Location, error) {
	p, ok := program.(*Program)
	if !ok {
		return gfx.InvalidLocation, gfx.ErrInvalidHandle
	}
	if loc, ok := p.locations[key]; ok {
		return loc, nil
	}
	return gfx.InvalidLocation, nil
}

// UploadBuffer implements interface
func (b *Backend) UploadBuffer(target gfx.BufferTarget, data []byte) (gfx.BufferHandle, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stats.Buffers++
	b.stats.Live++
	return &Buffer{
		resource: resource{backend: b},
		Target:   target,
		Data:     append([]byte(nil), data...),
	}, nil
}

// UploadTexture implements interface
func (b *Backend) UploadTexture(img image.Image) (gfx.TextureHandle, error) {
	if img == nil {
		return nil, errors.New("nil texture image")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stats.Textures++
	b.stats.Live++
	bounds := img.Bounds()
	return &Texture{
		resource: resource{backend: b},
		extent:   gfx.Extent3D{Width: bounds.Dx(), Height: bounds.Dy(), Depth: 1},
	}, nil
}

// Draw implements gfx.Renderer
func (b *Backend) Draw(call gfx.DrawCall) error {
	if _, ok := call.Program.(*Program); !ok {
		return gfx.ErrInvalidHandle
	}
	if call.Vertices == nil {
		return errors.New("draw call without vertices")
	}
	b.mutex.Lock()
	b.stats.Draws++
	b.mutex.Unlock()
	return nil
}

// resource counts itself out of the live handles on its first release.
type resource struct {
	backend  *Backend
	released bool
}

func (r *resource) free() {
	r.backend.mutex.Lock()
	defer r.backend.mutex.Unlock()
	if !r.released {
		r.released = true
		r.backend.stats.Live--
	}
}

// Shader is a compiled stage.
type Shader struct {
	resource
	kind       gfx.ShaderKind
	attributes []string
	uniforms   []string
}

// Kind implements interface
func (s *Shader) Kind() gfx.ShaderKind { return s.kind }

// Release implements interface
func (s *Shader) Release() { s.free() }

func (s *Shader) String() string {
	return fmt.Sprintf("%s(%s)", s.kind, strings.Join(s.attributes, ","))
}

// Program is a linked pair.
type Program struct {
	resource
	locations map[string]gfx.Location
}

// Release implements interface
func (p *Program) Release() {
	p.free()
	p.locations = nil
}

// Buffer is uploaded data.
type Buffer struct {
	resource
	Target gfx.BufferTarget
	Data   []byte
}

// Release implements interface
func (b *Buffer) Release() {
	b.free()
	b.Data = nil
}

// Texture is an uploaded image.
type Texture struct {
	resource
	extent gfx.Extent3D
}

// Extent implements interface
func (t *Texture) Extent() gfx.Extent3D { return t.extent }

// Release implements interface
func (t *Texture) Release() { t.free() }
