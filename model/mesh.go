// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/devblok/orbiter/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// FragmentKind selects the buffer a mesh fragment is built into.
type FragmentKind string

// Fragment kinds
const (
	VertexKind  FragmentKind = "vertex"
	ColorKind   FragmentKind = "color"
	TextureKind FragmentKind = "texture"
	SphereKind  FragmentKind = "sphere"
)

// FragmentDescriptor is one mesh fragment of an object descriptor.
// Sphere fragments generate their arrays from Radius and Bands.
type FragmentDescriptor struct {
	Kind           FragmentKind `json:"kind" yaml:"kind" toml:"kind"`
	VertexArray    []float32    `json:"vertexArray,omitempty" yaml:"vertexArray,omitempty" toml:"vertexArray,omitempty"`
	IndexArray     []uint32     `json:"indexArray,omitempty" yaml:"indexArray,omitempty" toml:"indexArray,omitempty"`
	ColorArray     []float32    `json:"colorArray,omitempty" yaml:"colorArray,omitempty" toml:"colorArray,omitempty"`
	TextureArray   []float32    `json:"textureArray,omitempty" yaml:"textureArray,omitempty" toml:"textureArray,omitempty"`
	ItemSize       int          `json:"itemSize,omitempty" yaml:"itemSize,omitempty" toml:"itemSize,omitempty"`
	TextureLocator string       `json:"textureLocator,omitempty" yaml:"textureLocator,omitempty" toml:"textureLocator,omitempty"`
	Radius         float32      `json:"radius,omitempty" yaml:"radius,omitempty" toml:"radius,omitempty"`
	Bands          int          `json:"bands,omitempty" yaml:"bands,omitempty" toml:"bands,omitempty"`
}

// Mesh is a drawable buffer built from one fragment.
type Mesh interface {
	gfx.Drawable
	Kind() FragmentKind
}

// TextureInstaller is implemented by meshes that wait for an image.
type TextureInstaller interface {
	Mesh
	TextureLocator() string
	SetImage(img image.Image)
}

type constructor func(d FragmentDescriptor, logger log.FieldLogger) (Mesh, error)

var constructors = map[FragmentKind]constructor{
	VertexKind:  newVertexMesh,
	ColorKind:   newColorMesh,
	TextureKind: newTextureMesh,
	SphereKind:  newSphereMesh,
}

// Kinds lists the fragment kinds NewMesh understands.
func Kinds() []FragmentKind {
	kinds := make([]FragmentKind, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// NewMesh builds the buffer for d. Inconsistent arrays are logged and
// repaired; an unknown kind or a fragment without vertices is an error.
func NewMesh(d FragmentDescriptor, logger log.FieldLogger) (Mesh, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	kind := FragmentKind(strings.ToLower(string(d.Kind)))
	if kind == "" {
		logger.Warn("mesh fragment without kind, building a vertex buffer")
		kind = VertexKind
	}
	construct, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
	d.Kind = kind
	return construct(d, logger.WithField("kind", kind))
}

func newVertexMesh(d FragmentDescriptor, logger log.FieldLogger) (Mesh, error) {
	return newVertexBuffer(d, logger)
}

func newColorMesh(d FragmentDescriptor, logger log.FieldLogger) (Mesh, error) {
	vb, err := newVertexBuffer(d, logger)
	if err != nil {
		return nil, err
	}
	colors := d.ColorArray
	if want := vb.Len() * 4; len(colors) != want {
		logger.WithFields(log.Fields{
			"colors": len(colors),
			"want":   want,
		}).Warn("color array does not match vertices, padding with white")
		colors = fit(colors, want, 1)
	}
	return &ColorBuffer{VertexBuffer: vb, colors: colors}, nil
}

func newTextureMesh(d FragmentDescriptor, logger log.FieldLogger) (Mesh, error) {
	vb, err := newVertexBuffer(d, logger)
	if err != nil {
		return nil, err
	}
	coords := d.TextureArray
	if want := vb.Len() * 2; len(coords) != want {
		logger.WithFields(log.Fields{
			"coords": len(coords),
			"want":   want,
		}).Warn("texture array does not match vertices, padding with zeros")
		coords = fit(coords, want, 0)
	}
	if d.TextureLocator == "" {
		logger.Warn("texture fragment without texture locator")
	}
	return &TextureBuffer{VertexBuffer: vb, coords: coords, locator: d.TextureLocator}, nil
}

func newSphereMesh(d FragmentDescriptor, logger log.FieldLogger) (Mesh, error) {
	radius, bands := d.Radius, d.Bands
	if radius <= 0 {
		radius = 1
	}
	if bands < 3 {
		bands = 30
	}
	s := Sphere(radius, bands, bands)
	d.VertexArray = s.Positions
	d.IndexArray = s.Indices
	d.TextureArray = s.TexCoords
	d.ItemSize = 3
	if d.TextureLocator == "" {
		return newVertexBuffer(d, logger)
	}
	return newTextureMesh(d, logger)
}

func newVertexBuffer(d FragmentDescriptor, logger log.FieldLogger) (*VertexBuffer, error) {
	if len(d.VertexArray) == 0 {
		return nil, ErrNoVertices
	}
	itemSize := d.ItemSize
	if itemSize < 2 || itemSize > 4 {
		logger.WithField("itemSize", d.ItemSize).Warn("invalid item size, using 3")
		itemSize = 3
	}
	positions := d.VertexArray
	if len(positions)%itemSize != 0 {
		logger.WithField("vertices", len(positions)).Warn("vertex array is not a multiple of the item size, truncating")
		positions = positions[:len(positions)-len(positions)%itemSize]
	}
	count := len(positions) / itemSize
	if count == 0 {
		return nil, ErrNoVertices
	}

	indices := d.IndexArray
	if len(indices) == 0 {
		indices = make([]uint32, count)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, idx := range indices {
		if int(idx) >= count {
			logger.WithFields(log.Fields{
				"index":    idx,
				"vertices": count,
			}).Warn("index out of range, dropping index array")
			indices = make([]uint32, count)
			for i := range indices {
				indices[i] = uint32(i)
			}
			break
		}
	}

	return &VertexBuffer{
		kind:      d.Kind,
		positions: positions,
		indices:   indices,
		itemSize:  itemSize,
	}, nil
}

// fit returns a slice of length n, copying values and filling the rest
// with pad.
func fit(values []float32, n int, pad float32) []float32 {
	out := make([]float32, n)
	copied := copy(out, values)
	for i := copied; i < n; i++ {
		out[i] = pad
	}
	return out
}

func floatBytes(data []float32) []byte {
	buf := make([]byte, 4*len(data))
	for i, f := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func indexBytes(data []uint32) []byte {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], v)
	}
	return buf
}

// VertexBuffer carries positions and indices only.
type VertexBuffer struct {
	kind      FragmentKind
	positions []float32
	indices   []uint32
	itemSize  int

	vertexHandle, indexHandle gfx.BufferHandle
}

// Kind implements interface
func (vb *VertexBuffer) Kind() FragmentKind { return vb.kind }

// Len returns the number of vertices.
func (vb *VertexBuffer) Len() int { return len(vb.positions) / vb.itemSize }

// ItemSize returns the number of floats per vertex.
func (vb *VertexBuffer) ItemSize() int { return vb.itemSize }

// Indices returns the index array.
func (vb *VertexBuffer) Indices() []uint32 { return vb.indices }

// Vertex returns the position of vertex idx, zero-extended to three
// components.
func (vb *VertexBuffer) Vertex(idx int) glm.Vec3 {
	var v glm.Vec3
	copy(v[:], vb.positions[idx*vb.itemSize:(idx+1)*vb.itemSize])
	return v
}

// Upload implements interface
func (vb *VertexBuffer) Upload(b gfx.Backend) error {
	vertices, err := b.UploadBuffer(gfx.ArrayBuffer, floatBytes(vb.positions))
	if err != nil {
		return err
	}
	indices, err := b.UploadBuffer(gfx.ElementBuffer, indexBytes(vb.indices))
	if err != nil {
		vertices.Release()
		return err
	}
	vb.vertexHandle, vb.indexHandle = vertices, indices
	return nil
}

// DrawCall implements interface
func (vb *VertexBuffer) DrawCall(program gfx.ProgramHandle, model glm.Mat4) gfx.DrawCall {
	return gfx.DrawCall{
		Program:  program,
		Model:    model,
		Vertices: vb.vertexHandle,
		Indices:  vb.indexHandle,
		Count:    len(vb.indices),
	}
}

// Release implements interface
func (vb *VertexBuffer) Release() {
	for _, h := range []gfx.BufferHandle{vb.vertexHandle, vb.indexHandle} {
		if h != nil {
			h.Release()
		}
	}
	vb.vertexHandle, vb.indexHandle = nil, nil
}

// ColorBuffer adds an RGBA color per vertex.
type ColorBuffer struct {
	*VertexBuffer
	colors      []float32
	colorHandle gfx.BufferHandle
}

// Colors returns the per vertex colors.
func (cb *ColorBuffer) Colors() []float32 { return cb.colors }

// Upload implements interface
func (cb *ColorBuffer) Upload(b gfx.Backend) error {
	if err := cb.VertexBuffer.Upload(b); err != nil {
		return err
	}
	h, err := b.UploadBuffer(gfx.ArrayBuffer, floatBytes(cb.colors))
	if err != nil {
		cb.VertexBuffer.Release()
		return err
	}
	cb.colorHandle = h
	return nil
}

// DrawCall implements interface
func (cb *ColorBuffer) DrawCall(program gfx.ProgramHandle, model glm.Mat4) gfx.DrawCall {
	call := cb.VertexBuffer.DrawCall(program, model)
	call.Extra = []gfx.BufferHandle{cb.colorHandle}
	return call
}

// Release implements interface
func (cb *ColorBuffer) Release() {
	cb.VertexBuffer.Release()
	if cb.colorHandle != nil {
		cb.colorHandle.Release()
		cb.colorHandle = nil
	}
}

// TextureBuffer adds texture coordinates and the image they sample.
type TextureBuffer struct {
	*VertexBuffer
	coords  []float32
	locator string
	image   image.Image

	coordHandle   gfx.BufferHandle
	textureHandle gfx.TextureHandle
}

// TextureLocator implements TextureInstaller
func (tb *TextureBuffer) TextureLocator() string { return tb.locator }

// Image returns the installed image.
func (tb *TextureBuffer) Image() image.Image { return tb.image }

// SetImage implements TextureInstaller. The image is scaled up to power
// of two dimensions.
func (tb *TextureBuffer) SetImage(img image.Image) {
	tb.image = PowerOfTwo(img)
}

// Upload implements interface
func (tb *TextureBuffer) Upload(b gfx.Backend) error {
	if tb.image == nil {
		return fmt.Errorf("%w: %s", ErrNoImage, tb.locator)
	}
	if err := tb.VertexBuffer.Upload(b); err != nil {
		return err
	}
	coords, err := b.UploadBuffer(gfx.ArrayBuffer, floatBytes(tb.coords))
	if err != nil {
		tb.VertexBuffer.Release()
		return err
	}
	texture, err := b.UploadTexture(tb.image)
	if err != nil {
		coords.Release()
		tb.VertexBuffer.Release()
		return err
	}
	tb.coordHandle, tb.textureHandle = coords, texture
	return nil
}

// DrawCall implements interface
func (tb *TextureBuffer) DrawCall(program gfx.ProgramHandle, model glm.Mat4) gfx.DrawCall {
	call := tb.VertexBuffer.DrawCall(program, model)
	call.Extra = []gfx.BufferHandle{tb.coordHandle}
	call.Texture = tb.textureHandle
	return call
}

// Release implements interface
func (tb *TextureBuffer) Release() {
	tb.VertexBuffer.Release()
	if tb.coordHandle != nil {
		tb.coordHandle.Release()
		tb.coordHandle = nil
	}
	if tb.textureHandle != nil {
		tb.textureHandle.Release()
		tb.textureHandle = nil
	}
}
