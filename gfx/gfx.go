// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the rendering features that backends must implement
// and the capabilities that shaders and mesh buffers expose to them.
package gfx

import (
	"errors"
	"fmt"
	"image"
	"strings"

	glm "github.com/go-gl/mathgl/mgl32"
)

// package errors
var (
	ErrUnknownShaderKind = errors.New("unknown shader kind")
	ErrInvalidHandle     = errors.New("handle does not belong to this backend")
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// ShaderKind identifies the pipeline stage a shader belongs to.
type ShaderKind int

// Identifies shader objects with their types
const (
	UnknownShader ShaderKind = iota
	VertexShader
	FragmentShader
)

func (k ShaderKind) String() string {
	switch k {
	case VertexShader:
		return "vertex"
	case FragmentShader:
		return "fragment"
	default:
		return "unknown"
	}
}

// ParseShaderKind accepts the plain stage names, the MIME-like names used
// by script tags ("x-shader/x-vertex") and the short file suffixes.
func ParseShaderKind(s string) (ShaderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertex", "vert", "x-shader/x-vertex":
		return VertexShader, nil
	case "fragment", "frag", "x-shader/x-fragment":
		return FragmentShader, nil
	}
	return UnknownShader, fmt.Errorf("%w: %q", ErrUnknownShaderKind, s)
}

// UnmarshalText lets descriptors carry the kind as a string.
func (k *ShaderKind) UnmarshalText(text []byte) error {
	kind, err := ParseShaderKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (k ShaderKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Location is a resolved attribute or uniform slot in a linked program.
type Location int32

// InvalidLocation is returned for names the program does not use.
const InvalidLocation Location = -1

// BufferTarget tells the backend how an uploaded buffer will be bound.
type BufferTarget int

// Buffer targets
const (
	ArrayBuffer BufferTarget = iota
	ElementBuffer
)

// Extent3D is the size of an image resource.
type Extent3D struct {
	Width, Height, Depth int
}

// ShaderHandle is a compiled shader stage owned by a Backend.
type ShaderHandle interface {
	Releasable
	Kind() ShaderKind
}

// ProgramHandle is a linked vertex and fragment pair owned by a Backend.
type ProgramHandle interface {
	Releasable
}

// BufferHandle is uploaded vertex or index data.
type BufferHandle interface {
	Releasable
}

// TextureHandle is an uploaded image.
type TextureHandle interface {
	Releasable
	Extent() Extent3D
}

// Backend is the GPU collaborator the asset pipeline compiles, links
// and uploads through. Calls are made from a single goroutine.
type Backend interface {

	// CompileShader compiles source for the given stage.
	CompileShader(kind ShaderKind, source string) (ShaderHandle, error)

	// LinkProgram links a compiled vertex and fragment shader.
	LinkProgram(vertex, fragment ShaderHandle) (ProgramHandle, error)

	// AttributeLocation looks up a vertex attribute of a linked program.
	AttributeLocation(program ProgramHandle, name string) (Location, error)

	// UniformLocation looks up a uniform of a linked program.
	UniformLocation(program ProgramHandle, name string) (Location, error)

	// UploadBuffer copies data into GPU memory.
	UploadBuffer(target BufferTarget, data []byte) (BufferHandle, error)

	// UploadTexture copies the pixels of img into GPU memory.
	UploadTexture(img image.Image) (TextureHandle, error)
}

// DrawCall is one indexed draw of a mesh buffer.
type DrawCall struct {
	Program  ProgramHandle
	Model    glm.Mat4
	Vertices BufferHandle
	Indices  BufferHandle
	Extra    []BufferHandle
	Texture  TextureHandle
	Count    int
}

// Renderer is implemented by backends that can issue draw calls without
// a presentation surface.
type Renderer interface {
	Draw(DrawCall) error
}

// Compilable is a shader stage that turns source text into a ShaderHandle.
type Compilable interface {
	Kind() ShaderKind
	SetSourceAndCompile(source string) error
}

// Bindable resolves named locations against a linked program.
type Bindable interface {
	Bind(b Backend, program ProgramHandle) error
}

// Drawable holds mesh data that can be uploaded and drawn.
type Drawable interface {
	Releasable
	Upload(b Backend) error
	DrawCall(program ProgramHandle, model glm.Mat4) DrawCall
}
