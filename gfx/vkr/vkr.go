// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements gfx.Backend on top of a Vulkan logical device.
// Shader sources are SPIR-V binaries; linking a program creates the
// pipeline layout the two stages are used with.
package vkr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/devblok/orbiter/core"
	"github.com/devblok/orbiter/gfx"
	vk "github.com/devblok/vulkan"
)

const spirvMagic = 0x07230203

// package errors
var (
	ErrNotSPIRV = errors.New("shader source is not a SPIR-V binary")
)

// NewBackend creates a backend for the logical device dev.
func NewBackend(dev vk.Device, phyDevice vk.PhysicalDevice) *Backend {
	return &Backend{
		device:    dev,
		allocator: NewMemoryAllocator(dev, phyDevice),
	}
}

// Backend is the Vulkan gfx.Backend.
type Backend struct {
	device    vk.Device
	allocator *MemoryAllocator
}

// CompileShader implements interface
func (b *Backend) CompileShader(kind gfx.ShaderKind, source string) (gfx.ShaderHandle, error) {
	code := []byte(source)
	if len(code) < 4 || len(code)%4 != 0 || binary.LittleEndian.Uint32(code) != spirvMagic {
		return nil, ErrNotSPIRV
	}

	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    core.SliceUint32(code),
	}

	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(b.device, &smci, nil, &module)); err != nil {
		return nil, fmt.Errorf("vk.CreateShaderModule(%s): %s", kind, err.Error())
	}
	return &Shader{
		device: b.device,
		module: module,
		kind:   kind,
		code:   code,
	}, nil
}

// LinkProgram implements interface
func (b *Backend) LinkProgram(vertex, fragment gfx.ShaderHandle) (gfx.ProgramHandle, error) {
	vs, ok := vertex.(*Shader)
	if !ok {
		return nil, gfx.ErrInvalidHandle
	}
	fs, ok := fragment.(*Shader)
	if !ok {
		return nil, gfx.ErrInvalidHandle
	}
	if vs.kind != gfx.VertexShader || fs.kind != gfx.FragmentShader {
		return nil, fmt.Errorf("cannot link %s and %s stages", vs.kind, fs.kind)
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Offset:     0,
			Size:       64, // one mat4
		}},
	}

	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(b.device, &plci, nil, &layout)); err != nil {
		return nil, fmt.Errorf("vk.CreatePipelineLayout(): %s", err.Error())
	}

	return &Program{
		device: b.device,
		layout: layout,
		stages: []vk.PipelineShaderStageCreateInfo{
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageVertexBit,
				Module: vs.module,
				PName:  "main\x00",
			},
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageFragmentBit,
				Module: fs.module,
				PName:  "main\x00",
			},
		},
		attributes: make(map[string]gfx.Location),
		uniforms:   make(map[string]gfx.Location),
	}, nil
}

// AttributeLocation implements interface. SPIR-V carries no names, so
// locations are handed out in the order they are first requested, which
// matches shaders declaring layout(location = N) in the same order.
func (b *Backend) AttributeLocation(program gfx.ProgramHandle, name string) (gfx.Location, error) {
	p, ok := program.(*Program)
	if !ok {
		return gfx.InvalidLocation, gfx.ErrInvalidHandle
	}
	return assign(p.attributes, name), nil
}

// UniformLocation implements interface
func (b *Backend) UniformLocation(program gfx.ProgramHandle, name string) (gfx.Location, error) {
	p, ok := program.(*Program)
	if !ok {
		return gfx.InvalidLocation, gfx.ErrInvalidHandle
	}
	return assign(p.uniforms, name), nil
}

func assign(table map[string]gfx.Location, name string) gfx.Location {
	if loc, ok := table[name]; ok {
		return loc
	}
	loc := gfx.Location(len(table))
	table[name] = loc
	return loc
}

// UploadBuffer implements interface
func (b *Backend) UploadBuffer(target gfx.BufferTarget, data []byte) (gfx.BufferHandle, error) {
	usage := vk.BufferUsageVertexBufferBit
	if target == gfx.ElementBuffer {
		usage = vk.BufferUsageIndexBufferBit
	}
	buffer, err := NewBuffer(b.device, uint(len(data)), usage, vk.SharingModeExclusive, b.allocator)
	if err != nil {
		return nil, err
	}
	if err := buffer.memory.Write(data); err != nil {
		buffer.Release()
		return nil, err
	}
	return &buffer, nil
}

// UploadTexture implements interface
func (b *Backend) UploadTexture(img image.Image) (gfx.TextureHandle, error) {
	bounds := img.Bounds()
	extent := gfx.Extent3D{Width: bounds.Dx(), Height: bounds.Dy(), Depth: 1}
	texture, err := NewImage(b.device, extent, vk.ImageUsageSampledBit, vk.SharingModeExclusive, b.allocator)
	if err != nil {
		return nil, err
	}

	var layout vk.SubresourceLayout
	vk.GetImageSubresourceLayout(b.device, texture.image, &vk.ImageSubresource{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	}, &layout)
	layout.Deref()

	pixels, err := core.GetPixels(img, int(layout.RowPitch))
	if err != nil {
		texture.Release()
		return nil, err
	}
	if err := texture.memory.Write(pixels); err != nil {
		texture.Release()
		return nil, err
	}
	return &texture, nil
}

// Shader is a vulkan shader module.
type Shader struct {
	device vk.Device
	module vk.ShaderModule
	kind   gfx.ShaderKind
	code   []byte
}

// Kind implements interface
func (s *Shader) Kind() gfx.ShaderKind {
	return s.kind
}

// Release implements interface
func (s *Shader) Release() {
	vk.DestroyShaderModule(s.device, s.module, nil)
}

// Program holds the shader stages and the pipeline layout for one pipeline.
type Program struct {
	device     vk.Device
	layout     vk.PipelineLayout
	stages     []vk.PipelineShaderStageCreateInfo
	attributes map[string]gfx.Location
	uniforms   map[string]gfx.Location
}

// Stages returns the stage create infos for pipeline creation.
func (p *Program) Stages() []vk.PipelineShaderStageCreateInfo {
	return p.stages
}

// Layout returns the pipeline layout.
func (p *Program) Layout() vk.PipelineLayout {
	return p.layout
}

// Release implements interface
func (p *Program) Release() {
	vk.DestroyPipelineLayout(p.device, p.layout, nil)
}

// NewBuffer creates, configures, allocates and binds a new buffer.
func NewBuffer(dev vk.Device, size uint, usage vk.BufferUsageFlagBits, mode vk.SharingMode, ma *MemoryAllocator) (Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: mode,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(dev, &createInfo, nil, &buffer)); err != nil {
		return Buffer{}, fmt.Errorf("vk.CreateBuffer(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &req)
	req.Deref()

	memory, err := ma.Malloc(req)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return Buffer{}, err
	}

	if err := vk.Error(vk.BindBufferMemory(dev, buffer, memory.Get(), 0)); err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		memory.Release()
		return Buffer{}, fmt.Errorf("vk.BindBufferMemory(): %s", err.Error())
	}

	return Buffer{
		device: dev,
		buffer: buffer,
		memory: memory,
	}, nil
}

// Buffer implements a generic vulkan buffer.
type Buffer struct {
	device vk.Device
	buffer vk.Buffer

	memory Memory
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
}

// NewImage creates a linearly tiled RGBA image backed by host visible memory.
func NewImage(dev vk.Device, extent gfx.Extent3D, usage vk.ImageUsageFlagBits, mode vk.SharingMode, ma *MemoryAllocator) (Image, error) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  uint32(extent.Width),
			Height: uint32(extent.Height),
			Depth:  uint32(extent.Depth),
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vk.FormatR8g8b8a8Unorm,
		Tiling:        vk.ImageTilingLinear,
		InitialLayout: vk.ImageLayoutPreinitialized,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   mode,
		Samples:       vk.SampleCount1Bit,
	}

	var image vk.Image
	if err := vk.Error(vk.CreateImage(dev, &createInfo, nil, &image)); err != nil {
		return Image{}, fmt.Errorf("vk.CreateImage(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image, &req)
	req.Deref()

	memory, err := ma.Malloc(req)
	if err != nil {
		vk.DestroyImage(dev, image, nil)
		return Image{}, err
	}

	if err := vk.Error(vk.BindImageMemory(dev, image, memory.Get(), 0)); err != nil {
		vk.DestroyImage(dev, image, nil)
		memory.Release()
		return Image{}, fmt.Errorf("vk.BindImageMemory(): %s", err.Error())
	}

	return Image{
		device: dev,
		image:  image,
		extent: extent,
		memory: memory,
	}, nil
}

// Image implements and abstracts vulkan image primitive.
type Image struct {
	device vk.Device
	image  vk.Image
	extent gfx.Extent3D
	memory Memory
}

// Extent implements interface
func (i *Image) Extent() gfx.Extent3D {
	return i.extent
}

// Release destroys the image and frees its memory.
func (i *Image) Release() {
	vk.DestroyImage(i.device, i.image, nil)
	i.memory.Release()
}
