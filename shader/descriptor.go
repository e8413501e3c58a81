// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package shader

import (
	"fmt"

	"github.com/devblok/orbiter/asset"
	"github.com/devblok/orbiter/gfx"
)

// Descriptor describes one shader stage of a named program. Attribute and
// uniform names map the keys meshes bind by ("position", "mvp") to the
// identifiers used in the shader source.
type Descriptor struct {
	Name           string            `json:"name" yaml:"name" toml:"name"`
	ShaderType     gfx.ShaderKind    `json:"shaderType" yaml:"shaderType" toml:"shaderType"`
	SourceLocator  string            `json:"sourceLocator" yaml:"sourceLocator" toml:"sourceLocator"`
	AttributeNames map[string]string `json:"attributeNames,omitempty" yaml:"attributeNames,omitempty" toml:"attributeNames,omitempty"`
	UniformNames   map[string]string `json:"uniformNames,omitempty" yaml:"uniformNames,omitempty" toml:"uniformNames,omitempty"`
}

// Validate checks the fields the pipeline cannot do without.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrDescriptor)
	}
	if d.ShaderType != gfx.VertexShader && d.ShaderType != gfx.FragmentShader {
		return fmt.Errorf("%w: shader %q: %s", ErrDescriptor, d.Name, gfx.ErrUnknownShaderKind)
	}
	if err := asset.ValidateLocator(d.SourceLocator); err != nil {
		return fmt.Errorf("%w: shader %q: %s", ErrDescriptor, d.Name, err.Error())
	}
	return nil
}

// ProgramDescriptor describes a program by its two stages.
type ProgramDescriptor struct {
	Name           string     `json:"name" yaml:"name" toml:"name"`
	VertexShader   Descriptor `json:"vertexShader" yaml:"vertexShader" toml:"vertexShader"`
	FragmentShader Descriptor `json:"fragmentShader" yaml:"fragmentShader" toml:"fragmentShader"`
}

// Stages returns both stage descriptors named after the program. Stage
// names and kinds left empty are filled in.
func (p ProgramDescriptor) Stages() ([]Descriptor, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: program without name", ErrDescriptor)
	}
	vs, fs := p.VertexShader, p.FragmentShader
	for _, d := range []*Descriptor{&vs, &fs} {
		if d.Name == "" {
			d.Name = p.Name
		}
	}
	if vs.ShaderType == gfx.UnknownShader {
		vs.ShaderType = gfx.VertexShader
	}
	if fs.ShaderType == gfx.UnknownShader {
		fs.ShaderType = gfx.FragmentShader
	}
	if vs.Name != p.Name || fs.Name != p.Name {
		return nil, fmt.Errorf("%w: program %q has stages named %q and %q", ErrDescriptor, p.Name, vs.Name, fs.Name)
	}
	if vs.ShaderType != gfx.VertexShader || fs.ShaderType != gfx.FragmentShader {
		return nil, fmt.Errorf("%w: program %q has stages %s and %s", ErrDescriptor, p.Name, vs.ShaderType, fs.ShaderType)
	}
	for _, d := range []Descriptor{vs, fs} {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return []Descriptor{vs, fs}, nil
}
