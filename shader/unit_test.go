package shader_test

import (
	"errors"
	"testing"

	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/gfx/headless"
	"github.com/devblok/orbiter/shader"
)

var _ gfx.Compilable = (*shader.Unit)(nil)
var _ gfx.Bindable = (*shader.Unit)(nil)

func TestUnitEmptySource(t *testing.T) {
	vs, _ := units(headless.New())
	if err := vs.SetSourceAndCompile(""); !errors.Is(err, shader.ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
	if vs.State() != shader.CompileFailed {
		t.Errorf("expected compile failure, got %d", vs.State())
	}
	if err := vs.SetSourceAndCompile(vertexSource); err != shader.ErrAlreadySet {
		t.Errorf("expected ErrAlreadySet, got %v", err)
	}
}

func TestUnitCompilesOnce(t *testing.T) {
	backend := headless.New()
	vs, _ := units(backend)
	if err := vs.SetSourceAndCompile(vertexSource); err != nil {
		t.Fatal(err)
	}
	if vs.Handle() == nil || vs.Handle().Kind() != gfx.VertexShader {
		t.Fatal("missing vertex handle")
	}
	if err := vs.SetSourceAndCompile(vertexSource); err != shader.ErrAlreadySet {
		t.Errorf("expected ErrAlreadySet, got %v", err)
	}
	if backend.Stats().Compiles != 1 {
		t.Errorf("expected one compile, got %d", backend.Stats().Compiles)
	}
}

func TestDescriptorValidate(t *testing.T) {
	cases := []struct {
		name string
		d    shader.Descriptor
		ok   bool
	}{
		{"valid", shader.Descriptor{Name: "p", ShaderType: gfx.VertexShader, SourceLocator: "s/p.vert"}, true},
		{"no name", shader.Descriptor{ShaderType: gfx.VertexShader, SourceLocator: "s/p.vert"}, false},
		{"no kind", shader.Descriptor{Name: "p", SourceLocator: "s/p.vert"}, false},
		{"bad locator", shader.Descriptor{Name: "p", ShaderType: gfx.FragmentShader, SourceLocator: "/etc/passwd"}, false},
	}
	for _, c := range cases {
		err := c.d.Validate()
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && !errors.Is(err, shader.ErrDescriptor) {
			t.Errorf("%s: expected ErrDescriptor, got %v", c.name, err)
		}
	}
}

func TestProgramDescriptorStages(t *testing.T) {
	pd := shader.ProgramDescriptor{
		Name:           "earth",
		VertexShader:   shader.Descriptor{SourceLocator: "s/earth.vert"},
		FragmentShader: shader.Descriptor{SourceLocator: "s/earth.frag"},
	}
	stages, err := pd.Stages()
	if err != nil {
		t.Fatal(err)
	}
	if stages[0].Name != "earth" || stages[0].ShaderType != gfx.VertexShader || stages[1].ShaderType != gfx.FragmentShader {
		t.Errorf("unexpected stages %+v", stages)
	}

	pd.FragmentShader.ShaderType = gfx.VertexShader
	if _, err := pd.Stages(); !errors.Is(err, shader.ErrDescriptor) {
		t.Errorf("expected ErrDescriptor for mismatched stage, got %v", err)
	}
}
