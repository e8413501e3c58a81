package vkr

import (
	"testing"

	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/gfx/headless"
)

var _ gfx.Backend = (*Backend)(nil)

func TestCompileRejectsText(t *testing.T) {
	b := &Backend{}
	for _, src := range []string{"", "void main() {}", "\x03\x02\x23\x07\x00"} {
		if _, err := b.CompileShader(gfx.VertexShader, src); err != ErrNotSPIRV {
			t.Errorf("%q: expected ErrNotSPIRV, got %v", src, err)
		}
	}
}

func TestLinkRejectsForeignHandles(t *testing.T) {
	hb := headless.New()
	vs, _ := hb.CompileShader(gfx.VertexShader, "void main() {}")
	fs, _ := hb.CompileShader(gfx.FragmentShader, "void main() {}")

	b := &Backend{}
	if _, err := b.LinkProgram(vs, fs); err != gfx.ErrInvalidHandle {
		t.Errorf("expected ErrInvalidHandle, got %v", err)
	}
	if _, err := b.LinkProgram(&Shader{kind: gfx.FragmentShader}, &Shader{kind: gfx.VertexShader}); err == nil {
		t.Error("expected error for swapped stages")
	}
}

func TestLocationsFollowRequestOrder(t *testing.T) {
	b := &Backend{}
	p := &Program{
		attributes: make(map[string]gfx.Location),
		uniforms:   make(map[string]gfx.Location),
	}
	for idx, name := range []string{"position", "normal", "texcoord"} {
		loc, err := b.AttributeLocation(p, name)
		if err != nil || loc != gfx.Location(idx) {
			t.Errorf("%s: got %d, %v", name, loc, err)
		}
	}
	if loc, _ := b.AttributeLocation(p, "position"); loc != 0 {
		t.Errorf("repeated lookup moved position to %d", loc)
	}
	if _, err := b.UniformLocation(hbProgram(), "mvp"); err != gfx.ErrInvalidHandle {
		t.Errorf("expected ErrInvalidHandle, got %v", err)
	}
}

func hbProgram() gfx.ProgramHandle {
	hb := headless.New()
	vs, _ := hb.CompileShader(gfx.VertexShader, "void main() {}")
	fs, _ := hb.CompileShader(gfx.FragmentShader, "void main() {}")
	p, _ := hb.LinkProgram(vs, fs)
	return p
}
