package shader_test

import (
	"errors"
	"testing"

	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/gfx/headless"
	"github.com/devblok/orbiter/shader"
)

const (
	vertexSource = `
attribute vec3 aVertexPosition;
attribute vec2 aTextureCoord;
uniform mat4 uMVMatrix;
uniform mat4 uPMatrix;
void main() {}
`
	fragmentSource = `
uniform sampler2D uSampler;
void main() {}
`
)

// failingLinker refuses every link.
type failingLinker struct {
	*headless.Backend
	links int
}

func (f *failingLinker) LinkProgram(v, fr gfx.ShaderHandle) (gfx.ProgramHandle, error) {
	f.links++
	return nil, errors.New("varying mismatch")
}

func units(b gfx.Backend) (*shader.Unit, *shader.Unit) {
	vs := shader.NewUnit(b, shader.Descriptor{
		Name:          "p1",
		ShaderType:    gfx.VertexShader,
		SourceLocator: "shaders/p1.vert",
		AttributeNames: map[string]string{
			"position": "aVertexPosition",
			"texcoord": "aTextureCoord",
		},
		UniformNames: map[string]string{
			"modelView":  "uMVMatrix",
			"projection": "uPMatrix",
		},
	})
	fs := shader.NewUnit(b, shader.Descriptor{
		Name:          "p1",
		ShaderType:    gfx.FragmentShader,
		SourceLocator: "shaders/p1.frag",
		UniformNames:  map[string]string{"sampler": "uSampler"},
	})
	return vs, fs
}

func TestProgramLinksOnceInReverseOrder(t *testing.T) {
	backend := headless.New()
	vs, fs := units(backend)
	p := shader.NewProgram(backend, "p1")

	var linked []string
	p.OnLinked(func(*shader.Program) { linked = append(linked, "first") })
	p.OnLinked(func(*shader.Program) { linked = append(linked, "second") })

	if err := p.AddShader(fs); err != nil {
		t.Fatal(err)
	}
	if err := p.AddShader(vs); err != nil {
		t.Fatal(err)
	}
	if p.State() != shader.Empty {
		t.Errorf("expected empty program before compile, got %s", p.State())
	}

	if err := fs.SetSourceAndCompile(fragmentSource); err != nil {
		t.Fatal(err)
	}
	if p.State() != shader.OneAttached {
		t.Errorf("expected one attached, got %s", p.State())
	}
	if err := vs.SetSourceAndCompile(vertexSource); err != nil {
		t.Fatal(err)
	}

	if p.State() != shader.Linked {
		t.Fatalf("expected linked, got %s (%v)", p.State(), p.Err())
	}
	if p.LinkAttempts() != 1 || backend.Stats().Links != 1 {
		t.Errorf("expected exactly one link, got %d", p.LinkAttempts())
	}
	if len(linked) != 2 || linked[0] != "first" || linked[1] != "second" {
		t.Errorf("subscribers ran out of order: %v", linked)
	}
	if loc := p.Attribute("texcoord"); loc != 1 {
		t.Errorf("expected texcoord at 1, got %d", loc)
	}
	if loc := p.Uniform("sampler"); loc != 2 {
		t.Errorf("expected sampler at 2, got %d", loc)
	}
	if loc := p.Uniform("missing"); loc != gfx.InvalidLocation {
		t.Errorf("expected invalid location, got %d", loc)
	}

	p.Release()
	if live := backend.Stats().Live; live != 0 {
		t.Errorf("%d handles left after release", live)
	}
}

func TestProgramRejectsDuplicateKind(t *testing.T) {
	backend := headless.New()
	vs, fs := units(backend)
	other, _ := units(backend)
	p := shader.NewProgram(backend, "p1")

	if err := vs.SetSourceAndCompile(vertexSource); err != nil {
		t.Fatal(err)
	}
	if err := p.AddShader(vs); err != nil {
		t.Fatal(err)
	}
	if err := p.AddShader(other); err != shader.ErrSlotFilled {
		t.Fatalf("expected ErrSlotFilled, got %v", err)
	}
	if p.State() != shader.OneAttached {
		t.Errorf("duplicate changed state to %s", p.State())
	}

	if err := fs.SetSourceAndCompile(fragmentSource); err != nil {
		t.Fatal(err)
	}
	if err := p.AddShader(fs); err != nil {
		t.Fatal(err)
	}
	if p.LinkAttempts() != 1 {
		t.Fatalf("expected one link, got %d", p.LinkAttempts())
	}

	if err := other.SetSourceAndCompile(vertexSource); err != nil {
		t.Fatal(err)
	}
	if p.LinkAttempts() != 1 {
		t.Errorf("rejected shader triggered a re-link")
	}
	if err := p.AddShader(other); err != shader.ErrProgramDone {
		t.Errorf("expected ErrProgramDone, got %v", err)
	}
}

func TestProgramLinkFailure(t *testing.T) {
	backend := &failingLinker{Backend: headless.New()}
	vs, fs := units(backend)
	p := shader.NewProgram(backend, "p1")

	var handled error
	p.ErrorHandler = func(err error) { handled = err }
	p.OnLinked(func(*shader.Program) { t.Error("linked fired for a failed program") })
	var failed int
	p.OnFailed(func(*shader.Program, error) { failed++ })

	p.AddShader(vs)
	p.AddShader(fs)
	vs.SetSourceAndCompile(vertexSource)
	fs.SetSourceAndCompile(fragmentSource)

	if p.State() != shader.Failed {
		t.Fatalf("expected failed, got %s", p.State())
	}
	if handled == nil || backend.links != 1 || failed != 1 {
		t.Errorf("handler %v, links %d, failed %d", handled, backend.links, failed)
	}
	if live := backend.Stats().Live; live != 0 {
		t.Errorf("failed program kept %d handles", live)
	}

	// late subscribers see the failure
	var late int
	p.OnFailed(func(*shader.Program, error) { late++ })
	if late != 1 {
		t.Error("late failure subscriber was not replayed")
	}
}

func TestProgramCompileFailureBlocksLink(t *testing.T) {
	backend := headless.New()
	vs, fs := units(backend)
	p := shader.NewProgram(backend, "p1")
	p.ErrorHandler = func(error) {}

	p.AddShader(vs)
	p.AddShader(fs)
	if err := vs.SetSourceAndCompile("attribute vec3 a;"); err == nil {
		t.Fatal("expected compile error")
	}
	if err := fs.SetSourceAndCompile(fragmentSource); err != nil {
		t.Fatal(err)
	}

	if p.State() != shader.Failed || !errors.Is(p.Err(), shader.ErrCompileBlocked) {
		t.Errorf("expected compile-blocked failure, got %s %v", p.State(), p.Err())
	}
	if p.LinkAttempts() != 0 {
		t.Error("link attempted with a failed shader")
	}
	// the fragment compiled after the program failed
	if live := backend.Stats().Live; live != 0 {
		t.Errorf("failed program kept %d handles", live)
	}
}

func TestFailedProgramReleasesCompiledStage(t *testing.T) {
	backend := headless.New()
	vs, fs := units(backend)
	p := shader.NewProgram(backend, "p1")
	p.ErrorHandler = func(error) {}

	p.AddShader(vs)
	p.AddShader(fs)
	if err := vs.SetSourceAndCompile(vertexSource); err != nil {
		t.Fatal(err)
	}
	if backend.Stats().Live != 1 {
		t.Fatalf("expected the vertex stage to be live, got %d", backend.Stats().Live)
	}
	if err := fs.SetSourceAndCompile(""); !errors.Is(err, shader.ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}

	if p.State() != shader.Failed {
		t.Fatalf("expected failed, got %s", p.State())
	}
	if vs.Handle() != nil || backend.Stats().Live != 0 {
		t.Errorf("compiled stage of a failed program was not released")
	}
}

func TestLateLinkedSubscriberIsReplayed(t *testing.T) {
	backend := headless.New()
	vs, fs := units(backend)
	vs.SetSourceAndCompile(vertexSource)
	fs.SetSourceAndCompile(fragmentSource)

	p := shader.NewProgram(backend, "p1")
	p.AddShader(vs)
	p.AddShader(fs)

	var calls int
	p.OnLinked(func(*shader.Program) { calls++ })
	if calls != 1 {
		t.Errorf("expected replay, got %d calls", calls)
	}
}
