package model_test

import (
	"errors"
	"image"
	"testing"

	"github.com/devblok/orbiter/gfx"
	"github.com/devblok/orbiter/gfx/headless"
	"github.com/devblok/orbiter/model"
	glm "github.com/go-gl/mathgl/mgl32"
)

var _ model.Object = (*model.RenderModel)(nil)

func TestPositionMatrix(t *testing.T) {
	m := model.PositionMatrix([]float32{1, 2, 3, 0, 90, 0})
	if !m.Col(3).ApproxEqual(glm.Vec4{1, 2, 3, 1}) {
		t.Errorf("unexpected translation %v", m.Col(3))
	}
	p := m.Mul4x1(glm.Vec4{1, 0, 0, 1})
	if !p.ApproxEqualThreshold(glm.Vec4{1, 2, 2, 1}, 1e-5) {
		t.Errorf("heading did not rotate around y: %v", p)
	}

	short := model.PositionMatrix([]float32{5})
	if !short.Col(3).ApproxEqual(glm.Vec4{5, 0, 0, 1}) {
		t.Errorf("short position not padded: %v", short.Col(3))
	}
}

func TestRenderModelUploadAndDraw(t *testing.T) {
	backend := headless.New()
	rm := model.NewRenderModel(model.ObjectDescriptor{
		ObjectName:     "satellite",
		ObjectPosition: []float32{0, 0, -5, 0, 0, 0},
		Program:        "plain",
	})
	colored, err := model.NewMesh(model.FragmentDescriptor{
		Kind:        model.ColorKind,
		VertexArray: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		ColorArray:  []float32{1, 0, 0, 1, 0, 1, 0, 1, 0, 0, 1, 1},
		ItemSize:    3,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rm.Add(colored)

	if err := rm.Draw(backend, nil, glm.Ident4()); !errors.Is(err, model.ErrNotUploaded) {
		t.Fatalf("expected ErrNotUploaded, got %v", err)
	}
	if err := rm.Upload(backend); err != nil {
		t.Fatal(err)
	}
	// positions, indices, colors
	if backend.Stats().Buffers != 3 {
		t.Errorf("expected 3 buffers, got %d", backend.Stats().Buffers)
	}

	vs, _ := backend.CompileShader(gfx.VertexShader, "void main() {}")
	fs, _ := backend.CompileShader(gfx.FragmentShader, "void main() {}")
	program, err := backend.LinkProgram(vs, fs)
	if err != nil {
		t.Fatal(err)
	}
	rm.SetRotation(glm.HomogRotate3DY(0.5))
	if err := rm.Draw(backend, program, glm.Ident4()); err != nil {
		t.Fatal(err)
	}
	if backend.Stats().Draws != 1 {
		t.Errorf("expected one draw, got %d", backend.Stats().Draws)
	}

	call := colored.DrawCall(program, rm.Transform())
	if call.Count != 3 || len(call.Extra) != 1 {
		t.Errorf("unexpected draw call %+v", call)
	}
	vertices := call.Vertices.(*headless.Buffer).Data
	if len(vertices) != 36 {
		t.Fatalf("expected 9 floats, got %d bytes", len(vertices))
	}
	// second vertex x, little endian 1.0
	if got := vertices[12:16]; got[0] != 0 || got[1] != 0 || got[2] != 0x80 || got[3] != 0x3f {
		t.Errorf("unexpected float encoding % x", got)
	}
	indices := call.Indices.(*headless.Buffer).Data
	if len(indices) != 12 || indices[8] != 2 {
		t.Errorf("unexpected index encoding % x", indices)
	}

	rm.Release()
	program.Release()
	vs.Release()
	fs.Release()
	if live := backend.Stats().Live; live != 0 {
		t.Errorf("%d handles left after release", live)
	}
}

func TestFailedUploadReleasesEarlierMeshes(t *testing.T) {
	backend := headless.New()
	rm := model.NewRenderModel(model.ObjectDescriptor{ObjectName: "box"})
	for _, kind := range []model.FragmentKind{model.VertexKind, model.TextureKind} {
		mesh, err := model.NewMesh(model.FragmentDescriptor{
			Kind:         kind,
			VertexArray:  []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
			TextureArray: []float32{0, 0, 1, 0, 0, 1},
		}, nil)
		if err != nil {
			t.Fatal(err)
		}
		rm.Add(mesh)
	}

	// the texture mesh has no image
	if err := rm.Upload(backend); !errors.Is(err, model.ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	if backend.Stats().Buffers != 2 {
		t.Errorf("expected the vertex mesh to upload, got %d buffers", backend.Stats().Buffers)
	}
	if live := backend.Stats().Live; live != 0 {
		t.Errorf("%d handles left after failed upload", live)
	}
}

func TestTextureMeshNeedsImage(t *testing.T) {
	mesh, err := model.NewMesh(model.FragmentDescriptor{
		Kind:           model.TextureKind,
		VertexArray:    []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		TextureArray:   []float32{0, 0, 1, 0, 0, 1},
		TextureLocator: "textures/earth.png",
		ItemSize:       3,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	tex, ok := mesh.(model.TextureInstaller)
	if !ok {
		t.Fatal("texture mesh does not accept images")
	}
	if tex.TextureLocator() != "textures/earth.png" {
		t.Errorf("unexpected locator %s", tex.TextureLocator())
	}

	backend := headless.New()
	if err := mesh.Upload(backend); !errors.Is(err, model.ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}

	tex.SetImage(image.NewRGBA(image.Rect(0, 0, 3, 5)))
	if err := mesh.Upload(backend); err != nil {
		t.Fatal(err)
	}
	call := mesh.DrawCall(nil, glm.Ident4())
	if call.Texture == nil {
		t.Fatal("draw call without texture")
	}
	if ext := call.Texture.Extent(); ext.Width != 4 || ext.Height != 8 {
		t.Errorf("texture not resized to power of two: %+v", ext)
	}
}

func TestPowerOfTwo(t *testing.T) {
	square := image.NewRGBA(image.Rect(0, 0, 16, 16))
	if model.PowerOfTwo(square) != image.Image(square) {
		t.Error("power of two image was copied")
	}
	scaled := model.PowerOfTwo(image.NewGray(image.Rect(0, 0, 100, 33)))
	if b := scaled.Bounds(); b.Dx() != 128 || b.Dy() != 64 {
		t.Errorf("unexpected bounds %v", b)
	}
	if model.PowerOfTwo(nil) != nil {
		t.Error("nil image produced a result")
	}
}
