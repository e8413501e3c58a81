package model_test

import (
	"testing"

	"github.com/devblok/orbiter/model"
)

const quad = `<COLLADA>
  <library_geometries>
    <geometry id="Quad-mesh" name="Quad">
      <mesh>
        <source id="Quad-mesh-positions">
          <float_array id="Quad-mesh-positions-array" count="12">0 0 0 1 0 0 1 1 0 0 1 0</float_array>
          <technique_common><accessor count="4" stride="3"/></technique_common>
        </source>
        <source id="Quad-mesh-normals">
          <float_array id="Quad-mesh-normals-array" count="3">0 0 1</float_array>
          <technique_common><accessor count="1" stride="3"/></technique_common>
        </source>
        <vertices id="Quad-mesh-vertices">
          <input semantic="POSITION" source="#Quad-mesh-positions"/>
        </vertices>
        <triangles count="2">
          <input semantic="VERTEX" source="#Quad-mesh-vertices" offset="0"/>
          <input semantic="NORMAL" source="#Quad-mesh-normals" offset="1"/>
          <p>0 0 1 0 2 0 0 0 2 0 3 0</p>
        </triangles>
      </mesh>
    </geometry>
  </library_geometries>
</COLLADA>`

func TestImportCollada(t *testing.T) {
	d, err := model.ImportCollada("models/quad.dae", []byte(quad))
	if err != nil {
		t.Fatal(err)
	}
	if d.ObjectName != "quad" {
		t.Errorf("unexpected name %s", d.ObjectName)
	}
	if len(d.MeshFragments) != 1 {
		t.Fatalf("expected one fragment, got %d", len(d.MeshFragments))
	}
	f := d.MeshFragments[0]
	if len(f.VertexArray) != 6*3 || len(f.IndexArray) != 6 || len(f.ColorArray) != 6*4 {
		t.Fatalf("unexpected array sizes %d %d %d", len(f.VertexArray), len(f.IndexArray), len(f.ColorArray))
	}
	// fifth corner is position 2
	if f.VertexArray[12] != 1 || f.VertexArray[13] != 1 {
		t.Errorf("corner resolved to wrong position: %v", f.VertexArray[12:15])
	}

	mesh, err := model.NewMesh(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if mesh.Kind() != model.ColorKind {
		t.Errorf("unexpected kind %s", mesh.Kind())
	}
}

func TestImportColladaRejectsGarbage(t *testing.T) {
	if _, err := model.ImportCollada("bad.dae", []byte("not xml")); err == nil {
		t.Error("expected error")
	}
}
