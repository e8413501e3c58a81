// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"errors"
	"path"
	"strings"

	"github.com/devblok/orbiter/util/collada"
)

// ColladaColor is the color given to imported geometry.
var ColladaColor = [4]float32{1.0, 1.0, 0.0, 1.0}

// ImportCollada converts the first geometry of a Collada document into an
// object descriptor named after the file. Triangle corners are expanded
// into their own vertices; texture coordinates are kept when present.
func ImportCollada(locator string, fileContents []byte) (ObjectDescriptor, error) {
	doc, err := collada.Parse(fileContents)
	if err != nil {
		return ObjectDescriptor{}, err
	}

	mesh := &doc.Geometries[0].Mesh
	if len(mesh.Triangles) == 0 {
		return ObjectDescriptor{}, errors.New("collada geometry has no triangles")
	}

	fragment := FragmentDescriptor{Kind: ColorKind, ItemSize: 3}
	for ti := range mesh.Triangles {
		tris := &mesh.Triangles[ti]
		vertexInput, ok := tris.Input("VERTEX")
		if !ok {
			return ObjectDescriptor{}, errors.New("collada triangles without VERTEX input")
		}
		positions, err := mesh.Source(vertexInput.Source)
		if err != nil {
			return ObjectDescriptor{}, err
		}
		if positions.Stride() < 3 {
			return ObjectDescriptor{}, errors.New("collada positions need 3 components")
		}
		var uv *collada.Source
		texInput, hasUV := tris.Input("TEXCOORD")
		if hasUV {
			if uv, err = mesh.Source(texInput.Source); err != nil {
				return ObjectDescriptor{}, err
			}
			if uv.Stride() < 2 {
				return ObjectDescriptor{}, errors.New("collada texture coordinates need 2 components")
			}
		}

		stride := tris.Stride()
		for corner := 0; corner+stride <= len(tris.Index); corner += stride {
			indices := tris.Index[corner : corner+stride]
			pos, err := positions.Element(indices[vertexInput.Offset])
			if err != nil {
				return ObjectDescriptor{}, err
			}
			fragment.IndexArray = append(fragment.IndexArray, uint32(len(fragment.VertexArray)/3))
			fragment.VertexArray = append(fragment.VertexArray, pos[0], pos[1], pos[2])
			fragment.ColorArray = append(fragment.ColorArray, ColladaColor[:]...)
			if hasUV {
				coord, err := uv.Element(indices[texInput.Offset])
				if err != nil {
					return ObjectDescriptor{}, err
				}
				fragment.TextureArray = append(fragment.TextureArray, coord[0], coord[1])
			}
		}
	}

	name := strings.TrimSuffix(path.Base(locator), path.Ext(locator))
	return ObjectDescriptor{
		ObjectName:     name,
		ObjectPosition: make([]float32, 6),
		MeshFragments:  []FragmentDescriptor{fragment},
	}, nil
}
