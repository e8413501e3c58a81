// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// SphereGeometry holds the flat arrays of a generated UV sphere.
type SphereGeometry struct {
	Positions []float32
	Normals   []float32
	TexCoords []float32
	Indices   []uint32
}

// Sphere generates a UV sphere centered on the origin. The seam vertices
// are duplicated so the texture wraps once around.
func Sphere(radius float32, latitudeBands, longitudeBands int) SphereGeometry {
	var s SphereGeometry
	for lat := 0; lat <= latitudeBands; lat++ {
		theta := float64(lat) * math.Pi / float64(latitudeBands)
		sinTheta, cosTheta := math.Sincos(theta)

		for long := 0; long <= longitudeBands; long++ {
			phi := float64(long) * 2 * math.Pi / float64(longitudeBands)
			sinPhi, cosPhi := math.Sincos(phi)

			normal := glm.Vec3{
				float32(cosPhi * sinTheta),
				float32(cosTheta),
				float32(sinPhi * sinTheta),
			}
			pos := normal.Mul(radius)
			s.Normals = append(s.Normals, normal[:]...)
			s.Positions = append(s.Positions, pos[:]...)
			s.TexCoords = append(s.TexCoords,
				1-float32(long)/float32(longitudeBands),
				1-float32(lat)/float32(latitudeBands))
		}
	}

	row := uint32(longitudeBands + 1)
	for lat := uint32(0); lat < uint32(latitudeBands); lat++ {
		for long := uint32(0); long < uint32(longitudeBands); long++ {
			first := lat*row + long
			second := first + row
			s.Indices = append(s.Indices,
				first, second, first+1,
				second, second+1, first+1)
		}
	}
	return s
}
