// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"image"

	"golang.org/x/image/draw"
)

// PowerOfTwo returns img scaled up to the next power of two in each
// dimension. Images already that size are returned unchanged.
func PowerOfTwo(img image.Image) image.Image {
	if img == nil {
		return nil
	}
	bounds := img.Bounds()
	w, h := nextPowerOfTwo(bounds.Dx()), nextPowerOfTwo(bounds.Dy())
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
