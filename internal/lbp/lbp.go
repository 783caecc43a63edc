// Package lbp implements the extended (circular) local binary pattern
// operator and spatially enhanced histograms over LBP code maps.
package lbp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ExtendedLBP samples Neighbors points on a circle of the given Radius around
// each pixel, comparing bilinearly interpolated neighbor values against the
// center to form a binary code.
type ExtendedLBP struct {
	Radius    int
	Neighbors int
}

// DefaultExtendedLBP returns the standard 8-neighbor, radius-1 operator.
func DefaultExtendedLBP() ExtendedLBP {
	return ExtendedLBP{Radius: 1, Neighbors: 8}
}

// Bins returns the number of distinct codes the operator produces.
func (e ExtendedLBP) Bins() int {
	return 1 << e.Neighbors
}

// Codes computes the LBP code map for a grayscale image. The result is
// (H-2R) x (W-2R); border pixels whose sampling circle leaves the image are
// dropped.
func (e ExtendedLBP) Codes(img *mat.Dense) *mat.Dense {
	h, w := img.Dims()
	r := e.Radius
	oh, ow := h-2*r, w-2*r
	if oh <= 0 || ow <= 0 {
		return mat.NewDense(1, 1, nil)
	}

	out := mat.NewDense(oh, ow, nil)
	for n := 0; n < e.Neighbors; n++ {
		// Sample point on the circle.
		angle := 2 * math.Pi * float64(n) / float64(e.Neighbors)
		sx := -float64(r) * math.Sin(angle)
		sy := float64(r) * math.Cos(angle)

		// Relative indices and bilinear interpolation weights.
		fx, fy := int(math.Floor(sx)), int(math.Floor(sy))
		cx, cy := int(math.Ceil(sx)), int(math.Ceil(sy))
		tx, ty := sx-float64(fx), sy-float64(fy)
		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		bit := float64(int(1) << n)
		for y := r; y < h-r; y++ {
			for x := r; x < w-r; x++ {
				t := w1*img.At(y+fy, x+fx) +
					w2*img.At(y+fy, x+cx) +
					w3*img.At(y+cy, x+fx) +
					w4*img.At(y+cy, x+cx)
				if t >= img.At(y, x) {
					out.Set(y-r, x-r, out.At(y-r, x-r)+bit)
				}
			}
		}
	}
	return out
}
