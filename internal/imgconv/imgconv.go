// Package imgconv converts between the image representations used by the
// feature extractors: image.Image for dataset input, gonum matrices for the
// pure Go math, and gocv Mats for the OpenCV-accelerated paths. Everything
// here is in-memory; the library does no file I/O of its own.
package imgconv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
)

// GrayDense converts an image to a luminance grayscale matrix with values
// in [0, 255].
func GrayDense(img image.Image) *mat.Dense {
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			out.Set(y, x, lum)
		}
	}
	return out
}

// Resize scales an image to w x h with bilinear interpolation. Datasets fix
// the input size per model, so every sample is resized before filtering.
func Resize(img image.Image, w, h int) image.Image {
	if sz := img.Bounds().Size(); sz.X == w && sz.Y == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// MatFromDense copies a matrix into a single-channel float32 Mat. The caller
// owns the returned Mat and must Close it.
func MatFromDense(d *mat.Dense) gocv.Mat {
	h, w := d.Dims()
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetFloatAt(y, x, float32(d.At(y, x)))
		}
	}
	return m
}

// DenseFromMat copies a single-channel Mat into a gonum matrix.
func DenseFromMat(m gocv.Mat) (*mat.Dense, error) {
	if m.Empty() {
		return nil, fmt.Errorf("imgconv: empty mat")
	}
	if m.Channels() != 1 {
		return nil, fmt.Errorf("imgconv: expected single-channel mat, got %d channels", m.Channels())
	}
	conv := m
	if m.Type() != gocv.MatTypeCV32F {
		conv = gocv.NewMat()
		defer conv.Close()
		m.ConvertTo(&conv, gocv.MatTypeCV32F)
	}
	h, w := conv.Rows(), conv.Cols()
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(y, x, float64(conv.GetFloatAt(y, x)))
		}
	}
	return out, nil
}
