package imgconv

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

func TestGrayDense(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	d := GrayDense(img)
	h, w := d.Dims()
	if h != 2 || w != 2 {
		t.Fatalf("shape = %dx%d, want 2x2", h, w)
	}

	tests := []struct {
		y, x int
		want float64
	}{
		{0, 0, 0.299 * 255},
		{0, 1, 0.587 * 255},
		{1, 0, 0.114 * 255},
		{1, 1, 255},
	}
	for _, tt := range tests {
		if got := d.At(tt.y, tt.x); math.Abs(got-tt.want) > 0.5 {
			t.Errorf("At(%d,%d) = %v, want ~%v", tt.y, tt.x, got, tt.want)
		}
	}
}

func TestResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	dst := Resize(src, 4, 6)
	if sz := dst.Bounds().Size(); sz.X != 4 || sz.Y != 6 {
		t.Errorf("resized to %dx%d, want 4x6", sz.X, sz.Y)
	}
}

func TestResizeNoOp(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if got := Resize(src, 8, 8); got != src {
		t.Error("same-size resize should return the input image")
	}
}

func TestMatDenseRoundTrip(t *testing.T) {
	src := mat.NewDense(3, 4, []float64{
		0, 1, 2, 3,
		-4, 5.5, -6.25, 7,
		128, 255, 0.5, -0.5,
	})

	m := MatFromDense(src)
	defer m.Close()

	back, err := DenseFromMat(m)
	if err != nil {
		t.Fatalf("DenseFromMat: %v", err)
	}
	h, w := back.Dims()
	if h != 3 || w != 4 {
		t.Fatalf("shape = %dx%d, want 3x4", h, w)
	}
	// Values survive the float32 round trip exactly; every input here is
	// representable in float32.
	if !mat.Equal(src, back) {
		t.Errorf("round trip mismatch:\ngot %v\nwant %v", mat.Formatted(back), mat.Formatted(src))
	}
}

func TestDenseFromMatRejectsMultiChannel(t *testing.T) {
	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer m.Close()
	if _, err := DenseFromMat(m); err == nil {
		t.Error("expected error for a 3-channel mat")
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := DenseFromMat(empty); err == nil {
		t.Error("expected error for an empty mat")
	}
}
