package lbp

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"face-features/internal/feature"
)

func gradientImage(h, w int) *mat.Dense {
	img := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(y, x, float64(3*x+5*y)+20*math.Sin(float64(x*y)))
		}
	}
	return img
}

func TestBins(t *testing.T) {
	if got := DefaultExtendedLBP().Bins(); got != 256 {
		t.Errorf("Bins() = %d, want 256", got)
	}
	if got := (ExtendedLBP{Radius: 2, Neighbors: 4}).Bins(); got != 16 {
		t.Errorf("Bins() = %d, want 16", got)
	}
}

func TestCodesShape(t *testing.T) {
	op := DefaultExtendedLBP()
	codes := op.Codes(gradientImage(10, 12))
	h, w := codes.Dims()
	if h != 8 || w != 10 {
		t.Errorf("codes shape = %dx%d, want 8x10", h, w)
	}
}

func TestCodesConstantImage(t *testing.T) {
	op := DefaultExtendedLBP()
	img := mat.NewDense(6, 6, nil)
	img.Apply(func(_, _ int, _ float64) float64 { return 42 }, img)

	codes := op.Codes(img)
	h, w := codes.Dims()
	// Every interpolated neighbor equals the center, so every bit fires.
	want := float64(op.Bins() - 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if codes.At(y, x) != want {
				t.Fatalf("code (%d,%d) = %v, want %v", y, x, codes.At(y, x), want)
			}
		}
	}
}

func TestCodesRange(t *testing.T) {
	op := DefaultExtendedLBP()
	codes := op.Codes(gradientImage(20, 20))
	h, w := codes.Dims()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := codes.At(y, x)
			if c < 0 || c >= float64(op.Bins()) || c != math.Trunc(c) {
				t.Fatalf("code (%d,%d) = %v outside [0, %d)", y, x, c, op.Bins())
			}
		}
	}
}

func TestNewSpatialHistogramInvalid(t *testing.T) {
	if _, err := NewSpatialHistogram(DefaultExtendedLBP(), 0, 4, CombineConcatenate); err == nil {
		t.Error("expected error for zero grid rows")
	}
	if _, err := NewSpatialHistogram(DefaultExtendedLBP(), 4, -1, CombineStack); err == nil {
		t.Error("expected error for negative grid cols")
	}
}

func TestSpatialHistogramConcatenate(t *testing.T) {
	s, err := NewSpatialHistogram(DefaultExtendedLBP(), 4, 4, CombineConcatenate)
	if err != nil {
		t.Fatalf("NewSpatialHistogram: %v", err)
	}

	out, err := s.Extract(feature.FromImage(gradientImage(18, 18)))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	wantLen := 4 * 4 * 256 // cells x bins
	if out.Maps() != 1 || out.Len() != wantLen {
		t.Errorf("output shape = %dx%d, want 1x%d", out.Maps(), out.Len(), wantLen)
	}
}

func TestSpatialHistogramStack(t *testing.T) {
	s, err := NewSpatialHistogram(DefaultExtendedLBP(), 4, 4, CombineStack)
	if err != nil {
		t.Fatalf("NewSpatialHistogram: %v", err)
	}

	out, err := s.Extract(feature.FromImage(gradientImage(18, 18)))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Maps() != 16 || out.Len() != 256 {
		t.Fatalf("output shape = %dx%d, want 16x256", out.Maps(), out.Len())
	}

	// Each populated cell histogram is normalized to sum 1.
	for i := 0; i < out.Maps(); i++ {
		var sum float64
		for j := 0; j < out.Len(); j++ {
			sum += out.Data.At(i, j)
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("cell %d histogram sums to %v, want 1", i, sum)
		}
	}
}

func TestSpatialHistogramMultiMap(t *testing.T) {
	// Two stacked maps, as a raw-mode Gabor filter would produce.
	const h, w = 18, 18
	a := gradientImage(h, w)
	b := gradientImage(h, w)
	data := mat.NewDense(2, h*w, nil)
	data.SetRow(0, a.RawMatrix().Data)
	data.SetRow(1, b.RawMatrix().Data)
	x := &feature.Tensor{MapRows: h, MapCols: w, Data: data}

	stack, err := NewSpatialHistogram(DefaultExtendedLBP(), 4, 4, CombineStack)
	if err != nil {
		t.Fatalf("NewSpatialHistogram: %v", err)
	}
	out, err := stack.Extract(x)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Maps() != 2*16 {
		t.Errorf("stacked rows = %d, want 32", out.Maps())
	}

	concat, err := NewSpatialHistogram(DefaultExtendedLBP(), 4, 4, CombineConcatenate)
	if err != nil {
		t.Fatalf("NewSpatialHistogram: %v", err)
	}
	out, err = concat.Extract(x)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Maps() != 1 || out.Len() != 2*16*256 {
		t.Errorf("concatenated shape = %dx%d, want 1x%d", out.Maps(), out.Len(), 2*16*256)
	}
}

func TestSpatialHistogramTinyImage(t *testing.T) {
	// Image smaller than the grid: short cells yield zero histograms but the
	// descriptor length is unchanged.
	s := DefaultSpatialHistogram(CombineStack)
	out, err := s.Extract(feature.FromImage(gradientImage(6, 6)))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Maps() != 64 || out.Len() != 256 {
		t.Errorf("output shape = %dx%d, want 64x256", out.Maps(), out.Len())
	}
}

func TestComputeBatch(t *testing.T) {
	s := DefaultSpatialHistogram(CombineConcatenate)
	batch := []*feature.Tensor{
		feature.FromImage(gradientImage(18, 18)),
		feature.FromImage(gradientImage(18, 18)),
	}
	out, err := s.Compute(batch, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d outputs, want 2", len(out))
	}
	if !mat.Equal(out[0].Data, out[1].Data) {
		t.Error("identical samples produced different histograms")
	}
}
