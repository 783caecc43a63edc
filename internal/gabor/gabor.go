// Package gabor implements Gabor filter banks for face feature extraction.
//
// Two backends are provided: a pure Go implementation built on gonum
// (this file), and an OpenCV-accelerated one in cv.go. The pure Go path
// works without any native OpenCV install.
package gabor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"face-features/internal/feature"
	"face-features/pkg/statutil"
)

// Mode selects what Extract returns for each image.
type Mode int

const (
	// ModeStatistics returns a kernels x 2 matrix of per-kernel response
	// mean and variance, z-score normalized per column across kernels.
	ModeStatistics Mode = iota
	// ModeRawMaps returns the full convolved response map per kernel.
	ModeRawMaps
	// ModeColumnFlatten returns each response map flattened to a row,
	// stacked into a kernels x (H*W) matrix.
	ModeColumnFlatten
)

// Border selects the boundary handling for convolution.
type Border int

const (
	// BorderAuto resolves to wrap for ModeStatistics and reflect otherwise.
	BorderAuto Border = iota
	BorderWrap
	BorderReflect
)

// Options parameterizes the kernel bank and the output mode. The bank holds
// one kernel per (orientation, sigma, frequency) combination.
type Options struct {
	Frequencies  []float64
	Orientations int
	Sigmas       []float64
	Mode         Mode
	Border       Border
}

// DefaultOptions returns the full-strength bank: 8 orientations, 5 scales,
// 3 frequencies (120 kernels), statistics output.
func DefaultOptions() Options {
	return Options{
		Frequencies:  []float64{0.05, 0.15, 0.25},
		Orientations: 8,
		Sigmas:       []float64{1, 2, 4, 8, 16},
		Mode:         ModeStatistics,
		Border:       BorderAuto,
	}
}

// Filter applies a fixed Gabor kernel bank to images. The bank is built once
// at construction and never mutated, so a Filter is safe for concurrent use.
type Filter struct {
	opts    Options
	border  Border
	kernels []*mat.Dense
}

// NewFilter builds the kernel bank described by opts.
func NewFilter(opts Options) (*Filter, error) {
	if opts.Orientations <= 0 {
		return nil, fmt.Errorf("gabor: orientation count must be positive, got %d", opts.Orientations)
	}
	if len(opts.Frequencies) == 0 || len(opts.Sigmas) == 0 {
		return nil, fmt.Errorf("gabor: frequency and sigma sets must be non-empty")
	}
	for _, s := range opts.Sigmas {
		if s <= 0 {
			return nil, fmt.Errorf("gabor: sigma must be positive, got %v", s)
		}
	}

	border := opts.Border
	if border == BorderAuto {
		if opts.Mode == ModeStatistics {
			border = BorderWrap
		} else {
			border = BorderReflect
		}
	}

	f := &Filter{opts: opts, border: border}
	for o := 0; o < opts.Orientations; o++ {
		theta := float64(o) / float64(opts.Orientations) * math.Pi
		for _, sigma := range opts.Sigmas {
			for _, freq := range opts.Frequencies {
				f.kernels = append(f.kernels, kernel(freq, theta, sigma, sigma))
			}
		}
	}
	return f, nil
}

// Kernels returns the bank size.
func (f *Filter) Kernels() int {
	return len(f.kernels)
}

// Kernel returns kernel i of the bank. Read-only.
func (f *Filter) Kernel(i int) *mat.Dense {
	return f.kernels[i]
}

// Mode returns the configured output mode.
func (f *Filter) Mode() Mode {
	return f.opts.Mode
}

// Compute applies Extract to every image in the batch. Labels are ignored;
// the filter learns nothing.
func (f *Filter) Compute(batch []*feature.Tensor, _ []int) ([]*feature.Tensor, error) {
	out := make([]*feature.Tensor, len(batch))
	for i, x := range batch {
		t, err := f.Extract(x)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// Extract filters a single image with every kernel in the bank. The input
// tensor must hold exactly one 2D map.
func (f *Filter) Extract(x *feature.Tensor) (*feature.Tensor, error) {
	if x.Maps() != 1 {
		return nil, fmt.Errorf("gabor: expected a single-map tensor, got %d maps", x.Maps())
	}
	img, err := x.Map(0)
	if err != nil {
		return nil, fmt.Errorf("gabor: %w", err)
	}
	h, w := img.Dims()

	switch f.opts.Mode {
	case ModeStatistics:
		means := make([]float64, len(f.kernels))
		vars := make([]float64, len(f.kernels))
		for k, kern := range f.kernels {
			resp := convolve(img, kern, f.border)
			means[k], vars[k] = statutil.MeanVariance(resp.RawMatrix().Data)
		}
		means = statutil.ZScore(means)
		vars = statutil.ZScore(vars)
		out := mat.NewDense(len(f.kernels), 2, nil)
		for k := range f.kernels {
			out.Set(k, 0, means[k])
			out.Set(k, 1, vars[k])
		}
		return &feature.Tensor{Data: out}, nil

	case ModeRawMaps, ModeColumnFlatten:
		out := mat.NewDense(len(f.kernels), h*w, nil)
		for k, kern := range f.kernels {
			resp := convolve(img, kern, f.border)
			out.SetRow(k, resp.RawMatrix().Data)
		}
		t := &feature.Tensor{Data: out}
		if f.opts.Mode == ModeRawMaps {
			t.MapRows, t.MapCols = h, w
		}
		return t, nil

	default:
		return nil, fmt.Errorf("gabor: unknown mode %d", f.opts.Mode)
	}
}

// String summarizes the bank parameters.
func (f *Filter) String() string {
	return fmt.Sprintf("GaborFilter (freq=%v, theta=%d, sigma=%v, kernels=%d)",
		f.opts.Frequencies, f.opts.Orientations, f.opts.Sigmas, len(f.kernels))
}

// kernel builds the real part of a complex Gabor kernel: a Gaussian envelope
// modulated by a cosine carrier along the rotated x axis. The support extends
// three standard deviations from the center, giving an odd side length.
func kernel(freq, theta, sigmaX, sigmaY float64) *mat.Dense {
	ct, st := math.Cos(theta), math.Sin(theta)
	x0 := int(math.Ceil(math.Max(math.Abs(3*sigmaX*ct), math.Max(math.Abs(3*sigmaY*st), 1))))
	y0 := int(math.Ceil(math.Max(math.Abs(3*sigmaY*ct), math.Max(math.Abs(3*sigmaX*st), 1))))

	rows, cols := 2*y0+1, 2*x0+1
	k := mat.NewDense(rows, cols, nil)
	norm := 1 / (2 * math.Pi * sigmaX * sigmaY)
	for y := -y0; y <= y0; y++ {
		for x := -x0; x <= x0; x++ {
			rotx := float64(x)*ct + float64(y)*st
			roty := -float64(x)*st + float64(y)*ct
			g := norm * math.Exp(-0.5*(rotx*rotx/(sigmaX*sigmaX)+roty*roty/(sigmaY*sigmaY)))
			k.Set(y+y0, x+x0, g*math.Cos(2*math.Pi*freq*rotx))
		}
	}
	return k
}

// convolve performs direct 2D convolution with the given border handling.
// Output has the same shape as the input.
func convolve(img, kern *mat.Dense, border Border) *mat.Dense {
	h, w := img.Dims()
	kh, kw := kern.Dims()
	cy, cx := kh/2, kw/2

	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for ky := 0; ky < kh; ky++ {
				for kx := 0; kx < kw; kx++ {
					// Convolution flips the kernel relative to correlation.
					sy := borderIndex(y+cy-ky, h, border)
					sx := borderIndex(x+cx-kx, w, border)
					sum += img.At(sy, sx) * kern.At(ky, kx)
				}
			}
			out.Set(y, x, sum)
		}
	}
	return out
}

// borderIndex maps an out-of-range index into [0, n) according to the border
// mode. Reflection is half-sample symmetric: (d c b a | a b c d).
func borderIndex(i, n int, border Border) int {
	if i >= 0 && i < n {
		return i
	}
	if border == BorderWrap {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - 1 - i
		}
	}
	return i
}
