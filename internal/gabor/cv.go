package gabor

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"face-features/internal/feature"
	"face-features/internal/imgconv"
)

// CVOptions parameterizes the OpenCV-accelerated bank: one kernel per
// (orientation, scale) combination, with kernel size halving per scale.
type CVOptions struct {
	Orientations int
	Scales       int
}

// DefaultCVOptions returns the 8-orientation, 5-scale bank (40 kernels).
func DefaultCVOptions() CVOptions {
	return CVOptions{Orientations: 8, Scales: 5}
}

// CVFilter applies a gocv Gabor kernel bank to images, producing a running
// element-wise maximum response. The bank is built once at construction;
// Close releases the kernel Mats.
type CVFilter struct {
	opts    CVOptions
	kernels []gocv.Mat
}

// NewCVFilter builds the kernel bank via gocv.GetGaborKernel. Kernel size
// starts at 199 and halves per scale; each kernel is normalized by 1.5x its
// coefficient sum.
func NewCVFilter(opts CVOptions) (*CVFilter, error) {
	if opts.Orientations <= 0 || opts.Scales <= 0 {
		return nil, fmt.Errorf("gabor: orientation and scale counts must be positive, got %d x %d",
			opts.Orientations, opts.Scales)
	}

	const (
		kMax   = 199
		sigma  = 4.0
		lambda = 10.0
		gamma  = 0.5
	)

	f := &CVFilter{opts: opts}
	for o := 0; o < opts.Orientations; o++ {
		theta := float64(o) / float64(opts.Orientations) * math.Pi
		for scale := 0; scale < opts.Scales; scale++ {
			ksize := int(float64(kMax)/math.Pow(2, float64(scale)) + 0.5)
			k := gocv.GetGaborKernel(image.Pt(ksize, ksize), sigma, theta, lambda, gamma, 0, gocv.MatTypeCV32F)
			sum := k.Sum()
			k.DivideFloat(float32(1.5 * sum.Val1))
			f.kernels = append(f.kernels, k)
		}
	}
	return f, nil
}

// Kernels returns the bank size.
func (f *CVFilter) Kernels() int {
	return len(f.kernels)
}

// Close releases the kernel Mats. The filter must not be used afterwards.
func (f *CVFilter) Close() {
	for i := range f.kernels {
		f.kernels[i].Close()
	}
	f.kernels = nil
}

// Compute applies Extract to every image in the batch; labels are ignored.
func (f *CVFilter) Compute(batch []*feature.Tensor, _ []int) ([]*feature.Tensor, error) {
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

// Extract filters the image with every kernel and folds each response into a
// running element-wise maximum: map k holds the maximum response over kernels
// 0..k at every position, so the final map is the max over the whole bank.
// Downstream histograms are defined over these cumulative maps.
func (f *CVFilter) Extract(x *feature.Tensor) (*feature.Tensor, error) {
	if len(f.kernels) == 0 {
		return nil, fmt.Errorf("gabor: filter is closed")
	}
	if x.Maps() != 1 {
		return nil, fmt.Errorf("gabor: expected a single-map tensor, got %d maps", x.Maps())
	}
	img, err := x.Map(0)
	if err != nil {
		return nil, fmt.Errorf("gabor: %w", err)
	}
	h, w := img.Dims()

	src := imgconv.MatFromDense(img)
	defer src.Close()

	accum := gocv.Zeros(h, w, gocv.MatTypeCV32F)
	defer accum.Close()
	filtered := gocv.NewMat()
	defer filtered.Close()

	out := make([]float64, len(f.kernels)*h*w)
	for k, kern := range f.kernels {
		gocv.Filter2D(src, &filtered, gocv.MatTypeCV32F, kern, image.Pt(-1, -1), 0, gocv.BorderDefault)
		gocv.Max(accum, filtered, &accum)
		base := k * h * w
		for y := 0; y < h; y++ {
			for xx := 0; xx < w; xx++ {
				out[base+y*w+xx] = float64(accum.GetFloatAt(y, xx))
			}
		}
	}

	return &feature.Tensor{
		MapRows: h,
		MapCols: w,
		Data:    mat.NewDense(len(f.kernels), h*w, out),
	}, nil
}

// String summarizes the bank parameters.
func (f *CVFilter) String() string {
	return fmt.Sprintf("GaborFilterCV (orient_count=%d, scale_count=%d)", f.opts.Orientations, f.opts.Scales)
}
