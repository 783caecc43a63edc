// Package fisher implements the Fisherfaces dimensionality reducer: PCA to
// collapse the null space of the within-class scatter, followed by linear
// discriminant analysis on the projected data.
package fisher

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"face-features/internal/feature"
)

// ErrNotFitted is returned by Extract before any Compute call has fitted the
// projection.
var ErrNotFitted = errors.New("fisher: reducer not fitted")

// Options configures the reducer.
type Options struct {
	// Components is the maximum number of discriminant components to keep.
	// The effective count is clamped to classes-1 during fit.
	Components int
}

// DefaultOptions returns the standard 14-component configuration.
func DefaultOptions() Options {
	return Options{Components: 14}
}

// Fisherfaces projects flattened feature vectors into a discriminative
// subspace. A reducer has two states: unfitted after construction, and
// fitted after a successful Compute. Once fitted it is read-only and safe
// for concurrent Extract calls.
type Fisherfaces struct {
	opts   Options
	fitted bool
	dim    int
	mean   []float64
	proj   *mat.Dense // dim x components
}

// New returns an unfitted reducer.
func New(opts Options) *Fisherfaces {
	return &Fisherfaces{opts: opts}
}

// Fitted reports whether Compute has run.
func (f *Fisherfaces) Fitted() bool {
	return f.fitted
}

// Components returns the number of retained discriminants, or 0 before fit.
func (f *Fisherfaces) Components() int {
	if !f.fitted {
		return 0
	}
	_, k := f.proj.Dims()
	return k
}

// Compute fits the projection on a labeled batch and returns the projected
// samples. Samples are flattened row-major; every sample must have the same
// length.
func (f *Fisherfaces) Compute(batch []*feature.Tensor, labels []int) ([]*feature.Tensor, error) {
	if f.opts.Components < 1 {
		return nil, fmt.Errorf("fisher: component count must be positive, got %d", f.opts.Components)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("fisher: empty batch")
	}
	if len(batch) != len(labels) {
		return nil, fmt.Errorf("fisher: %d samples but %d labels", len(batch), len(labels))
	}

	n := len(batch)
	d := batch[0].Maps() * batch[0].Len()
	x := mat.NewDense(n, d, nil)
	for i, t := range batch {
		v := t.Flatten()
		if len(v) != d {
			return nil, fmt.Errorf("fisher: sample %d has %d values, want %d", i, len(v), d)
		}
		x.SetRow(i, v)
	}

	classes := countClasses(labels)
	c := len(classes)
	if c < 2 {
		return nil, fmt.Errorf("fisher: need at least 2 classes, got %d", c)
	}
	if n <= c {
		return nil, fmt.Errorf("fisher: need more samples (%d) than classes (%d)", n, c)
	}

	// Center the data.
	mean := make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x.At(i, j)
		}
		mean[j] = sum / float64(n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, x.At(i, j)-mean[j])
		}
	}

	// PCA down to n-c components so the within-class scatter is invertible.
	p := n - c
	if p > d {
		p = d
	}
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("fisher: SVD failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	wpca := mat.DenseCopyOf(v.Slice(0, d, 0, p))

	// Project and run LDA in the reduced space.
	var proj mat.Dense
	proj.Mul(x, wpca)
	wlda, err := discriminants(&proj, labels, classes, min(f.opts.Components, c-1))
	if err != nil {
		return nil, err
	}

	var combined mat.Dense
	combined.Mul(wpca, wlda)
	f.proj = &combined
	f.mean = mean
	f.dim = d
	f.fitted = true

	out := make([]*feature.Tensor, n)
	for i, t := range batch {
		y, err := f.project(t)
		if err != nil {
			return nil, err
		}
		out[i] = y
	}
	return out, nil
}

// Extract projects a single sample with the fitted transform.
func (f *Fisherfaces) Extract(x *feature.Tensor) (*feature.Tensor, error) {
	if !f.fitted {
		return nil, ErrNotFitted
	}
	return f.project(x)
}

// String summarizes the reducer configuration.
func (f *Fisherfaces) String() string {
	return fmt.Sprintf("Fisherfaces (components=%d, fitted=%v)", f.opts.Components, f.fitted)
}

func (f *Fisherfaces) project(t *feature.Tensor) (*feature.Tensor, error) {
	v := t.Flatten()
	if len(v) != f.dim {
		return nil, fmt.Errorf("fisher: sample has %d values, fitted on %d", len(v), f.dim)
	}
	row := mat.NewDense(1, f.dim, nil)
	for j, val := range v {
		row.Set(0, j, val-f.mean[j])
	}
	var y mat.Dense
	y.Mul(row, f.proj)
	return feature.FromVector(y.RawRowView(0)), nil
}

// discriminants solves the generalized eigenproblem Sw^-1 Sb w = lambda w on
// the PCA-projected data and keeps the k leading eigenvectors.
func discriminants(x *mat.Dense, labels []int, classes map[int]int, k int) (*mat.Dense, error) {
	n, p := x.Dims()

	// Class means. The data is globally centered, so the between-class
	// scatter is taken about the origin.
	means := make(map[int][]float64, len(classes))
	for label := range classes {
		means[label] = make([]float64, p)
	}
	for i := 0; i < n; i++ {
		m := means[labels[i]]
		for j := 0; j < p; j++ {
			m[j] += x.At(i, j)
		}
	}
	for label, count := range classes {
		m := means[label]
		for j := 0; j < p; j++ {
			m[j] /= float64(count)
		}
	}

	sw := mat.NewDense(p, p, nil)
	sb := mat.NewDense(p, p, nil)
	diff := mat.NewDense(1, p, nil)
	var outer mat.Dense
	for i := 0; i < n; i++ {
		m := means[labels[i]]
		for j := 0; j < p; j++ {
			diff.Set(0, j, x.At(i, j)-m[j])
		}
		outer.Reset()
		outer.Mul(diff.T(), diff)
		sw.Add(sw, &outer)
	}
	mrow := mat.NewDense(1, p, nil)
	for label, count := range classes {
		mrow.SetRow(0, means[label])
		outer.Reset()
		outer.Mul(mrow.T(), mrow)
		outer.Scale(float64(count), &outer)
		sb.Add(sb, &outer)
	}

	var m mat.Dense
	if err := m.Solve(sw, sb); err != nil {
		return nil, fmt.Errorf("fisher: within-class scatter is singular: %w", err)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(&m, mat.EigenRight); !ok {
		return nil, fmt.Errorf("fisher: eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return real(values[order[a]]) > real(values[order[b]])
	})

	if k > p {
		k = p
	}
	w := mat.NewDense(p, k, nil)
	for col := 0; col < k; col++ {
		src := order[col]
		for row := 0; row < p; row++ {
			w.Set(row, col, real(vecs.At(row, src)))
		}
	}
	return w, nil
}

func countClasses(labels []int) map[int]int {
	classes := make(map[int]int)
	for _, l := range labels {
		classes[l]++
	}
	return classes
}
