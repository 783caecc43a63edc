// Package feature defines the operator contract shared by all feature
// extractors and the tensor type passed between pipeline stages.
package feature

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor holds the output of a feature stage: a stack of flattened 2D maps,
// one per matrix row. MapRows and MapCols record the spatial shape of each
// map; both are zero when the rows are plain feature vectors with no spatial
// layout.
type Tensor struct {
	MapRows int
	MapCols int
	Data    *mat.Dense
}

// FromImage wraps a single 2D image as a one-map tensor.
func FromImage(img *mat.Dense) *Tensor {
	r, c := img.Dims()
	data := make([]float64, r*c)
	for y := 0; y < r; y++ {
		copy(data[y*c:(y+1)*c], img.RawRowView(y))
	}
	return &Tensor{
		MapRows: r,
		MapCols: c,
		Data:    mat.NewDense(1, r*c, data),
	}
}

// FromVector wraps a flat feature vector as a single-row tensor.
func FromVector(v []float64) *Tensor {
	data := make([]float64, len(v))
	copy(data, v)
	return &Tensor{Data: mat.NewDense(1, len(v), data)}
}

// Maps returns the number of maps (or feature rows) in the tensor.
func (t *Tensor) Maps() int {
	r, _ := t.Data.Dims()
	return r
}

// Len returns the number of values per map.
func (t *Tensor) Len() int {
	_, c := t.Data.Dims()
	return c
}

// Map reshapes row i back into its 2D spatial form. The returned matrix
// shares backing storage with the tensor and must be treated as read-only.
func (t *Tensor) Map(i int) (*mat.Dense, error) {
	if t.MapRows <= 0 || t.MapCols <= 0 {
		return nil, fmt.Errorf("tensor rows carry no spatial shape")
	}
	return mat.NewDense(t.MapRows, t.MapCols, t.Data.RawRowView(i)), nil
}

// Flatten concatenates all rows into a single vector, row-major.
func (t *Tensor) Flatten() []float64 {
	r, c := t.Data.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, t.Data.RawRowView(i)...)
	}
	return out
}

// Operator is the contract every feature extractor implements.
//
// Compute processes a labeled batch; operators that learn parameters
// (Fisherfaces) fit themselves here, stateless operators just apply Extract
// per sample and ignore the labels. Extract transforms one sample with the
// current (fitted or fixed) state.
type Operator interface {
	Compute(batch []*Tensor, labels []int) ([]*Tensor, error)
	Extract(x *Tensor) (*Tensor, error)
}

// Chain composes two operators sequentially: the first stage's output feeds
// the second stage's input.
type Chain struct {
	First  Operator
	Second Operator
}

// NewChain builds a chain of two operators.
func NewChain(first, second Operator) *Chain {
	return &Chain{First: first, Second: second}
}

// Compute runs the first stage over the batch, then feeds its full output
// into the second stage with the same labels. The first failure from either
// stage aborts.
func (c *Chain) Compute(batch []*Tensor, labels []int) ([]*Tensor, error) {
	mid, err := c.First.Compute(batch, labels)
	if err != nil {
		return nil, fmt.Errorf("chain first stage: %w", err)
	}
	out, err := c.Second.Compute(mid, labels)
	if err != nil {
		return nil, fmt.Errorf("chain second stage: %w", err)
	}
	return out, nil
}

// Extract transforms a single sample through both stages.
func (c *Chain) Extract(x *Tensor) (*Tensor, error) {
	mid, err := c.First.Extract(x)
	if err != nil {
		return nil, fmt.Errorf("chain first stage: %w", err)
	}
	out, err := c.Second.Extract(mid)
	if err != nil {
		return nil, fmt.Errorf("chain second stage: %w", err)
	}
	return out, nil
}
