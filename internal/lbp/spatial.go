package lbp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"face-features/internal/feature"
)

// CombineMethod selects how per-cell histograms are assembled into the final
// descriptor.
type CombineMethod int

const (
	// CombineConcatenate joins every cell histogram into one long vector,
	// preserving per-cell locality in a flat layout.
	CombineConcatenate CombineMethod = iota
	// CombineStack keeps one histogram row per cell, preserving structure
	// for later per-cell weighting.
	CombineStack
)

// SpatialHistogram partitions each LBP code map into a grid and computes a
// normalized histogram per cell. Multi-map input tensors (Gabor response
// stacks) are processed map by map.
type SpatialHistogram struct {
	Operator ExtendedLBP
	GridRows int
	GridCols int
	Combine  CombineMethod
}

// NewSpatialHistogram validates the grid shape and returns the histogram
// stage.
func NewSpatialHistogram(op ExtendedLBP, gridRows, gridCols int, combine CombineMethod) (*SpatialHistogram, error) {
	if gridRows <= 0 || gridCols <= 0 {
		return nil, fmt.Errorf("lbp: grid shape must be positive, got %dx%d", gridRows, gridCols)
	}
	return &SpatialHistogram{
		Operator: op,
		GridRows: gridRows,
		GridCols: gridCols,
		Combine:  combine,
	}, nil
}

// DefaultSpatialHistogram returns the standard 8x8 grid over the default
// extended LBP operator.
func DefaultSpatialHistogram(combine CombineMethod) *SpatialHistogram {
	return &SpatialHistogram{
		Operator: DefaultExtendedLBP(),
		GridRows: 8,
		GridCols: 8,
		Combine:  combine,
	}
}

// Compute applies Extract to every sample in the batch; labels are ignored.
func (s *SpatialHistogram) Compute(batch []*feature.Tensor, _ []int) ([]*feature.Tensor, error) {
	out := make([]*feature.Tensor, len(batch))
	for i, x := range batch {
		t, err := s.Extract(x)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// Extract computes per-cell LBP histograms for every map in the tensor.
// Concatenation yields a single row of maps x cells x bins values; stacking
// yields one row per cell across all maps.
func (s *SpatialHistogram) Extract(x *feature.Tensor) (*feature.Tensor, error) {
	bins := s.Operator.Bins()
	cells := s.GridRows * s.GridCols

	var rows [][]float64
	for i := 0; i < x.Maps(); i++ {
		m, err := x.Map(i)
		if err != nil {
			return nil, fmt.Errorf("lbp: %w", err)
		}
		codes := s.Operator.Codes(m)
		rows = append(rows, s.cellHistograms(codes)...)
	}

	switch s.Combine {
	case CombineConcatenate:
		flat := make([]float64, 0, len(rows)*bins)
		for _, h := range rows {
			flat = append(flat, h...)
		}
		return &feature.Tensor{Data: mat.NewDense(1, len(flat), flat)}, nil
	case CombineStack:
		data := mat.NewDense(x.Maps()*cells, bins, nil)
		for i, h := range rows {
			data.SetRow(i, h)
		}
		return &feature.Tensor{Data: data}, nil
	default:
		return nil, fmt.Errorf("lbp: unknown combine method %d", s.Combine)
	}
}

// cellHistograms splits the code map into the configured grid and returns a
// normalized histogram per cell, row-major. Cells that receive no pixels
// (map smaller than the grid) yield zero histograms.
func (s *SpatialHistogram) cellHistograms(codes *mat.Dense) [][]float64 {
	h, w := codes.Dims()
	bins := s.Operator.Bins()
	cellH := h / s.GridRows
	cellW := w / s.GridCols

	hists := make([][]float64, 0, s.GridRows*s.GridCols)
	for gy := 0; gy < s.GridRows; gy++ {
		for gx := 0; gx < s.GridCols; gx++ {
			hist := make([]float64, bins)
			var count float64
			for y := gy * cellH; y < (gy+1)*cellH && y < h; y++ {
				for x := gx * cellW; x < (gx+1)*cellW && x < w; x++ {
					code := int(codes.At(y, x))
					if code >= 0 && code < bins {
						hist[code]++
						count++
					}
				}
			}
			if count > 0 {
				for i := range hist {
					hist[i] /= count
				}
			}
			hists = append(hists, hist)
		}
	}
	return hists
}
