// Package pipeline assembles the fixed feature-extraction recipes used by
// the face recognizer: LGBPHS, LGBPHS2 and the Gabor+Fisherfaces chain.
package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"face-features/internal/feature"
	"face-features/internal/fisher"
	"face-features/internal/gabor"
	"face-features/internal/lbp"
)

// reducedGaborOptions returns the small bank (2 orientations, one sigma,
// 6 kernels) used wherever full response maps are kept in memory.
func reducedGaborOptions(mode gabor.Mode) gabor.Options {
	opts := gabor.DefaultOptions()
	opts.Orientations = 2
	opts.Sigmas = []float64{1}
	opts.Mode = mode
	return opts
}

// LGBPHS is the un-weighted Local Gabor Binary Pattern Histogram Sequence:
// a reduced pure-Go Gabor bank producing raw response maps, followed by
// per-cell LBP histograms stacked across maps and cells.
type LGBPHS struct {
	chain *feature.Chain
}

// NewLGBPHS builds the pipeline.
func NewLGBPHS() (*LGBPHS, error) {
	g, err := gabor.NewFilter(reducedGaborOptions(gabor.ModeRawMaps))
	if err != nil {
		return nil, fmt.Errorf("lgbphs: %w", err)
	}
	h := lbp.DefaultSpatialHistogram(lbp.CombineStack)
	logrus.WithFields(logrus.Fields{
		"kernels": g.Kernels(),
		"grid":    fmt.Sprintf("%dx%d", h.GridRows, h.GridCols),
	}).Debug("built LGBPHS pipeline")
	return &LGBPHS{chain: feature.NewChain(g, h)}, nil
}

// Compute processes a labeled batch. Labels are passed through for interface
// compatibility; no stage of this pipeline learns from them.
func (p *LGBPHS) Compute(batch []*feature.Tensor, labels []int) ([]*feature.Tensor, error) {
	return p.chain.Compute(batch, labels)
}

// Extract computes the descriptor for one image.
func (p *LGBPHS) Extract(x *feature.Tensor) (*feature.Tensor, error) {
	return p.chain.Extract(x)
}

func (p *LGBPHS) String() string { return "LGBPHS" }

// LGBPHS2 replaces the pure-Go bank with the OpenCV-accelerated filter and
// concatenates the per-cell histograms into a single vector.
type LGBPHS2 struct {
	cv    *gabor.CVFilter
	chain *feature.Chain
}

// NewLGBPHS2 builds the pipeline. Close releases the OpenCV kernels.
func NewLGBPHS2() (*LGBPHS2, error) {
	g, err := gabor.NewCVFilter(gabor.DefaultCVOptions())
	if err != nil {
		return nil, fmt.Errorf("lgbphs2: %w", err)
	}
	h := lbp.DefaultSpatialHistogram(lbp.CombineConcatenate)
	logrus.WithFields(logrus.Fields{
		"kernels": g.Kernels(),
		"grid":    fmt.Sprintf("%dx%d", h.GridRows, h.GridCols),
	}).Debug("built LGBPHS2 pipeline")
	return &LGBPHS2{cv: g, chain: feature.NewChain(g, h)}, nil
}

// Compute processes a labeled batch; labels are passed through.
func (p *LGBPHS2) Compute(batch []*feature.Tensor, labels []int) ([]*feature.Tensor, error) {
	return p.chain.Compute(batch, labels)
}

// Extract computes the descriptor for one image.
func (p *LGBPHS2) Extract(x *feature.Tensor) (*feature.Tensor, error) {
	return p.chain.Extract(x)
}

// Close releases the OpenCV kernel Mats.
func (p *LGBPHS2) Close() {
	p.cv.Close()
}

func (p *LGBPHS2) String() string { return "LGBPHS2" }

// GaborFisher chains the reduced Gabor bank in column-flatten mode into a
// Fisherfaces reducer. The reduced bank keeps the column matrix small enough
// to fit a whole training batch in memory.
type GaborFisher struct {
	fisher *fisher.Fisherfaces
	chain  *feature.Chain
}

// NewGaborFisher builds the pipeline with the given reducer options.
func NewGaborFisher(opts fisher.Options) (*GaborFisher, error) {
	g, err := gabor.NewFilter(reducedGaborOptions(gabor.ModeColumnFlatten))
	if err != nil {
		return nil, fmt.Errorf("gaborfisher: %w", err)
	}
	ff := fisher.New(opts)
	logrus.WithFields(logrus.Fields{
		"kernels":    g.Kernels(),
		"components": opts.Components,
	}).Debug("built GaborFisher pipeline")
	return &GaborFisher{fisher: ff, chain: feature.NewChain(g, ff)}, nil
}

// Compute fits the Fisherfaces stage on the Gabor-filtered batch and returns
// the projected samples.
func (p *GaborFisher) Compute(batch []*feature.Tensor, labels []int) ([]*feature.Tensor, error) {
	out, err := p.chain.Compute(batch, labels)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"samples":    len(batch),
		"components": p.fisher.Components(),
	}).Debug("fitted GaborFisher pipeline")
	return out, nil
}

// Extract projects one image through the fitted pipeline. Calling it before
// Compute surfaces fisher.ErrNotFitted.
func (p *GaborFisher) Extract(x *feature.Tensor) (*feature.Tensor, error) {
	return p.chain.Extract(x)
}

// Fitted reports whether the Fisherfaces stage has been fitted.
func (p *GaborFisher) Fitted() bool {
	return p.fisher.Fitted()
}

func (p *GaborFisher) String() string { return "GaborFilterFisher" }
