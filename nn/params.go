package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Params is the parameter store of one layer: W is (out × in), b has length out.
// Only an Optimizer writes to it; every other reader goes through the
// copying accessors.
type Params struct {
	w *mat.Dense
	b *mat.VecDense
}

// NewParams draws W from N(0, 2/inDim) using src and zeroes b.
// A nil src falls back to the package-global source of x/exp/rand.
func NewParams(inDim, outDim int, src rand.Source) (*Params, error) {
	if inDim <= 0 || outDim <= 0 {
		return nil, &ShapeError{Op: "params", What: "dimensions", Expected: "positive", Actual: dimsString(outDim, inDim)}
	}
	dist := distuv.Normal{
		Mu:    0,
		Sigma: math.Sqrt(2 / float64(inDim)),
		Src:   src,
	}
	data := make([]float64, outDim*inDim)
	for i := range data {
		data[i] = dist.Rand()
	}
	return &Params{
		w: mat.NewDense(outDim, inDim, data),
		b: mat.NewVecDense(outDim, nil),
	}, nil
}

// NewParamsFrom copies explicit weights (one row per output) and bias.
func NewParamsFrom(w [][]float64, b []float64) (*Params, error) {
	if len(w) == 0 || len(w[0]) == 0 {
		return nil, &ShapeError{Op: "params", What: "weights", Expected: "non-empty", Actual: fmt.Sprintf("%d rows", len(w))}
	}
	out, in := len(w), len(w[0])
	dense := mat.NewDense(out, in, nil)
	for i, row := range w {
		if len(row) != in {
			return nil, &ShapeError{Op: "params", What: fmt.Sprintf("weights row %d", i), Expected: fmt.Sprint(in), Actual: fmt.Sprint(len(row))}
		}
		dense.SetRow(i, row)
	}
	if len(b) != out {
		return nil, &ShapeError{Op: "params", What: "bias", Expected: fmt.Sprint(out), Actual: fmt.Sprint(len(b))}
	}
	return &Params{
		w: dense,
		b: mat.NewVecDense(out, append([]float64(nil), b...)),
	}, nil
}

// Dims returns (outDim, inDim).
func (p *Params) Dims() (int, int) {
	return p.w.Dims()
}

// Weights returns a copy of W.
func (p *Params) Weights() *mat.Dense {
	return mat.DenseCopyOf(p.w)
}

// Bias returns a copy of b.
func (p *Params) Bias() *mat.VecDense {
	return mat.VecDenseCopyOf(p.b)
}

func (p *Params) clone() *Params {
	return &Params{w: mat.DenseCopyOf(p.w), b: mat.VecDenseCopyOf(p.b)}
}

// flatten lays W out row-major followed by b.
func (p *Params) flatten() []float64 {
	out, in := p.w.Dims()
	theta := make([]float64, 0, out*in+out)
	theta = append(theta, p.w.RawMatrix().Data...)
	theta = append(theta, p.b.RawVector().Data...)
	return theta
}

func (p *Params) setFlat(theta []float64) {
	w := p.w.RawMatrix().Data
	copy(w, theta[:len(w)])
	copy(p.b.RawVector().Data, theta[len(w):])
}
