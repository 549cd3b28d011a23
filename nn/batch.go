package nn

import (
	"fmt"

	"neuron_lib/tensor"

	"gonum.org/v1/gonum/mat"
)

// Batch pairs inputs X (one example per row) with targets Y. Scalar targets
// are an (n × 1) column, which is what a *mat.VecDense already is.
type Batch struct {
	X mat.Matrix
	Y mat.Matrix
}

// NewBatch converts flat tensors into a validated batch. y may be 1-D.
func NewBatch(x, y *tensor.Tensor) (Batch, error) {
	xm, err := x.Dense()
	if err != nil {
		return Batch{}, fmt.Errorf("batch inputs: %w", err)
	}
	ym, err := y.Dense()
	if err != nil {
		return Batch{}, fmt.Errorf("batch targets: %w", err)
	}
	b := Batch{X: xm, Y: ym}
	return b, b.Validate()
}

// Validate checks that X and Y are non-empty and agree on batch size.
func (b Batch) Validate() error {
	if b.X == nil || b.Y == nil {
		return fmt.Errorf("batch: %w", ErrEmptyBatch)
	}
	xr, xc := b.X.Dims()
	yr, yc := b.Y.Dims()
	if xr == 0 || xc == 0 || yr == 0 || yc == 0 {
		return fmt.Errorf("batch: %w", ErrEmptyBatch)
	}
	if xr != yr {
		return &ShapeError{Op: "batch", What: "batch size of targets", Expected: fmt.Sprint(xr), Actual: fmt.Sprint(yr)}
	}
	return nil
}

// Size is the number of examples.
func (b Batch) Size() int {
	r, _ := b.X.Dims()
	return r
}
