package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Gradients is the result of one backward pass. Every field is freshly
// allocated per call.
type Gradients struct {
	DW   *mat.Dense    // dL/dW, (out × in)
	DB   *mat.VecDense // dL/db, length out
	DX   *mat.Dense    // dL/dX, (batch × in)
	Loss float64       // loss of the forward pass the gradients came from
}

// Backward computes the analytic gradients of loss for the batch (x, y).
//
// It always re-runs the forward pass first, so a stale cache from a
// different batch can never leak into the result. The chain rule is
// composed explicitly:
//
//	delta = dL/dA ⊙ dA/dZ          (batch × out)
//	dW    = deltaᵀ · X             (out × in)
//	db    = Σ_batch delta          (out)
//	dX    = delta · W              (batch × in)
//
// db is a plain sum: the batch mean is already inside dL/dA.
func Backward(l *Layer, loss Loss, x, y mat.Matrix) (*Gradients, error) {
	if l == nil {
		return nil, fmt.Errorf("backward: %w", ErrNotInitialized)
	}
	if loss == nil {
		return nil, fmt.Errorf("backward: nil loss: %w", ErrUnknownLoss)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backward(loss, x, y)
}

func (l *Layer) backward(loss Loss, x, y mat.Matrix) (*Gradients, error) {
	if err := l.checkBatch("backward", x, y); err != nil {
		return nil, err
	}
	if err := l.forward(x); err != nil {
		return nil, err
	}
	z, a := l.cache.Z, l.cache.A

	value, err := loss.Forward(a, y)
	if err != nil {
		return nil, err
	}
	dLdA, err := loss.Derivative(a, y)
	if err != nil {
		return nil, err
	}
	dAdZ := Deactivate(l.act, z, a)

	batch, out := z.Dims()
	_, in := x.Dims()

	delta := mat.NewDense(batch, out, nil)
	delta.MulElem(dLdA, dAdZ)

	dW := mat.NewDense(out, in, nil)
	dW.Mul(delta.T(), x)

	db := mat.NewVecDense(out, nil)
	for j := 0; j < out; j++ {
		db.SetVec(j, mat.Sum(delta.ColView(j)))
	}

	dX := mat.NewDense(batch, in, nil)
	dX.Mul(delta, l.params.w)

	return &Gradients{DW: dW, DB: db, DX: dX, Loss: value}, nil
}

// checkBatch rejects mismatched batches before any numeric work is done.
func (l *Layer) checkBatch(op string, x, y mat.Matrix) error {
	if x == nil || y == nil {
		return fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	if xr == 0 || xc == 0 || yr == 0 || yc == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}
	if xr != yr {
		return &ShapeError{Op: op, What: "batch size of targets", Expected: fmt.Sprint(xr), Actual: fmt.Sprint(yr)}
	}
	if yc != l.outDim {
		return &ShapeError{Op: op, What: "target width", Expected: fmt.Sprint(l.outDim), Actual: fmt.Sprint(yc)}
	}
	if l.params != nil {
		if _, in := l.params.Dims(); xc != in {
			return &ShapeError{Op: op, What: "input dim", Expected: fmt.Sprint(in), Actual: fmt.Sprint(xc)}
		}
	}
	return nil
}

// TrainStep runs forward, backward and opt's update as one uninterrupted
// cycle on l and returns the gradients that were applied.
func TrainStep(l *Layer, loss Loss, opt *SGD, x, y mat.Matrix) (*Gradients, error) {
	if l == nil {
		return nil, fmt.Errorf("train step: %w", ErrNotInitialized)
	}
	if loss == nil {
		return nil, fmt.Errorf("train step: nil loss: %w", ErrUnknownLoss)
	}
	if opt == nil {
		return nil, fmt.Errorf("train step: nil optimizer: %w", ErrInvalidLearningRate)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	g, err := l.backward(loss, x, y)
	if err != nil {
		return nil, err
	}
	if err := opt.step(l, g); err != nil {
		return nil, err
	}
	return g, nil
}
