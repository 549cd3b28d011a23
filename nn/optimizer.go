package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SGD is plain gradient descent: W -= lr·dW, b -= lr·db.
// It is the only writer of a layer's parameters.
type SGD struct {
	LearningRate float64
}

func NewSGD(lr float64) (*SGD, error) {
	if err := checkLearningRate(lr); err != nil {
		return nil, err
	}
	return &SGD{LearningRate: lr}, nil
}

// Step applies g to l's parameters in place.
func (o *SGD) Step(l *Layer, g *Gradients) error {
	if l == nil {
		return fmt.Errorf("step: %w", ErrNotInitialized)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return o.step(l, g)
}

func (o *SGD) step(l *Layer, g *Gradients) error {
	if err := checkLearningRate(o.LearningRate); err != nil {
		return err
	}
	if l.params == nil {
		return fmt.Errorf("step: %w", ErrNotInitialized)
	}
	if g == nil || g.DW == nil || g.DB == nil {
		return fmt.Errorf("step: missing gradients: %w", ErrShapeMismatch)
	}
	out, in := l.params.Dims()
	if r, c := g.DW.Dims(); r != out || c != in {
		return &ShapeError{Op: "step", What: "dW", Expected: dimsString(out, in), Actual: dimsString(r, c)}
	}
	if n := g.DB.Len(); n != out {
		return &ShapeError{Op: "step", What: "db", Expected: fmt.Sprint(out), Actual: fmt.Sprint(n)}
	}

	var dw mat.Dense
	dw.Scale(o.LearningRate, g.DW)
	l.params.w.Sub(l.params.w, &dw)

	var db mat.VecDense
	db.ScaleVec(o.LearningRate, g.DB)
	l.params.b.SubVec(l.params.b, &db)
	return nil
}

func checkLearningRate(lr float64) error {
	if lr <= 0 || math.IsNaN(lr) || math.IsInf(lr, 0) {
		return fmt.Errorf("%v: %w", lr, ErrInvalidLearningRate)
	}
	return nil
}
