package nn

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Loss is an objective over a batch of outputs A and targets Y.
type Loss interface {
	Forward(a, y mat.Matrix) (float64, error)
	// Derivative returns dL/dA with A's shape.
	Derivative(a, y mat.Matrix) (*mat.Dense, error)
	fmt.Stringer
}

// NewLoss resolves a loss identifier.
func NewLoss(name string) (Loss, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mse", "mean_squared_error":
		return MSE{}, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownLoss)
}

// MSE is half squared error, summed over outputs and averaged over the batch:
//
//	L = (1/B) Σ_i Σ_j ½(a_ij - y_ij)²
//	dL/dA = (A - Y) / B
//
// The batch mean keeps gradient magnitude independent of batch size.
type MSE struct{}

func (MSE) String() string { return "mse" }

func (MSE) Forward(a, y mat.Matrix) (float64, error) {
	if err := checkTargets("mse", a, y); err != nil {
		return 0, err
	}
	r, c := a.Dims()
	perExample := make([]float64, r)
	for i := 0; i < r; i++ {
		s := 0.0
		for j := 0; j < c; j++ {
			d := a.At(i, j) - y.At(i, j)
			s += 0.5 * d * d
		}
		perExample[i] = s
	}
	return stat.Mean(perExample, nil), nil
}

func (MSE) Derivative(a, y mat.Matrix) (*mat.Dense, error) {
	if err := checkTargets("mse", a, y); err != nil {
		return nil, err
	}
	r, c := a.Dims()
	grad := mat.NewDense(r, c, nil)
	grad.Sub(a, y)
	grad.Scale(1/float64(r), grad)
	return grad, nil
}

func checkTargets(op string, a, y mat.Matrix) error {
	ar, ac := a.Dims()
	yr, yc := y.Dims()
	if ar == 0 || ac == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}
	if ar != yr || ac != yc {
		return &ShapeError{Op: op, What: "targets", Expected: dimsString(ar, ac), Actual: dimsString(yr, yc)}
	}
	return nil
}
