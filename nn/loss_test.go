package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewLoss(t *testing.T) {
	loss, err := NewLoss("MSE")
	require.NoError(t, err)
	require.Equal(t, "mse", loss.String())

	_, err = NewLoss("cross_entropy")
	require.ErrorIs(t, err, ErrUnknownLoss)
}

func TestMSEForward(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	y := mat.NewDense(2, 2, []float64{0, 2, 1, 1})
	// example 0: ½(1² + 0²) = 0.5, example 1: ½(2² + 3²) = 6.5
	got, err := MSE{}.Forward(a, y)
	require.NoError(t, err)
	require.InDelta(t, 3.5, got, 1e-12)
}

func TestMSEDerivativeIsBatchMean(t *testing.T) {
	a := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewVecDense(4, []float64{0, 0, 0, 8})
	grad, err := MSE{}.Derivative(a, y)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0.25, 0.5, 0.75, -1}, grad.RawMatrix().Data, 1e-15)
}

func TestMSEDerivativeMatchesForward(t *testing.T) {
	a := mat.NewDense(3, 2, []float64{0.2, -0.4, 1.1, 0.3, -0.9, 0.05})
	y := mat.NewDense(3, 2, []float64{0.5, 0.5, -1, 0, 0.25, 0.75})
	grad, err := MSE{}.Derivative(a, y)
	require.NoError(t, err)

	const h = 1e-6
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			plus := mat.DenseCopyOf(a)
			plus.Set(i, j, a.At(i, j)+h)
			minus := mat.DenseCopyOf(a)
			minus.Set(i, j, a.At(i, j)-h)
			lp, err := MSE{}.Forward(plus, y)
			require.NoError(t, err)
			lm, err := MSE{}.Forward(minus, y)
			require.NoError(t, err)
			require.InDelta(t, (lp-lm)/(2*h), grad.At(i, j), 1e-8)
		}
	}
}

func TestMSEShapeMismatch(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	y := mat.NewVecDense(3, []float64{1, 2, 3})

	_, err := MSE{}.Forward(a, y)
	require.ErrorIs(t, err, ErrShapeMismatch)
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	require.Equal(t, "(2×1)", shapeErr.Expected)
	require.Equal(t, "(3×1)", shapeErr.Actual)

	_, err = MSE{}.Derivative(a, y)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = MSE{}.Forward(&mat.Dense{}, &mat.Dense{})
	require.ErrorIs(t, err, ErrEmptyBatch)
}
