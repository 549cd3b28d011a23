package nn

import (
	"testing"

	"neuron_lib/tensor"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// scenarioLayer is the single tanh neuron w = [0.3, 0.4], b = 0.1.
func scenarioLayer(t *testing.T, bias float64) *Layer {
	t.Helper()
	p, err := NewParamsFrom([][]float64{{0.3, 0.4}}, []float64{bias})
	require.NoError(t, err)
	l, err := NewLayerWithParams(p, Tanh{})
	require.NoError(t, err)
	return l
}

func scenarioBatch() (*mat.Dense, *mat.VecDense) {
	return mat.NewDense(1, 2, []float64{1.0, -2.0}), mat.NewVecDense(1, []float64{1.5})
}

func uniformMatrix(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (2*rng.Float64() - 1) * scale
	}
	return mat.NewDense(r, c, data)
}

// randomLayer returns a layer with random non-zero bias so that the bias
// path of the chain rule is exercised.
func randomLayer(t *testing.T, rng *rand.Rand, in, out int, act Activator) *Layer {
	t.Helper()
	w := uniformMatrix(rng, out, in, 1)
	b := uniformMatrix(rng, out, 1, 0.5)
	rows := make([][]float64, out)
	for i := range rows {
		rows[i] = mat.Row(nil, i, w)
	}
	p, err := NewParamsFrom(rows, mat.Col(nil, 0, b))
	require.NoError(t, err)
	l, err := NewLayerWithParams(p, act)
	require.NoError(t, err)
	return l
}

func mustTensor(t *testing.T, rows [][]float64) *tensor.Tensor {
	t.Helper()
	ten, err := tensor.FromRows(rows)
	require.NoError(t, err)
	return ten
}

func vectorTensor(values ...float64) *tensor.Tensor {
	return tensor.NewWithData(values)
}
