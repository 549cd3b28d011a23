package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewActivation(t *testing.T) {
	for name, want := range map[string]string{
		"tanh":       "tanh",
		" TANH ":     "tanh",
		"leaky_relu": "leaky_relu(0.01)",
		"sigmoid":    "sigmoid",
		"identity":   "identity",
	} {
		act, err := NewActivation(name, DefaultLeakyAlpha)
		require.NoError(t, err, name)
		assert.Equal(t, want, act.String())
	}

	act, err := NewActivation("leaky_relu", 0.2)
	require.NoError(t, err)
	assert.Equal(t, LeakyReLU{Alpha: 0.2}, act)

	_, err = NewActivation("relu6", 0)
	require.ErrorIs(t, err, ErrUnknownActivation)
}

func TestLeakyReLUAlphaRange(t *testing.T) {
	for _, alpha := range []float64{-0.5, 1, 2, math.NaN(), math.Inf(1)} {
		_, err := NewActivation("leaky_relu", alpha)
		require.ErrorIs(t, err, ErrInvalidAlpha, "alpha %v", alpha)
	}

	// zero is kept as given, not replaced by a default
	act, err := NewActivation("leaky_relu", 0)
	require.NoError(t, err)
	require.Equal(t, LeakyReLU{Alpha: 0}, act)
	require.Equal(t, 0.0, act.Forward(-3))

	// max(α·z, z) for every accepted slope
	for _, alpha := range []float64{0, 0.01, 0.5, 0.99} {
		act, err := NewActivation("leaky_relu", alpha)
		require.NoError(t, err)
		for _, z := range []float64{-2, -0.5, 0, 0.5, 2} {
			require.Equal(t, math.Max(alpha*z, z), act.Forward(z), "alpha %v z %v", alpha, z)
		}
	}
}

func TestTanhDerivativeUsesOutput(t *testing.T) {
	z := 0.7
	a := Tanh{}.Forward(z)
	require.InDelta(t, math.Tanh(z), a, 1e-15)
	require.Equal(t, 1-a*a, Tanh{}.Derivative(z, a))
	// the z argument is ignored
	require.Equal(t, 1-a*a, Tanh{}.Derivative(123, a))
}

func TestLeakyReLU(t *testing.T) {
	l := LeakyReLU{Alpha: 0.1}
	assert.Equal(t, 3.0, l.Forward(3))
	assert.InDelta(t, -0.2, l.Forward(-2), 1e-15)
	assert.Equal(t, 0.0, l.Forward(0))

	assert.Equal(t, 1.0, l.Derivative(3, 3))
	assert.Equal(t, 0.1, l.Derivative(-2, -0.2))
	// subgradient at the kink
	assert.Equal(t, 1.0, l.Derivative(0, 0))
	assert.False(t, l.Smooth())
}

func TestSmoothDerivativesMatchFiniteDifference(t *testing.T) {
	const h = 1e-6
	for _, act := range []Activator{Tanh{}, Sigmoid{}, Identity{}} {
		require.True(t, act.Smooth())
		for _, z := range []float64{-2.5, -0.3, 0, 0.4, 1.7} {
			numeric := (act.Forward(z+h) - act.Forward(z-h)) / (2 * h)
			analytic := act.Derivative(z, act.Forward(z))
			assert.InDelta(t, numeric, analytic, 1e-8, "%s at %v", act, z)
		}
	}
}

func TestActivateShapes(t *testing.T) {
	// scalar
	s := Activate(Tanh{}, mat.NewDense(1, 1, []float64{0.5}))
	require.InDelta(t, math.Tanh(0.5), s.At(0, 0), 1e-15)

	// vector
	v := Activate(LeakyReLU{Alpha: 0.5}, mat.NewVecDense(3, []float64{-2, 0, 2}))
	r, c := v.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 1, c)
	require.Equal(t, []float64{-1, 0, 2}, mat.Col(nil, 0, v))

	// matrix
	z := mat.NewDense(2, 2, []float64{-1, 1, -3, 3})
	a := Activate(LeakyReLU{Alpha: 0.5}, z)
	d := Deactivate(LeakyReLU{Alpha: 0.5}, z, a)
	require.Equal(t, []float64{0.5, 1, 0.5, 1}, d.RawMatrix().Data)
}
