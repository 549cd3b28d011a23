package nn

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DefaultLeakyAlpha is the conventional negative-side slope.
const DefaultLeakyAlpha = 0.01

// Activator is an elementwise nonlinearity with its derivative.
//
// Derivative receives both the pre-activation z and the output a = Forward(z)
// so each activation can read whichever one is exact for it: tanh and sigmoid
// use a, leaky ReLU uses z.
type Activator interface {
	Forward(z float64) float64
	Derivative(z, a float64) float64
	// Smooth reports whether the derivative is continuous everywhere.
	// Finite differences only agree with the analytic derivative
	// everywhere for smooth activations.
	Smooth() bool
	fmt.Stringer
}

// NewActivation resolves an activation identifier. alpha is only used by
// leaky_relu and must lie in [0, 1); zero gives a plain ReLU.
func NewActivation(name string, alpha float64) (Activator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tanh":
		return Tanh{}, nil
	case "leaky_relu", "leakyrelu":
		if !(alpha >= 0 && alpha < 1) {
			return nil, fmt.Errorf("%v: %w", alpha, ErrInvalidAlpha)
		}
		return LeakyReLU{Alpha: alpha}, nil
	case "sigmoid":
		return Sigmoid{}, nil
	case "identity", "linear":
		return Identity{}, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownActivation)
}

type Tanh struct{}

func (Tanh) Forward(z float64) float64 { return math.Tanh(z) }

// Derivative is 1 - a², taken from the cached output.
func (Tanh) Derivative(_, a float64) float64 { return 1 - a*a }

func (Tanh) Smooth() bool   { return true }
func (Tanh) String() string { return "tanh" }

// LeakyReLU computes max(Alpha·z, z) for 0 <= Alpha < 1.
type LeakyReLU struct {
	Alpha float64
}

func (l LeakyReLU) Forward(z float64) float64 {
	if z < 0 {
		return l.Alpha * z
	}
	return z
}

// Derivative is evaluated on z. At the kink (z == 0) the subgradient 1 is used.
func (l LeakyReLU) Derivative(z, _ float64) float64 {
	if z >= 0 {
		return 1
	}
	return l.Alpha
}

func (LeakyReLU) Smooth() bool { return false }

func (l LeakyReLU) String() string {
	return fmt.Sprintf("leaky_relu(%g)", l.Alpha)
}

type Sigmoid struct{}

func (Sigmoid) Forward(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }

func (Sigmoid) Derivative(_, a float64) float64 { return a * (1 - a) }

func (Sigmoid) Smooth() bool   { return true }
func (Sigmoid) String() string { return "sigmoid" }

type Identity struct{}

func (Identity) Forward(z float64) float64       { return z }
func (Identity) Derivative(_, _ float64) float64 { return 1 }
func (Identity) Smooth() bool                    { return true }
func (Identity) String() string                  { return "identity" }

// Activate applies act elementwise to z. Vectors and 1×1 matrices work the
// same way as full batches.
func Activate(act Activator, z mat.Matrix) *mat.Dense {
	r, c := z.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(func(_, _ int, v float64) float64 {
		return act.Forward(v)
	}, z)
	return o
}

// Deactivate returns dA/dZ elementwise. z and a must have the same shape.
func Deactivate(act Activator, z, a mat.Matrix) *mat.Dense {
	r, c := z.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(func(i, j int, v float64) float64 {
		return act.Derivative(v, a.At(i, j))
	}, z)
	return o
}
