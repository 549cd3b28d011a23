package nn

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultEpsilon balances truncation error against cancellation error.
const DefaultEpsilon = 1e-5

// Formula selects the finite-difference stencil used by an Oracle.
type Formula int

const (
	// ForwardDifference approximates dL/dθ as (L(θ+ε) - L(θ)) / ε.
	ForwardDifference Formula = iota
	// CentralDifference approximates dL/dθ as (L(θ+ε) - L(θ-ε)) / 2ε.
	CentralDifference
)

func ParseFormula(s string) (Formula, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward":
		return ForwardDifference, nil
	case "central":
		return CentralDifference, nil
	}
	return 0, fmt.Errorf("unknown finite-difference formula %q", s)
}

func (f Formula) String() string {
	switch f {
	case ForwardDifference:
		return "forward"
	case CentralDifference:
		return "central"
	}
	return fmt.Sprintf("Formula(%d)", int(f))
}

// Oracle approximates parameter gradients by perturbing one parameter at a
// time and re-running the forward pass and loss. It costs one forward pass
// per scalar parameter (two for CentralDifference) and is meant for checking
// Backward on small layers, not for training.
//
// The perturbations happen on a private copy of the parameters; the layer
// passed in is never modified beyond lazy initialisation.
type Oracle struct {
	Epsilon float64
	Formula Formula
}

// NumericalGradients runs a forward-difference Oracle with the given epsilon.
func NumericalGradients(l *Layer, loss Loss, x, y mat.Matrix, epsilon float64) (*Gradients, error) {
	return Oracle{Epsilon: epsilon}.Check(l, loss, x, y)
}

// Check returns numeric dW and db (DX is left nil) together with the
// unperturbed loss. The layer lock is held only while its parameters are
// copied.
func (o Oracle) Check(l *Layer, loss Loss, x, y mat.Matrix) (*Gradients, error) {
	eps, err := o.validate(l, loss)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	scratch, err := l.snapshot(x, y)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return o.run(scratch, loss, x, y, eps)
}

func (o Oracle) validate(l *Layer, loss Loss) (float64, error) {
	if l == nil {
		return 0, fmt.Errorf("oracle: %w", ErrNotInitialized)
	}
	if loss == nil {
		return 0, fmt.Errorf("oracle: nil loss: %w", ErrUnknownLoss)
	}
	eps := o.Epsilon
	if eps == 0 {
		eps = DefaultEpsilon
	}
	if eps < 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		return 0, fmt.Errorf("oracle: %v: %w", eps, ErrInvalidEpsilon)
	}
	return eps, nil
}

// snapshot validates the batch, initialises a lazy layer and returns a
// private copy to perturb. l.mu must be held.
func (l *Layer) snapshot(x, y mat.Matrix) (*Layer, error) {
	if err := l.checkBatch("oracle", x, y); err != nil {
		return nil, err
	}
	if l.params == nil {
		if err := l.forward(x); err != nil {
			return nil, err
		}
	}
	return l.clone(), nil
}

func (o Oracle) run(scratch *Layer, loss Loss, x, y mat.Matrix, eps float64) (*Gradients, error) {
	switch o.Formula {
	case ForwardDifference:
		return forwardDifference(scratch, loss, x, y, eps)
	case CentralDifference:
		return centralDifference(scratch, loss, x, y, eps)
	}
	return nil, fmt.Errorf("oracle: unsupported formula %v", o.Formula)
}

func lossAt(l *Layer, loss Loss, x, y mat.Matrix) (float64, error) {
	if err := l.forward(x); err != nil {
		return 0, err
	}
	return loss.Forward(l.cache.A, y)
}

func forwardDifference(l *Layer, loss Loss, x, y mat.Matrix, eps float64) (*Gradients, error) {
	base, err := lossAt(l, loss, x, y)
	if err != nil {
		return nil, err
	}
	out, in := l.params.Dims()

	w := l.params.w
	dW := mat.NewDense(out, in, nil)
	for i := 0; i < out; i++ {
		for j := 0; j < in; j++ {
			orig := w.At(i, j)
			w.Set(i, j, orig+eps)
			plus, err := lossAt(l, loss, x, y)
			w.Set(i, j, orig)
			if err != nil {
				return nil, err
			}
			dW.Set(i, j, (plus-base)/eps)
		}
	}

	b := l.params.b
	dB := mat.NewVecDense(out, nil)
	for i := 0; i < out; i++ {
		orig := b.AtVec(i)
		b.SetVec(i, orig+eps)
		plus, err := lossAt(l, loss, x, y)
		b.SetVec(i, orig)
		if err != nil {
			return nil, err
		}
		dB.SetVec(i, (plus-base)/eps)
	}
	return &Gradients{DW: dW, DB: dB, Loss: base}, nil
}

func centralDifference(l *Layer, loss Loss, x, y mat.Matrix, eps float64) (*Gradients, error) {
	theta := l.params.flatten()
	var ferr error
	f := func(t []float64) float64 {
		l.params.setFlat(t)
		v, err := lossAt(l, loss, x, y)
		if err != nil && ferr == nil {
			ferr = err
		}
		return v
	}
	grad := fd.Gradient(nil, f, theta, &fd.Settings{
		Formula: fd.Central,
		Step:    eps,
	})
	if ferr != nil {
		return nil, ferr
	}
	l.params.setFlat(theta)
	base, err := lossAt(l, loss, x, y)
	if err != nil {
		return nil, err
	}

	out, in := l.params.Dims()
	return &Gradients{
		DW:   mat.NewDense(out, in, grad[:out*in]),
		DB:   mat.NewVecDense(out, grad[out*in:]),
		Loss: base,
	}, nil
}

// Report summarises how far two gradient bundles disagree.
type Report struct {
	MaxAbsDiff float64
	MaxRelDiff float64
	// Param names where MaxAbsDiff occurred: "W" or "b".
	Param string
	Row   int
	Col   int
	// NearKink is set when a non-smooth activation saw a pre-activation
	// close enough to its kink that a perturbation could cross it. The
	// finite difference is then expected to disagree.
	NearKink bool
}

// Within reports whether every parameter agrees to within tol.
func (r Report) Within(tol float64) bool {
	return r.MaxAbsDiff <= tol
}

func (r Report) String() string {
	s := fmt.Sprintf("max abs diff %.3e at %s[%d,%d], max rel diff %.3e", r.MaxAbsDiff, r.Param, r.Row, r.Col, r.MaxRelDiff)
	if r.NearKink {
		s += " (near kink)"
	}
	return s
}

// Compare measures the elementwise disagreement of dW and db.
func Compare(analytic, numeric *Gradients) (Report, error) {
	if analytic == nil || numeric == nil || analytic.DW == nil || numeric.DW == nil || analytic.DB == nil || numeric.DB == nil {
		return Report{}, fmt.Errorf("compare: missing gradients: %w", ErrShapeMismatch)
	}
	ar, ac := analytic.DW.Dims()
	nr, nc := numeric.DW.Dims()
	if ar != nr || ac != nc {
		return Report{}, &ShapeError{Op: "compare", What: "dW", Expected: dimsString(ar, ac), Actual: dimsString(nr, nc)}
	}
	if analytic.DB.Len() != numeric.DB.Len() {
		return Report{}, &ShapeError{Op: "compare", What: "db", Expected: fmt.Sprint(analytic.DB.Len()), Actual: fmt.Sprint(numeric.DB.Len())}
	}

	a := flatGradients(analytic)
	n := flatGradients(numeric)
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, n)
	rel := make([]float64, len(a))
	for i := range diff {
		diff[i] = math.Abs(diff[i])
		scale := math.Max(math.Abs(a[i]), math.Abs(n[i]))
		if scale > 0 {
			rel[i] = diff[i] / scale
		}
	}

	// MaxIdx and Max skip NaN, so a non-finite entry is reported first.
	var r Report
	idx := nonFinite(diff)
	if idx >= 0 {
		r.MaxAbsDiff, r.MaxRelDiff = math.Inf(1), math.Inf(1)
	} else {
		idx = floats.MaxIdx(diff)
		r.MaxAbsDiff, r.MaxRelDiff = diff[idx], floats.Max(rel)
	}
	if idx < ar*ac {
		r.Param, r.Row, r.Col = "W", idx/ac, idx%ac
	} else {
		r.Param, r.Row = "b", idx-ar*ac
	}
	return r, nil
}

func nonFinite(s []float64) int {
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

func flatGradients(g *Gradients) []float64 {
	r, c := g.DW.Dims()
	flat := make([]float64, 0, r*c+r)
	for i := 0; i < r; i++ {
		flat = append(flat, mat.Row(nil, i, g.DW)...)
	}
	return append(flat, mat.Col(nil, 0, g.DB)...)
}

// Verify runs Backward and the oracle on the same parameters and compares
// them. The layer stays locked for the whole call, so a concurrent
// TrainStep cannot land between the two. The returned bundle is the
// analytic one.
func (o Oracle) Verify(l *Layer, loss Loss, x, y mat.Matrix) (Report, *Gradients, error) {
	eps, err := o.validate(l, loss)
	if err != nil {
		return Report{}, nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	analytic, err := l.backward(loss, x, y)
	if err != nil {
		return Report{}, nil, err
	}
	scratch, err := l.snapshot(x, y)
	if err != nil {
		return Report{}, nil, err
	}
	numeric, err := o.run(scratch, loss, x, y, eps)
	if err != nil {
		return Report{}, nil, err
	}
	r, err := Compare(analytic, numeric)
	if err != nil {
		return Report{}, nil, err
	}
	r.NearKink = l.nearKink(x, eps)
	return r, analytic, nil
}

// NearKink reports whether the last forward pass put any pre-activation
// within the largest shift a single ε perturbation of W or b can cause,
// measured from the kink at z = 0. It is always false for smooth
// activations.
func (l *Layer) NearKink(x mat.Matrix, eps float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nearKink(x, eps)
}

func (l *Layer) nearKink(x mat.Matrix, eps float64) bool {
	z := l.cache.Z
	if l.act.Smooth() || z == nil {
		return false
	}
	xr, xc := x.Dims()
	maxX := 1.0
	for i := 0; i < xr; i++ {
		for j := 0; j < xc; j++ {
			maxX = math.Max(maxX, math.Abs(x.At(i, j)))
		}
	}
	margin := eps * maxX
	zr, zc := z.Dims()
	for i := 0; i < zr; i++ {
		for j := 0; j < zc; j++ {
			if math.Abs(z.At(i, j)) <= margin {
				return true
			}
		}
	}
	return false
}
