package nn

import (
	"fmt"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Cache holds the intermediate values of the most recent forward pass.
type Cache struct {
	Z *mat.Dense // pre-activation, (batch × out)
	A *mat.Dense // activation(Z)
}

// Layer is a fully-connected layer followed by an elementwise activation:
//
//	Z = X·Wᵀ + b   (b broadcast over rows)
//	A = act(Z)
//
// Parameters are created on the first Forward call when the layer was built
// without them. All methods are safe for concurrent use; a forward, backward
// and optimizer step never interleave on the same layer.
type Layer struct {
	mu     sync.Mutex
	act    Activator
	outDim int
	src    rand.Source
	params *Params
	cache  Cache
}

// NewLayer returns a layer whose parameters are initialised lazily from src
// once the input width is known.
func NewLayer(outDim int, act Activator, src rand.Source) (*Layer, error) {
	if outDim <= 0 {
		return nil, &ShapeError{Op: "layer", What: "output dim", Expected: "positive", Actual: fmt.Sprint(outDim)}
	}
	if act == nil {
		return nil, fmt.Errorf("layer: nil activation: %w", ErrUnknownActivation)
	}
	return &Layer{act: act, outDim: outDim, src: src}, nil
}

// NewLayerWithParams wraps an existing parameter store.
func NewLayerWithParams(p *Params, act Activator) (*Layer, error) {
	if p == nil {
		return nil, fmt.Errorf("layer: %w", ErrNotInitialized)
	}
	if act == nil {
		return nil, fmt.Errorf("layer: nil activation: %w", ErrUnknownActivation)
	}
	out, _ := p.Dims()
	return &Layer{act: act, outDim: out, params: p}, nil
}

func (l *Layer) Activation() Activator { return l.act }

// Params returns the parameter store, or nil before the first Forward of a
// lazily initialised layer.
func (l *Layer) Params() *Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params
}

// Forward computes A for the batch x (one example per row) and overwrites
// the cache.
func (l *Layer) Forward(x mat.Matrix) (*mat.Dense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.forward(x); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(l.cache.A), nil
}

// Cache returns a copy of the most recent forward values. Both fields are nil
// before the first successful Forward.
func (l *Layer) Cache() Cache {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache.Z == nil {
		return Cache{}
	}
	return Cache{Z: mat.DenseCopyOf(l.cache.Z), A: mat.DenseCopyOf(l.cache.A)}
}

func (l *Layer) forward(x mat.Matrix) error {
	batch, in := x.Dims()
	if batch == 0 || in == 0 {
		return fmt.Errorf("forward: %w", ErrEmptyBatch)
	}
	if l.params == nil {
		p, err := NewParams(in, l.outDim, l.src)
		if err != nil {
			return err
		}
		l.params = p
	}
	out, want := l.params.Dims()
	if in != want {
		return &ShapeError{Op: "forward", What: "input dim", Expected: fmt.Sprint(want), Actual: fmt.Sprint(in)}
	}

	z := mat.NewDense(batch, out, nil)
	z.Mul(x, l.params.w.T())
	bias := l.params.b.RawVector().Data
	for i := 0; i < batch; i++ {
		row := z.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
	l.cache = Cache{Z: z, A: Activate(l.act, z)}
	return nil
}

// clone returns an unlocked copy with private parameters and an empty cache.
func (l *Layer) clone() *Layer {
	return &Layer{act: l.act, outDim: l.outDim, params: l.params.clone()}
}
