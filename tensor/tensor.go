package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a simple 1-D or 2-D array backed by a flat []float64 in
// row-major order.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a zeroed Tensor of the given shape.
func New(shape ...int) *Tensor {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from a copy of data.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// FromRows creates a 2-D tensor, one row per slice. Rows must share a length.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("FromRows: no rows")
	}
	cols := len(rows[0])
	t := New(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("FromRows: row %d has %d columns, want %d", i, len(row), cols)
		}
		copy(t.Data[i*cols:], row)
	}
	return t, nil
}

// Dims returns the tensor viewed as a matrix: a 1-D tensor of length n is
// an (n × 1) column, so a vector of scalar targets lines up with a batch.
func (t *Tensor) Dims() (int, int, error) {
	switch len(t.Shape) {
	case 1:
		return t.Shape[0], 1, nil
	case 2:
		return t.Shape[0], t.Shape[1], nil
	}
	return 0, 0, fmt.Errorf("Dims: want 1-D or 2-D tensor, got shape %v", t.Shape)
}

// Dense copies t into a gonum matrix using the layout of Dims.
func (t *Tensor) Dense() (*mat.Dense, error) {
	r, c, err := t.Dims()
	if err != nil {
		return nil, err
	}
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("Dense: empty tensor with shape %v", t.Shape)
	}
	if len(t.Data) != r*c {
		return nil, fmt.Errorf("Dense: shape %v needs %d values, have %d", t.Shape, r*c, len(t.Data))
	}
	return mat.NewDense(r, c, append([]float64(nil), t.Data...)), nil
}

// FromDense copies a matrix into a 2-D tensor.
func FromDense(m mat.Matrix) *Tensor {
	r, c := m.Dims()
	t := New(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			t.Data[i*c+j] = m.At(i, j)
		}
	}
	return t
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.offset("At", indices)]
}

// Set sets the element at the given indices to value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.offset("Set", indices)] = value
}

func (t *Tensor) offset(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}
