package nn

import (
	"errors"
	"fmt"
)

var (
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrEmptyBatch          = errors.New("empty batch")
	ErrUnknownActivation   = errors.New("unknown activation")
	ErrUnknownLoss         = errors.New("unknown loss")
	ErrNotInitialized      = errors.New("layer parameters not initialized")
	ErrInvalidLearningRate = errors.New("learning rate must be finite and positive")
	ErrInvalidEpsilon      = errors.New("epsilon must be finite and positive")
	ErrInvalidAlpha        = errors.New("leaky_relu alpha must be in [0, 1)")
)

// ShapeError reports a dimension that does not match what an operation
// expects. It unwraps to ErrShapeMismatch.
type ShapeError struct {
	Op       string
	What     string
	Expected string
	Actual   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s, got %s", e.Op, e.What, e.Expected, e.Actual)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

func dimsString(r, c int) string {
	return fmt.Sprintf("(%d×%d)", r, c)
}
