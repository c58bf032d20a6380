package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape reports tensors whose dimensions do not match the classifier.
	ErrShape = errors.New("model: shape mismatch")
	// ErrData reports labels outside the class range.
	ErrData = errors.New("model: invalid data")
	// ErrNumeric reports a non-finite loss.
	ErrNumeric = errors.New("model: non-finite value")
)

// Batch represents a minibatch of feature matrices and labels.
type Batch struct {
	Inputs  []*mat.Dense
	Labels  []int
	Indices []int
}

// Len returns the number of samples in the batch.
func (b Batch) Len() int {
	return len(b.Inputs)
}

// Classifier maps a batch of [SeqLen, Channels] matrices to per-class scores.
type Classifier interface {
	// Forward returns logits of shape [len(inputs), NumClasses] and caches
	// what Backward needs.
	Forward(inputs []*mat.Dense) (*mat.Dense, error)
	// Backward accumulates parameter gradients for the last Forward call.
	Backward(dScores *mat.Dense) error
	Params() []*Param
	SetTraining(training bool)
}

// Variant selects the classifier architecture.
type Variant string

const (
	VariantLSTM   Variant = "lstm"
	VariantConv   Variant = "conv"
	VariantLinear Variant = "linear"
)

// ParseVariant converts a config string into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantLSTM, VariantConv, VariantLinear:
		return v, nil
	default:
		return "", fmt.Errorf("model: unknown variant %q", s)
	}
}

// Spec describes the input geometry and layer sizes of a classifier.
type Spec struct {
	SeqLen     int
	Channels   int
	NumClasses int
	Hidden     int
	Filters    int
	Kernel     int
	Dropout    float64
}

// DefaultSpec matches 99 MFCC frames of 12 coefficients over 12 classes.
func DefaultSpec() Spec {
	return Spec{
		SeqLen:     99,
		Channels:   12,
		NumClasses: 12,
		Hidden:     64,
		Filters:    32,
		Kernel:     5,
	}
}

// Validate checks the geometry for the chosen variant.
func (s Spec) Validate(v Variant) error {
	if s.SeqLen <= 0 || s.Channels <= 0 {
		return fmt.Errorf("model: input shape [%d, %d] must be positive", s.SeqLen, s.Channels)
	}
	if s.NumClasses < 2 {
		return fmt.Errorf("model: need at least 2 classes (got %d)", s.NumClasses)
	}
	if s.Dropout < 0 || s.Dropout >= 1 {
		return fmt.Errorf("model: dropout must be in [0, 1) (got %g)", s.Dropout)
	}
	switch v {
	case VariantLSTM:
		if s.Hidden <= 0 {
			return fmt.Errorf("model: hidden size must be > 0 (got %d)", s.Hidden)
		}
	case VariantConv:
		if s.Filters <= 0 {
			return fmt.Errorf("model: filters must be > 0 (got %d)", s.Filters)
		}
		if s.Kernel <= 0 || s.Kernel > s.SeqLen {
			return fmt.Errorf("model: kernel must be in [1, %d] (got %d)", s.SeqLen, s.Kernel)
		}
	}
	return nil
}

// New constructs a classifier of the given variant with seeded initialization.
func New(v Variant, spec Spec, seed int64) (Classifier, error) {
	if err := spec.Validate(v); err != nil {
		return nil, err
	}
	switch v {
	case VariantLSTM:
		return NewLSTM(spec, seed), nil
	case VariantConv:
		return NewConv(spec, seed), nil
	case VariantLinear:
		return NewLinear(spec, seed), nil
	default:
		return nil, fmt.Errorf("model: unknown variant %q", v)
	}
}

func checkInputs(inputs []*mat.Dense, seqLen, channels int) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: empty batch", ErrShape)
	}
	for i, x := range inputs {
		if x == nil {
			return fmt.Errorf("%w: input %d is nil", ErrShape, i)
		}
		r, c := x.Dims()
		if r != seqLen || c != channels {
			return fmt.Errorf("%w: input %d is [%d, %d], want [%d, %d]", ErrShape, i, r, c, seqLen, channels)
		}
	}
	return nil
}

func checkGrad(dScores *mat.Dense, batch, classes int) error {
	if batch == 0 {
		return fmt.Errorf("%w: backward called before forward", ErrShape)
	}
	if dScores == nil {
		return fmt.Errorf("%w: nil gradient", ErrShape)
	}
	r, c := dScores.Dims()
	if r != batch || c != classes {
		return fmt.Errorf("%w: gradient is [%d, %d], want [%d, %d]", ErrShape, r, c, batch, classes)
	}
	return nil
}
