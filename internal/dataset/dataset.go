package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrData reports missing, malformed or length-mismatched features and labels.
	ErrData = errors.New("dataset: invalid data")
	// ErrIndex reports an out of range sample index.
	ErrIndex = errors.New("dataset: index out of range")
)

// Options fixes the geometry every sample must have.
type Options struct {
	SeqLen     int
	Channels   int
	NumClasses int
}

// Sample is one feature matrix and its class label. Features are shared
// with the dataset and must not be modified.
type Sample struct {
	Features *mat.Dense
	Label    int
}

// Dataset provides indexed access to parallel feature and label slices.
type Dataset struct {
	features []*mat.Dense
	labels   []int
}

// New validates features and labels and wraps them.
func New(features []*mat.Dense, labels []int, opts Options) (*Dataset, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d feature matrices for %d labels", ErrData, len(features), len(labels))
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrData)
	}
	for i, f := range features {
		if f == nil {
			return nil, fmt.Errorf("%w: sample %d has no features", ErrData, i)
		}
		r, c := f.Dims()
		if r != opts.SeqLen || c != opts.Channels {
			return nil, fmt.Errorf("%w: sample %d is [%d, %d], want [%d, %d]", ErrData, i, r, c, opts.SeqLen, opts.Channels)
		}
		if labels[i] < 0 || labels[i] >= opts.NumClasses {
			return nil, fmt.Errorf("%w: sample %d label %d outside [0, %d)", ErrData, i, labels[i], opts.NumClasses)
		}
	}
	return &Dataset{features: features, labels: labels}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// At returns the i-th sample.
func (d *Dataset) At(i int) (Sample, error) {
	if i < 0 || i >= len(d.labels) {
		return Sample{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndex, i, len(d.labels))
	}
	return Sample{Features: d.features[i], Label: d.labels[i]}, nil
}
