package features

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// MemoryStore serves splits held in memory for a single feature type.
type MemoryStore struct {
	FeatureType string
	Train       Split
	Test        Split
}

func (m *MemoryStore) TrainTest(ctx context.Context, featureType string) (Split, Split, error) {
	if err := ctx.Err(); err != nil {
		return Split{}, Split{}, err
	}
	if featureType != m.FeatureType {
		return Split{}, Split{}, fmt.Errorf("%w: %q (memory store holds %q)", ErrUnknownFeatureType, featureType, m.FeatureType)
	}
	return m.Train, m.Test, nil
}

// SyntheticOptions sizes a generated dataset.
type SyntheticOptions struct {
	Shape   Shape
	Classes int
	Train   int
	Test    int
	// Noise is the standard deviation added around each class prototype.
	Noise float64
	Seed  int64
}

// NewSynthetic builds a MemoryStore whose classes are noisy copies of
// per-class prototype matrices, so a working classifier can separate them.
func NewSynthetic(featureType string, opts SyntheticOptions) (*MemoryStore, error) {
	if opts.Shape.Frames <= 0 || opts.Shape.Coefficients <= 0 {
		return nil, fmt.Errorf("synthetic: invalid shape %+v", opts.Shape)
	}
	if opts.Classes <= 0 || opts.Train <= 0 || opts.Test <= 0 {
		return nil, fmt.Errorf("synthetic: classes, train and test must be > 0")
	}
	if opts.Noise <= 0 {
		opts.Noise = 0.5
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	size := opts.Shape.Frames * opts.Shape.Coefficients

	prototypes := make([][]float64, opts.Classes)
	for c := range prototypes {
		prototypes[c] = make([]float64, size)
		for i := range prototypes[c] {
			prototypes[c][i] = rng.NormFloat64()
		}
	}

	generate := func(n int) Split {
		split := Split{
			Features: make([]*mat.Dense, n),
			Labels:   make([]int, n),
		}
		for i := 0; i < n; i++ {
			label := i % opts.Classes
			data := make([]float64, size)
			for j, v := range prototypes[label] {
				data[j] = v + rng.NormFloat64()*opts.Noise
			}
			split.Features[i] = mat.NewDense(opts.Shape.Frames, opts.Shape.Coefficients, data)
			split.Labels[i] = label
		}
		return split
	}

	return &MemoryStore{
		FeatureType: featureType,
		Train:       generate(opts.Train),
		Test:        generate(opts.Test),
	}, nil
}
