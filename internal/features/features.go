// Package features loads precomputed acoustic feature caches.
//
// A cache lives under <root>/<feature type>/{train,test}/ as tar shards named
// shard-NNNNNN.tar. Each sample is a pair of entries sharing a key: <key>.npy
// holds the [frames, coefficients] float matrix and <key>.cls holds the
// decimal class label.
package features

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownFeatureType reports a feature type with no registered shape.
	ErrUnknownFeatureType = errors.New("features: unknown feature type")
	// ErrNoShards reports a split directory without shards.
	ErrNoShards = errors.New("features: no shards")
	// ErrCorrupt reports an undecodable or inconsistent cache entry.
	ErrCorrupt = errors.New("features: corrupt cache")
)

// Shape is the fixed [Frames, Coefficients] geometry of one sample.
type Shape struct {
	Frames       int
	Coefficients int
}

// Types maps each known feature type to its sample geometry.
var Types = map[string]Shape{
	"mfcc": {Frames: 99, Coefficients: 12},
}

// LookupType returns the registered shape of featureType.
func LookupType(featureType string) (Shape, error) {
	shape, ok := Types[featureType]
	if !ok {
		known := make([]string, 0, len(Types))
		for name := range Types {
			known = append(known, name)
		}
		sort.Strings(known)
		return Shape{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownFeatureType, featureType, known)
	}
	return shape, nil
}

// Split is a pair of parallel feature and label slices.
type Split struct {
	Features []*mat.Dense
	Labels   []int
}

// Len returns the number of samples.
func (s Split) Len() int {
	return len(s.Labels)
}

func (s *Split) append(samples []Sample) {
	for _, sample := range samples {
		s.Features = append(s.Features, sample.Features)
		s.Labels = append(s.Labels, sample.Label)
	}
}

// Source produces the train and test splits for a feature type.
type Source interface {
	TrainTest(ctx context.Context, featureType string) (train, test Split, err error)
}
