package features

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Store reads a feature cache from disk, decoding shards on a bounded pool.
type Store struct {
	Root    string
	Workers int
	Logger  logrus.FieldLogger
}

// NewStore returns a Store rooted at root.
func NewStore(root string, workers int, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{Root: root, Workers: workers, Logger: logger}
}

// TrainTest loads both splits of featureType.
func (s *Store) TrainTest(ctx context.Context, featureType string) (Split, Split, error) {
	shape, err := LookupType(featureType)
	if err != nil {
		return Split{}, Split{}, err
	}
	train, err := s.loadSplit(ctx, featureType, SplitTrain, shape)
	if err != nil {
		return Split{}, Split{}, err
	}
	test, err := s.loadSplit(ctx, featureType, SplitTest, shape)
	if err != nil {
		return Split{}, Split{}, err
	}
	return train, test, nil
}

func (s *Store) loadSplit(ctx context.Context, featureType, split string, shape Shape) (Split, error) {
	start := time.Now()
	shards, err := DiscoverShards(SplitDir(s.Root, featureType, split))
	if err != nil {
		return Split{}, fmt.Errorf("%s split: %w", split, err)
	}

	results := make([][]Sample, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))
	for i, path := range shards {
		i, path := i, path
		g.Go(func() error {
			samples, err := ReadShard(gctx, path, shape)
			if err != nil {
				return err
			}
			results[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Split{}, fmt.Errorf("%s split: %w", split, err)
	}

	var out Split
	for _, samples := range results {
		out.append(samples)
	}
	if out.Len() == 0 {
		return Split{}, fmt.Errorf("%w: %s split has no samples", ErrCorrupt, split)
	}
	s.Logger.WithFields(logrus.Fields{
		"feature_type": featureType,
		"split":        split,
		"shards":       len(shards),
		"samples":      out.Len(),
		"duration":     time.Since(start).Round(time.Millisecond),
	}).Info("loaded feature split")
	return out, nil
}
