// Command kws-synth writes a synthetic feature cache in the layout the
// trainer's Store reads, for smoke runs without a prepared dataset.
package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"kws-trainer/internal/features"
)

func main() {
	root := flag.String("root", "data/features", "Feature cache root to write")
	featureType := flag.String("feature-type", "mfcc", "Feature type directory")
	classes := flag.Int("classes", 12, "Number of classes")
	train := flag.Int("train", 600, "Train samples")
	test := flag.Int("test", 120, "Test samples")
	perShard := flag.Int("per-shard", 100, "Samples per shard")
	noise := flag.Float64("noise", 0.5, "Noise around class prototypes")
	seed := flag.Int64("seed", 42, "PRNG seed")
	flag.Parse()

	shape, err := features.LookupType(*featureType)
	if err != nil {
		logrus.Fatalf("feature type: %v", err)
	}
	store, err := features.NewSynthetic(*featureType, features.SyntheticOptions{
		Shape:   shape,
		Classes: *classes,
		Train:   *train,
		Test:    *test,
		Noise:   *noise,
		Seed:    *seed,
	})
	if err != nil {
		logrus.Fatalf("generate: %v", err)
	}

	for name, split := range map[string]features.Split{
		features.SplitTrain: store.Train,
		features.SplitTest:  store.Test,
	} {
		dir := features.SplitDir(*root, *featureType, name)
		shards, err := features.WriteSplit(dir, split, *perShard)
		if err != nil {
			logrus.Fatalf("write %s split: %v", name, err)
		}
		logrus.WithFields(logrus.Fields{
			"split":   name,
			"dir":     dir,
			"samples": split.Len(),
			"shards":  len(shards),
		}).Info("wrote split")
	}
}
