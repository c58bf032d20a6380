package trainer

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"kws-trainer/internal/dataset"
	"kws-trainer/internal/features"
	"kws-trainer/internal/model"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func synthetic(t *testing.T, train, test int) *features.MemoryStore {
	t.Helper()
	store, err := features.NewSynthetic("mfcc", features.SyntheticOptions{
		Shape:   features.Shape{Frames: 8, Coefficients: 3},
		Classes: 3,
		Train:   train,
		Test:    test,
		Seed:    5,
	})
	if err != nil {
		t.Fatalf("NewSynthetic: %v", err)
	}
	return store
}

func baseConfig(store features.Source, variant model.Variant) RunConfig {
	return RunConfig{
		Source:       store,
		FeatureType:  "mfcc",
		Variant:      variant,
		Model:        model.Spec{NumClasses: 3, Hidden: 6, Filters: 4, Kernel: 3},
		BatchSize:    5,
		Epochs:       1,
		LearningRate: 0.1,
		Seed:         3,
		Logger:       quietLogger(),
	}
}

func TestRunSingleEpoch(t *testing.T) {
	store := synthetic(t, 20, 10)
	for _, v := range []model.Variant{model.VariantLSTM, model.VariantConv, model.VariantLinear} {
		res, err := Run(context.Background(), baseConfig(store, v))
		if err != nil {
			t.Fatalf("%s: Run: %v", v, err)
		}
		h := res.History
		if err := h.Validate(); err != nil || h.Epochs() != 1 {
			t.Fatalf("%s: expected one epoch of history, got %+v (%v)", v, h, err)
		}
		for _, acc := range []float64{h.TrainAccuracy[0], h.TestAccuracy[0]} {
			if acc < 0 || acc > 100 {
				t.Fatalf("%s: accuracy %v outside [0, 100]", v, acc)
			}
		}
		for _, loss := range []float64{h.TrainLoss[0], h.TestLoss[0]} {
			if loss < 0 || math.IsNaN(loss) {
				t.Fatalf("%s: invalid loss %v", v, loss)
			}
		}
		if res.TrainSamples != 20 || res.TestSamples != 10 || res.RunID == "" {
			t.Fatalf("%s: unexpected result metadata %+v", v, res)
		}
	}
}

func TestRunLearnsSeparableData(t *testing.T) {
	cfg := baseConfig(synthetic(t, 60, 30), model.VariantLinear)
	cfg.Epochs = 5
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	h := res.History
	if h.TrainLoss[4] >= h.TrainLoss[0] {
		t.Fatalf("train loss did not improve: %v", h.TrainLoss)
	}
}

func TestEvalLossReduction(t *testing.T) {
	store := synthetic(t, 20, 12)
	sumCfg := baseConfig(store, model.VariantConv)
	meanCfg := sumCfg
	meanCfg.EvalLoss = EvalLossMean

	sum, err := Run(context.Background(), sumCfg)
	if err != nil {
		t.Fatalf("Run(sum): %v", err)
	}
	mean, err := Run(context.Background(), meanCfg)
	if err != nil {
		t.Fatalf("Run(mean): %v", err)
	}
	// 12 test samples in batches of 5 give 3 batches.
	if got, want := mean.History.TestLoss[0]*3, sum.History.TestLoss[0]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("mean*batches=%v, sum=%v", got, want)
	}
	if mean.History.TrainLoss[0] != sum.History.TrainLoss[0] {
		t.Fatal("train loss should not depend on eval reduction")
	}
}

func TestRunWithWorkersMatchesSerial(t *testing.T) {
	store := synthetic(t, 20, 10)
	serial := baseConfig(store, model.VariantLSTM)
	serial.Epochs = 2
	parallel := serial
	parallel.NumWorkers = 3

	a, err := Run(context.Background(), serial)
	if err != nil {
		t.Fatalf("Run(serial): %v", err)
	}
	b, err := Run(context.Background(), parallel)
	if err != nil {
		t.Fatalf("Run(parallel): %v", err)
	}
	for i := range a.History.TrainLoss {
		if a.History.TrainLoss[i] != b.History.TrainLoss[i] || a.History.TestLoss[i] != b.History.TestLoss[i] {
			t.Fatalf("epoch %d differs with workers: %+v vs %+v", i, a.History, b.History)
		}
	}
}

func TestRunFailsFast(t *testing.T) {
	store := synthetic(t, 20, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, baseConfig(store, model.VariantLinear)); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled context: got %v", err)
	}

	broken := &features.MemoryStore{FeatureType: "mfcc", Train: store.Train, Test: store.Test}
	broken.Train.Labels = broken.Train.Labels[:5]
	if _, err := Run(context.Background(), baseConfig(broken, model.VariantLinear)); !errors.Is(err, dataset.ErrData) {
		t.Fatalf("mismatched labels: got %v, want ErrData", err)
	}

	cfg := baseConfig(store, model.VariantLinear)
	cfg.FeatureType = "fbank"
	if _, err := Run(context.Background(), cfg); !errors.Is(err, features.ErrUnknownFeatureType) {
		t.Fatalf("unknown feature type: got %v", err)
	}

	cfg = baseConfig(store, model.VariantLinear)
	cfg.EvalLoss = "median"
	if _, err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown eval loss reduction")
	}
}
