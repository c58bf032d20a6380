package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kws-trainer/internal/dataset"
	"kws-trainer/internal/features"
	"kws-trainer/internal/metrics"
	"kws-trainer/internal/model"
	"kws-trainer/internal/optimizer"
)

// Eval loss reductions. EvalLossSum reports the plain sum over test
// batches, EvalLossMean divides it by the number of test batches the way
// the train loss is normalized.
const (
	EvalLossSum  = "sum"
	EvalLossMean = "mean"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Source       features.Source
	FeatureType  string
	Variant      model.Variant
	Model        model.Spec
	BatchSize    int
	NumWorkers   int
	Epochs       int
	LearningRate float64
	EvalLoss     string
	Seed         int64
	LogEvery     int
	Logger       logrus.FieldLogger
}

// Result is the outcome of a completed run.
type Result struct {
	RunID        string
	History      metrics.History
	TrainSamples int
	TestSamples  int
	Duration     time.Duration
}

// Run loads the splits, trains for cfg.Epochs and evaluates after each epoch.
// Any error aborts the run; no partial history is returned.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Source == nil {
		return nil, errors.New("trainer: feature source must be set")
	}
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.New("trainer: learning rate must be > 0")
	}
	switch cfg.EvalLoss {
	case "":
		cfg.EvalLoss = EvalLossSum
	case EvalLossSum, EvalLossMean:
	default:
		return nil, fmt.Errorf("trainer: unknown eval loss reduction %q", cfg.EvalLoss)
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	start := time.Now()
	runID := uuid.NewString()
	log := cfg.Logger.WithField("run_id", runID)

	train, test, err := cfg.Source.TrainTest(ctx, cfg.FeatureType)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	trainDS, testDS, spec, err := buildDatasets(train, test, cfg.Model)
	if err != nil {
		return nil, err
	}

	trainLoader, err := dataset.NewLoader(trainDS, dataset.LoaderOptions{
		BatchSize:  cfg.BatchSize,
		Shuffle:    true,
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	testLoader, err := dataset.NewLoader(testDS, dataset.LoaderOptions{
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
	})
	if err != nil {
		return nil, err
	}

	clf, err := model.New(cfg.Variant, spec, cfg.Seed)
	if err != nil {
		return nil, err
	}
	opt, err := optimizer.NewSGD(clf.Params(), cfg.LearningRate)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"model":         cfg.Variant,
		"input":         fmt.Sprintf("%dx%d", spec.SeqLen, spec.Channels),
		"classes":       spec.NumClasses,
		"train_samples": trainDS.Len(),
		"test_samples":  testDS.Len(),
		"batch_size":    cfg.BatchSize,
		"epochs":        cfg.Epochs,
		"learning_rate": opt.LearningRate(),
	}).Info("starting training")

	var history metrics.History
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		epochStart := time.Now()
		epochLog := log.WithField("epoch", epoch)

		trainM, err := trainEpoch(ctx, clf, opt, trainLoader, epochLog, cfg.LogEvery)
		if err != nil {
			return nil, fmt.Errorf("epoch %d train: %w", epoch, err)
		}
		testM, err := evaluate(ctx, clf, testLoader, cfg.EvalLoss)
		if err != nil {
			return nil, fmt.Errorf("epoch %d eval: %w", epoch, err)
		}
		history.Append(trainM, testM)

		epochLog.WithFields(logrus.Fields{
			"train_acc":  fmt.Sprintf("%.2f", trainM.Accuracy),
			"train_loss": fmt.Sprintf("%.4f", trainM.Loss),
			"test_acc":   fmt.Sprintf("%.2f", testM.Accuracy),
			"test_loss":  fmt.Sprintf("%.4f", testM.Loss),
			"duration":   time.Since(epochStart).Round(time.Millisecond),
		}).Info("epoch complete")
	}

	return &Result{
		RunID:        runID,
		History:      history,
		TrainSamples: trainDS.Len(),
		TestSamples:  testDS.Len(),
		Duration:     time.Since(start),
	}, nil
}

// buildDatasets takes the input geometry from the loaded features rather
// than from fixed constants.
func buildDatasets(train, test features.Split, spec model.Spec) (*dataset.Dataset, *dataset.Dataset, model.Spec, error) {
	if train.Len() == 0 || len(train.Features) == 0 || train.Features[0] == nil {
		return nil, nil, spec, fmt.Errorf("%w: empty train split", dataset.ErrData)
	}
	spec.SeqLen, spec.Channels = train.Features[0].Dims()
	opts := dataset.Options{SeqLen: spec.SeqLen, Channels: spec.Channels, NumClasses: spec.NumClasses}

	trainDS, err := dataset.New(train.Features, train.Labels, opts)
	if err != nil {
		return nil, nil, spec, fmt.Errorf("train split: %w", err)
	}
	testDS, err := dataset.New(test.Features, test.Labels, opts)
	if err != nil {
		return nil, nil, spec, fmt.Errorf("test split: %w", err)
	}
	return trainDS, testDS, spec, nil
}

func trainEpoch(ctx context.Context, clf model.Classifier, opt optimizer.Optimizer, loader *dataset.Loader, log logrus.FieldLogger, logEvery int) (metrics.EpochMetrics, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	batches, errs := loader.Stream(ctx)

	var window metrics.Window
	lossSum, correct, seen, steps := 0.0, 0, 0, 0
	waitStart := time.Now()
	for batch := range batches {
		dataTime := time.Since(waitStart)
		computeStart := time.Now()

		opt.ZeroGrad()
		clf.SetTraining(true)
		scores, err := clf.Forward(batch.Inputs)
		if err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d forward: %w", steps, err)
		}
		loss, grad, err := model.CrossEntropy(batch.Labels, scores)
		if err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d loss: %w", steps, err)
		}
		hits, err := model.Accuracy(batch.Labels, scores)
		if err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d accuracy: %w", steps, err)
		}
		if err := clf.Backward(grad); err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d backward: %w", steps, err)
		}
		if err := opt.Step(); err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d step: %w", steps, err)
		}

		lossSum += loss
		correct += hits
		seen += batch.Len()
		steps++
		window.Record(batch.Len(), dataTime, time.Since(computeStart), loss)

		if steps%logEvery == 0 {
			snap := window.Snapshot()
			log.WithFields(logrus.Fields{
				"step":            steps,
				"of":              loader.NumBatches(),
				"samples_per_sec": fmt.Sprintf("%.1f", snap.SamplesPerSec),
				"data_ms":         fmt.Sprintf("%.2f", snap.AvgDataMS),
				"compute_ms":      fmt.Sprintf("%.2f", snap.AvgComputeMS),
				"loss":            fmt.Sprintf("%.4f", snap.LastLoss),
			}).Info("train progress")
		}
		waitStart = time.Now()
	}
	if err := <-errs; err != nil {
		return metrics.EpochMetrics{}, err
	}
	if steps == 0 {
		return metrics.EpochMetrics{}, errors.New("no batches produced")
	}

	return metrics.EpochMetrics{
		Accuracy: metrics.Percent(correct, seen),
		Loss:     lossSum / float64(steps),
	}, nil
}

func evaluate(ctx context.Context, clf model.Classifier, loader *dataset.Loader, reduction string) (metrics.EpochMetrics, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	batches, errs := loader.Stream(ctx)

	lossSum, correct, seen, steps := 0.0, 0, 0, 0
	for batch := range batches {
		clf.SetTraining(false)
		scores, err := clf.Forward(batch.Inputs)
		if err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d forward: %w", steps, err)
		}
		loss, _, err := model.CrossEntropy(batch.Labels, scores)
		if err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d loss: %w", steps, err)
		}
		hits, err := model.Accuracy(batch.Labels, scores)
		if err != nil {
			return metrics.EpochMetrics{}, fmt.Errorf("batch %d accuracy: %w", steps, err)
		}
		lossSum += loss
		correct += hits
		seen += batch.Len()
		steps++
	}
	if err := <-errs; err != nil {
		return metrics.EpochMetrics{}, err
	}
	if steps == 0 {
		return metrics.EpochMetrics{}, errors.New("no batches produced")
	}

	if reduction == EvalLossMean {
		lossSum /= float64(steps)
	}
	return metrics.EpochMetrics{
		Accuracy: metrics.Percent(correct, seen),
		Loss:     lossSum,
	}, nil
}
