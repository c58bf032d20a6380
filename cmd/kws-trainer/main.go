package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/sirupsen/logrus"

	"kws-trainer/internal/config"
	"kws-trainer/internal/features"
	"kws-trainer/internal/model"
	"kws-trainer/internal/report"
	"kws-trainer/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	featureRoot := flag.String("feature-root", "", "Override feature cache root")
	featureType := flag.String("feature-type", "", "Feature type to load")
	modelName := flag.String("model", "", "Classifier variant: lstm, conv or linear")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	lr := flag.Float64("lr", 0, "SGD learning rate")
	numWorkers := flag.Int("num-workers", 0, "Loader workers, 0 for a single producer, -1 for auto")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log every N train steps")
	chartDir := flag.String("chart-dir", "", "Directory for learning curve charts")
	logLevel := flag.String("log-level", "", "Log level")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	synthetic := flag.Bool("synthetic", false, "Train on generated data instead of the feature cache")

	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	overrides := config.Overrides{
		FeatureRoot:  *featureRoot,
		FeatureType:  *featureType,
		Synthetic:    *synthetic,
		Model:        *modelName,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *lr,
		LogEvery:     *logEvery,
		LogLevel:     *logLevel,
		LogFormat:    *logFormat,
		ChartDir:     *chartDir,
	}
	if set["num-workers"] {
		overrides.NumWorkers = numWorkers
	}
	if set["seed"] {
		overrides.Seed = seed
	}

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			logrus.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	cfg.ApplyOverrides(overrides)

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}

	logger := newLogger(cfg)
	workers := cfg.Workers()
	logger.WithFields(logrus.Fields{
		"cpu":      cpuid.CPU.BrandName,
		"cores":    cpuid.CPU.PhysicalCores,
		"avx2":     cpuid.CPU.Supports(cpuid.AVX2),
		"fma":      cpuid.CPU.Supports(cpuid.FMA3),
		"workers":  workers,
		"features": cfg.FeatureType,
	}).Info("host")

	source, err := newSource(cfg, workers, logger)
	if err != nil {
		logger.Fatalf("feature source: %v", err)
	}

	variant, err := model.ParseVariant(cfg.Model)
	if err != nil {
		logger.Fatalf("model: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := trainer.Run(ctx, trainer.RunConfig{
		Source:       source,
		FeatureType:  cfg.FeatureType,
		Variant:      variant,
		Model:        cfg.ModelSpec(),
		BatchSize:    cfg.BatchSize,
		NumWorkers:   workers,
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		EvalLoss:     cfg.EvalLoss,
		Seed:         cfg.Seed,
		LogEvery:     cfg.LogEvery,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatalf("training failed: %v", err)
	}

	log := logger.WithField("run_id", res.RunID)
	prefix := res.RunID[:8] + "-"
	charts, err := report.Plot(res.History, cfg.ChartDir, prefix)
	if err != nil {
		log.Fatalf("plot: %v", err)
	}
	historyPath := filepath.Join(cfg.ChartDir, prefix+"history.json")
	err = report.WriteJSON(res.History, historyPath, report.Meta{
		RunID:        res.RunID,
		Model:        cfg.Model,
		FeatureType:  cfg.FeatureType,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		EvalLoss:     cfg.EvalLoss,
		TrainSamples: res.TrainSamples,
		TestSamples:  res.TestSamples,
		DurationSec:  res.Duration.Seconds(),
	})
	if err != nil {
		log.Fatalf("write history: %v", err)
	}

	log.WithFields(logrus.Fields{
		"charts":   charts,
		"history":  historyPath,
		"duration": res.Duration.Round(time.Millisecond),
	}).Info("training complete")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newSource(cfg *config.Config, workers int, logger logrus.FieldLogger) (features.Source, error) {
	if !cfg.Synthetic {
		return features.NewStore(cfg.FeatureRoot, workers, logger), nil
	}
	shape, err := features.LookupType(cfg.FeatureType)
	if err != nil {
		return nil, err
	}
	logger.Warn("training on synthetic features")
	return features.NewSynthetic(cfg.FeatureType, features.SyntheticOptions{
		Shape:   shape,
		Classes: cfg.NumClasses,
		Train:   50 * cfg.NumClasses,
		Test:    10 * cfg.NumClasses,
		Seed:    cfg.Seed,
	})
}
