package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"kws-trainer/internal/model"
)

// AutoWorkers asks for a worker count sized to the host CPU.
const AutoWorkers = -1

const maxAutoWorkers = 8

// Config captures the runtime knobs for a training run.
type Config struct {
	FeatureRoot string `yaml:"feature_root"`
	FeatureType string `yaml:"feature_type"`
	Synthetic   bool   `yaml:"synthetic"`

	Model      string  `yaml:"model"`
	NumClasses int     `yaml:"num_classes"`
	HiddenSize int     `yaml:"hidden_size"`
	Filters    int     `yaml:"filters"`
	KernelSize int     `yaml:"kernel_size"`
	Dropout    float64 `yaml:"dropout"`

	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	NumWorkers   int     `yaml:"num_workers"`
	Seed         int64   `yaml:"seed"`
	EvalLoss     string  `yaml:"eval_loss"`

	LogEvery  int    `yaml:"log_every"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	ChartDir  string `yaml:"chart_dir"`
}

// Overrides captures CLI supplied values. Zero values keep the config
// except for NumWorkers and Seed, where zero is meaningful and nil means unset.
type Overrides struct {
	FeatureRoot  string
	FeatureType  string
	Synthetic    bool
	Model        string
	Epochs       int
	BatchSize    int
	LearningRate float64
	NumWorkers   *int
	Seed         *int64
	LogEvery     int
	LogLevel     string
	LogFormat    string
	ChartDir     string
}

// Default mirrors the reference run: MFCC features, LSTM, batch 200,
// 10 epochs of SGD at 0.1 with two loader workers.
func Default() *Config {
	spec := model.DefaultSpec()
	return &Config{
		FeatureType:  "mfcc",
		Model:        string(model.VariantLSTM),
		NumClasses:   spec.NumClasses,
		HiddenSize:   spec.Hidden,
		Filters:      spec.Filters,
		KernelSize:   spec.Kernel,
		Epochs:       10,
		BatchSize:    200,
		LearningRate: 0.1,
		NumWorkers:   2,
		Seed:         42,
		EvalLoss:     "sum",
		LogEvery:     20,
		LogLevel:     "info",
		LogFormat:    "text",
		ChartDir:     "charts",
	}
}

// Load reads a Config from YAML on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.FeatureRoot != "" {
		c.FeatureRoot = o.FeatureRoot
	}
	if o.FeatureType != "" {
		c.FeatureType = o.FeatureType
	}
	if o.Synthetic {
		c.Synthetic = true
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.NumWorkers != nil {
		c.NumWorkers = *o.NumWorkers
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
	if o.ChartDir != "" {
		c.ChartDir = o.ChartDir
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.FeatureType == "" {
		return errors.New("feature_type must be set")
	}
	if c.FeatureRoot == "" && !c.Synthetic {
		return errors.New("feature_root must be set unless synthetic data is requested")
	}
	variant, err := model.ParseVariant(c.Model)
	if err != nil {
		return err
	}
	if err := c.ModelSpec().Validate(variant); err != nil {
		return err
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.NumWorkers < AutoWorkers {
		return fmt.Errorf("num_workers must be >= 0, or -1 for auto (got %d)", c.NumWorkers)
	}
	if c.EvalLoss != "sum" && c.EvalLoss != "mean" {
		return fmt.Errorf("eval_loss must be sum or mean (got %q)", c.EvalLoss)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json (got %q)", c.LogFormat)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 20
	}
	return nil
}

// ModelSpec builds the classifier geometry. The input shape is filled in
// from the feature type when the data is loaded.
func (c *Config) ModelSpec() model.Spec {
	spec := model.DefaultSpec()
	spec.NumClasses = c.NumClasses
	spec.Hidden = c.HiddenSize
	spec.Filters = c.Filters
	spec.Kernel = c.KernelSize
	spec.Dropout = c.Dropout
	return spec
}

// Workers resolves num_workers, sizing auto to the physical core count.
func (c *Config) Workers() int {
	if c.NumWorkers != AutoWorkers {
		return c.NumWorkers
	}
	n := cpuid.CPU.PhysicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return min(max(n, 1), maxAutoWorkers)
}
