package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"kws-trainer/internal/metrics"
)

// Meta describes the run a history belongs to.
type Meta struct {
	RunID        string  `json:"run_id"`
	Model        string  `json:"model"`
	FeatureType  string  `json:"feature_type"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	EvalLoss     string  `json:"eval_loss"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
	DurationSec  float64 `json:"duration_sec"`
}

type document struct {
	Meta    Meta            `json:"meta"`
	History metrics.History `json:"history"`
}

// WriteJSON stores the history and its run metadata at path.
func WriteJSON(h metrics.History, path string, meta Meta) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(document{Meta: meta, History: h}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadJSON loads a file written by WriteJSON.
func ReadJSON(path string) (metrics.History, Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return metrics.History{}, Meta{}, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return metrics.History{}, Meta{}, fmt.Errorf("decode history: %w", err)
	}
	return doc.History, doc.Meta, doc.History.Validate()
}
