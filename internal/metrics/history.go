package metrics

import "fmt"

// EpochMetrics is the result of one pass over a split.
type EpochMetrics struct {
	// Accuracy is the percentage of correctly classified samples.
	Accuracy float64 `json:"accuracy"`
	Loss     float64 `json:"loss"`
}

// History holds the per-epoch series of a training run, indexed by epoch.
type History struct {
	TrainAccuracy []float64 `json:"train_accuracy"`
	TrainLoss     []float64 `json:"train_loss"`
	TestAccuracy  []float64 `json:"test_accuracy"`
	TestLoss      []float64 `json:"test_loss"`
}

// Append records the metrics of one epoch.
func (h *History) Append(train, test EpochMetrics) {
	h.TrainAccuracy = append(h.TrainAccuracy, train.Accuracy)
	h.TrainLoss = append(h.TrainLoss, train.Loss)
	h.TestAccuracy = append(h.TestAccuracy, test.Accuracy)
	h.TestLoss = append(h.TestLoss, test.Loss)
}

// Epochs returns the number of recorded epochs.
func (h History) Epochs() int {
	return len(h.TrainAccuracy)
}

// Validate checks that all four series have the same non-zero length.
func (h History) Validate() error {
	n := len(h.TrainAccuracy)
	if n == 0 {
		return fmt.Errorf("metrics: empty history")
	}
	if len(h.TrainLoss) != n || len(h.TestAccuracy) != n || len(h.TestLoss) != n {
		return fmt.Errorf("metrics: series lengths differ (%d, %d, %d, %d)",
			n, len(h.TrainLoss), len(h.TestAccuracy), len(h.TestLoss))
	}
	return nil
}

// Percent converts a correct count over total into a percentage.
func Percent(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}
