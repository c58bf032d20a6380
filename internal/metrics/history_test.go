package metrics

import "testing"

func TestHistoryAppend(t *testing.T) {
	var h History
	if err := h.Validate(); err == nil {
		t.Fatal("expected empty history to be invalid")
	}
	h.Append(EpochMetrics{Accuracy: 50, Loss: 1.5}, EpochMetrics{Accuracy: 40, Loss: 9})
	h.Append(EpochMetrics{Accuracy: 75, Loss: 0.9}, EpochMetrics{Accuracy: 60, Loss: 7})
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if h.Epochs() != 2 || h.TrainAccuracy[1] != 75 || h.TestLoss[0] != 9 {
		t.Fatalf("unexpected history %+v", h)
	}
	h.TestLoss = h.TestLoss[:1]
	if err := h.Validate(); err == nil {
		t.Fatal("expected ragged history to be invalid")
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(3, 12); got != 25 {
		t.Fatalf("Percent(3, 12) = %v", got)
	}
	if got := Percent(0, 0); got != 0 {
		t.Fatalf("Percent(0, 0) = %v", got)
	}
}
