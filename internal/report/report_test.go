package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"kws-trainer/internal/metrics"
)

func sampleHistory() metrics.History {
	var h metrics.History
	h.Append(metrics.EpochMetrics{Accuracy: 40, Loss: 1.8}, metrics.EpochMetrics{Accuracy: 35, Loss: 6.1})
	h.Append(metrics.EpochMetrics{Accuracy: 62, Loss: 1.1}, metrics.EpochMetrics{Accuracy: 58, Loss: 4.3})
	h.Append(metrics.EpochMetrics{Accuracy: 75, Loss: 0.7}, metrics.EpochMetrics{Accuracy: 70, Loss: 3.0})
	return h
}

func TestPlotWritesCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	paths, err := Plot(sampleHistory(), dir, "run-")
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	want := []string{filepath.Join(dir, "run-accuracy.png"), filepath.Join(dir, "run-loss.png")}
	if len(paths) != len(want) {
		t.Fatalf("expected %d charts, got %v", len(want), paths)
	}
	pngMagic := []byte("\x89PNG")
	for i, p := range paths {
		if p != want[i] {
			t.Fatalf("chart %d: got %s, want %s", i, p, want[i])
		}
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if !bytes.HasPrefix(data, pngMagic) {
			t.Fatalf("%s is not a PNG", p)
		}
	}
}

func TestPlotRejectsBadHistory(t *testing.T) {
	if _, err := Plot(metrics.History{}, t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty history")
	}
	h := sampleHistory()
	h.TestLoss = h.TestLoss[:1]
	if _, err := Plot(h, t.TempDir(), ""); err == nil {
		t.Fatal("expected error for unequal series")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "history.json")
	meta := Meta{RunID: "abc", Model: "lstm", Epochs: 3, EvalLoss: "sum"}
	if err := WriteJSON(sampleHistory(), path, meta); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	h, got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != meta {
		t.Fatalf("meta mismatch: %+v", got)
	}
	if h.Epochs() != 3 || h.TestLoss[2] != 3.0 || h.TrainAccuracy[1] != 62 {
		t.Fatalf("history mismatch: %+v", h)
	}
}
