package model

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestConfidentPredictions(t *testing.T) {
	labels := []int{0, 1}
	scores := mat.NewDense(2, 2, []float64{10, -10, -10, 10})

	acc, err := Accuracy(labels, scores)
	if err != nil {
		t.Fatalf("Accuracy: %v", err)
	}
	if acc != 2 {
		t.Fatalf("expected accuracy 2, got %d", acc)
	}
	loss, _, err := CrossEntropy(labels, scores)
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	if loss < 0 || loss > 1e-6 {
		t.Fatalf("expected loss ~0, got %g", loss)
	}
}

func TestLossDecreasesTowardTarget(t *testing.T) {
	labels := []int{2, 0, 1}
	prev := math.Inf(1)
	for _, scale := range []float64{0, 0.5, 1, 2, 4, 8} {
		scores := mat.NewDense(3, 3, nil)
		for i, label := range labels {
			scores.Set(i, label, scale)
		}
		loss, _, err := CrossEntropy(labels, scores)
		if err != nil {
			t.Fatalf("CrossEntropy: %v", err)
		}
		if loss < 0 {
			t.Fatalf("negative loss %g", loss)
		}
		if loss >= prev {
			t.Fatalf("loss did not decrease at scale %g: %g >= %g", scale, loss, prev)
		}
		prev = loss
	}
}

func TestUniformScoresLoss(t *testing.T) {
	scores := mat.NewDense(2, 4, nil)
	loss, grad, err := CrossEntropy([]int{1, 3}, scores)
	if err != nil {
		t.Fatalf("CrossEntropy: %v", err)
	}
	if math.Abs(loss-math.Log(4)) > 1e-12 {
		t.Fatalf("expected log(4), got %g", loss)
	}
	if got := grad.At(0, 1); math.Abs(got-(0.25-1)/2) > 1e-12 {
		t.Fatalf("unexpected gradient at the target: %g", got)
	}
}

func TestAccuracyBounds(t *testing.T) {
	labels := []int{0, 1, 2, 1}
	scores := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		1, 0, 0,
		0, 0, 1,
		0, 2, 1,
	})
	acc, err := Accuracy(labels, scores)
	if err != nil {
		t.Fatalf("Accuracy: %v", err)
	}
	if acc != 3 {
		t.Fatalf("expected 3 correct, got %d", acc)
	}
	if acc < 0 || acc > len(labels) {
		t.Fatalf("accuracy %d out of bounds", acc)
	}
}

func TestLossErrors(t *testing.T) {
	scores := mat.NewDense(2, 3, nil)
	if _, _, err := CrossEntropy([]int{0}, scores); !errors.Is(err, ErrShape) {
		t.Fatalf("batch mismatch: got %v, want ErrShape", err)
	}
	if _, err := Accuracy([]int{0, 1, 2}, scores); !errors.Is(err, ErrShape) {
		t.Fatalf("batch mismatch: got %v, want ErrShape", err)
	}
	if _, _, err := CrossEntropy([]int{0, 3}, scores); !errors.Is(err, ErrData) {
		t.Fatalf("label out of range: got %v, want ErrData", err)
	}
	inf := mat.NewDense(1, 2, []float64{math.Inf(1), 0})
	if _, _, err := CrossEntropy([]int{1}, inf); !errors.Is(err, ErrNumeric) {
		t.Fatalf("infinite score: got %v, want ErrNumeric", err)
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	probs := Softmax(mat.NewDense(2, 3, []float64{1, 2, 3, -5, 0, 5}))
	for i := 0; i < 2; i++ {
		sum := 0.0
		for _, v := range probs.RawRowView(i) {
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("row %d sums to %g", i, sum)
		}
	}
}
