package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CrossEntropy returns the mean softmax cross-entropy of scores against
// labels together with its gradient with respect to scores.
func CrossEntropy(labels []int, scores *mat.Dense) (float64, *mat.Dense, error) {
	rows, _, err := checkScores(labels, scores)
	if err != nil {
		return 0, nil, err
	}
	grad := Softmax(scores)
	inv := 1 / float64(rows)
	total := 0.0
	for i, label := range labels {
		row := scores.RawRowView(i)
		total += floats.LogSumExp(row) - row[label]
		grad.RawRowView(i)[label]--
	}
	grad.Scale(inv, grad)
	loss := total * inv
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, nil, fmt.Errorf("%w: loss=%v", ErrNumeric, loss)
	}
	return loss, grad, nil
}

// Accuracy counts the rows whose argmax equals the label.
func Accuracy(labels []int, scores *mat.Dense) (int, error) {
	if _, _, err := checkScores(labels, scores); err != nil {
		return 0, err
	}
	correct := 0
	for i, label := range labels {
		if floats.MaxIdx(scores.RawRowView(i)) == label {
			correct++
		}
	}
	return correct, nil
}

// Softmax returns row-wise class probabilities.
func Softmax(scores *mat.Dense) *mat.Dense {
	rows, cols := scores.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := scores.RawRowView(i)
		lse := floats.LogSumExp(row)
		dst := out.RawRowView(i)
		for j, v := range row {
			dst[j] = math.Exp(v - lse)
		}
	}
	return out
}

func checkScores(labels []int, scores *mat.Dense) (int, int, error) {
	if scores == nil {
		return 0, 0, fmt.Errorf("%w: nil scores", ErrShape)
	}
	rows, classes := scores.Dims()
	if rows != len(labels) {
		return 0, 0, fmt.Errorf("%w: %d score rows for %d labels", ErrShape, rows, len(labels))
	}
	for i, label := range labels {
		if label < 0 || label >= classes {
			return 0, 0, fmt.Errorf("%w: label %d at row %d outside [0, %d)", ErrData, label, i, classes)
		}
	}
	return rows, classes, nil
}
