// Package report renders the learning curves of a training run.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"kws-trainer/internal/metrics"
)

const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// Plot writes <prefix>accuracy.png and <prefix>loss.png into dir and
// returns their paths. Each chart carries a train and a test series.
func Plot(h metrics.History, dir, prefix string) ([]string, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	charts := []struct {
		name   string
		title  string
		ylabel string
		train  []float64
		test   []float64
	}{
		{"accuracy", "Accuracy", "accuracy (%)", h.TrainAccuracy, h.TestAccuracy},
		{"loss", "Loss", "loss", h.TrainLoss, h.TestLoss},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		path := filepath.Join(dir, prefix+c.name+".png")
		if err := lineChart(path, c.title, c.ylabel, c.train, c.test); err != nil {
			return paths, fmt.Errorf("%s chart: %w", c.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func lineChart(path, title, ylabel string, train, test []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	if err := plotutil.AddLinePoints(p, "train", series(train), "test", series(test)); err != nil {
		return err
	}
	return p.Save(chartWidth, chartHeight, path)
}

// series numbers epochs from 1.
func series(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}
