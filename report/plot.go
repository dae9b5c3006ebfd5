// Package report writes the optional run artifacts: a predicted-versus-actual
// plot and a Prometheus textfile with the evaluation metrics.
package report

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
)

// PlotSize is the width and height of the saved plot.
const PlotSize = 6 * vg.Inch

// WritePredictionPlot saves a scatter of actual (x) against predicted (y)
// premiums with the identity line. The format follows the file extension
// (png, svg, pdf, ...).
func WritePredictionPlot(path string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError("WritePredictionPlot", "empty vector")
	}
	if len(yTrue) != len(yPred) {
		return errors.NewDimensionError("WritePredictionPlot", len(yTrue), len(yPred), 0)
	}

	pts := make(plotter.XYs, len(yTrue))
	for i := range yTrue {
		pts[i].X = yTrue[i]
		pts[i].Y = yPred[i]
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual premium"
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "build scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	scatter.GlyphStyle.Color = color.RGBA{B: 200, A: 255}

	// 同じ範囲の正方形にして y = x を対角線にする
	lo := math.Min(floats.Min(yTrue), floats.Min(yPred))
	hi := math.Max(floats.Max(yTrue), floats.Max(yPred))
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi

	identity := plotter.NewFunction(func(x float64) float64 { return x })
	identity.Color = color.RGBA{R: 200, A: 255}
	identity.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(scatter, identity)
	p.Legend.Add("records", scatter)
	p.Legend.Add("y = x", identity)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(PlotSize, PlotSize, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	log.GetLoggerWithName("report").Info("Prediction plot written", log.PathKey, path, log.SamplesKey, len(yTrue))
	return nil
}
