package tuning

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// PlotHistory writes the optimisation history of study to path: one point
// per completed trial and a line through the running best. The image
// format follows the file extension (png, svg, pdf, ...).
func PlotHistory(study *Study, path string) error {
	completed := study.Completed()
	if len(completed) == 0 {
		return errors.NewValueError("PlotHistory", "study has no completed trials")
	}

	p := plot.New()
	p.Title.Text = "Optimization History: " + study.Name
	p.X.Label.Text = "Trial"
	p.Y.Label.Text = "Objective Value"
	p.Add(plotter.NewGrid())

	values := make(plotter.XYs, len(completed))
	best := make(plotter.XYs, len(completed))
	running := math.Inf(1)
	for i, t := range completed {
		running = math.Min(running, t.Value)
		values[i] = plotter.XY{X: float64(t.Number), Y: t.Value}
		best[i] = plotter.XY{X: float64(t.Number), Y: running}
	}

	s, err := plotter.NewScatter(values)
	if err != nil {
		return errors.Wrap(err, "coupling: history scatter")
	}
	s.Radius = vg.Points(3)

	l, err := plotter.NewLine(best)
	if err != nil {
		return errors.Wrap(err, "coupling: history line")
	}
	l.LineStyle.Width = vg.Points(1.5)

	p.Add(s, l)
	p.Legend.Add("Objective Value", s)
	p.Legend.Add("Best Value", l)
	p.Legend.Top = true

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.NewStorageError("plot", path, err)
	}
	return nil
}
