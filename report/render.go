package report

import (
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/pkg/log"
)

// Renderer draws a chart somewhere.
type Renderer interface {
	Render(c Chart) error
}

// NopRenderer discards charts. It is used when no output directory is set.
type NopRenderer struct{}

// Render implements Renderer.
func (NopRenderer) Render(Chart) error { return nil }

// PNGRenderer writes each chart as <Dir>/<slug>.png.
type PNGRenderer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// NewPNGRenderer returns a renderer writing 6×4 inch images into dir.
func NewPNGRenderer(dir string) *PNGRenderer {
	return &PNGRenderer{Dir: dir, Width: 6 * vg.Inch, Height: 4 * vg.Inch}
}

// Path returns the file a chart is written to.
func (r *PNGRenderer) Path(c Chart) string {
	return filepath.Join(r.Dir, c.Slug()+".png")
}

// Render implements Renderer. Panics raised by the plotting backend are
// returned as errors.
func (r *PNGRenderer) Render(c Chart) (err error) {
	defer errors.Recover(&err, "report.Render")

	if len(c.Labels) == 0 || len(c.Labels) != len(c.Values) {
		return errors.NewValueError("report.Render",
			"chart "+c.Name+" needs one value per label")
	}

	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.Y.Min = 0

	w := vg.Points(20)
	for i, v := range c.Values {
		bar, err := plotter.NewBarChart(plotter.Values{v}, w)
		if err != nil {
			return errors.Wrapf(err, "bar %q", c.Labels[i])
		}
		bar.XMin = float64(i)
		bar.LineStyle.Width = vg.Length(0)
		bar.Color = plotutil.Color(i)
		p.Add(bar)
	}
	p.NominalX(c.Labels...)

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "create report directory %s", r.Dir)
	}
	if err := p.Save(r.Width, r.Height, r.Path(c)); err != nil {
		return errors.Wrapf(err, "save chart %s", c.Name)
	}
	return nil
}

// Render draws every chart with r. Failures are logged at warn level and
// skipped; the number of charts that failed is returned.
func Render(r Renderer, logger log.Logger, charts ...Chart) int {
	failed := 0
	for _, c := range charts {
		if err := r.Render(c); err != nil {
			failed++
			logger.Warn("Chart rendering failed, skipping", err,
				log.PhaseKey, log.PhaseReporting,
				log.ChartKey, c.Name,
			)
			continue
		}
		logger.Debug("Chart rendered", log.ChartKey, c.Name)
	}
	return failed
}
