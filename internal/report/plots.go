package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"complaint-survival-audit/internal/pipeline"
)

var tierColors = map[string]color.RGBA{
	"on_pace": {R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	"lagging": {R: 0xff, G: 0xbf, B: 0x00, A: 0xff},
	"overdue": {R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	"stalled": {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

// WritePlots renders the metric line plots, sample survival curves, and the
// complaint map into dir.
func WritePlots(r *pipeline.Report, a *pipeline.Artifacts, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := metricLines(a, dir, "brier_by_horizon.png",
		"Validation Brier score by horizon", "Brier score", true); err != nil {
		return err
	}
	if err := metricLines(a, dir, "auc_by_horizon.png",
		"Validation time-dependent AUC by horizon", "AUC", false); err != nil {
		return err
	}
	if err := sampleCurves(a, dir); err != nil {
		return err
	}
	return complaintMap(r, dir)
}

func metricLines(a *pipeline.Artifacts, dir, file, title, yLabel string, brier bool) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Horizon (days)"
	p.Y.Label.Text = yLabel

	families := make([]string, 0, len(a.ValidationByFamily))
	for family := range a.ValidationByFamily {
		families = append(families, family)
	}
	sort.Strings(families)

	for i, family := range families {
		result := a.ValidationByFamily[family]
		values := result.AUC
		if brier {
			values = result.Brier
		}
		xys := make(plotter.XYs, len(result.Horizons))
		for j := range result.Horizons {
			xys[j].X = result.Horizons[j]
			xys[j].Y = values[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(family, line)
	}
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(dir, file))
}

func sampleCurves(a *pipeline.Artifacts, dir string) error {
	p := plot.New()
	p.Title.Text = "Predicted survival curves (sample test complaints)"
	p.X.Label.Text = "Days since filing"
	p.Y.Label.Text = "P(still unresolved)"
	p.Y.Min, p.Y.Max = 0, 1

	for i, curve := range a.SampleCurves {
		xys := make(plotter.XYs, len(curve.Times))
		for j := range curve.Times {
			xys[j].X = curve.Times[j]
			xys[j].Y = curve.Surv[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(curve.Label, line)
	}
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(dir, "survival_samples.png"))
}

// complaintMap scatters the test complaints by coordinate, colored by
// predicted resolution tier.
func complaintMap(r *pipeline.Report, dir string) error {
	p := plot.New()
	p.Title.Text = "Test complaints by predicted resolution tier"
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	byTier := map[string]plotter.XYs{}
	for _, pred := range r.Predictions {
		if pred.Latitude == 0 && pred.Longitude == 0 {
			continue
		}
		byTier[pred.Tier] = append(byTier[pred.Tier], plotter.XY{X: pred.Longitude, Y: pred.Latitude})
	}

	for _, tier := range []string{"on_pace", "lagging", "overdue", "stalled"} {
		xys, ok := byTier[tier]
		if !ok {
			continue
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = tierColors[tier]
		scatter.GlyphStyle.Radius = vg.Points(2)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%s (%d)", tier, len(xys)), scatter)
	}
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 6*vg.Inch, filepath.Join(dir, "complaint_map.png"))
}
