package main

import (
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

var curveColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
}

// plotLearningCurve draws one line per recorded evaluation against the round
// number and saves it to filename (format from the extension).
func plotLearningCurve(history map[string][]float64, title, filename string) error {
	if len(history) == 0 {
		return scigoErrors.New("no evaluation history to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "round"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	names := make([]string, 0, len(history))
	for name := range history {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		values := history[name]
		pts := make(plotter.XYs, len(values))
		for k, v := range values {
			pts[k].X = float64(k)
			pts[k].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return scigoErrors.Wrapf(err, "line %s", name)
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = curveColors[i%len(curveColors)]
		p.Add(line)
		p.Legend.Add(name, line)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return scigoErrors.Wrapf(err, "save %s", filename)
	}
	return nil
}
