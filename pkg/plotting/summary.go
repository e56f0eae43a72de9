package plotting

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/subgroup"
)

// BinCount is the number of records of one shape group in one bin
type BinCount struct {
	Group models.ShapeGroup
	Bin   subgroup.Bin
	Count int
	Fill  color.NRGBA
}

// Summary renders a bar chart of bin membership and returns the written path
func (p *Plotter) Summary(counts []BinCount) (string, error) {
	total := 0
	bars := make([]chart.Value, 0, len(counts))
	for _, c := range counts {
		total += c.Count
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s %s", c.Group, c.Bin.Label),
			Value: float64(c.Count),
			Style: chart.Style{
				FillColor:   drawing.Color{R: c.Fill.R, G: c.Fill.G, B: c.Fill.B, A: c.Fill.A},
				StrokeColor: drawing.ColorBlack,
				StrokeWidth: 1,
			},
		})
	}
	if total == 0 {
		return "", ErrNoPoints
	}

	width := 120 + 40*len(bars)
	if width < 600 {
		width = 600
	}
	bc := chart.BarChart{
		Title:      fmt.Sprintf("%s rows per bin", p.strain),
		Background: chart.Style{FillColor: drawing.ColorTransparent, Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 80}},
		Canvas:     chart.Style{FillColor: drawing.ColorTransparent},
		Width:      width,
		Height:     512,
		BarWidth:   24,
		XAxis:      chart.Style{TextRotationDegrees: 90},
		YAxis:      chart.YAxis{Name: "rows"},
		Bars:       bars,
	}

	path := filepath.Join(p.outputDir, fmt.Sprintf("%s_bin_counts.png", p.strain))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := bc.Render(chart.PNG, f); err != nil {
		return "", fmt.Errorf("failed to render summary chart: %w", err)
	}
	return path, f.Close()
}
