// Package plotting renders the subgroup scatter plots and the bin
// membership summary chart.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/subgroup"
)

// CanvasSize is the side of the square plot canvas
const CanvasSize = 6 * vg.Inch

// ErrNoPoints is returned when a plot would hold no points
var ErrNoPoints = errors.New("no points to plot")

// Marker is the glyph of one shape group
type Marker struct {
	// Fill draws the colored body, Outline the black border on top of it
	Fill    draw.GlyphDrawer
	Outline draw.GlyphDrawer

	// Size is the glyph radius in points
	Size float64
}

// Markers maps shape groups to their glyphs: IC50 circle, MIC triangle,
// 9xMIC square
var Markers = map[models.ShapeGroup]Marker{
	models.IC50:     {Fill: draw.CircleGlyph{}, Outline: draw.RingGlyph{}, Size: 5},
	models.MIC:      {Fill: draw.PyramidGlyph{}, Outline: draw.TriangleGlyph{}, Size: 4},
	models.NineXMIC: {Fill: draw.BoxGlyph{}, Outline: draw.SquareGlyph{}, Size: 5},
}

// OutlineColor is the border color of every point
var OutlineColor = color.Black

// FillFunc returns the fill of a record in a bin
type FillFunc func(bin subgroup.Bin, z float64) color.NRGBA

// Plotter writes the plots of one strain
type Plotter struct {
	strain    string
	cfg       models.StrainConfig
	outputDir string
}

// NewPlotter creates a plotter writing into outputDir
func NewPlotter(strain string, cfg models.StrainConfig, outputDir string) *Plotter {
	return &Plotter{strain: strain, cfg: cfg, outputDir: outputDir}
}

// FileName is the output name of one bin plot
func FileName(strain string, group models.ShapeGroup, bin subgroup.Bin) string {
	return fmt.Sprintf("%s_%s_%s_%s.png", strain, group, bin.Regime, bin.Label)
}

// Scatter renders the X/Y points of one bin and returns the written path.
// Empty bins still produce a plot so every bin has exactly one file.
func (p *Plotter) Scatter(group models.ShapeGroup, subset subgroup.Subset, fill FillFunc) (string, error) {
	marker, ok := Markers[group]
	if !ok {
		return "", fmt.Errorf("no marker for shape group %s", group)
	}

	pl := p.newPlot(fmt.Sprintf("%s %s %s %s", p.strain, group, subset.Bin.Regime, subset.Bin.Label))

	fills := make([]color.Color, len(subset.Records))
	for i, r := range subset.Records {
		fills[i] = fill(subset.Bin, r.Z)
	}
	if err := addPoints(pl, subset.Records, marker, fills, 1); err != nil {
		return "", err
	}

	path := filepath.Join(p.outputDir, FileName(p.strain, group, subset.Bin))
	if err := p.save(pl, path); err != nil {
		return "", err
	}
	return path, nil
}

// Averages renders the per-sheet averages of all shape groups in one plot,
// colored like the raw points with larger glyphs
func (p *Plotter) Averages(averages []models.HTSRecord, binning *subgroup.Binning) (string, error) {
	if len(averages) == 0 {
		return "", ErrNoPoints
	}

	pl := p.newPlot(fmt.Sprintf("%s averages", p.strain))
	for _, group := range models.ShapeGroups {
		var (
			records []models.HTSRecord
			fills   []color.Color
		)
		for _, r := range averages {
			if r.ShapeGroup != group {
				continue
			}
			bin, ok := binning.Assign(r.Z)
			if !ok {
				continue
			}
			c := binning.Fill(bin, r.Z)
			c.A = subgroup.AlphaByte(subgroup.Group2Alpha)
			records = append(records, r)
			fills = append(fills, c)
		}
		if len(records) == 0 {
			continue
		}
		if err := addPoints(pl, records, Markers[group], fills, 2); err != nil {
			return "", err
		}
	}

	path := filepath.Join(p.outputDir, fmt.Sprintf("%s_averages.png", p.strain))
	if err := p.save(pl, path); err != nil {
		return "", err
	}
	return path, nil
}

// newPlot creates a transparent plot. Axes are fixed in save, after every
// layer has been added.
func (p *Plotter) newPlot(title string) *plot.Plot {
	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "X value"
	pl.Y.Label.Text = "Y value"
	pl.BackgroundColor = color.Transparent
	return pl
}

// fixAxes sets the axes to the strain's limits, overriding the ranges
// plot.Add widened to the data. The shorter range is extended so both axes
// have the same span.
func (p *Plotter) fixAxes(pl *plot.Plot) {
	xMin, xMax := p.cfg.XLim[0], p.cfg.XLim[1]
	yMin, yMax := p.cfg.YLim[0], p.cfg.YLim[1]
	span := math.Max(xMax-xMin, yMax-yMin)
	pl.X.Min, pl.X.Max = xMin, xMin+span
	pl.Y.Min, pl.Y.Max = yMin, yMin+span
}

// squareCanvas trims c evenly on the longer side of the plot's data area
// so one X unit and one Y unit take the same length
func squareCanvas(pl *plot.Plot, c draw.Canvas) draw.Canvas {
	w, h := dataSize(pl, c)
	if w == h {
		return c
	}
	crop := func(t vg.Length) draw.Canvas {
		if w > h {
			return draw.Crop(c, t/2, -t/2, 0, 0)
		}
		return draw.Crop(c, 0, 0, t/2, -t/2)
	}

	// The data area shrinks at least as fast as the canvas, so the trim is
	// bounded by the initial difference
	lo, hi := vg.Length(0), vg.Length(math.Abs(float64(w-h)))
	for i := 0; i < 24; i++ {
		mid := (lo + hi) / 2
		cw, ch := dataSize(pl, crop(mid))
		if (w > h && cw > ch) || (h > w && ch > cw) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return crop(hi)
}

// dataSize measures the data area pl would occupy on c
func dataSize(pl *plot.Plot, c draw.Canvas) (w, h vg.Length) {
	dc := pl.DataCanvas(c)
	return dc.Max.X - dc.Min.X, dc.Max.Y - dc.Min.Y
}

// addPoints adds a filled layer and an outline layer for records
func addPoints(pl *plot.Plot, records []models.HTSRecord, marker Marker, fills []color.Color, scale float64) error {
	if len(records) == 0 {
		return nil
	}

	xys := make(plotter.XYs, len(records))
	for i, r := range records {
		xys[i].X = r.X
		xys[i].Y = r.Y
	}
	radius := vg.Points(marker.Size * scale)

	body, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to create scatter: %w", err)
	}
	body.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: fills[i], Radius: radius, Shape: marker.Fill}
	}

	outline, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to create scatter: %w", err)
	}
	outline.GlyphStyle = draw.GlyphStyle{Color: OutlineColor, Radius: radius, Shape: marker.Outline}

	pl.Add(body, outline)
	return nil
}

func (p *Plotter) save(pl *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	p.fixAxes(pl)

	// The canvas background has to be transparent as well as the plot's
	c := vgimg.NewWith(
		vgimg.UseWH(CanvasSize, CanvasSize),
		vgimg.UseBackgroundColor(color.Transparent),
	)
	pl.Draw(squareCanvas(pl, draw.New(c)))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return f.Close()
}
