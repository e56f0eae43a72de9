package plotting

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/subgroup"
)

var ab = models.StrainConfig{ZLim: 95, SubgroupStep: 10, XLim: [2]float64{0, 180}, YLim: [2]float64{0, 180}}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	return img
}

// TestFileName verifies the deterministic output name
func TestFileName(t *testing.T) {
	bin := subgroup.Bin{Regime: subgroup.Group1, Label: "90-95"}
	if got := FileName("Ab", models.NineXMIC, bin); got != "Ab_9xMIC_group1_90-95.png" {
		t.Errorf("Unexpected file name %s", got)
	}
}

// TestMarkers verifies every plotted shape group has a glyph and size
func TestMarkers(t *testing.T) {
	sizes := map[models.ShapeGroup]float64{models.IC50: 5, models.MIC: 4, models.NineXMIC: 5}
	for group, size := range sizes {
		m, ok := Markers[group]
		if !ok {
			t.Fatalf("Missing marker for %s", group)
		}
		if m.Size != size {
			t.Errorf("%s: expected size %f, got %f", group, size, m.Size)
		}
		if m.Fill == nil || m.Outline == nil {
			t.Errorf("%s: incomplete marker", group)
		}
	}
}

// TestScatter verifies a square transparent PNG is written per bin
func TestScatter(t *testing.T) {
	dir := t.TempDir()
	records := []models.HTSRecord{
		{Sheet: "Ab_IC50", X: 20, Y: 30, Z: 12, ShapeGroup: models.IC50},
		{Sheet: "Ab_IC50", X: 120, Y: 80, Z: 18, ShapeGroup: models.IC50},
		{Sheet: "Ab_IC50", X: 300, Y: -40, Z: 15, ShapeGroup: models.IC50},
	}
	binning, err := subgroup.New(ab, 18, subgroup.DefaultOptions())
	if err != nil {
		t.Fatalf("subgroup.New failed: %v", err)
	}
	subsets, _ := binning.Partition(records)

	p := NewPlotter("Ab", ab, dir)
	path, err := p.Scatter(models.IC50, subsets[1], binning.Fill)
	if err != nil {
		t.Fatalf("Scatter failed: %v", err)
	}
	if filepath.Base(path) != "Ab_IC50_group1_10-20.png" {
		t.Errorf("Unexpected output %s", path)
	}

	img := decodePNG(t, path)
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		t.Errorf("Expected square canvas, got %dx%d", b.Dx(), b.Dy())
	}
	if _, _, _, a := img.At(b.Max.X-1, b.Min.Y).RGBA(); a != 0 {
		t.Errorf("Expected transparent corner, got alpha %d", a)
	}

	// Empty bins still get a plot
	if _, err := p.Scatter(models.IC50, subsets[5], binning.Fill); err != nil {
		t.Errorf("Scatter of empty bin failed: %v", err)
	}
}

// TestScatterUnknownGroup verifies unclassified records are rejected
func TestScatterUnknownGroup(t *testing.T) {
	p := NewPlotter("Ab", ab, t.TempDir())
	_, err := p.Scatter(models.Unclassified, subgroup.Subset{}, nil)
	if err == nil {
		t.Error("Expected error for unclassified shape group")
	}
}

// TestAverages verifies the averages plot, including group2 fills, and its
// empty case
func TestAverages(t *testing.T) {
	dir := t.TempDir()
	p := NewPlotter("Ab", ab, dir)
	binning, _ := subgroup.New(ab, 150, subgroup.DefaultOptions())

	if _, err := p.Averages(nil, binning); !errors.Is(err, ErrNoPoints) {
		t.Errorf("Expected ErrNoPoints, got %v", err)
	}

	averages := []models.HTSRecord{
		{Sheet: "Ab_IC50", X: 50, Y: 60, Z: 40, ShapeGroup: models.IC50},
		{Sheet: "Ab_MIC", X: 70, Y: 80, Z: 120, ShapeGroup: models.MIC},
		{Sheet: "Ab_9xMIC", X: 90, Y: 100, Z: 150, ShapeGroup: models.NineXMIC},
	}
	path, err := p.Averages(averages, binning)
	if err != nil {
		t.Fatalf("Averages failed: %v", err)
	}
	if filepath.Base(path) != "Ab_averages.png" {
		t.Errorf("Unexpected output %s", path)
	}

	img := decodePNG(t, path)
	if b := img.Bounds(); b.Dx() != b.Dy() {
		t.Errorf("Expected square canvas, got %dx%d", b.Dx(), b.Dy())
	}
}

// TestFixedAxes verifies points outside the strain limits do not move the axes
func TestFixedAxes(t *testing.T) {
	tests := []struct {
		name       string
		cfg        models.StrainConfig
		xMax, yMax float64
	}{
		{"square limits", ab, 180, 180},
		{"wider x range", models.StrainConfig{ZLim: 95, SubgroupStep: 10, XLim: [2]float64{0, 200}, YLim: [2]float64{0, 150}}, 200, 200},
	}

	records := []models.HTSRecord{
		{X: 20, Y: 30, Z: 12, ShapeGroup: models.IC50},
		{X: 300, Y: -40, Z: 12, ShapeGroup: models.IC50},
	}
	fills := []color.Color{color.Black, color.Black}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlotter("Ab", tt.cfg, t.TempDir())
			pl := p.newPlot("axes")
			if err := addPoints(pl, records, Markers[models.IC50], fills, 1); err != nil {
				t.Fatalf("addPoints failed: %v", err)
			}
			p.fixAxes(pl)

			if pl.X.Min != 0 || pl.X.Max != tt.xMax {
				t.Errorf("Expected X axis [0,%g], got [%g,%g]", tt.xMax, pl.X.Min, pl.X.Max)
			}
			if pl.Y.Min != 0 || pl.Y.Max != tt.yMax {
				t.Errorf("Expected Y axis [0,%g], got [%g,%g]", tt.yMax, pl.Y.Min, pl.Y.Max)
			}
		})
	}
}

// TestSquareDataArea verifies one X unit and one Y unit have the same length
func TestSquareDataArea(t *testing.T) {
	p := NewPlotter("Ab", ab, t.TempDir())
	pl := p.newPlot("Ab IC50 group1 10-20")
	records := []models.HTSRecord{
		{X: 20, Y: 30, Z: 12, ShapeGroup: models.IC50},
		{X: 300, Y: -40, Z: 12, ShapeGroup: models.IC50},
	}
	if err := addPoints(pl, records, Markers[models.IC50], []color.Color{color.Black, color.Black}, 1); err != nil {
		t.Fatalf("addPoints failed: %v", err)
	}
	p.fixAxes(pl)

	c := draw.New(vgimg.New(CanvasSize, CanvasSize))
	w, h := dataSize(pl, squareCanvas(pl, c))
	if math.Abs(float64(w-h)) > 0.01 {
		t.Errorf("Expected square data area, got %.3f x %.3f pt", w, h)
	}
	if w <= 0 || w > CanvasSize {
		t.Errorf("Unexpected data area width %.3f pt", w)
	}
}

// TestSummary verifies the bar chart is written and empty counts are rejected
func TestSummary(t *testing.T) {
	dir := t.TempDir()
	p := NewPlotter("Ab", ab, dir)
	binning, _ := subgroup.New(ab, 80, subgroup.DefaultOptions())

	var counts []BinCount
	for i, bin := range binning.Bins() {
		counts = append(counts, BinCount{Group: models.MIC, Bin: bin, Count: i % 3, Fill: binning.Fill(bin, bin.Hi)})
	}

	path, err := p.Summary(counts)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if filepath.Base(path) != "Ab_bin_counts.png" {
		t.Errorf("Unexpected output %s", path)
	}
	decodePNG(t, path)

	for i := range counts {
		counts[i].Count = 0
	}
	if _, err := p.Summary(counts); !errors.Is(err, ErrNoPoints) {
		t.Errorf("Expected ErrNoPoints, got %v", err)
	}
}
