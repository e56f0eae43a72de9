package visualize

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/config"
	"bacteriahts/pkg/subgroup"
)

func testOptions(dir string) Options {
	return Options{
		Strain:    "Ab",
		OutputDir: dir,
		Binning:   subgroup.DefaultOptions(),
		Averages:  true,
		Summary:   true,
		Logger:    zerolog.Nop(),
	}
}

func sampleRecords() []models.HTSRecord {
	return []models.HTSRecord{
		{Sheet: "Ab_IC50", X: 10, Y: 20, Z: 0, ShapeGroup: models.IC50},
		{Sheet: "Ab_IC50", X: 30, Y: 40, Z: 95, ShapeGroup: models.IC50},
		{Sheet: "Ab_IC50", X: 50, Y: 60, Z: 150, ShapeGroup: models.IC50},
		{Sheet: "Ab_MIC", X: 70, Y: 80, Z: 42, ShapeGroup: models.MIC},
	}
}

// TestUnknownStrain verifies a configuration error stops the run before any output
func TestUnknownStrain(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.Strain = "Ecoli"

	_, err := Run(config.DefaultConfig(), filepath.Join(dir, "missing.xlsx"), opts)

	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no output, found %d files", len(entries))
	}
}

// TestRender verifies bins, file names and group failure isolation
func TestRender(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultStrains()["Ab"]

	report := Render(cfg, sampleRecords(), testOptions(dir))

	// IC50: 10 group1 bins and group2 bins from 95 to 205
	for _, name := range []string{
		"Ab_IC50_group1_0-10.png",
		"Ab_IC50_group1_90-95.png",
		"Ab_IC50_group2_145-155.png",
		"Ab_MIC_group1_40-50.png",
		"Ab_averages.png",
		"Ab_bin_counts.png",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s: %v", name, err)
		}
	}

	// MIC has no value above z_lim, so no group2 plots
	if _, err := os.Stat(filepath.Join(dir, "Ab_MIC_group2_95-105.png")); !os.IsNotExist(err) {
		t.Error("Expected no group2 plot for MIC")
	}

	if got := report.Count(models.IC50, subgroup.Group1, "0-10"); got != 1 {
		t.Errorf("Expected 1 record in IC50 0-10, got %d", got)
	}
	if got := report.Count(models.IC50, subgroup.Group1, "90-95"); got != 1 {
		t.Errorf("Expected 1 record in IC50 90-95, got %d", got)
	}
	if got := report.Count(models.IC50, subgroup.Group2, "145-155"); got != 1 {
		t.Errorf("Expected 1 record in IC50 145-155, got %d", got)
	}

	// 9xMIC has no rows and fails alone
	if len(report.Failures) != 1 || report.Failures[0].Group != models.NineXMIC {
		t.Fatalf("Expected a single 9xMIC failure, got %+v", report.Failures)
	}
	if !errors.Is(report.Failures[0].Err, ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords, got %v", report.Failures[0].Err)
	}

	// 21 IC50 bins, 10 MIC bins, averages and summary
	if len(report.Files) != 21+10+2 {
		t.Errorf("Expected 33 files, got %d", len(report.Files))
	}
}

// TestRenderOutlierZ verifies a group whose maximum needs too many bins fails
// without writing plots while the other groups are rendered
func TestRenderOutlierZ(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultStrains()["Ab"]
	records := []models.HTSRecord{
		{Sheet: "Ab_IC50", X: 10, Y: 20, Z: 12, ShapeGroup: models.IC50},
		{Sheet: "Ab_IC50", X: 30, Y: 40, Z: 1e7, ShapeGroup: models.IC50},
		{Sheet: "Ab_MIC", X: 70, Y: 80, Z: 42, ShapeGroup: models.MIC},
	}
	opts := testOptions(dir)
	opts.Averages = false
	opts.Summary = false

	report := Render(cfg, records, opts)

	var tooMany bool
	for _, f := range report.Failures {
		if f.Group == models.IC50 && errors.Is(f.Err, subgroup.ErrTooManyBins) {
			tooMany = true
		}
	}
	if !tooMany {
		t.Errorf("Expected an IC50 ErrTooManyBins failure, got %+v", report.Failures)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "Ab_IC50_*.png"))
	if len(matches) != 0 {
		t.Errorf("Expected no IC50 plots, found %d", len(matches))
	}
	if got := report.Count(models.MIC, subgroup.Group1, "40-50"); got != 1 {
		t.Errorf("Expected 1 record in MIC 40-50, got %d", got)
	}
}

// TestRenderIdempotent verifies identical input gives identical bin membership
func TestRenderIdempotent(t *testing.T) {
	cfg := config.DefaultStrains()["Ab"]
	first := Render(cfg, sampleRecords(), testOptions(t.TempDir()))
	second := Render(cfg, sampleRecords(), testOptions(t.TempDir()))

	if !reflect.DeepEqual(first.Counts, second.Counts) {
		t.Error("Expected identical bin counts")
	}
}

// TestRunWorkbook verifies the full path from an xlsx file
func TestRunWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hts.xlsx")

	f := excelize.NewFile()
	if _, err := f.NewSheet("Ab_9xMIC_rep1"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	rows := [][]interface{}{
		{"X value", "Y_value", "Z vale"},
		{12, 34, 15},
		{56, 78, ">100"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := row
		if err := f.SetSheetRow("Ab_9xMIC_rep1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	f.Close()

	out := filepath.Join(dir, "plots")
	opts := testOptions(out)
	opts.Averages = false
	opts.Summary = false

	report, err := Run(config.DefaultConfig(), path, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := report.Count(models.NineXMIC, subgroup.Group1, "10-20"); got != 1 {
		t.Errorf("Expected 1 record in 9xMIC 10-20, got %d", got)
	}

	total := 0
	for _, c := range report.Counts {
		total += c.Count
	}
	if total != 1 {
		t.Errorf("Expected the >100 row to be dropped, got %d plotted records", total)
	}
	if _, err := os.Stat(filepath.Join(out, "Ab_9xMIC_group1_10-20.png")); err != nil {
		t.Errorf("Expected 9xMIC plot: %v", err)
	}
}
