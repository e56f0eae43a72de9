// Package results writes feature tables: a CSV results table per batch and
// an optional SQLite store that keeps every batch.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"bacteriahts/internal/models"
)

// Write writes rows as a CSV table with the fixed results columns. A nil
// mean is written as an empty cell.
func Write(w io.Writer, rows []models.FeatureRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(models.FeatureColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		if err := cw.Write(record(row)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.Slice, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path, creating parent directories as needed
func WriteFile(path string, rows []models.FeatureRow) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer f.Close()

	if err := Write(f, rows); err != nil {
		return err
	}
	return f.Close()
}

// Read parses a results table written by Write
func Read(r io.Reader) ([]models.FeatureRow, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]models.FeatureRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func record(row models.FeatureRow) []string {
	mean := ""
	if row.Mean != nil {
		mean = formatFloat(*row.Mean)
	}
	return []string{
		row.Slice,
		strconv.Itoa(row.Count),
		formatFloat(row.TotalArea),
		formatFloat(row.AverageSize),
		formatFloat(row.PercentArea),
		mean,
	}
}

func parseRecord(rec []string) (models.FeatureRow, error) {
	if len(rec) != len(models.FeatureColumns) {
		return models.FeatureRow{}, fmt.Errorf("expected %d columns, got %d", len(models.FeatureColumns), len(rec))
	}

	var (
		row models.FeatureRow
		err error
	)
	row.Slice = rec[0]
	if row.Count, err = strconv.Atoi(rec[1]); err != nil {
		return row, fmt.Errorf("count: %w", err)
	}
	floats := []*float64{&row.TotalArea, &row.AverageSize, &row.PercentArea}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(rec[2+i], 64); err != nil {
			return row, fmt.Errorf("%s: %w", models.FeatureColumns[2+i], err)
		}
	}
	if rec[5] != "" {
		mean, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return row, fmt.Errorf("mean: %w", err)
		}
		row.Mean = &mean
	}
	return row, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
