// Package workbook reads the merged screening workbook: one sheet per
// concentration condition, each holding X/Y/Z value columns.
package workbook

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"bacteriahts/internal/models"
)

// Column is a canonical data column
type Column int

const (
	ColumnX Column = iota
	ColumnY
	ColumnZ
)

// headerAliases maps the headers found in lab workbooks to canonical
// columns. "Z vale" is a misspelling present in the source sheets.
var headerAliases = map[string]Column{
	"X value": ColumnX,
	"X_value": ColumnX,
	"Y value": ColumnY,
	"Y_value": ColumnY,
	"Z vale":  ColumnZ,
	"Z value": ColumnZ,
	"Z_value": ColumnZ,
}

// missingTokens are placeholders for unmeasurable values. ">100" is the
// sentinel written when a value is above the measurable range.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"#N/A": true,
	">100": true,
}

// ClassifySheet maps a sheet name to its shape group
func ClassifySheet(name string) models.ShapeGroup {
	switch {
	case strings.Contains(name, "_IC50"):
		return models.IC50
	case strings.HasSuffix(name, "_MIC"):
		return models.MIC
	case strings.Contains(name, "_9xMIC"):
		return models.NineXMIC
	default:
		return models.Unclassified
	}
}

// CanonicalColumn returns the column a header maps to
func CanonicalColumn(header string) (Column, bool) {
	col, ok := headerAliases[strings.TrimSpace(header)]
	return col, ok
}

// ParseValue coerces a cell to a number. Placeholder tokens and any
// non-numeric text are reported as missing.
func ParseValue(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if missingTokens[strings.ToUpper(cell)] {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Load reads every classified sheet of the workbook at path and returns the
// complete rows in sheet order. Unclassified sheets and rows missing X, Y or
// Z are dropped.
func Load(path string) ([]models.HTSRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var records []models.HTSRecord
	for _, sheet := range f.GetSheetList() {
		group := ClassifySheet(sheet)
		if group == models.Unclassified {
			continue
		}

		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		records = append(records, parseSheet(sheet, group, rows)...)
	}

	return records, nil
}

// parseSheet converts the rows of one sheet. The first row is the header; a
// sheet without one of the three columns yields no records.
func parseSheet(sheet string, group models.ShapeGroup, rows [][]string) []models.HTSRecord {
	if len(rows) == 0 {
		return nil
	}

	index := map[Column]int{}
	for i, header := range rows[0] {
		if col, ok := CanonicalColumn(header); ok {
			if _, seen := index[col]; !seen {
				index[col] = i
			}
		}
	}
	if len(index) != 3 {
		return nil
	}

	cell := func(row []string, col Column) (float64, bool) {
		i := index[col]
		if i >= len(row) {
			return 0, false
		}
		return ParseValue(row[i])
	}

	var records []models.HTSRecord
	for _, row := range rows[1:] {
		x, okX := cell(row, ColumnX)
		y, okY := cell(row, ColumnY)
		z, okZ := cell(row, ColumnZ)
		if !okX || !okY || !okZ {
			continue
		}
		records = append(records, models.HTSRecord{Sheet: sheet, X: x, Y: y, Z: z, ShapeGroup: group})
	}
	return records
}

// Averages returns the mean X, Y and Z of every sheet, in order of first
// appearance
func Averages(records []models.HTSRecord) []models.HTSRecord {
	type acc struct {
		group   models.ShapeGroup
		x, y, z []float64
	}
	var order []string
	bySheet := map[string]*acc{}

	for _, r := range records {
		a, ok := bySheet[r.Sheet]
		if !ok {
			a = &acc{group: r.ShapeGroup}
			bySheet[r.Sheet] = a
			order = append(order, r.Sheet)
		}
		a.x = append(a.x, r.X)
		a.y = append(a.y, r.Y)
		a.z = append(a.z, r.Z)
	}

	out := make([]models.HTSRecord, 0, len(order))
	for _, sheet := range order {
		a := bySheet[sheet]
		out = append(out, models.HTSRecord{
			Sheet:      sheet,
			X:          stat.Mean(a.x, nil),
			Y:          stat.Mean(a.y, nil),
			Z:          stat.Mean(a.z, nil),
			ShapeGroup: a.group,
		})
	}
	return out
}

// Filter returns the records of one shape group
func Filter(records []models.HTSRecord, group models.ShapeGroup) []models.HTSRecord {
	var out []models.HTSRecord
	for _, r := range records {
		if r.ShapeGroup == group {
			out = append(out, r)
		}
	}
	return out
}
