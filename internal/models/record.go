package models

import "fmt"

// ShapeGroup is the concentration condition of a spreadsheet sheet. It is
// encoded as point shape and size in the subgroup plots.
type ShapeGroup int

const (
	Unclassified ShapeGroup = iota
	IC50
	MIC
	NineXMIC
)

// ShapeGroups lists the plotted groups in processing order
var ShapeGroups = []ShapeGroup{IC50, MIC, NineXMIC}

func (g ShapeGroup) String() string {
	switch g {
	case IC50:
		return "IC50"
	case MIC:
		return "MIC"
	case NineXMIC:
		return "9xMIC"
	case Unclassified:
		return "Unclassified"
	default:
		return fmt.Sprintf("ShapeGroup(%d)", int(g))
	}
}

// HTSRecord is one row of the merged screening dataset
type HTSRecord struct {
	// Sheet is the workbook sheet the row was read from
	Sheet string

	X float64
	Y float64
	Z float64

	ShapeGroup ShapeGroup
}

// StrainConfig holds the plotting constants of one bacterial strain
type StrainConfig struct {
	// ZLim separates group1 (discrete palette) from group2 (gradient)
	ZLim float64 `yaml:"zLim"`

	// SubgroupStep is the Z width of one bin in both regimes
	SubgroupStep float64 `yaml:"subgroupStep"`

	// XLim and YLim are the fixed plot axis ranges
	XLim [2]float64 `yaml:"xLim,flow"`
	YLim [2]float64 `yaml:"yLim,flow"`
}
