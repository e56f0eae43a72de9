package models

// FeatureRow is the summary measurement of one processed image. Rows are
// produced once per image, in processing order, and never modified.
type FeatureRow struct {
	// Slice is the title of the measured image
	Slice string

	// Count is the number of detected particles
	Count int

	// TotalArea is the summed particle area in pixels
	TotalArea float64

	// AverageSize is TotalArea divided by Count, 0 when nothing was detected
	AverageSize float64

	// PercentArea is the share of the image covered by particles, in [0,100]
	PercentArea float64

	// Mean is the average particle intensity, nil when not measured
	Mean *float64
}

// FeatureColumns is the fixed column set of the results table
var FeatureColumns = []string{"Slice", "Count", "Total Area", "Average Size", "%Area", "Mean"}
