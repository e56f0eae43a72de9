// Package extract runs the brightfield and propidium iodide feature
// extraction batches: one summary row per processed image, in enumeration
// order.
package extract

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/imagej"
)

// Errors recorded in warnings for skipped images.
var (
	ErrUnknownResolution = errors.New("no background class for image resolution")
	ErrMissingBackground = errors.New("background image not available")
)

// WarningKind classifies a recoverable per-image problem
type WarningKind string

const (
	WarnResolutionMismatch WarningKind = "resolution-mismatch"
	WarnMissingBackground  WarningKind = "missing-background"
	WarnTransformFailed    WarningKind = "transform-failed"
)

// Warning is a recoverable problem that caused an image to be skipped
type Warning struct {
	Image string
	Kind  WarningKind
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %v", w.Image, w.Kind, w.Err)
}

// Result is the outcome of one batch
type Result struct {
	// Rows holds one row per processed image, in processing order
	Rows []models.FeatureRow

	// Warnings lists the skipped images
	Warnings []Warning
}

func (r *Result) warn(log zerolog.Logger, img *models.Image, kind WarningKind, err error) {
	w := Warning{Image: img.Title, Kind: kind, Err: err}
	r.Warnings = append(r.Warnings, w)
	log.Warn().
		Str("image", img.Title).
		Str("kind", string(kind)).
		Err(err).
		Msg("skipping image")
}

// newRow builds the results table row of one image
func newRow(img *models.Image, s imagej.Summary) models.FeatureRow {
	mean := s.Mean
	return models.FeatureRow{
		Slice:       img.Title,
		Count:       s.Count,
		TotalArea:   s.TotalArea,
		AverageSize: s.AverageSize,
		PercentArea: s.PercentArea,
		Mean:        &mean,
	}
}
