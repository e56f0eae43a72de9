package extract

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/imageio"
	"bacteriahts/pkg/imagej"
)

// BFOptions holds the brightfield extraction parameters
type BFOptions struct {
	// Bandpass is applied after 8-bit conversion
	Bandpass imagej.BandpassOptions

	// Threshold binarizes the filtered image
	Threshold imagej.ThresholdSpec

	// IntermediaryDir receives the filtered and mask images of every
	// processed image when non-empty
	IntermediaryDir string

	Logger zerolog.Logger
}

// NewBFOptions parses the bandpass and threshold option strings
func NewBFOptions(bandpass, threshold string, log zerolog.Logger) (BFOptions, error) {
	bp, err := imagej.ParseBandpassOptions(bandpass)
	if err != nil {
		return BFOptions{}, fmt.Errorf("bandpass options: %w", err)
	}
	th, err := imagej.ParseThresholdSpec(threshold)
	if err != nil {
		return BFOptions{}, fmt.Errorf("threshold: %w", err)
	}
	return BFOptions{Bandpass: bp, Threshold: th, Logger: log}, nil
}

// ExtractBF measures every image in order: 8-bit conversion, bandpass
// filter, threshold and particle analysis without size or circularity
// limits. An image whose transform fails gets no row; the batch continues.
func ExtractBF(images []*models.Image, tk imagej.Toolkit, opts BFOptions) *Result {
	log := opts.Logger.With().Str("channel", models.Brightfield.String()).Logger()
	result := &Result{Rows: make([]models.FeatureRow, 0, len(images))}

	for i, img := range images {
		summary, err := measureBF(img, tk, opts)
		if err != nil {
			result.warn(log, img, WarnTransformFailed, err)
			continue
		}

		result.Rows = append(result.Rows, newRow(img, summary))
		log.Debug().
			Int("index", i).
			Str("image", img.Title).
			Int("count", summary.Count).
			Float64("total_area", summary.TotalArea).
			Msg("measured")
	}

	log.Info().
		Int("images", len(images)).
		Int("rows", len(result.Rows)).
		Msg("brightfield batch complete")

	return result
}

func measureBF(img *models.Image, tk imagej.Toolkit, opts BFOptions) (imagej.Summary, error) {
	gray, err := tk.Convert8Bit(img.Pixels)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("8-bit conversion: %w", err)
	}

	filtered, err := tk.Bandpass(gray, opts.Bandpass)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("bandpass: %w", err)
	}

	mask, err := tk.Threshold(filtered, opts.Threshold)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("threshold: %w", err)
	}

	if opts.IntermediaryDir != "" {
		saveIntermediary(opts, "01_bandpass", img.Title, filtered)
		saveIntermediary(opts, "02_mask", img.Title, mask)
	}

	summary, err := tk.AnalyzeParticles(mask, filtered)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("particle analysis: %w", err)
	}
	return summary, nil
}

// saveIntermediary writes one intermediate image. Failures are logged and
// do not affect the measurement.
func saveIntermediary(opts BFOptions, stage, title string, img image.Image) {
	name := strings.TrimSuffix(title, filepath.Ext(title)) + ".png"
	path := filepath.Join(opts.IntermediaryDir, stage, name)
	if err := imageio.SavePNG(img, path); err != nil {
		opts.Logger.Warn().Err(err).Str("path", path).Msg("failed to save intermediary image")
	}
}
