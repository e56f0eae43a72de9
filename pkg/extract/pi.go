package extract

import (
	"fmt"

	"github.com/rs/zerolog"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/imagej"
)

// Backgrounds holds the background images keyed by resolution class. The
// extractor looks backgrounds up again for every image, so a background
// removed between images is seen as missing by the images after it.
// Background images themselves are never modified.
type Backgrounds struct {
	images map[models.Resolution]*models.Image
}

// NewBackgrounds registers the given background images
func NewBackgrounds(images ...*models.Image) *Backgrounds {
	b := &Backgrounds{images: make(map[models.Resolution]*models.Image)}
	for _, img := range images {
		b.Register(img)
	}
	return b
}

// Register makes img the background of its resolution class
func (b *Backgrounds) Register(img *models.Image) {
	b.images[img.Resolution()] = img
}

// Remove closes the background of a resolution class
func (b *Backgrounds) Remove(res models.Resolution) {
	delete(b.images, res)
}

// Lookup returns the background of a resolution class
func (b *Backgrounds) Lookup(res models.Resolution) (*models.Image, bool) {
	img, ok := b.images[res]
	return img, ok
}

// Contains reports whether img is a registered background, by identity or
// by file path
func (b *Backgrounds) Contains(img *models.Image) bool {
	for _, bg := range b.images {
		if bg == img || (bg.Path != "" && bg.Path == img.Path) {
			return true
		}
	}
	return false
}

// PIOptions holds the propidium iodide extraction parameters
type PIOptions struct {
	// Threshold binarizes the background-subtracted image
	Threshold imagej.ThresholdSpec

	// Resolutions lists the resolution classes that have backgrounds
	Resolutions []models.Resolution

	Logger zerolog.Logger
}

// NewPIOptions parses the threshold option string and uses the two known
// camera resolutions
func NewPIOptions(threshold string, log zerolog.Logger) (PIOptions, error) {
	th, err := imagej.ParseThresholdSpec(threshold)
	if err != nil {
		return PIOptions{}, fmt.Errorf("threshold: %w", err)
	}
	return PIOptions{
		Threshold:   th,
		Resolutions: []models.Resolution{models.WUXGA, models.FullHD},
		Logger:      log,
	}, nil
}

// Classify returns the resolution class of img
func (o PIOptions) Classify(img *models.Image) (models.Resolution, error) {
	res := img.Resolution()
	for _, known := range o.Resolutions {
		if known == res {
			return known, nil
		}
	}
	return models.Resolution{}, fmt.Errorf("%w: %s", ErrUnknownResolution, res)
}

// ExtractPI measures every image that is not itself a background: subtract
// the background of its resolution class, convert to 8-bit, threshold and
// analyze particles. Images with an unknown resolution or without an open
// background are skipped with a warning. The difference and mask images are
// dropped after measurement and never written out.
func ExtractPI(images []*models.Image, backgrounds *Backgrounds, tk imagej.Toolkit, opts PIOptions) *Result {
	log := opts.Logger.With().Str("channel", models.PropidiumIodide.String()).Logger()
	result := &Result{Rows: make([]models.FeatureRow, 0, len(images))}

	for i, img := range images {
		if backgrounds.Contains(img) {
			continue
		}

		res, err := opts.Classify(img)
		if err != nil {
			result.warn(log, img, WarnResolutionMismatch, err)
			continue
		}

		bg, ok := backgrounds.Lookup(res)
		if !ok {
			result.warn(log, img, WarnMissingBackground, fmt.Errorf("%w: %s", ErrMissingBackground, res))
			continue
		}

		summary, err := measurePI(img, bg, tk, opts)
		if err != nil {
			result.warn(log, img, WarnTransformFailed, err)
			continue
		}

		result.Rows = append(result.Rows, newRow(img, summary))
		log.Debug().
			Int("index", i).
			Str("image", img.Title).
			Str("resolution", res.String()).
			Int("count", summary.Count).
			Msg("measured")
	}

	log.Info().
		Int("images", len(images)).
		Int("rows", len(result.Rows)).
		Int("skipped", len(result.Warnings)).
		Msg("PI batch complete")

	return result
}

func measurePI(img, bg *models.Image, tk imagej.Toolkit, opts PIOptions) (imagej.Summary, error) {
	diff, err := tk.Subtract(img.Pixels, bg.Pixels)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("background subtraction: %w", err)
	}

	gray, err := tk.Convert8Bit(diff)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("8-bit conversion: %w", err)
	}

	mask, err := tk.Threshold(gray, opts.Threshold)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("threshold: %w", err)
	}

	summary, err := tk.AnalyzeParticles(mask, gray)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("particle analysis: %w", err)
	}
	return summary, nil
}
