// Package imagej implements the fixed image-analysis primitives the feature
// extractors call into: 8-bit conversion, FFT bandpass filtering, histogram
// auto-thresholds, clipped image subtraction and particle analysis. Option
// strings use the same syntax as the ImageJ commands they reproduce, so that
// recorded parameters stay comparable across experiments.
package imagej

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ErrEmptyImage is returned when an operation receives an image without pixels
var ErrEmptyImage = errors.New("empty image")

// Toolkit is the set of primitives used by the extractors. Native is the
// default implementation; an OpenCV backed one lives in package cv.
type Toolkit interface {
	// Convert8Bit normalizes any image to 8-bit grayscale
	Convert8Bit(img image.Image) (*image.Gray, error)

	// Bandpass filters large and small structures in the frequency domain
	Bandpass(img *image.Gray, opts BandpassOptions) (*image.Gray, error)

	// Threshold returns a mask with foreground pixels set to 255
	Threshold(img *image.Gray, spec ThresholdSpec) (*image.Gray, error)

	// Subtract returns img - bg pixel by pixel, clipped at zero
	Subtract(img, bg image.Image) (image.Image, error)

	// AnalyzeParticles summarizes the connected foreground regions of mask,
	// measuring intensities on measure
	AnalyzeParticles(mask, measure *image.Gray) (Summary, error)
}

// Summary is the aggregate particle measurement of one image
type Summary struct {
	Count       int
	TotalArea   float64
	AverageSize float64
	PercentArea float64
	Mean        float64
}

// BandpassOptions mirrors the "Bandpass Filter..." option string
type BandpassOptions struct {
	// FilterLarge removes structures larger than this many pixels
	FilterLarge float64

	// FilterSmall removes structures smaller than this many pixels
	FilterSmall float64

	// Suppress is the stripe suppression direction: None, Horizontal or Vertical
	Suppress string

	// Tolerance is the stripe tolerance in percent
	Tolerance float64

	// Autoscale stretches the result to the full 8-bit range
	Autoscale bool

	// Saturate allows 1% of pixels to saturate when autoscaling
	Saturate bool

	raw string
}

// ParseBandpassOptions parses an option string such as
// "filter_large=40 filter_small=3 suppress=None tolerance=5 autoscale".
func ParseBandpassOptions(s string) (BandpassOptions, error) {
	opts := BandpassOptions{Suppress: "None", raw: s}

	for _, field := range strings.Fields(s) {
		key, value, hasValue := strings.Cut(field, "=")
		switch key {
		case "filter_large", "filter_small", "tolerance":
			if !hasValue {
				return BandpassOptions{}, fmt.Errorf("bandpass option %s needs a value", key)
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return BandpassOptions{}, fmt.Errorf("bandpass option %s: %w", key, err)
			}
			switch key {
			case "filter_large":
				opts.FilterLarge = v
			case "filter_small":
				opts.FilterSmall = v
			default:
				opts.Tolerance = v
			}
		case "suppress":
			switch value {
			case "None", "Horizontal", "Vertical":
				opts.Suppress = value
			default:
				return BandpassOptions{}, fmt.Errorf("bandpass option suppress: unknown direction %q", value)
			}
		case "autoscale":
			opts.Autoscale = true
		case "saturate":
			opts.Saturate = true
		case "process":
			// stacks are not supported; single images are always processed whole
		default:
			return BandpassOptions{}, fmt.Errorf("unknown bandpass option %q", key)
		}
	}

	if opts.FilterLarge <= 0 || opts.FilterSmall <= 0 {
		return BandpassOptions{}, fmt.Errorf("bandpass filter sizes must be positive")
	}
	if opts.FilterSmall >= opts.FilterLarge {
		return BandpassOptions{}, fmt.Errorf("filter_small (%g) must be below filter_large (%g)",
			opts.FilterSmall, opts.FilterLarge)
	}

	return opts, nil
}

// String returns the option string. Parsed options reproduce their input
// exactly.
func (o BandpassOptions) String() string {
	if o.raw != "" {
		return o.raw
	}
	s := fmt.Sprintf("filter_large=%g filter_small=%g suppress=%s tolerance=%g",
		o.FilterLarge, o.FilterSmall, o.Suppress, o.Tolerance)
	if o.Autoscale {
		s += " autoscale"
	}
	if o.Saturate {
		s += " saturate"
	}
	return s
}

// Threshold methods
const (
	MethodDefault      = "Default"
	MethodRenyiEntropy = "RenyiEntropy"
)

// ThresholdSpec selects an auto-threshold method. Dark selects the pixels
// above the level as foreground; otherwise the pixels at or below it.
type ThresholdSpec struct {
	Method string
	Dark   bool
}

// ParseThresholdSpec parses "Default" or "RenyiEntropy dark"
func ParseThresholdSpec(s string) (ThresholdSpec, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ThresholdSpec{}, fmt.Errorf("empty threshold method")
	}

	spec := ThresholdSpec{Method: fields[0]}
	switch spec.Method {
	case MethodDefault, MethodRenyiEntropy:
	default:
		return ThresholdSpec{}, fmt.Errorf("unsupported threshold method %q", spec.Method)
	}

	for _, f := range fields[1:] {
		if f != "dark" {
			return ThresholdSpec{}, fmt.Errorf("unknown threshold option %q", f)
		}
		spec.Dark = true
	}
	return spec, nil
}

func (s ThresholdSpec) String() string {
	if s.Dark {
		return s.Method + " dark"
	}
	return s.Method
}

// Native is the pure Go toolkit. It is stateless and deterministic: the
// same input always produces bit-identical output.
type Native struct{}

// NewNative returns the pure Go toolkit
func NewNative() *Native {
	return &Native{}
}

func (n *Native) Convert8Bit(img image.Image) (*image.Gray, error) {
	return Convert8Bit(img)
}

func (n *Native) Bandpass(img *image.Gray, opts BandpassOptions) (*image.Gray, error) {
	return Bandpass(img, opts)
}

func (n *Native) Threshold(img *image.Gray, spec ThresholdSpec) (*image.Gray, error) {
	mask, _, err := Threshold(img, spec)
	return mask, err
}

func (n *Native) Subtract(img, bg image.Image) (image.Image, error) {
	return Subtract(img, bg)
}

func (n *Native) AnalyzeParticles(mask, measure *image.Gray) (Summary, error) {
	return AnalyzeParticles(mask, measure)
}

func isEmpty(img image.Image) bool {
	if img == nil {
		return true
	}
	return img.Bounds().Empty()
}
