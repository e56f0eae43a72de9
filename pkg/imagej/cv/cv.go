//go:build gocv

// Package cv provides an OpenCV backed imagej.Toolkit. Thresholding,
// subtraction and connected components run in OpenCV; 8-bit conversion and
// the bandpass filter have no OpenCV equivalent with the same semantics and
// stay on the native implementation.
package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"bacteriahts/pkg/imagej"
)

// Toolkit runs the extractor primitives through gocv
type Toolkit struct {
	*imagej.Native
}

var _ imagej.Toolkit = (*Toolkit)(nil)

// Backend names the toolkit returned by Default
const Backend = "opencv"

// New returns an OpenCV backed toolkit
func New() *Toolkit {
	return &Toolkit{Native: imagej.NewNative()}
}

// Default returns the toolkit used by the binaries
func Default() imagej.Toolkit {
	return New()
}

// Threshold computes the level natively and binarizes in OpenCV
func (t *Toolkit) Threshold(img *image.Gray, spec imagej.ThresholdSpec) (*image.Gray, error) {
	hist := imagej.Histogram(img)
	var level int
	switch spec.Method {
	case imagej.MethodDefault:
		level = imagej.DefaultLevel(hist)
	case imagej.MethodRenyiEntropy:
		level = imagej.RenyiEntropyLevel(hist)
	default:
		return nil, fmt.Errorf("unsupported threshold method %q", spec.Method)
	}

	src, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	// Binary keeps pixels above the level; inverse keeps those at or below it
	mode := gocv.ThresholdBinaryInv
	if spec.Dark {
		mode = gocv.ThresholdBinary
	}
	gocv.Threshold(src, &dst, float32(level), 255, mode)

	return matToGray(dst)
}

// Subtract runs a saturating subtraction for 8-bit gray pairs and falls back
// to the native implementation for other pixel formats
func (t *Toolkit) Subtract(img, bg image.Image) (image.Image, error) {
	a, okA := img.(*image.Gray)
	b, okB := bg.(*image.Gray)
	if !okA || !okB {
		return t.Native.Subtract(img, bg)
	}
	if a.Bounds().Size() != b.Bounds().Size() {
		return nil, fmt.Errorf("size mismatch: image %v, background %v", a.Bounds().Size(), b.Bounds().Size())
	}

	matA, err := gocv.ImageGrayToMatGray(a)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer matA.Close()
	matB, err := gocv.ImageGrayToMatGray(b)
	if err != nil {
		return nil, fmt.Errorf("failed to convert background: %w", err)
	}
	defer matB.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Subtract(matA, matB, &dst)

	return matToGray(dst)
}

// AnalyzeParticles labels 8-connected components with OpenCV
func (t *Toolkit) AnalyzeParticles(mask, measure *image.Gray) (imagej.Summary, error) {
	if mask == nil || mask.Bounds().Empty() {
		return imagej.Summary{}, imagej.ErrEmptyImage
	}

	src, err := gocv.ImageGrayToMatGray(mask)
	if err != nil {
		return imagej.Summary{}, fmt.Errorf("failed to convert mask: %w", err)
	}
	defer src.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	numComponents := gocv.ConnectedComponentsWithStats(src, &labels, &stats, &centroids)

	// Label 0 is the background
	sums := make([]float64, numComponents)
	if measure != nil {
		mb := measure.Bounds()
		for y := 0; y < labels.Rows(); y++ {
			for x := 0; x < labels.Cols(); x++ {
				if l := int(labels.GetIntAt(y, x)); l > 0 {
					sums[l] += float64(measure.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y)
				}
			}
		}
	}

	particles := make([]imagej.Particle, 0, numComponents)
	for i := 1; i < numComponents; i++ {
		area := int(stats.GetIntAt(i, 4)) // area column
		mean := 255.0
		if measure != nil {
			mean = sums[i] / float64(area)
		}
		particles = append(particles, imagej.Particle{Area: area, Mean: mean})
	}

	b := mask.Bounds()
	return imagej.Summarize(particles, b.Dx()*b.Dy()), nil
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat: %w", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected mat image type %T", img)
	}
	return gray, nil
}
