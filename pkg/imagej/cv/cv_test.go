//go:build gocv

package cv

import (
	"image"
	"image/color"
	"testing"

	"bacteriahts/pkg/imagej"
)

// TestMatchesNative verifies the OpenCV toolkit reproduces the native summary
func TestMatchesNative(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 30, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			v := uint8(200)
			if (x/5)%2 == 0 && (y/5)%2 == 0 {
				v = 30
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	native := imagej.NewNative()
	opencv := New()
	spec := imagej.ThresholdSpec{Method: imagej.MethodDefault}

	nativeMask, err := native.Threshold(img, spec)
	if err != nil {
		t.Fatalf("Native threshold failed: %v", err)
	}
	cvMask, err := opencv.Threshold(img, spec)
	if err != nil {
		t.Fatalf("OpenCV threshold failed: %v", err)
	}

	want, err := native.AnalyzeParticles(nativeMask, img)
	if err != nil {
		t.Fatalf("Native analysis failed: %v", err)
	}
	got, err := opencv.AnalyzeParticles(cvMask, img)
	if err != nil {
		t.Fatalf("OpenCV analysis failed: %v", err)
	}

	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}
