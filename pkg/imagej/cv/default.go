//go:build !gocv

package cv

import "bacteriahts/pkg/imagej"

// Backend names the toolkit returned by Default
const Backend = "native"

// Default returns the pure Go toolkit. Build with -tags gocv to use OpenCV.
func Default() imagej.Toolkit {
	return imagej.NewNative()
}
