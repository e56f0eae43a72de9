package imagej

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Bandpass removes structures larger than FilterLarge and smaller than
// FilterSmall pixels with Gaussian filters in the frequency domain.
//
// The image is padded to a power of two at least 1.5 times its size by
// mirror tiling, so that edges do not wrap around. The filter factor for
// frequency (kx, ky) is
//
//	(1 - exp(-(kx²+ky²)·sL)) · exp(-(kx²+ky²)·sS)
//
// with sL = (2·FilterLarge/N)² and sS = (2·FilterSmall/N)². It splits into
// two separable terms, so each is applied as a pass of 1D FFTs along rows
// followed by one along columns.
func Bandpass(img *image.Gray, opts BandpassOptions) (*image.Gray, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	if opts.Suppress != "" && opts.Suppress != "None" {
		return nil, fmt.Errorf("stripe suppression %q is not supported", opts.Suppress)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	nx := paddedSize(width)
	ny := paddedSize(height)
	offX := (nx - width) / 2
	offY := (ny - height) / 2

	padded := make([]float64, nx*ny)
	for y := 0; y < ny; y++ {
		sy := mirror(y-offY, height)
		for x := 0; x < nx; x++ {
			sx := mirror(x-offX, width)
			padded[y*nx+x] = float64(img.GrayAt(bounds.Min.X+sx, bounds.Min.Y+sy).Y)
		}
	}

	smallX := gaussianFactors(nx, opts.FilterSmall)
	smallY := gaussianFactors(ny, opts.FilterSmall)
	largeX := gaussianFactors(nx, opts.FilterLarge)
	largeY := gaussianFactors(ny, opts.FilterLarge)

	// Low-pass with both filters: exp(-k²·sL)·exp(-k²·sS)
	bothX := make([]float64, len(largeX))
	floats.MulTo(bothX, largeX, smallX)
	bothY := make([]float64, len(largeY))
	floats.MulTo(bothY, largeY, smallY)

	smoothed := separableFilter(padded, nx, ny, smallX, smallY)
	background := separableFilter(padded, nx, ny, bothX, bothY)
	floats.Sub(smoothed, background)

	// The difference of the two passes has no DC term; add the mean back so
	// that unscaled output stays in the input range
	mean := floats.Sum(padded) / float64(len(padded))

	result := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			result[y*width+x] = smoothed[(y+offY)*nx+x+offX] + mean
		}
	}

	return toGray(result, width, height, opts.Autoscale, opts.Saturate), nil
}

// paddedSize returns the smallest power of two at least 1.5 times n
func paddedSize(n int) int {
	target := int(math.Ceil(1.5 * float64(n)))
	size := 2
	for size < target {
		size *= 2
	}
	return size
}

// mirror maps an index outside [0,n) back into it by reflection
func mirror(i, n int) int {
	period := 2 * n
	m := i % period
	if m < 0 {
		m += period
	}
	if m >= n {
		m = period - 1 - m
	}
	return m
}

// gaussianFactors returns exp(-k²·s) for the n/2+1 real FFT coefficients,
// with s = (2·dia/n)²
func gaussianFactors(n int, dia float64) []float64 {
	scale := 2 * dia / float64(n)
	scale *= scale
	factors := make([]float64, n/2+1)
	for k := range factors {
		factors[k] = math.Exp(-float64(k*k) * scale)
	}
	return factors
}

// separableFilter multiplies the spectrum of every row by fx and of every
// column by fy, returning the filtered data
func separableFilter(data []float64, nx, ny int, fx, fy []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)

	rowFFT := fourier.NewFFT(nx)
	coeff := make([]complex128, nx/2+1)
	row := make([]float64, nx)
	for y := 0; y < ny; y++ {
		copy(row, out[y*nx:(y+1)*nx])
		filterSequence(rowFFT, row, coeff, fx)
		copy(out[y*nx:(y+1)*nx], row)
	}

	colFFT := fourier.NewFFT(ny)
	coeff = make([]complex128, ny/2+1)
	col := make([]float64, ny)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			col[y] = out[y*nx+x]
		}
		filterSequence(colFFT, col, coeff, fy)
		for y := 0; y < ny; y++ {
			out[y*nx+x] = col[y]
		}
	}

	return out
}

// filterSequence applies factors to the spectrum of seq in place
func filterSequence(fft *fourier.FFT, seq []float64, coeff []complex128, factors []float64) {
	n := float64(len(seq))
	fft.Coefficients(coeff, seq)
	for k := range coeff {
		coeff[k] *= complex(factors[k], 0)
	}
	fft.Sequence(seq, coeff)
	// gonum does not normalize the inverse transform
	floats.Scale(1/n, seq)
}

// toGray converts float pixels to 8 bits. With autoscale the data range is
// stretched to 0..255 (optionally saturating 0.5% at each end); otherwise
// values are clamped.
func toGray(data []float64, width, height int, autoscale, saturate bool) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, width, height))

	lo, hi := 0.0, 255.0
	if autoscale {
		lo, hi = floats.Min(data), floats.Max(data)
		if saturate {
			lo, hi = saturatedRange(data, 0.005)
		}
	}

	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	for i, v := range data {
		var p float64
		if autoscale {
			p = (v-lo)*scale + 0.5
		} else {
			p = math.Round(v)
		}
		if p < 0 {
			p = 0
		}
		if p > 255 {
			p = 255
		}
		out.Pix[(i/width)*out.Stride+i%width] = uint8(p)
	}

	return out
}

// saturatedRange returns the values below which and above which the given
// fraction of data lies, using a 256-bin histogram over the data range
func saturatedRange(data []float64, fraction float64) (float64, float64) {
	lo, hi := floats.Min(data), floats.Max(data)
	if hi <= lo {
		return lo, hi
	}

	var hist [256]int
	binWidth := (hi - lo) / 256
	for _, v := range data {
		b := int((v - lo) / binWidth)
		if b > 255 {
			b = 255
		}
		hist[b]++
	}

	limit := int(fraction * float64(len(data)))
	low, count := 0, 0
	for low < 255 {
		count += hist[low]
		if count > limit {
			break
		}
		low++
	}
	high := 255
	count = 0
	for high > 0 {
		count += hist[high]
		if count > limit {
			break
		}
		high--
	}
	if high < low {
		return lo, hi
	}
	return lo + float64(low)*binWidth, lo + float64(high+1)*binWidth
}
