package imagej

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// Histogram returns the 256-bin intensity histogram of img
func Histogram(img *image.Gray) []int {
	hist := make([]int, 256)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):]
		for _, v := range row[:bounds.Dx()] {
			hist[v]++
		}
	}
	return hist
}

// Threshold computes the auto-threshold level of img and returns the binary
// mask (foreground 255, background 0) together with the level.
func Threshold(img *image.Gray, spec ThresholdSpec) (*image.Gray, int, error) {
	if isEmpty(img) {
		return nil, 0, ErrEmptyImage
	}

	hist := Histogram(img)

	var level int
	switch spec.Method {
	case MethodDefault:
		level = DefaultLevel(hist)
	case MethodRenyiEntropy:
		level = RenyiEntropyLevel(hist)
	default:
		return nil, 0, fmt.Errorf("unsupported threshold method %q", spec.Method)
	}

	bounds := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			v := int(img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			foreground := v <= level
			if spec.Dark {
				foreground = v > level
			}
			if foreground {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}

	return mask, level, nil
}

// DefaultLevel is the "Default" method: the iterative intermeans variant of
// IsoData, after limiting a dominant histogram mode so that a large uniform
// background does not pull the level.
func DefaultLevel(histogram []int) int {
	data := append([]int(nil), histogram...)

	maxCount, mode := 0, 0
	for i, c := range data {
		if c > maxCount {
			maxCount = c
			mode = i
		}
	}
	maxCount2 := 0
	for i, c := range data {
		if c > maxCount2 && i != mode {
			maxCount2 = c
		}
	}
	if maxCount > maxCount2*2 && maxCount2 != 0 {
		data[mode] = int(float64(maxCount2) * 1.5)
	}

	return isoDataLevel(data)
}

func isoDataLevel(data []int) int {
	maxValue := len(data) - 1

	// The extreme bins are ignored; they usually hold erased or saturated areas
	data[0] = 0
	data[maxValue] = 0

	min := 0
	for data[min] == 0 && min < maxValue {
		min++
	}
	max := maxValue
	for data[max] == 0 && max > 0 {
		max--
	}
	if min >= max {
		return len(data) / 2
	}

	movingIndex := min
	var result float64
	for {
		var sum1, sum2, sum3, sum4 float64
		for i := min; i <= movingIndex; i++ {
			sum1 += float64(i) * float64(data[i])
			sum2 += float64(data[i])
		}
		for i := movingIndex + 1; i <= max; i++ {
			sum3 += float64(i) * float64(data[i])
			sum4 += float64(data[i])
		}
		result = (sum1/sum2 + sum3/sum4) / 2.0
		movingIndex++
		if !(float64(movingIndex+1) <= result && movingIndex < max-1) {
			break
		}
	}

	return int(math.Round(result))
}

// RenyiEntropyLevel combines the maximum-entropy thresholds of Renyi
// entropies of order 0.5, 1 and 2 (Kapur, Sahoo and Wong).
func RenyiEntropyLevel(data []int) int {
	const eps = 2.220446049250313e-16
	n := len(data)

	total := 0
	for _, c := range data {
		total += c
	}
	if total == 0 {
		return 0
	}

	normHisto := make([]float64, n)
	for i, c := range data {
		normHisto[i] = float64(c) / float64(total)
	}

	p1 := make([]float64, n)
	p2 := make([]float64, n)
	p1[0] = normHisto[0]
	p2[0] = 1 - p1[0]
	for i := 1; i < n; i++ {
		p1[i] = p1[i-1] + normHisto[i]
		p2[i] = 1 - p1[i]
	}

	firstBin := 0
	for i := 0; i < n; i++ {
		if math.Abs(p1[i]) >= eps {
			firstBin = i
			break
		}
	}
	lastBin := n - 1
	for i := n - 1; i >= firstBin; i-- {
		if math.Abs(p2[i]) >= eps {
			lastBin = i
			break
		}
	}

	// Order 1: Shannon maximum entropy
	threshold, maxEnt := 0, 0.0
	for it := firstBin; it <= lastBin; it++ {
		entBack := 0.0
		for i := 0; i <= it; i++ {
			if data[i] != 0 {
				r := normHisto[i] / p1[it]
				entBack -= r * math.Log(r)
			}
		}
		entObj := 0.0
		for i := it + 1; i < n; i++ {
			if data[i] != 0 {
				r := normHisto[i] / p2[it]
				entObj -= r * math.Log(r)
			}
		}
		if tot := entBack + entObj; maxEnt < tot {
			maxEnt = tot
			threshold = it
		}
	}
	tStar2 := threshold

	// Order 0.5
	threshold, maxEnt = 0, 0.0
	for it := firstBin; it <= lastBin; it++ {
		entBack := 0.0
		for i := 0; i <= it; i++ {
			entBack += math.Sqrt(normHisto[i] / p1[it])
		}
		entObj := 0.0
		for i := it + 1; i < n; i++ {
			entObj += math.Sqrt(normHisto[i] / p2[it])
		}
		tot := 0.0
		if entBack*entObj > 0 {
			tot = math.Log(entBack*entObj) / (1 - 0.5)
		}
		if tot > maxEnt {
			maxEnt = tot
			threshold = it
		}
	}
	tStar1 := threshold

	// Order 2
	threshold, maxEnt = 0, 0.0
	for it := firstBin; it <= lastBin; it++ {
		entBack := 0.0
		for i := 0; i <= it; i++ {
			entBack += (normHisto[i] * normHisto[i]) / (p1[it] * p1[it])
		}
		entObj := 0.0
		for i := it + 1; i < n; i++ {
			entObj += (normHisto[i] * normHisto[i]) / (p2[it] * p2[it])
		}
		tot := 0.0
		if entBack*entObj > 0 {
			tot = math.Log(entBack*entObj) / (1 - 2.0)
		}
		if tot > maxEnt {
			maxEnt = tot
			threshold = it
		}
	}
	tStar3 := threshold

	stars := []int{tStar1, tStar2, tStar3}
	sort.Ints(stars)
	tStar1, tStar2, tStar3 = stars[0], stars[1], stars[2]

	var beta1, beta2, beta3 float64
	if absInt(tStar1-tStar2) <= 5 {
		if absInt(tStar2-tStar3) <= 5 {
			beta1, beta2, beta3 = 1, 2, 1
		} else {
			beta1, beta2, beta3 = 0, 1, 3
		}
	} else {
		if absInt(tStar2-tStar3) <= 5 {
			beta1, beta2, beta3 = 3, 1, 0
		} else {
			beta1, beta2, beta3 = 1, 2, 1
		}
	}

	omega := p1[tStar3] - p1[tStar1]
	opt := float64(tStar1)*(p1[tStar1]+0.25*omega*beta1) +
		0.25*float64(tStar2)*omega*beta2 +
		float64(tStar3)*(p2[tStar3]+0.25*omega*beta3)

	return int(opt)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
