package imagej

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Particle is one 8-connected foreground region
type Particle struct {
	Area int
	Mean float64
}

// FindParticles labels the 8-connected foreground regions of mask in raster
// order and measures their area and mean intensity on measure. No size or
// circularity limits are applied.
func FindParticles(mask, measure *image.Gray) ([]Particle, error) {
	if isEmpty(mask) {
		return nil, ErrEmptyImage
	}
	mb := mask.Bounds()
	width, height := mb.Dx(), mb.Dy()
	if measure != nil {
		if sb := measure.Bounds(); sb.Dx() != width || sb.Dy() != height {
			return nil, fmt.Errorf("size mismatch: mask %dx%d, measure %dx%d",
				width, height, sb.Dx(), sb.Dy())
		}
	}

	fg := func(x, y int) bool {
		return mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y != 0
	}
	intensity := func(x, y int) float64 {
		if measure == nil {
			return float64(mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y)
		}
		sb := measure.Bounds()
		return float64(measure.GrayAt(sb.Min.X+x, sb.Min.Y+y).Y)
	}

	visited := make([]bool, width*height)
	var particles []Particle
	var stack []image.Point

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if visited[y*width+x] || !fg(x, y) {
				continue
			}

			// Flood fill one particle
			area := 0
			sum := 0.0
			visited[y*width+x] = true
			stack = append(stack[:0], image.Point{X: x, Y: y})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				area++
				sum += intensity(p.X, p.Y)

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= width || ny >= height {
							continue
						}
						if visited[ny*width+nx] || !fg(nx, ny) {
							continue
						}
						visited[ny*width+nx] = true
						stack = append(stack, image.Point{X: nx, Y: ny})
					}
				}
			}

			particles = append(particles, Particle{Area: area, Mean: sum / float64(area)})
		}
	}

	return particles, nil
}

// AnalyzeParticles returns the summary row of the particles in mask: count,
// total area, average size, percent of the image covered and the average of
// the particle mean intensities.
func AnalyzeParticles(mask, measure *image.Gray) (Summary, error) {
	particles, err := FindParticles(mask, measure)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(particles, mask.Bounds().Dx()*mask.Bounds().Dy()), nil
}

// Summarize aggregates particles of an image with imageArea pixels
func Summarize(particles []Particle, imageArea int) Summary {
	s := Summary{Count: len(particles)}
	if len(particles) == 0 {
		return s
	}

	areas := make([]float64, len(particles))
	means := make([]float64, len(particles))
	for i, p := range particles {
		areas[i] = float64(p.Area)
		means[i] = p.Mean
	}

	s.TotalArea = floats.Sum(areas)
	s.AverageSize = s.TotalArea / float64(s.Count)
	if imageArea > 0 {
		s.PercentArea = 100 * s.TotalArea / float64(imageArea)
	}
	s.Mean = stat.Mean(means, nil)
	return s
}
