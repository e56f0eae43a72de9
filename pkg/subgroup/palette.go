package subgroup

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Swatch is the fill of one group1 bin rank
type Swatch struct {
	Rank  int
	Hex   string
	Alpha float64
}

// Group1Palette lists the group1 fills by bin rank. Ranks past the end use
// the last entry.
var Group1Palette = []Swatch{
	{0, "#808080", 0.3},
	{1, "#808080", 0.3},
	{2, "#9D3CFF", 0.5},
	{3, "#00A0FF", 0.6},
	{4, "#009300", 0.7},
	{5, "#E6DC32", 0.8},
	{6, "#F08228", 0.9},
	{7, "#FF0000", 1.0},
}

// Group2Stops are the gradient stops of group2, from z_lim upward
var Group2Stops = []string{"#FFB3AB", "#D5453F", "#800000", "#311010"}

// Group2Alpha is the fill opacity of every group2 point
const Group2Alpha = 0.8

// SwatchFor returns the palette entry of a group1 rank
func SwatchFor(rank int) Swatch {
	for _, s := range Group1Palette {
		if s.Rank == rank {
			return s
		}
	}
	if rank < 0 {
		return Group1Palette[0]
	}
	return Group1Palette[len(Group1Palette)-1]
}

// Gradient maps values in [Lo, Hi] onto evenly spaced color stops,
// interpolating in RGB
type Gradient struct {
	Lo, Hi float64
	stops  []colorful.Color
}

// NewGradient parses hex stops
func NewGradient(lo, hi float64, hexStops ...string) (*Gradient, error) {
	g := &Gradient{Lo: lo, Hi: hi}
	for _, h := range hexStops {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, err
		}
		g.stops = append(g.stops, c)
	}
	return g, nil
}

// At returns the color of v, clamped to the gradient range
func (g *Gradient) At(v float64) colorful.Color {
	if len(g.stops) == 1 || g.Hi <= g.Lo {
		return g.stops[0]
	}
	t := (v - g.Lo) / (g.Hi - g.Lo)
	if t <= 0 {
		return g.stops[0]
	}
	if t >= 1 {
		return g.stops[len(g.stops)-1]
	}

	segments := float64(len(g.stops) - 1)
	pos := t * segments
	i := int(pos)
	return g.stops[i].BlendRgb(g.stops[i+1], pos-float64(i))
}

// Fill returns the point fill of z in bin
func (b *Binning) Fill(bin Bin, z float64) color.NRGBA {
	if bin.Regime == Group2 && len(b.Group2) > 0 {
		hi := b.Group2[len(b.Group2)-1].Hi
		g, err := NewGradient(b.ZLim, hi, Group2Stops...)
		if err == nil {
			return withAlpha(g.At(z), Group2Alpha)
		}
	}
	s := SwatchFor(bin.Rank)
	c, err := colorful.Hex(s.Hex)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	return withAlpha(c, s.Alpha)
}

func withAlpha(c colorful.Color, alpha float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: AlphaByte(alpha)}
}

// AlphaByte converts an opacity in [0, 1] to an 8-bit alpha
func AlphaByte(alpha float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, alpha)) * 255))
}
