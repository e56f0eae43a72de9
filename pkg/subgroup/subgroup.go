// Package subgroup buckets Z values into the threshold-based bins of a
// strain. Values up to z_lim fall in group1 bins of a fixed step starting at
// zero; larger values fall in group2 bins of the same step starting at z_lim
// and reaching at least a floor value or the observed maximum.
package subgroup

import (
	"errors"
	"fmt"
	"math"

	"bacteriahts/internal/models"
)

// Regime is one of the two bin families
type Regime int

const (
	Group1 Regime = iota + 1
	Group2
)

func (r Regime) String() string {
	switch r {
	case Group1:
		return "group1"
	case Group2:
		return "group2"
	default:
		return fmt.Sprintf("Regime(%d)", int(r))
	}
}

// EdgeRule decides which bin owns a value lying on an inner edge
type EdgeRule string

const (
	// RightClosed bins are (lo, hi]; the lowest bin is also closed at lo
	RightClosed EdgeRule = "right-closed"

	// LeftClosed bins are [lo, hi); the highest bin is also closed at hi
	LeftClosed EdgeRule = "left-closed"
)

// ParseEdgeRule validates an edge rule name. An empty name selects RightClosed.
func ParseEdgeRule(s string) (EdgeRule, error) {
	switch EdgeRule(s) {
	case "", RightClosed:
		return RightClosed, nil
	case LeftClosed:
		return LeftClosed, nil
	default:
		return "", fmt.Errorf("unknown edge rule %q", s)
	}
}

// DefaultGroup2Floor is the lowest upper bound of the group2 range
const DefaultGroup2Floor = 200

// DefaultMaxGroup2Bins caps the group2 bin count, one plot per bin
const DefaultMaxGroup2Bins = 100

// ErrTooManyBins is returned when the observed maximum would need more
// group2 bins than allowed
var ErrTooManyBins = errors.New("too many group2 bins")

var errInvalidStrain = errors.New("z_lim and subgroup step must be positive")

// Bin is one Z subgroup
type Bin struct {
	Regime Regime

	// Rank is the position of the bin within its regime, from 0
	Rank int

	Lo, Hi             float64
	LoClosed, HiClosed bool

	// Label names the bin in output files, e.g. "90-95"
	Label string
}

// Contains reports whether z lies in the bin
func (b Bin) Contains(z float64) bool {
	above := z > b.Lo || (b.LoClosed && z == b.Lo)
	below := z < b.Hi || (b.HiClosed && z == b.Hi)
	return above && below
}

func (b Bin) String() string {
	lo, hi := "(", ")"
	if b.LoClosed {
		lo = "["
	}
	if b.HiClosed {
		hi = "]"
	}
	return fmt.Sprintf("%s %s%g,%g%s", b.Regime, lo, b.Lo, b.Hi, hi)
}

// Group1Edges returns 0, step, 2*step, ... up to z_lim. z_lim is appended
// when it is not a multiple of step.
func Group1Edges(zLim, step float64) []float64 {
	var edges []float64
	for i := 0; ; i++ {
		e := float64(i) * step
		if e >= zLim-step*1e-9 {
			break
		}
		edges = append(edges, e)
	}
	return append(edges, zLim)
}

// Group2Edges returns z_lim, z_lim+step, ... until an edge reaches ceiling
func Group2Edges(zLim, step, ceiling float64) []float64 {
	var edges []float64
	for i := 0; ; i++ {
		e := zLim + float64(i)*step
		edges = append(edges, e)
		if e >= ceiling-step*1e-9 {
			break
		}
	}
	return edges
}

// MakeBins turns sorted edges into bins under rule
func MakeBins(regime Regime, edges []float64, rule EdgeRule) []Bin {
	if len(edges) < 2 {
		return nil
	}
	bins := make([]Bin, 0, len(edges)-1)
	last := len(edges) - 2
	for i := 0; i <= last; i++ {
		b := Bin{
			Regime: regime,
			Rank:   i,
			Lo:     edges[i],
			Hi:     edges[i+1],
			Label:  fmt.Sprintf("%g-%g", edges[i], edges[i+1]),
		}
		switch rule {
		case LeftClosed:
			b.LoClosed = true
			b.HiClosed = i == last
		default:
			b.LoClosed = i == 0
			b.HiClosed = true
		}
		bins = append(bins, b)
	}
	return bins
}

// Options control bin construction
type Options struct {
	Group1Rule  EdgeRule
	Group2Rule  EdgeRule
	Group2Floor float64

	// MaxGroup2Bins limits the group2 bin count; zero means no limit
	MaxGroup2Bins int
}

// DefaultOptions returns right-closed bins in both regimes with the group2
// range reaching at least 200
func DefaultOptions() Options {
	return Options{
		Group1Rule:    RightClosed,
		Group2Rule:    RightClosed,
		Group2Floor:   DefaultGroup2Floor,
		MaxGroup2Bins: DefaultMaxGroup2Bins,
	}
}

// Binning is the bin set of one strain for one observed maximum
type Binning struct {
	ZLim   float64
	Group1 []Bin
	Group2 []Bin
}

// New builds the bins of a strain. Group2 bins exist only when observedMax
// exceeds z_lim. A maximum needing more than opts.MaxGroup2Bins group2 bins
// is rejected with ErrTooManyBins.
func New(cfg models.StrainConfig, observedMax float64, opts Options) (*Binning, error) {
	if cfg.ZLim <= 0 || cfg.SubgroupStep <= 0 {
		return nil, errInvalidStrain
	}

	b := &Binning{
		ZLim:   cfg.ZLim,
		Group1: MakeBins(Group1, Group1Edges(cfg.ZLim, cfg.SubgroupStep), opts.Group1Rule),
	}
	if observedMax > cfg.ZLim {
		ceiling := math.Max(opts.Group2Floor, observedMax)
		n := math.Ceil((ceiling-cfg.ZLim)/cfg.SubgroupStep - 1e-9)
		if opts.MaxGroup2Bins > 0 && n > float64(opts.MaxGroup2Bins) {
			return nil, fmt.Errorf("%w: maximum Z %g needs %.0f bins, limit is %d",
				ErrTooManyBins, observedMax, n, opts.MaxGroup2Bins)
		}
		b.Group2 = MakeBins(Group2, Group2Edges(cfg.ZLim, cfg.SubgroupStep, ceiling), opts.Group2Rule)
	}
	return b, nil
}

// Bins returns the group1 bins followed by the group2 bins
func (b *Binning) Bins() []Bin {
	out := make([]Bin, 0, len(b.Group1)+len(b.Group2))
	out = append(out, b.Group1...)
	return append(out, b.Group2...)
}

// Regime returns the regime of z. A value equal to z_lim is in group1.
func (b *Binning) Regime(z float64) Regime {
	if z <= b.ZLim {
		return Group1
	}
	return Group2
}

// Assign returns the bin holding z within its regime. Values outside every
// bin of their regime are reported as unassigned.
func (b *Binning) Assign(z float64) (Bin, bool) {
	bins := b.Group1
	if b.Regime(z) == Group2 {
		bins = b.Group2
	}
	for _, bin := range bins {
		if bin.Contains(z) {
			return bin, true
		}
	}
	return Bin{}, false
}

// Subset is the records of one bin
type Subset struct {
	Bin     Bin
	Records []models.HTSRecord
}

// Partition assigns records to bins. Every bin gets a subset, in bin order,
// and unassigned records are returned separately.
func (b *Binning) Partition(records []models.HTSRecord) ([]Subset, []models.HTSRecord) {
	bins := b.Bins()
	subsets := make([]Subset, len(bins))
	index := make(map[Bin]int, len(bins))
	for i, bin := range bins {
		subsets[i].Bin = bin
		index[bin] = i
	}

	var dropped []models.HTSRecord
	for _, r := range records {
		bin, ok := b.Assign(r.Z)
		if !ok {
			dropped = append(dropped, r)
			continue
		}
		i := index[bin]
		subsets[i].Records = append(subsets[i].Records, r)
	}
	return subsets, dropped
}

// ObservedMax returns the largest Z of records, or -Inf for none
func ObservedMax(records []models.HTSRecord) float64 {
	max := math.Inf(-1)
	for _, r := range records {
		if r.Z > max {
			max = r.Z
		}
	}
	return max
}
