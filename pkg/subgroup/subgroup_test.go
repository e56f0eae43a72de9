package subgroup

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"bacteriahts/internal/models"
)

var ab = models.StrainConfig{ZLim: 95, SubgroupStep: 10, XLim: [2]float64{0, 180}, YLim: [2]float64{0, 180}}

// TestGroup1Edges verifies z_lim is appended only when it is not a multiple of step
func TestGroup1Edges(t *testing.T) {
	got := Group1Edges(95, 10)
	want := []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 95}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	got = Group1Edges(160, 20)
	want = []float64{0, 20, 40, 60, 80, 100, 120, 140, 160}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestGroup2Edges verifies the range reaches the ceiling
func TestGroup2Edges(t *testing.T) {
	got := Group2Edges(95, 10, 200)
	if got[0] != 95 {
		t.Errorf("Expected first edge 95, got %f", got[0])
	}
	if last := got[len(got)-1]; last != 205 {
		t.Errorf("Expected last edge 205, got %f", last)
	}

	got = Group2Edges(160, 20, 260)
	if last := got[len(got)-1]; last != 260 {
		t.Errorf("Expected last edge 260, got %f", last)
	}
}

// TestAssignAb verifies the boundary values of strain Ab
func TestAssignAb(t *testing.T) {
	b, err := New(ab, 150, DefaultOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	bin, ok := b.Assign(0)
	if !ok || bin.Regime != Group1 || bin.Rank != 0 || bin.Lo != 0 || bin.Hi != 10 {
		t.Errorf("Expected 0 in the first group1 bin, got %v (%v)", bin, ok)
	}

	bin, ok = b.Assign(95)
	if !ok || bin.Regime != Group1 || bin.Hi != 95 {
		t.Errorf("Expected 95 in a group1 bin ending at 95, got %v (%v)", bin, ok)
	}

	bin, ok = b.Assign(150)
	if !ok || bin.Regime != Group2 {
		t.Fatalf("Expected 150 in group2, got %v (%v)", bin, ok)
	}
	if bin.Lo < 95 || bin.Hi > 205 || !bin.Contains(150) {
		t.Errorf("Unexpected group2 bin %v", bin)
	}
	if bin.Label != "145-155" {
		t.Errorf("Expected label 145-155, got %s", bin.Label)
	}
}

// TestEdgeRules verifies inner edge ownership under both rules
func TestEdgeRules(t *testing.T) {
	tests := []struct {
		rule     EdgeRule
		z        float64
		wantRank int
	}{
		{RightClosed, 0, 0},
		{RightClosed, 10, 0},
		{RightClosed, 10.5, 1},
		{RightClosed, 95, 9},
		{LeftClosed, 0, 0},
		{LeftClosed, 10, 1},
		{LeftClosed, 90, 9},
		{LeftClosed, 95, 9},
	}

	for _, tt := range tests {
		opts := DefaultOptions()
		opts.Group1Rule = tt.rule
		b, err := New(ab, 95, opts)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		bin, ok := b.Assign(tt.z)
		if !ok || bin.Rank != tt.wantRank {
			t.Errorf("%s: Assign(%g) = %v (%v), expected rank %d", tt.rule, tt.z, bin, ok, tt.wantRank)
		}
	}
}

// TestGroup2EdgeRules verifies group2 boundaries under both rules
func TestGroup2EdgeRules(t *testing.T) {
	right, _ := New(ab, 150, DefaultOptions())
	bin, _ := right.Assign(105)
	if bin.Lo != 95 || bin.Hi != 105 {
		t.Errorf("Right-closed: expected 105 in (95,105], got %v", bin)
	}

	opts := DefaultOptions()
	opts.Group2Rule = LeftClosed
	left, _ := New(ab, 150, opts)
	bin, _ = left.Assign(105)
	if bin.Lo != 105 || bin.Hi != 115 {
		t.Errorf("Left-closed: expected 105 in [105,115), got %v", bin)
	}
	bin, ok := left.Assign(205)
	if !ok || bin.Hi != 205 {
		t.Errorf("Left-closed: expected top edge to be closed, got %v (%v)", bin, ok)
	}
}

// TestZLimIsGroup1 verifies a value equal to z_lim stays in group1
func TestZLimIsGroup1(t *testing.T) {
	for _, rule := range []EdgeRule{RightClosed, LeftClosed} {
		b, _ := New(ab, 150, Options{Group1Rule: rule, Group2Rule: rule, Group2Floor: 200})
		if b.Regime(95) != Group1 {
			t.Errorf("%s: expected z_lim in group1", rule)
		}
		if bin, ok := b.Assign(95); !ok || bin.Regime != Group1 {
			t.Errorf("%s: expected z_lim assigned to group1, got %v (%v)", rule, bin, ok)
		}
	}
}

// TestNoGroup2BelowZLim verifies group2 bins only exist above z_lim
func TestNoGroup2BelowZLim(t *testing.T) {
	b, err := New(ab, 80, DefaultOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(b.Group2) != 0 {
		t.Errorf("Expected no group2 bins, got %d", len(b.Group2))
	}
	if _, ok := b.Assign(120); ok {
		t.Error("Expected 120 to be unassigned without group2 bins")
	}
}

// TestGroup2ReachesObservedMax verifies the range grows past the floor
func TestGroup2ReachesObservedMax(t *testing.T) {
	b, _ := New(ab, 263, DefaultOptions())
	last := b.Group2[len(b.Group2)-1]
	if last.Hi < 263 {
		t.Errorf("Expected last edge >= 263, got %f", last.Hi)
	}
	if _, ok := b.Assign(263); !ok {
		t.Error("Expected observed maximum to be assigned")
	}
}

// TestNewInvalid verifies non-positive strain constants are rejected
func TestNewInvalid(t *testing.T) {
	if _, err := New(models.StrainConfig{ZLim: 95}, 100, DefaultOptions()); err == nil {
		t.Error("Expected error for zero step")
	}
}

// TestPartitionIdempotent verifies repeated binning yields the same membership
func TestPartitionIdempotent(t *testing.T) {
	records := []models.HTSRecord{
		{Z: 0}, {Z: 5}, {Z: 10}, {Z: 42}, {Z: 95}, {Z: 96}, {Z: 150}, {Z: 150}, {Z: -3},
	}
	b, _ := New(ab, ObservedMax(records), DefaultOptions())

	first, dropped := b.Partition(records)
	second, _ := b.Partition(records)
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical partitions")
	}

	if len(dropped) != 1 || dropped[0].Z != -3 {
		t.Errorf("Expected only -3 to be dropped, got %v", dropped)
	}

	total := 0
	for _, s := range first {
		total += len(s.Records)
		for _, r := range s.Records {
			if !s.Bin.Contains(r.Z) {
				t.Errorf("Record %g placed in %v", r.Z, s.Bin)
			}
		}
	}
	if total != len(records)-1 {
		t.Errorf("Expected %d assigned records, got %d", len(records)-1, total)
	}
	if len(first) != len(b.Group1)+len(b.Group2) {
		t.Errorf("Expected one subset per bin, got %d", len(first))
	}
}

// TestObservedMax verifies the empty case
func TestObservedMax(t *testing.T) {
	if !math.IsInf(ObservedMax(nil), -1) {
		t.Error("Expected -Inf for no records")
	}
	if got := ObservedMax([]models.HTSRecord{{Z: 3}, {Z: 7}, {Z: 5}}); got != 7 {
		t.Errorf("Expected 7, got %f", got)
	}
}

// TestParseEdgeRule verifies accepted names
func TestParseEdgeRule(t *testing.T) {
	if r, err := ParseEdgeRule(""); err != nil || r != RightClosed {
		t.Errorf("Expected default right-closed, got %s, %v", r, err)
	}
	if r, err := ParseEdgeRule("left-closed"); err != nil || r != LeftClosed {
		t.Errorf("Expected left-closed, got %s, %v", r, err)
	}
	if _, err := ParseEdgeRule("closed"); err == nil {
		t.Error("Expected error for unknown rule")
	}
}

// TestSwatchFallback verifies ranks past the palette reuse the last entry
func TestSwatchFallback(t *testing.T) {
	if s := SwatchFor(2); s.Hex != "#9D3CFF" || s.Alpha != 0.5 {
		t.Errorf("Unexpected swatch for rank 2: %+v", s)
	}
	last := Group1Palette[len(Group1Palette)-1]
	if s := SwatchFor(12); s != last {
		t.Errorf("Expected fallback %+v, got %+v", last, s)
	}
	if s := SwatchFor(-1); s != Group1Palette[0] {
		t.Errorf("Expected first entry for negative rank, got %+v", s)
	}
}

// TestFill verifies group1 palette and group2 gradient colors
func TestFill(t *testing.T) {
	b, _ := New(ab, 150, DefaultOptions())

	bin, _ := b.Assign(25)
	c := b.Fill(bin, 25)
	if c.R != 0x9D || c.G != 0x3C || c.B != 0xFF || c.A != 128 {
		t.Errorf("Unexpected group1 fill %v", c)
	}

	lo, _ := b.Assign(96)
	c = b.Fill(lo, 95)
	if c.R != 0xFF || c.G != 0xB3 || c.B != 0xAB {
		t.Errorf("Expected first gradient stop at z_lim, got %v", c)
	}
	if c.A != 204 {
		t.Errorf("Expected alpha 204, got %d", c.A)
	}

	hi := b.Group2[len(b.Group2)-1]
	c = b.Fill(hi, hi.Hi)
	if c.R != 0x31 || c.G != 0x10 || c.B != 0x10 {
		t.Errorf("Expected last gradient stop at top edge, got %v", c)
	}
}

// TestGradientMidpoint verifies interpolation between stops
func TestGradientMidpoint(t *testing.T) {
	g, err := NewGradient(0, 1, "#000000", "#FFFFFF")
	if err != nil {
		t.Fatalf("NewGradient failed: %v", err)
	}
	r, gg, bb := g.At(0.5).RGB255()
	if r != gg || gg != bb || r < 127 || r > 128 {
		t.Errorf("Expected mid gray, got %d,%d,%d", r, gg, bb)
	}
	if _, err := NewGradient(0, 1, "nothex"); err == nil {
		t.Error("Expected error for invalid color")
	}
}

// TestAlphaByte verifies opacity rounding and clamping
func TestAlphaByte(t *testing.T) {
	tests := []struct {
		alpha float64
		want  uint8
	}{
		{0, 0},
		{0.3, 77},
		{0.5, 128},
		{Group2Alpha, 204},
		{1, 255},
		{1.5, 255},
		{-0.2, 0},
	}
	for _, tt := range tests {
		if got := AlphaByte(tt.alpha); got != tt.want {
			t.Errorf("AlphaByte(%g): expected %d, got %d", tt.alpha, tt.want, got)
		}
	}
}

// TestGroup2BinLimit verifies an outlying maximum is rejected instead of
// producing one bin per step
func TestGroup2BinLimit(t *testing.T) {
	_, err := New(ab, 1e7, DefaultOptions())
	if !errors.Is(err, ErrTooManyBins) {
		t.Errorf("Expected ErrTooManyBins, got %v", err)
	}

	// 95 + 100*10 is exactly at the limit
	b, err := New(ab, 1095, DefaultOptions())
	if err != nil {
		t.Fatalf("Expected 100 bins to be allowed, got %v", err)
	}
	if len(b.Group2) != DefaultMaxGroup2Bins {
		t.Errorf("Expected %d group2 bins, got %d", DefaultMaxGroup2Bins, len(b.Group2))
	}

	opts := DefaultOptions()
	opts.MaxGroup2Bins = 0
	if _, err := New(ab, 5000, opts); err != nil {
		t.Errorf("Expected no limit with MaxGroup2Bins 0, got %v", err)
	}
}
