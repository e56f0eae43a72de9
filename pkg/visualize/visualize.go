// Package visualize runs the subgroup visualizer: strain lookup, workbook
// loading, Z binning per shape group and plot output.
package visualize

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"bacteriahts/internal/models"
	"bacteriahts/pkg/plotting"
	"bacteriahts/pkg/subgroup"
	"bacteriahts/pkg/workbook"
)

// ErrNoRecords is reported for a shape group without surviving rows
var ErrNoRecords = errors.New("no records")

// StrainTable resolves strain names to their plotting constants
type StrainTable interface {
	Lookup(strain string) (models.StrainConfig, error)
}

// Options holds the visualizer parameters
type Options struct {
	Strain    string
	OutputDir string
	Binning   subgroup.Options

	// Averages adds the per-sheet average plot
	Averages bool

	// Summary adds the bin membership bar chart
	Summary bool

	Logger zerolog.Logger
}

// GroupFailure records a shape group whose plots could not be produced
type GroupFailure struct {
	Group models.ShapeGroup
	Err   error
}

// Report lists what a run produced
type Report struct {
	// Files are the written images in output order
	Files []string

	// Counts holds the membership of every bin of every plotted group
	Counts []plotting.BinCount

	// Failures lists the shape groups that were skipped
	Failures []GroupFailure
}

// Count returns the number of records of group in the bin labeled label
func (r *Report) Count(group models.ShapeGroup, regime subgroup.Regime, label string) int {
	for _, c := range r.Counts {
		if c.Group == group && c.Bin.Regime == regime && c.Bin.Label == label {
			return c.Count
		}
	}
	return 0
}

// Run looks up the strain, loads the workbook at path and renders it. An
// unknown strain fails before anything is read or written.
func Run(strains StrainTable, path string, opts Options) (*Report, error) {
	sc, err := strains.Lookup(opts.Strain)
	if err != nil {
		return nil, err
	}

	records, err := workbook.Load(path)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info().
		Str("workbook", path).
		Int("records", len(records)).
		Msg("workbook loaded")

	return Render(sc, records, opts), nil
}

// Render bins and plots records. Every shape group is handled on its own; a
// failing group is logged and recorded in the report while the others
// continue.
func Render(sc models.StrainConfig, records []models.HTSRecord, opts Options) *Report {
	log := opts.Logger.With().Str("strain", opts.Strain).Logger()
	p := plotting.NewPlotter(opts.Strain, sc, opts.OutputDir)
	report := &Report{}

	for _, group := range models.ShapeGroups {
		if err := renderGroup(p, sc, group, workbook.Filter(records, group), opts, report); err != nil {
			log.Error().Err(err).Str("shape_group", group.String()).Msg("skipping shape group")
			report.Failures = append(report.Failures, GroupFailure{Group: group, Err: err})
		}
	}

	if opts.Averages {
		if path, err := renderAverages(p, sc, records, opts); err != nil {
			log.Warn().Err(err).Msg("averages plot skipped")
		} else {
			report.Files = append(report.Files, path)
		}
	}

	if opts.Summary {
		if path, err := p.Summary(report.Counts); err != nil {
			log.Warn().Err(err).Msg("summary chart skipped")
		} else {
			report.Files = append(report.Files, path)
		}
	}

	log.Info().
		Int("files", len(report.Files)).
		Int("failed_groups", len(report.Failures)).
		Msg("visualization complete")

	return report
}

// renderGroup plots every bin of one shape group. Panics from the plotting
// backend are turned into errors.
func renderGroup(p *plotting.Plotter, sc models.StrainConfig, group models.ShapeGroup, records []models.HTSRecord, opts Options, report *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: plotting panicked: %v", group, r)
		}
	}()

	if len(records) == 0 {
		return fmt.Errorf("%s: %w", group, ErrNoRecords)
	}

	binning, err := subgroup.New(sc, subgroup.ObservedMax(records), opts.Binning)
	if err != nil {
		return fmt.Errorf("%s: %w", group, err)
	}

	subsets, dropped := binning.Partition(records)
	if len(dropped) > 0 {
		opts.Logger.Debug().
			Str("shape_group", group.String()).
			Int("dropped", len(dropped)).
			Msg("records outside every bin")
	}

	// Plot everything first so a failure leaves no partial counts behind
	var (
		files  []string
		counts []plotting.BinCount
	)
	for _, s := range subsets {
		path, err := p.Scatter(group, s, binning.Fill)
		if err != nil {
			return fmt.Errorf("%s %s: %w", group, s.Bin, err)
		}
		files = append(files, path)
		counts = append(counts, plotting.BinCount{
			Group: group,
			Bin:   s.Bin,
			Count: len(s.Records),
			Fill:  binning.Fill(s.Bin, s.Bin.Hi),
		})
		opts.Logger.Debug().
			Str("shape_group", group.String()).
			Str("bin", s.Bin.String()).
			Int("records", len(s.Records)).
			Msg("plotted")
	}

	report.Files = append(report.Files, files...)
	report.Counts = append(report.Counts, counts...)
	return nil
}

func renderAverages(p *plotting.Plotter, sc models.StrainConfig, records []models.HTSRecord, opts Options) (string, error) {
	averages := workbook.Averages(records)
	if len(averages) == 0 {
		return "", ErrNoRecords
	}
	binning, err := subgroup.New(sc, subgroup.ObservedMax(averages), opts.Binning)
	if err != nil {
		return "", err
	}
	return p.Averages(averages, binning)
}
