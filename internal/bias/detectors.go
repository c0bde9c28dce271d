package bias

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"merlt/domain/bias"
	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/internal/config"
)

// ProfessionalClusteringDetector tests whether review outcomes correlate
// with evaluator professional category via a chi-square test of independence
// over the category x position contingency table.
type ProfessionalClusteringDetector struct {
	cfg config.BiasConfig
}

// NewProfessionalClusteringDetector creates the professional clustering detector
func NewProfessionalClusteringDetector(cfg config.BiasConfig) *ProfessionalClusteringDetector {
	return &ProfessionalClusteringDetector{cfg: cfg}
}

// Name returns the detector name
func (d *ProfessionalClusteringDetector) Name() string {
	return string(bias.TypeProfessionalClustering)
}

// Detect runs the chi-square test. Emits a report only when the test is
// significant and the Cramér's V effect size clears the configured threshold.
func (d *ProfessionalClusteringDetector) Detect(ctx context.Context, targetID core.TargetID, samples []Sample) *bias.Report {
	if len(samples) < d.cfg.MinSamples {
		return nil
	}

	counts := make(map[review.ProfessionalCategory]map[review.Position]int)
	positions := make(map[review.Position]bool)
	for _, s := range samples {
		if counts[s.Category] == nil {
			counts[s.Category] = make(map[review.Position]int)
		}
		counts[s.Category][s.Position]++
		positions[s.Position] = true
	}
	if len(counts) < 2 || len(positions) < 2 {
		return nil
	}

	chiSq, rows, cols := chiSquareStatistic(counts, positions)
	df := (rows - 1) * (cols - 1)
	pValue := ChiSquarePValue(chiSq, df)
	effect := CramersV(chiSq, len(samples), rows, cols)

	if pValue > d.cfg.SignificanceLevel || effect < d.cfg.EffectThreshold {
		return nil
	}

	groups := make(map[string]float64, len(counts))
	for category, byPosition := range counts {
		total := 0
		for _, n := range byPosition {
			total += n
		}
		groups[string(category)] = float64(byPosition[review.PositionApprove]) / float64(total)
	}

	report := newReport(bias.TypeProfessionalClustering, targetID, effect, d.cfg.EffectThreshold, bias.Evidence{
		Statistic:   chiSq,
		PValue:      pValue,
		EffectSize:  effect,
		SampleSize:  len(samples),
		Groups:      groups,
		Description: fmt.Sprintf("approval correlates with professional category (chi2=%.3f, df=%d, p=%.4f, V=%.3f)", chiSq, df, pValue, effect),
	})
	return &report
}

// chiSquareStatistic computes the chi-square statistic for a category x
// position contingency table with deterministic row/column ordering.
func chiSquareStatistic(counts map[review.ProfessionalCategory]map[review.Position]int, positionSet map[review.Position]bool) (chiSq float64, rows, cols int) {
	categories := make([]review.ProfessionalCategory, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	positions := make([]review.Position, 0, len(positionSet))
	for p := range positionSet {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	rows = len(categories)
	cols = len(positions)

	rowTotals := make([]int, rows)
	colTotals := make([]int, cols)
	total := 0
	for i, c := range categories {
		for j, p := range positions {
			n := counts[c][p]
			rowTotals[i] += n
			colTotals[j] += n
			total += n
		}
	}
	if total == 0 {
		return 0, rows, cols
	}

	for i, c := range categories {
		for j, p := range positions {
			expected := float64(rowTotals[i]*colTotals[j]) / float64(total)
			if expected > 0 {
				observed := float64(counts[c][p])
				chiSq += math.Pow(observed-expected, 2) / expected
			}
		}
	}
	return chiSq, rows, cols
}

// GeographicDetector tests whether consensus outcomes differ significantly
// by evaluator region using pairwise two-proportion z-tests.
type GeographicDetector struct {
	cfg config.BiasConfig
}

// NewGeographicDetector creates the geographic detector
func NewGeographicDetector(cfg config.BiasConfig) *GeographicDetector {
	return &GeographicDetector{cfg: cfg}
}

// Name returns the detector name
func (d *GeographicDetector) Name() string {
	return string(bias.TypeGeographic)
}

// Detect compares approval shares across every region pair and reports the
// widest significant gap.
func (d *GeographicDetector) Detect(ctx context.Context, targetID core.TargetID, samples []Sample) *bias.Report {
	if len(samples) < d.cfg.MinSamples {
		return nil
	}

	type tally struct{ approve, total int }
	byRegion := make(map[string]*tally)
	for _, s := range samples {
		if s.Region == "" {
			continue
		}
		t := byRegion[s.Region]
		if t == nil {
			t = &tally{}
			byRegion[s.Region] = t
		}
		t.total++
		if s.Position == review.PositionApprove {
			t.approve++
		}
	}
	if len(byRegion) < 2 {
		return nil
	}

	regions := make([]string, 0, len(byRegion))
	for r := range byRegion {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	var bestZ, bestP, bestGap float64
	bestP = 1.0
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			a, b := byRegion[regions[i]], byRegion[regions[j]]
			z, p := TwoProportionZ(a.approve, a.total, b.approve, b.total)
			gap := math.Abs(float64(a.approve)/float64(a.total) - float64(b.approve)/float64(b.total))
			if p < bestP {
				bestZ, bestP, bestGap = z, p, gap
			}
		}
	}

	if bestP > d.cfg.SignificanceLevel || bestGap < d.cfg.EffectThreshold {
		return nil
	}

	groups := make(map[string]float64, len(byRegion))
	for r, t := range byRegion {
		groups[r] = float64(t.approve) / float64(t.total)
	}

	report := newReport(bias.TypeGeographic, targetID, bestGap, d.cfg.EffectThreshold, bias.Evidence{
		Statistic:   bestZ,
		PValue:      bestP,
		EffectSize:  bestGap,
		SampleSize:  len(samples),
		Groups:      groups,
		Description: fmt.Sprintf("approval differs by region (z=%.3f, p=%.4f, max gap=%.3f)", bestZ, bestP, bestGap),
	})
	return &report
}

// TemporalDetector compares first-quartile against last-quartile voters on
// the same target to surface anchoring and bandwagon effects.
type TemporalDetector struct {
	cfg config.BiasConfig
}

// NewTemporalDetector creates the temporal detector
func NewTemporalDetector(cfg config.BiasConfig) *TemporalDetector {
	return &TemporalDetector{cfg: cfg}
}

// Name returns the detector name
func (d *TemporalDetector) Name() string {
	return string(bias.TypeTemporal)
}

// Detect splits the chronologically ordered samples into quartiles and tests
// whether late voters approve at a different rate than early voters.
func (d *TemporalDetector) Detect(ctx context.Context, targetID core.TargetID, samples []Sample) *bias.Report {
	if len(samples) < d.cfg.MinSamples {
		return nil
	}

	// BuildSamples already orders by cast time; quartile boundaries fall
	// out of the index.
	quartile := len(samples) / 4
	if quartile < 2 {
		return nil
	}
	first := samples[:quartile]
	last := samples[len(samples)-quartile:]

	firstRate, firstApprovals := approvalRate(first)
	lastRate, lastApprovals := approvalRate(last)

	z, p := TwoProportionZ(firstApprovals, len(first), lastApprovals, len(last))
	drift := math.Abs(lastRate - firstRate)

	if p > d.cfg.SignificanceLevel || drift < d.cfg.EffectThreshold {
		return nil
	}

	report := newReport(bias.TypeTemporal, targetID, drift, d.cfg.EffectThreshold, bias.Evidence{
		Statistic:  z,
		PValue:     p,
		EffectSize: drift,
		SampleSize: len(samples),
		Groups: map[string]float64{
			"first_quartile": firstRate,
			"last_quartile":  lastRate,
		},
		Description: fmt.Sprintf("late voters drift from early voters (first=%.3f, last=%.3f, z=%.3f, p=%.4f)", firstRate, lastRate, z, p),
	})
	return &report
}

// approvalRate returns the approve share of a sample slice via the stats
// library's mean over a 0/1 outcome vector, plus the raw approval count.
func approvalRate(samples []Sample) (float64, int) {
	outcomes := make([]float64, len(samples))
	approvals := 0
	for i, s := range samples {
		if s.Position == review.PositionApprove {
			outcomes[i] = 1
			approvals++
		}
	}
	rate, err := stats.Mean(outcomes)
	if err != nil {
		return 0, approvals
	}
	return rate, approvals
}

func newReport(t bias.Type, targetID core.TargetID, effect, threshold float64, evidence bias.Evidence) bias.Report {
	return bias.Report{
		ID:         core.ReportID(core.NewID()),
		Type:       t,
		TargetID:   targetID,
		Severity:   bias.GradeSeverity(effect, threshold),
		Evidence:   evidence,
		DetectedAt: core.Now(),
	}
}
