package bias

import (
	"context"
	"sort"

	"merlt/domain/bias"
	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/internal/config"
)

// Sample is one vote enriched with the caster's population attributes. The
// auditor works on samples so it stays read-only with respect to evaluator
// state.
type Sample struct {
	Position review.Position
	Category review.ProfessionalCategory
	Region   string
	CastAt   core.Timestamp
}

// Detector audits one axis of the evaluator population for systematic skew.
// Detectors return nil when the data is too sparse or the effect too small:
// inconclusive is not a finding.
type Detector interface {
	Name() string
	Detect(ctx context.Context, targetID core.TargetID, samples []Sample) *bias.Report
}

// Auditor runs all detectors over the voters of one target. Detection is
// advisory: it never feeds back into aggregation results.
type Auditor struct {
	detectors []Detector
}

// NewAuditor creates an auditor with the three stock detectors.
func NewAuditor(cfg config.BiasConfig) *Auditor {
	return &Auditor{
		detectors: []Detector{
			NewProfessionalClusteringDetector(cfg),
			NewGeographicDetector(cfg),
			NewTemporalDetector(cfg),
		},
	}
}

// Detect runs every detector concurrently and returns the reports that
// cleared their thresholds, ordered by detector registration for
// deterministic output.
func (a *Auditor) Detect(ctx context.Context, targetID core.TargetID, samples []Sample) []bias.Report {
	type indexed struct {
		report *bias.Report
		index  int
	}

	resultChan := make(chan indexed, len(a.detectors))
	for i, det := range a.detectors {
		go func(det Detector, idx int) {
			resultChan <- indexed{report: det.Detect(ctx, targetID, samples), index: idx}
		}(det, i)
	}

	ordered := make([]*bias.Report, len(a.detectors))
	for range a.detectors {
		r := <-resultChan
		ordered[r.index] = r.report
	}

	var reports []bias.Report
	for _, r := range ordered {
		if r != nil {
			reports = append(reports, *r)
		}
	}
	return reports
}

// BuildSamples joins votes with their evaluators' population attributes.
// Votes from unknown evaluators are skipped.
func BuildSamples(votes []review.Vote, lookup func(core.EvaluatorID) *review.Evaluator) []Sample {
	samples := make([]Sample, 0, len(votes))
	for _, v := range votes {
		ev := lookup(v.EvaluatorID)
		if ev == nil {
			continue
		}
		samples = append(samples, Sample{
			Position: v.Position,
			Category: ev.Category,
			Region:   ev.Region,
			CastAt:   v.CastAt,
		})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].CastAt.Before(samples[j].CastAt)
	})
	return samples
}
