package bias

import (
	"merlt/domain/core"
)

// Type identifies which detector produced a report.
type Type string

const (
	TypeProfessionalClustering Type = "professional_clustering"
	TypeGeographic             Type = "geographic"
	TypeTemporal               Type = "temporal"
)

// Severity grades how far the measured effect exceeds the detection
// threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Evidence carries the statistical backing for a report. PValue and
// EffectSize come from the detector's test; Groups holds the per-group
// approval shares that triggered it.
type Evidence struct {
	Statistic   float64            `json:"statistic"`
	PValue      float64            `json:"p_value"`
	EffectSize  float64            `json:"effect_size"`
	SampleSize  int                `json:"sample_size"`
	Groups      map[string]float64 `json:"groups,omitempty"`
	Description string             `json:"description"`
}

// Report is an advisory finding of systematic skew among the evaluators of
// one target. Detection never alters aggregation results.
type Report struct {
	ID         core.ReportID  `json:"id" db:"id"`
	Type       Type           `json:"type" db:"type"`
	TargetID   core.TargetID  `json:"affected_target" db:"target_id"`
	Severity   Severity       `json:"severity" db:"severity"`
	Evidence   Evidence       `json:"evidence"`
	DetectedAt core.Timestamp `json:"detected_at" db:"detected_at"`
}

// GradeSeverity buckets an effect size relative to the configured detection
// threshold. Callers only grade effects that already cleared the threshold.
func GradeSeverity(effectSize, threshold float64) Severity {
	switch {
	case effectSize >= 3*threshold:
		return SeverityHigh
	case effectSize >= 2*threshold:
		return SeverityModerate
	default:
		return SeverityLow
	}
}
