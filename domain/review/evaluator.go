package review

import (
	"merlt/domain/core"
)

// ProfessionalCategory groups evaluators by occupation for bias auditing.
type ProfessionalCategory string

const (
	CategoryAcademic     ProfessionalCategory = "academic"
	CategoryPractitioner ProfessionalCategory = "practitioner"
	CategoryJudiciary    ProfessionalCategory = "judiciary"
	CategoryStudent      ProfessionalCategory = "student"
)

// TrustComponents are the time-evolving inputs to an evaluator's authority
// within one competence domain. TrackRecord is an exponentially weighted
// accuracy against eventual consensus; RecentPerformance is a short-window
// score that reacts faster than TrackRecord.
type TrustComponents struct {
	TrackRecord       float64 `json:"track_record" db:"track_record"`
	RecentPerformance float64 `json:"recent_performance" db:"recent_performance"`
	ResolvedVotes     int     `json:"resolved_votes" db:"resolved_votes"`
}

// NeutralTrust is the starting point for evaluators with no history.
func NeutralTrust() TrustComponents {
	return TrustComponents{TrackRecord: 0.5, RecentPerformance: 0.5}
}

// Evaluator is a registered reviewer. BaselineCredential is slow-changing
// (set from the credential source at registration); per-domain trust evolves
// with every resolved vote.
type Evaluator struct {
	ID                 core.EvaluatorID                          `json:"id" db:"id"`
	Name               string                                    `json:"name" db:"name"`
	BaselineCredential float64                                   `json:"baseline_credential" db:"baseline_credential"`
	Category           ProfessionalCategory                      `json:"category" db:"category"`
	Region             string                                    `json:"region" db:"region"`
	Trust              map[core.CompetenceDomain]TrustComponents `json:"trust"`
	RegisteredAt       core.Timestamp                            `json:"registered_at" db:"registered_at"`
}

// NewEvaluator registers an evaluator with neutral trust in the general
// domain. BaselineCredential is clamped to [0,1] at the door so a bad
// credential feed can never push authority out of range.
func NewEvaluator(id core.EvaluatorID, name string, baseline float64, category ProfessionalCategory, region string) *Evaluator {
	if baseline < 0 {
		baseline = 0
	}
	if baseline > 1 {
		baseline = 1
	}
	return &Evaluator{
		ID:                 id,
		Name:               name,
		BaselineCredential: baseline,
		Category:           category,
		Region:             region,
		Trust: map[core.CompetenceDomain]TrustComponents{
			core.DomainGeneral: NeutralTrust(),
		},
		RegisteredAt: core.Now(),
	}
}

// TrustIn returns the trust components for a domain, falling back to neutral
// for domains the evaluator has never voted in.
func (e *Evaluator) TrustIn(domain core.CompetenceDomain) TrustComponents {
	if domain == "" {
		domain = core.DomainGeneral
	}
	if tc, ok := e.Trust[domain]; ok {
		return tc
	}
	return NeutralTrust()
}
