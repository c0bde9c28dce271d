package expert

import (
	"merlt/domain/core"
)

// Perspective identifies one of the fixed interpretive lenses a session
// consults (e.g. literal, systematic, teleological, historical).
type Perspective string

const (
	PerspectiveLiteral      Perspective = "literal"
	PerspectiveSystematic   Perspective = "systematic"
	PerspectiveTeleological Perspective = "teleological"
	PerspectiveHistorical   Perspective = "historical"
)

// Citation is a reference supporting an opinion's claim.
type Citation struct {
	Source  string `json:"source"`
	Passage string `json:"passage,omitempty"`
}

// Opinion is one expert's independently produced reading of the query for a
// single round. Opinions are immutable once produced.
type Opinion struct {
	ExpertID    core.ExpertID `json:"expert_id"`
	Perspective Perspective   `json:"perspective"`
	Content     string        `json:"content"`
	// Position is the normalized stance label used to cluster opinions
	// across experts; opinions sharing a position agree in substance.
	Position   string         `json:"position"`
	Confidence float64        `json:"confidence"`
	Citations  []Citation     `json:"supporting_citations"`
	Novel      bool           `json:"novel,omitempty"`
	ProducedAt core.Timestamp `json:"produced_at"`
}

// SupportLevel buckets an alternative interpretation by its weighted backing.
type SupportLevel string

const (
	// SupportMinority marks positions under 30% weighted support.
	SupportMinority SupportLevel = "minority"
	// SupportContested marks a roughly balanced split with no position
	// clearly ahead.
	SupportContested SupportLevel = "contested"
	// SupportEmerging marks low-support positions (<15%) that are
	// structurally novel rather than simply outvoted.
	SupportEmerging SupportLevel = "emerging"
)

// Answer is one synthesized position with its merged support.
type Answer struct {
	Position          string          `json:"position"`
	Content           string          `json:"content"`
	WeightedSupport   float64         `json:"weighted_support"`
	Confidence        float64         `json:"confidence"`
	SupportingExperts []core.ExpertID `json:"supporting_experts"`
	Citations         []Citation      `json:"citations"`
}

// Alternative is a preserved non-primary position in a divergent synthesis.
type Alternative struct {
	Answer
	Support SupportLevel `json:"support_level"`
}

// Mode distinguishes single-answer from disagreement-preserving synthesis.
type Mode string

const (
	ModeConvergent Mode = "convergent"
	ModeDivergent  Mode = "divergent"
)

// Result is the outcome of merging one round's expert opinions. It is a
// tagged union: convergent results carry only Primary; divergent results
// additionally carry Alternatives. UncertaintyPreserved is true exactly when
// Alternatives is non-empty.
type Result struct {
	Mode                 Mode          `json:"mode"`
	Primary              Answer        `json:"primary_answer"`
	Alternatives         []Alternative `json:"alternative_interpretations,omitempty"`
	UncertaintyPreserved bool          `json:"uncertainty_preserved"`
	// Degraded marks a synthesis built from a partial round (one or more
	// experts timed out).
	Degraded       bool            `json:"degraded,omitempty"`
	MissingExperts []core.ExpertID `json:"missing_experts,omitempty"`
}

// Convergent builds a single-answer result.
func Convergent(primary Answer) Result {
	return Result{Mode: ModeConvergent, Primary: primary}
}

// Divergent builds a disagreement-preserving result. Alternatives must be
// non-empty; callers with no alternatives should build a Convergent result.
func Divergent(primary Answer, alternatives []Alternative) Result {
	return Result{
		Mode:                 ModeDivergent,
		Primary:              primary,
		Alternatives:         alternatives,
		UncertaintyPreserved: len(alternatives) > 0,
	}
}

// Match forces callers to handle both variants explicitly.
func (r Result) Match(convergent func(Answer), divergent func(Answer, []Alternative)) {
	switch r.Mode {
	case ModeDivergent:
		divergent(r.Primary, r.Alternatives)
	default:
		convergent(r.Primary)
	}
}

// AllExperts returns every expert whose citations surface in the result,
// primary or alternative.
func (r Result) AllExperts() []core.ExpertID {
	seen := make(map[core.ExpertID]bool)
	var out []core.ExpertID
	add := func(ids []core.ExpertID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	add(r.Primary.SupportingExperts)
	for _, alt := range r.Alternatives {
		add(alt.SupportingExperts)
	}
	return out
}
