package synthesis

import (
	"fmt"
	"strings"

	"merlt/domain/core"
	"merlt/domain/expert"
	"merlt/domain/review"
	"merlt/internal"
	"merlt/internal/aggregation"
)

// Support level cut points over weighted share.
const (
	// minoritySupport is the ceiling under which a preserved position is a
	// plain minority view.
	minoritySupport = 0.30
	// emergingSupport is the ceiling for structurally novel positions.
	emergingSupport = 0.15
	// contestedCeiling marks a balanced field: when not even the primary
	// position exceeds it, alternatives are contested rather than minority.
	contestedCeiling = 0.55
)

// Synthesizer merges one round's independent expert opinions into a single
// result, convergent when the opinions substantially agree and divergent,
// with disagreement preserved, when they do not. Mode selection reuses the
// aggregation engine's weighting logic with expert reliability in place of
// evaluator authority.
type Synthesizer struct {
	divergenceEntropy float64
	reliability       *ReliabilityTracker
	logger            *internal.Logger
}

// NewSynthesizer creates a synthesizer. Entropy at or above
// divergenceEntropy switches synthesis to divergent mode.
func NewSynthesizer(divergenceEntropy float64, reliability *ReliabilityTracker) *Synthesizer {
	return &Synthesizer{
		divergenceEntropy: divergenceEntropy,
		reliability:       reliability,
		logger:            internal.DefaultLogger.Component("Synthesis"),
	}
}

// Weights returns the normalized reliability weights the synthesizer would
// apply to the given opinions.
func (s *Synthesizer) Weights(opinions []expert.Opinion) map[core.ExpertID]float64 {
	ids := make([]core.ExpertID, len(opinions))
	for i, op := range opinions {
		ids[i] = op.ExpertID
	}
	return s.reliability.Weights(ids)
}

// Synthesize merges the round's opinions. It is deterministic given
// identical opinions and reliability weights, and every expert's citation
// set surfaces in the output, primary or alternative: no opinion is silently
// dropped.
func (s *Synthesizer) Synthesize(opinions []expert.Opinion) (expert.Result, error) {
	if len(opinions) == 0 {
		return expert.Result{}, core.ErrInsufficientData
	}

	weights := s.Weights(opinions)
	clusters := clusterByPosition(opinions, weights)
	dist := distribution(clusters)

	if dist.Entropy < s.divergenceEntropy {
		result := s.convergent(opinions, clusters, dist)
		s.logger.Debug("convergent synthesis: %d opinions, agreement=%.3f entropy=%.3f",
			len(opinions), dist.Agreement, dist.Entropy)
		return result, nil
	}

	result := s.divergent(clusters, dist)
	s.logger.Debug("divergent synthesis: %d opinions across %d positions, entropy=%.3f",
		len(opinions), len(clusters), dist.Entropy)
	return result, nil
}

// RecordRound folds the round outcome into expert reliability: experts whose
// position matched the weighted majority gain, dissenters decay. Called by
// the session runner between rounds, never during Synthesize.
func (s *Synthesizer) RecordRound(opinions []expert.Opinion, majority string) {
	for _, op := range opinions {
		s.reliability.Observe(op.ExpertID, op.Position == majority)
	}
}

// convergent produces one reconciled answer. The highest-weight opinion of
// the majority cluster supplies the phrasing; conflicting claims from lower
// weight clusters are resolved in its favor, while every opinion's
// non-conflicting citations are merged. All experts back the single answer,
// so none is dropped.
func (s *Synthesizer) convergent(opinions []expert.Opinion, clusters []*cluster, dist aggregation.Distribution) expert.Result {
	primary := clusters[0]
	all := make([]expert.Opinion, 0, len(opinions))
	for _, c := range clusters {
		all = append(all, c.opinions...)
	}

	answer := expert.Answer{
		Position:          primary.position,
		Content:           reconcileContent(primary, clusters[1:]),
		WeightedSupport:   dist.Agreement,
		Confidence:        weightedMeanConfidence(all, primary.weights),
		SupportingExperts: expertsOf(all),
		Citations:         mergeCitations(all),
	}
	return expert.Convergent(answer)
}

// divergent keeps the best-supported position as the primary answer and
// preserves every other cluster as a tagged alternative.
func (s *Synthesizer) divergent(clusters []*cluster, dist aggregation.Distribution) expert.Result {
	primary := clusters[0]
	primaryShare := dist.Share(review.Position(primary.position))

	primaryAnswer := expert.Answer{
		Position:          primary.position,
		Content:           primary.lead().Content,
		WeightedSupport:   primaryShare,
		Confidence:        primary.weightedConfidence() * primaryShare,
		SupportingExperts: primary.experts(),
		Citations:         mergeCitations(primary.opinions),
	}

	alternatives := make([]expert.Alternative, 0, len(clusters)-1)
	for _, c := range clusters[1:] {
		share := dist.Share(review.Position(c.position))
		alternatives = append(alternatives, expert.Alternative{
			Answer: expert.Answer{
				Position:          c.position,
				Content:           c.lead().Content,
				WeightedSupport:   share,
				Confidence:        c.weightedConfidence() * share,
				SupportingExperts: c.experts(),
				Citations:         mergeCitations(c.opinions),
			},
			Support: supportLevel(share, primaryShare, c.novel()),
		})
	}

	return expert.Divergent(primaryAnswer, alternatives)
}

// supportLevel tags an alternative by its weighted backing. Novel positions
// under the emerging ceiling beat the other buckets; a balanced field where
// not even the primary clears ~55% is contested rather than minority.
func supportLevel(share, primaryShare float64, novel bool) expert.SupportLevel {
	if novel && share < emergingSupport {
		return expert.SupportEmerging
	}
	if primaryShare <= contestedCeiling {
		return expert.SupportContested
	}
	if share < minoritySupport {
		return expert.SupportMinority
	}
	return expert.SupportContested
}

// reconcileContent builds the convergent answer text: the majority lead's
// phrasing, followed by a short reconciliation note for each conflicting
// cluster whose claim was resolved away. Never a naive concatenation of all
// opinions.
func reconcileContent(primary *cluster, conflicting []*cluster) string {
	var b strings.Builder
	b.WriteString(primary.lead().Content)

	for _, c := range conflicting {
		// The dissenting phrasing loses to the higher-weight cluster,
		// but the disagreement itself is acknowledged in the answer.
		b.WriteString(fmt.Sprintf("\n\nNote: a lower-weight reading (%s) was reconciled in favor of the above.", c.position))
	}
	return b.String()
}

func weightedMeanConfidence(opinions []expert.Opinion, weights map[core.ExpertID]float64) float64 {
	sum, total := 0.0, 0.0
	for _, op := range opinions {
		w := weights[op.ExpertID]
		sum += w * op.Confidence
		total += w
	}
	if total <= 0 {
		return 0
	}
	return sum / total
}

func expertsOf(opinions []expert.Opinion) []core.ExpertID {
	ids := make([]core.ExpertID, len(opinions))
	for i, op := range opinions {
		ids[i] = op.ExpertID
	}
	return ids
}

// distribution summarizes the weighted position distribution of the round.
func distribution(clusters []*cluster) aggregation.Distribution {
	mass := make(map[review.Position]float64, len(clusters))
	for _, c := range clusters {
		mass[review.Position(c.position)] = c.mass
	}
	return aggregation.Summarize(mass)
}
