package aggregation

import (
	"math"
	"sort"

	"merlt/domain/core"
	"merlt/domain/review"
)

// Engine combines weighted votes on one target into a quorum-checked
// consensus decision. It is pure and stateless: identical votes plus an
// identical authority snapshot always yield the identical result, and it
// never mutates evaluator state.
type Engine struct {
	rules review.RuleSet
}

// NewEngine creates an aggregation engine bound to a rule set.
func NewEngine(rules review.RuleSet) *Engine {
	return &Engine{rules: rules}
}

// Aggregate runs the weighted consensus algorithm for one target. weights is
// the authority snapshot taken before the call; votes from evaluators absent
// from the snapshot carry zero weight.
func (e *Engine) Aggregate(targetID core.TargetID, targetType review.TargetType, votes []review.Vote, weights map[core.EvaluatorID]float64) (review.ConsensusResult, error) {
	rules, err := e.rules.For(targetType)
	if err != nil {
		return review.ConsensusResult{}, err
	}

	result := review.ConsensusResult{
		TargetID:   targetID,
		TargetType: targetType,
		ComputedAt: core.Now(),
	}

	// "No data" is distinct from "zero entropy": an empty vote set leaves
	// the metrics nil and asks for more evidence.
	if len(votes) == 0 {
		result.Decision = review.DecisionRequestRevision
		return result, nil
	}

	weighted := make([]review.WeightedVote, len(votes))
	mass := make(map[review.Position]float64)
	totalMass := 0.0
	for i, vote := range votes {
		w := weights[vote.EvaluatorID]
		weighted[i] = review.WeightedVote{Vote: vote, Weight: w}
		mass[vote.Position] += w
		totalMass += w
	}
	result.Contributing = weighted

	// A pool with zero aggregate authority cannot carry a decision; the
	// quorum mass check below fails and the metrics stay nil.
	if totalMass > 0 {
		dist := Summarize(mass)
		result.MajorityPosition = dist.Majority
		score := dist.Agreement
		entropy := dist.Entropy
		result.AgreementScore = &score
		result.DisagreementEntropy = &entropy
	}

	result.QuorumMet = quorumMet(rules.Quorum, votes, totalMass)
	result.Decision = decide(rules.Thresholds, result)
	return result, nil
}

// Distribution summarizes a weighted position distribution: the majority
// position, its weighted share, and the normalized disagreement entropy.
// The synthesizer and the iteration controller reuse this over expert
// opinions with reliability weights in place of evaluator authority.
type Distribution struct {
	Majority  review.Position
	Agreement float64
	Entropy   float64
	TotalMass float64
	Mass      map[review.Position]float64
}

// Summarize computes the weighted majority share and normalized Shannon
// entropy for a position mass map. Ties break lexicographically so the
// result stays deterministic. TotalMass must be positive for a meaningful
// summary; a zero-mass map yields a zero Distribution.
func Summarize(mass map[review.Position]float64) Distribution {
	dist := Distribution{Mass: mass}
	for _, m := range mass {
		dist.TotalMass += m
	}
	if dist.TotalMass <= 0 {
		return dist
	}

	positions := make([]review.Position, 0, len(mass))
	for p := range mass {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	bestMass := -1.0
	for _, p := range positions {
		if mass[p] > bestMass {
			dist.Majority = p
			bestMass = mass[p]
		}
	}
	dist.Agreement = bestMass / dist.TotalMass
	dist.Entropy = normalizedEntropy(mass, dist.TotalMass)
	return dist
}

// Share returns a position's weighted share of the distribution.
func (d Distribution) Share(p review.Position) float64 {
	if d.TotalMass <= 0 {
		return 0
	}
	return d.Mass[p] / d.TotalMass
}

// normalizedEntropy computes Shannon entropy over the weighted position
// distribution, normalized by log(k) for k distinct positions and clamped to
// [0,1]. Unanimity yields exactly 0.
func normalizedEntropy(mass map[review.Position]float64, totalMass float64) float64 {
	if len(mass) < 2 {
		return 0
	}

	h := 0.0
	for _, m := range mass {
		if m <= 0 {
			continue
		}
		p := m / totalMass
		h -= p * math.Log(p)
	}

	normalized := h / math.Log(float64(len(mass)))
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}

// quorumMet checks the evidence floor. Community targets use a net-vote
// threshold over raw counts; formal pools need both a head count and an
// aggregate authority mass.
func quorumMet(rule review.QuorumRule, votes []review.Vote, totalMass float64) bool {
	if rule.NetVotes > 0 {
		net := 0
		for _, v := range votes {
			switch v.Position {
			case review.PositionApprove:
				net++
			case review.PositionReject:
				net--
			}
		}
		return net >= rule.NetVotes
	}
	return len(votes) >= rule.MinEvaluators && totalMass >= rule.MinAuthorityMass
}

// decide applies the decision policy in its fixed order. Quorum failure
// always wins: insufficient evidence asks for revision regardless of score.
// A score at or above the approve threshold adopts the majority position;
// a score under the controversy threshold flags genuine disagreement rather
// than averaging it away; the ambiguous middle asks for revision.
func decide(thresholds review.ThresholdRule, result review.ConsensusResult) review.Decision {
	if !result.QuorumMet || result.AgreementScore == nil {
		return review.DecisionRequestRevision
	}

	score := *result.AgreementScore
	switch {
	case score >= thresholds.Approve:
		if result.MajorityPosition == review.PositionReject {
			return review.DecisionReject
		}
		return review.DecisionApprove
	case score < thresholds.Controversy:
		return review.DecisionFlagControversy
	default:
		return review.DecisionRequestRevision
	}
}
