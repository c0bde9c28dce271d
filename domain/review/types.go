package review

import (
	"fmt"

	"merlt/domain/core"
)

// TargetType classifies the kind of knowledge item under review. Quorum and
// decision thresholds vary per type and are looked up in a RuleSet.
type TargetType string

const (
	TargetOfficialNorm TargetType = "official_norm"
	TargetCaseLaw      TargetType = "case_law"
	TargetCommentary   TargetType = "commentary"
	TargetCommunity    TargetType = "community"
)

// ParseTargetType validates a string target type
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetOfficialNorm, TargetCaseLaw, TargetCommentary, TargetCommunity:
		return TargetType(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownTargetType, s)
}

// Position is the stance a vote takes on a target. Categorical votes use the
// predefined positions below; free-form positions (expert synthesis clusters)
// use arbitrary labels.
type Position string

const (
	PositionApprove Position = "approve"
	PositionReject  Position = "reject"
)

// Vote is a single evaluator opinion on one target. Votes are immutable once
// recorded.
type Vote struct {
	EvaluatorID core.EvaluatorID      `json:"evaluator_id" db:"evaluator_id"`
	TargetID    core.TargetID         `json:"target_id" db:"target_id"`
	TargetType  TargetType            `json:"target_type" db:"target_type"`
	Position    Position              `json:"position" db:"position"`
	Correction  string                `json:"correction,omitempty" db:"correction"`
	Domain      core.CompetenceDomain `json:"domain,omitempty" db:"domain"`
	CastAt      core.Timestamp        `json:"cast_at" db:"cast_at"`
}

// Decision is the outcome of weighted aggregation over one target.
type Decision string

const (
	DecisionApprove         Decision = "APPROVE"
	DecisionReject          Decision = "REJECT"
	DecisionFlagControversy Decision = "FLAG_CONTROVERSY"
	DecisionRequestRevision Decision = "REQUEST_REVISION"
)

// WeightedVote pairs a vote with the authority snapshot it was aggregated
// under. Aggregation never re-reads authority mid-computation, so a
// ConsensusResult is reproducible from its contributing weighted votes.
type WeightedVote struct {
	Vote   Vote    `json:"vote"`
	Weight float64 `json:"weight"`
}

// ConsensusResult is the quorum-checked outcome of aggregating all votes on
// one target. AgreementScore and DisagreementEntropy are nil when no votes
// contributed: "no data" is distinct from "zero entropy".
type ConsensusResult struct {
	TargetID            core.TargetID  `json:"target_id"`
	TargetType          TargetType     `json:"target_type"`
	Decision            Decision       `json:"decision"`
	AgreementScore      *float64       `json:"agreement_score"`
	MajorityPosition    Position       `json:"majority_position,omitempty"`
	DisagreementEntropy *float64       `json:"disagreement_entropy"`
	QuorumMet           bool           `json:"quorum_met"`
	Contributing        []WeightedVote `json:"contributing_opinions"`
	ComputedAt          core.Timestamp `json:"computed_at"`
}

// HasMetrics reports whether the result carries agreement metrics (i.e. at
// least one vote contributed).
func (r ConsensusResult) HasMetrics() bool {
	return r.AgreementScore != nil && r.DisagreementEntropy != nil
}

// QuorumRule is the evidence floor for one target type: a minimum number of
// contributing evaluators plus a minimum aggregate authority mass. Community
// targets without a formal evaluator pool use NetVotes instead.
type QuorumRule struct {
	MinEvaluators    int     `json:"min_evaluators"`
	MinAuthorityMass float64 `json:"min_authority_mass"`
	// NetVotes, when > 0, replaces the evaluator/mass check with a net
	// upvote threshold (community-sourced targets).
	NetVotes int `json:"net_votes,omitempty"`
}

// ThresholdRule holds the per-target-type decision cut points.
type ThresholdRule struct {
	Approve     float64 `json:"approve_threshold"`
	Controversy float64 `json:"controversy_threshold"`
}

// Rules bundles quorum and thresholds for one target type.
type Rules struct {
	Quorum     QuorumRule    `json:"quorum"`
	Thresholds ThresholdRule `json:"thresholds"`
}

// RuleSet maps each target type to its rules. New target types extend the
// map, not the code.
type RuleSet map[TargetType]Rules

// For returns the rules for a target type
func (rs RuleSet) For(tt TargetType) (Rules, error) {
	rules, ok := rs[tt]
	if !ok {
		return Rules{}, fmt.Errorf("%w: no rules for %q", core.ErrUnknownTargetType, tt)
	}
	return rules, nil
}

// DefaultRuleSet returns the stock per-type rules: official norms demand the
// highest authority mass, scholarly commentary tolerates a broader pool.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		TargetOfficialNorm: {
			Quorum:     QuorumRule{MinEvaluators: 3, MinAuthorityMass: 0.80},
			Thresholds: ThresholdRule{Approve: 0.80, Controversy: 0.35},
		},
		TargetCaseLaw: {
			Quorum:     QuorumRule{MinEvaluators: 4, MinAuthorityMass: 0.85},
			Thresholds: ThresholdRule{Approve: 0.80, Controversy: 0.35},
		},
		TargetCommentary: {
			Quorum:     QuorumRule{MinEvaluators: 5, MinAuthorityMass: 0.75},
			Thresholds: ThresholdRule{Approve: 0.75, Controversy: 0.35},
		},
		TargetCommunity: {
			Quorum:     QuorumRule{NetVotes: 5},
			Thresholds: ThresholdRule{Approve: 0.70, Controversy: 0.30},
		},
	}
}
