package aggregation

import (
	"errors"
	"math"
	"testing"

	"merlt/domain/core"
	"merlt/domain/review"
)

func vote(evaluator string, position review.Position) review.Vote {
	return review.Vote{
		EvaluatorID: core.EvaluatorID(evaluator),
		TargetID:    core.TargetID("target-1"),
		TargetType:  review.TargetOfficialNorm,
		Position:    position,
		CastAt:      core.Now(),
	}
}

func TestAggregate_EmptyVotesRequestsRevision(t *testing.T) {
	engine := NewEngine(review.DefaultRuleSet())

	result, err := engine.Aggregate("target-1", review.TargetOfficialNorm, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != review.DecisionRequestRevision {
		t.Errorf("expected REQUEST_REVISION for empty votes, got %s", result.Decision)
	}
	if result.AgreementScore != nil || result.DisagreementEntropy != nil {
		t.Errorf("empty vote set must leave metrics nil, got score=%v entropy=%v",
			result.AgreementScore, result.DisagreementEntropy)
	}
	if result.QuorumMet {
		t.Error("quorum cannot be met with zero votes")
	}
}

func TestAggregate_UnknownTargetType(t *testing.T) {
	engine := NewEngine(review.DefaultRuleSet())

	_, err := engine.Aggregate("target-1", review.TargetType("statute_draft"), nil, nil)
	if !errors.Is(err, core.ErrUnknownTargetType) {
		t.Fatalf("expected unknown target type error, got %v", err)
	}
}

func TestAggregate_UnanimousApproval(t *testing.T) {
	engine := NewEngine(review.DefaultRuleSet())
	votes := []review.Vote{
		vote("a", review.PositionApprove),
		vote("b", review.PositionApprove),
		vote("c", review.PositionApprove),
	}
	weights := map[core.EvaluatorID]float64{"a": 0.9, "b": 0.8, "c": 0.7}

	result, err := engine.Aggregate("target-1", review.TargetOfficialNorm, votes, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != review.DecisionApprove {
		t.Errorf("expected APPROVE, got %s", result.Decision)
	}
	if !result.QuorumMet {
		t.Error("3 evaluators with total mass 2.4 should meet the official_norm quorum")
	}
	if *result.AgreementScore != 1.0 {
		t.Errorf("unanimous agreement score should be 1.0, got %f", *result.AgreementScore)
	}
	if *result.DisagreementEntropy != 0.0 {
		t.Errorf("unanimous entropy should be exactly 0, got %f", *result.DisagreementEntropy)
	}
}

func TestAggregate_AmbiguousMiddleRequestsRevision(t *testing.T) {
	// Score 0.69 sits between the controversy threshold (0.35) and the
	// approve threshold (0.80): the ambiguous middle asks for revision.
	engine := NewEngine(review.DefaultRuleSet())
	votes := []review.Vote{
		vote("a", review.PositionApprove),
		vote("b", review.PositionApprove),
		vote("c", review.PositionReject),
	}
	weights := map[core.EvaluatorID]float64{"a": 0.4, "b": 0.29, "c": 0.31}

	result, err := engine.Aggregate("target-1", review.TargetOfficialNorm, votes, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.QuorumMet {
		t.Fatal("quorum should be met (3 evaluators, mass 1.0 >= 0.80)")
	}
	if score := *result.AgreementScore; math.Abs(score-0.69) > 1e-9 {
		t.Fatalf("expected agreement score 0.69, got %f", score)
	}
	if result.Decision != review.DecisionRequestRevision {
		t.Errorf("expected REQUEST_REVISION for score 0.69, got %s", result.Decision)
	}
}

func TestAggregate_NearSplitFlagsControversy(t *testing.T) {
	// Community thresholds put controversy at 0.30; a community target
	// never reaches that low with two positions, so use a three-way split
	// on commentary (controversy 0.35).
	engine := NewEngine(review.DefaultRuleSet())
	votes := []review.Vote{
		vote("a", review.PositionApprove),
		vote("b", review.PositionReject),
		vote("c", review.Position("amend")),
		vote("d", review.PositionApprove),
		vote("e", review.PositionReject),
	}
	weights := map[core.EvaluatorID]float64{"a": 0.17, "b": 0.17, "c": 0.33, "d": 0.17, "e": 0.17}

	result, err := engine.Aggregate("target-1", review.TargetCommentary, votes, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.QuorumMet {
		t.Fatal("quorum should be met (5 evaluators, mass 1.01 >= 0.75)")
	}
	if result.Decision != review.DecisionFlagControversy {
		t.Errorf("expected FLAG_CONTROVERSY for a three-way split, got %s", result.Decision)
	}
	if *result.DisagreementEntropy <= 0.9 {
		t.Errorf("near-even three-way split should have entropy near 1, got %f", *result.DisagreementEntropy)
	}
}

func TestAggregate_QuorumFailureOverridesScore(t *testing.T) {
	// Unanimous approval, but only two evaluators: quorum failure wins.
	engine := NewEngine(review.DefaultRuleSet())
	votes := []review.Vote{
		vote("a", review.PositionApprove),
		vote("b", review.PositionApprove),
	}
	weights := map[core.EvaluatorID]float64{"a": 0.9, "b": 0.9}

	result, err := engine.Aggregate("target-1", review.TargetOfficialNorm, votes, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.QuorumMet {
		t.Error("2 evaluators must not meet the official_norm quorum of 3")
	}
	if result.Decision != review.DecisionRequestRevision {
		t.Errorf("quorum failure must yield REQUEST_REVISION, got %s", result.Decision)
	}
	if *result.AgreementScore != 1.0 {
		t.Errorf("metrics are still computed under quorum failure, got score %f", *result.AgreementScore)
	}
}

func TestAggregate_HighAgreementRejection(t *testing.T) {
	engine := NewEngine(review.DefaultRuleSet())
	votes := []review.Vote{
		vote("a", review.PositionReject),
		vote("b", review.PositionReject),
		vote("c", review.PositionReject),
	}
	weights := map[core.EvaluatorID]float64{"a": 0.5, "b": 0.4, "c": 0.3}

	result, err := engine.Aggregate("target-1", review.TargetOfficialNorm, votes, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Decision != review.DecisionReject {
		t.Errorf("high agreement on reject should yield REJECT, got %s", result.Decision)
	}
}

func TestAggregate_ZeroAuthorityMass(t *testing.T) {
	engine := NewEngine(review.DefaultRuleSet())
	votes := []review.Vote{
		vote("a", review.PositionApprove),
		vote("b", review.PositionApprove),
		vote("c", review.PositionApprove),
	}
	// No evaluator in the snapshot: every vote carries zero weight.
	result, err := engine.Aggregate("target-1", review.TargetOfficialNorm, votes, map[core.EvaluatorID]float64{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.AgreementScore != nil {
		t.Errorf("zero total mass must leave metrics nil, got %f", *result.AgreementScore)
	}
	if result.QuorumMet {
		t.Error("zero authority mass cannot meet the mass quorum")
	}
	if result.Decision != review.DecisionRequestRevision {
		t.Errorf("expected REQUEST_REVISION, got %s", result.Decision)
	}
}

func TestAggregate_SupportingVoteNeverLowersAgreement(t *testing.T) {
	engine := NewEngine(review.DefaultRuleSet())
	votes := []review.Vote{
		vote("a", review.PositionApprove),
		vote("b", review.PositionApprove),
		vote("c", review.PositionReject),
	}
	weights := map[core.EvaluatorID]float64{"a": 0.6, "b": 0.5, "c": 0.7}

	before, err := engine.Aggregate("target-1", review.TargetOfficialNorm, votes, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.AgreementScore == nil {
		t.Fatal("mixed votes with positive mass must produce a score")
	}

	// One more vote behind the majority position, at several weights.
	for _, w := range []float64{0.05, 0.4, 1.0} {
		grown := append(append([]review.Vote{}, votes...), vote("d", review.PositionApprove))
		weights["d"] = w

		after, err := engine.Aggregate("target-1", review.TargetOfficialNorm, grown, weights)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if after.AgreementScore == nil {
			t.Fatal("score must stay present after adding a vote")
		}
		if *after.AgreementScore < *before.AgreementScore {
			t.Errorf("supporting vote at weight %.2f lowered agreement: %f -> %f",
				w, *before.AgreementScore, *after.AgreementScore)
		}
	}
}

func TestAggregate_CommunityNetVotes(t *testing.T) {
	community := func(evaluator string, position review.Position) review.Vote {
		v := vote(evaluator, position)
		v.TargetType = review.TargetCommunity
		return v
	}

	tests := []struct {
		name       string
		approves   int
		rejects    int
		wantQuorum bool
	}{
		{"net below threshold", 6, 2, false},
		{"net at threshold", 7, 2, true},
		{"all rejects", 0, 5, false},
	}

	engine := NewEngine(review.DefaultRuleSet())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var votes []review.Vote
			weights := map[core.EvaluatorID]float64{}
			for i := 0; i < tt.approves; i++ {
				id := "up-" + string(rune('a'+i))
				votes = append(votes, community(id, review.PositionApprove))
				weights[core.EvaluatorID(id)] = 0.5
			}
			for i := 0; i < tt.rejects; i++ {
				id := "down-" + string(rune('a'+i))
				votes = append(votes, community(id, review.PositionReject))
				weights[core.EvaluatorID(id)] = 0.5
			}

			result, err := engine.Aggregate("target-1", review.TargetCommunity, votes, weights)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.QuorumMet != tt.wantQuorum {
				t.Errorf("net-vote quorum = %v, want %v", result.QuorumMet, tt.wantQuorum)
			}
		})
	}
}

func TestSummarize_DeterministicTieBreak(t *testing.T) {
	mass := map[review.Position]float64{
		"zeta":  0.5,
		"alpha": 0.5,
	}

	for i := 0; i < 20; i++ {
		dist := Summarize(mass)
		if dist.Majority != "alpha" {
			t.Fatalf("tie must break lexicographically to alpha, got %s", dist.Majority)
		}
	}
}

func TestNormalizedEntropy_Range(t *testing.T) {
	tests := []struct {
		name string
		mass map[review.Position]float64
		want func(h float64) bool
	}{
		{
			name: "single position is zero",
			mass: map[review.Position]float64{"a": 1.0},
			want: func(h float64) bool { return h == 0 },
		},
		{
			name: "even two-way split is one",
			mass: map[review.Position]float64{"a": 0.5, "b": 0.5},
			want: func(h float64) bool { return math.Abs(h-1.0) < 1e-9 },
		},
		{
			name: "even four-way split is one",
			mass: map[review.Position]float64{"a": 1, "b": 1, "c": 1, "d": 1},
			want: func(h float64) bool { return math.Abs(h-1.0) < 1e-9 },
		},
		{
			name: "skewed split is strictly inside (0,1)",
			mass: map[review.Position]float64{"a": 0.9, "b": 0.1},
			want: func(h float64) bool { return h > 0 && h < 1 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := Summarize(tt.mass)
			if !tt.want(dist.Entropy) {
				t.Errorf("entropy %f out of expected range", dist.Entropy)
			}
		})
	}
}
