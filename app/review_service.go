package app

import (
	"context"

	"merlt/domain/bias"
	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/internal"
	"merlt/internal/aggregation"
	"merlt/internal/authority"
	biasengine "merlt/internal/bias"
	"merlt/ports"
)

// ReviewService is the upward-facing surface for evaluator feedback: vote
// submission, consensus lookup, and bias auditing.
type ReviewService struct {
	tracker       *authority.Tracker
	engine        *aggregation.Engine
	auditor       *biasengine.Auditor
	evaluatorRepo ports.EvaluatorRepository
	voteRepo      ports.VoteRepository
	consensusRepo ports.ConsensusRepository
	biasRepo      ports.BiasReportRepository
	logger        *internal.Logger
}

// NewReviewService wires the review surface.
func NewReviewService(
	tracker *authority.Tracker,
	engine *aggregation.Engine,
	auditor *biasengine.Auditor,
	evaluatorRepo ports.EvaluatorRepository,
	voteRepo ports.VoteRepository,
	consensusRepo ports.ConsensusRepository,
	biasRepo ports.BiasReportRepository,
) *ReviewService {
	return &ReviewService{
		tracker:       tracker,
		engine:        engine,
		auditor:       auditor,
		evaluatorRepo: evaluatorRepo,
		voteRepo:      voteRepo,
		consensusRepo: consensusRepo,
		biasRepo:      biasRepo,
		logger:        internal.DefaultLogger.Component("Review"),
	}
}

// RegisterEvaluator persists a new evaluator and loads it into the authority
// arena.
func (s *ReviewService) RegisterEvaluator(ctx context.Context, evaluator *review.Evaluator) error {
	if err := s.evaluatorRepo.Create(ctx, evaluator); err != nil {
		return err
	}
	s.tracker.Register(evaluator)
	s.logger.Info("registered evaluator %s (category=%s region=%s baseline=%.2f)",
		evaluator.ID, evaluator.Category, evaluator.Region, evaluator.BaselineCredential)
	return nil
}

// GetEvaluator returns an evaluator from the authority arena, falling back
// to the repository for evaluators registered before the current process.
func (s *ReviewService) GetEvaluator(ctx context.Context, id core.EvaluatorID) (*review.Evaluator, error) {
	if e := s.tracker.Get(id); e != nil {
		return e, nil
	}
	evaluator, err := s.evaluatorRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.tracker.Register(evaluator)
	return evaluator, nil
}

// SubmitOpinion validates and records one vote, then recomputes the target's
// consensus. Malformed votes are rejected here and never enter aggregation.
// Returns the fresh ConsensusResult on acceptance.
func (s *ReviewService) SubmitOpinion(ctx context.Context, vote review.Vote) (*review.ConsensusResult, error) {
	if err := s.validateVote(ctx, &vote); err != nil {
		return nil, err
	}

	if err := s.voteRepo.Create(ctx, &vote); err != nil {
		return nil, err
	}

	result, err := s.recomputeConsensus(ctx, vote.TargetID, vote.TargetType, vote.Domain)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateVote rejects malformed votes at the door.
func (s *ReviewService) validateVote(ctx context.Context, vote *review.Vote) error {
	if vote.TargetID == "" {
		return core.NewVoteValidationError("target_id", "missing")
	}
	if _, err := review.ParseTargetType(string(vote.TargetType)); err != nil {
		return err
	}
	switch vote.Position {
	case review.PositionApprove, review.PositionReject:
	default:
		return core.NewVoteValidationError("position", "must be approve or reject")
	}
	if !s.tracker.Known(vote.EvaluatorID) {
		return core.ErrEvaluatorNotFound
	}

	voted, err := s.voteRepo.HasVoted(ctx, vote.EvaluatorID, vote.TargetID)
	if err != nil {
		return err
	}
	if voted {
		return core.NewVoteValidationError("evaluator_id", "already voted on this target")
	}

	if vote.CastAt.IsZero() {
		vote.CastAt = core.Now()
	}
	return nil
}

// recomputeConsensus re-aggregates all votes on the target under a fresh
// authority snapshot and persists the result. When the decision resolves
// (APPROVE or REJECT with quorum), every contributing evaluator's track
// record is updated against the outcome.
func (s *ReviewService) recomputeConsensus(ctx context.Context, targetID core.TargetID, targetType review.TargetType, domain core.CompetenceDomain) (*review.ConsensusResult, error) {
	votes, err := s.voteRepo.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	ids := make([]core.EvaluatorID, len(votes))
	for i, v := range votes {
		ids[i] = v.EvaluatorID
	}
	weights := s.tracker.SnapshotWeights(ids, domain)

	result, err := s.engine.Aggregate(targetID, targetType, votes, weights)
	if err != nil {
		return nil, err
	}

	if err := s.consensusRepo.Upsert(ctx, &result); err != nil {
		return nil, err
	}

	if result.QuorumMet && (result.Decision == review.DecisionApprove || result.Decision == review.DecisionReject) {
		s.resolveTrackRecords(ctx, votes, result.MajorityPosition, domain)
	}

	s.logger.Debug("consensus for %s: %s (quorum=%t, %d votes)",
		targetID, result.Decision, result.QuorumMet, len(votes))
	return &result, nil
}

// resolveTrackRecords updates each contributing evaluator's trust against
// the resolved outcome. Failures here are logged, never surfaced: authority
// maintenance must not block a consensus response.
func (s *ReviewService) resolveTrackRecords(ctx context.Context, votes []review.Vote, outcome review.Position, domain core.CompetenceDomain) {
	for _, v := range votes {
		wasCorrect := v.Position == outcome
		if err := s.tracker.UpdateTrackRecord(v.EvaluatorID, wasCorrect, domain); err != nil {
			s.logger.Error("track record update failed for %s: %v", v.EvaluatorID, err)
			continue
		}
		evaluator := s.tracker.Get(v.EvaluatorID)
		if evaluator == nil {
			continue
		}
		d := domain
		if d == "" {
			d = core.DomainGeneral
		}
		if err := s.evaluatorRepo.UpdateTrust(ctx, v.EvaluatorID, d, evaluator.TrustIn(d)); err != nil {
			s.logger.Error("trust persistence failed for %s: %v", v.EvaluatorID, err)
		}
	}
}

// GetConsensus returns the latest consensus for a target.
func (s *ReviewService) GetConsensus(ctx context.Context, targetID core.TargetID) (*review.ConsensusResult, error) {
	result, err := s.consensusRepo.GetByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, core.ErrTargetNotFound
	}
	return result, nil
}

// RunBiasAudit runs the bias detectors over a target's voters, persists any
// findings, and returns them. Sparse data yields an empty list, not an
// error.
func (s *ReviewService) RunBiasAudit(ctx context.Context, targetID core.TargetID) ([]bias.Report, error) {
	votes, err := s.voteRepo.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	samples := biasengine.BuildSamples(votes, s.tracker.Get)
	reports := s.auditor.Detect(ctx, targetID, samples)

	for i := range reports {
		if err := s.biasRepo.Create(ctx, &reports[i]); err != nil {
			s.logger.Error("bias report persistence failed for %s: %v", targetID, err)
		}
	}
	return reports, nil
}

// ListBiasReports returns persisted reports for a target.
func (s *ReviewService) ListBiasReports(ctx context.Context, targetID core.TargetID) ([]bias.Report, error) {
	return s.biasRepo.ListByTarget(ctx, targetID)
}

// ListBiasReportsByTime returns persisted reports within a time range.
func (s *ReviewService) ListBiasReportsByTime(ctx context.Context, rng core.TimeRange) ([]bias.Report, error) {
	return s.biasRepo.ListByTimeRange(ctx, rng)
}
