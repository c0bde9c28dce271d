package iteration

import (
	"merlt/domain/core"
	"merlt/domain/expert"
	"merlt/domain/review"
	"merlt/domain/session"
	"merlt/internal"
	"merlt/internal/aggregation"
	"merlt/internal/config"
)

// Controller decides, after each refinement round, whether another round is
// warranted. One controller serves one session; only the session's
// orchestrating goroutine calls Decide.
type Controller struct {
	cfg      config.SessionConfig
	criteria []Criterion
	logger   *internal.Logger
}

// NewController creates a controller for one session.
func NewController(cfg config.SessionConfig) *Controller {
	return &Controller{
		cfg:      cfg,
		criteria: buildCriteria(cfg),
		logger:   internal.DefaultLogger.Component("Iteration"),
	}
}

// RoundInput is one completed round handed to Decide: the synthesized result
// plus the raw opinions and the reliability weights they were merged under.
type RoundInput struct {
	Round     int
	Opinions  []expert.Opinion
	Weights   map[core.ExpertID]float64
	Synthesis expert.Result
	Degraded  bool
}

// Decide appends the round to the session history and evaluates the stopping
// criteria in priority order. It returns the state's new phase and the stop
// reason, nil while the session should run another round.
//
// Decide is idempotent once terminal: calling it on a stopped session
// returns the unchanged terminal state without reprocessing the input.
func (c *Controller) Decide(state *session.IterationState, input RoundInput) (session.Phase, *session.StopReason) {
	if state.Terminal() {
		snap := state.Snapshot()
		return snap.Phase, snap.StopReason
	}

	dist := opinionDistribution(input.Opinions, input.Weights)
	confidence := input.Synthesis.Primary.Confidence

	state.AppendRound(session.RoundSummary{
		Round:          input.Round,
		Confidence:     confidence,
		AgreementScore: dist.Agreement,
		Entropy:        dist.Entropy,
		Degraded:       input.Degraded,
		OpinionCount:   len(input.Opinions),
		Synthesis:      input.Synthesis,
		CompletedAt:    core.Now(),
	})

	ctx := RoundContext{
		State:      state,
		Round:      input.Round,
		Confidence: confidence,
		Agreement:  dist.Agreement,
		Entropy:    dist.Entropy,
		HasMetrics: len(input.Opinions) > 0 && dist.TotalMass > 0,
	}

	for _, criterion := range c.criteria {
		if reason, stop := criterion.Evaluate(ctx); stop {
			state.MarkTerminal(reason)
			c.logger.Info("session %s stopped after round %d: %s (criterion %s)",
				state.SessionID, input.Round, reason, criterion.Name)
			snap := state.Snapshot()
			return snap.Phase, snap.StopReason
		}
	}

	c.logger.Debug("session %s continuing after round %d (confidence=%.3f agreement=%.3f entropy=%.3f)",
		state.SessionID, input.Round, confidence, dist.Agreement, dist.Entropy)
	return session.PhaseActive, nil
}

// opinionDistribution reuses the aggregation engine's weighting logic over
// the round's expert opinions, weighted by expert reliability rather than
// evaluator authority.
func opinionDistribution(opinions []expert.Opinion, weights map[core.ExpertID]float64) aggregation.Distribution {
	mass := make(map[review.Position]float64)
	for _, op := range opinions {
		mass[review.Position(op.Position)] += weights[op.ExpertID]
	}
	return aggregation.Summarize(mass)
}
