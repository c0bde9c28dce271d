package iteration

import (
	"merlt/domain/session"
	"merlt/internal/config"
)

// RoundContext is everything a stopping criterion may inspect: the session
// state with the just-appended round and the round's consensus metrics
// (computed by the aggregation engine over the round's expert opinions).
type RoundContext struct {
	State      *session.IterationState
	Round      int
	Confidence float64
	Agreement  float64
	Entropy    float64
	HasMetrics bool
}

// Criterion is one independently testable stopping predicate. Criteria are
// evaluated in a fixed priority order; the first match wins.
type Criterion struct {
	Name     string
	Evaluate func(ctx RoundContext) (session.StopReason, bool)
}

// buildCriteria returns the stopping criteria in priority order. Hard
// resource limits come first, quality-based stops after: a session that just
// hit its round cap reports MAX_ROUNDS_REACHED even if the same round also
// reached stable consensus.
func buildCriteria(cfg config.SessionConfig) []Criterion {
	return []Criterion{
		{
			Name: "round_cap",
			Evaluate: func(ctx RoundContext) (session.StopReason, bool) {
				if ctx.Round >= ctx.State.MaxRounds {
					return session.StopMaxRoundsReached, true
				}
				return "", false
			},
		},
		{
			Name: "time_budget",
			Evaluate: func(ctx RoundContext) (session.StopReason, bool) {
				if ctx.State.Budget > 0 && ctx.State.Elapsed() >= ctx.State.Budget {
					return session.StopTimeout, true
				}
				return "", false
			},
		},
		{
			Name: "confidence_floor",
			Evaluate: func(ctx RoundContext) (session.StopReason, bool) {
				// A hopeless query is declared best-effort instead of
				// looping until the round cap.
				if ctx.Round >= cfg.MinRoundsForFloor && ctx.Confidence < cfg.ConfidenceFloor {
					return session.StopLowConfidenceFloor, true
				}
				return "", false
			},
		},
		{
			Name: "stable_consensus",
			Evaluate: func(ctx RoundContext) (session.StopReason, bool) {
				if !ctx.HasMetrics {
					return "", false
				}
				if ctx.Agreement >= cfg.HighConsensus && ctx.Entropy < cfg.StabilityEntropy {
					return session.StopStableConsensus, true
				}
				return "", false
			},
		},
		{
			Name: "marginal_gain",
			Evaluate: func(ctx RoundContext) (session.StopReason, bool) {
				prev, last, ok := ctx.State.LastTwoDeltas()
				if !ok {
					return "", false
				}
				if prev < cfg.ConvergenceEpsilon && last < cfg.ConvergenceEpsilon {
					return session.StopConverged, true
				}
				return "", false
			},
		},
	}
}
