package synthesis

import (
	"sync"

	"merlt/domain/core"
)

// neutralReliability is the starting weight for a perspective with no
// observed rounds.
const neutralReliability = 0.5

// ReliabilityTracker maintains a per-expert reliability score in [0,1],
// updated from round-over-round agreement with the weighted majority. It
// mirrors the evaluator authority mechanics on a smaller scale: exponential
// decay toward each observed outcome, clamped rather than renormalized.
type ReliabilityTracker struct {
	mu     sync.RWMutex
	scores map[core.ExpertID]float64
	decay  float64
}

// NewReliabilityTracker creates a tracker with the given decay factor.
func NewReliabilityTracker(decay float64) *ReliabilityTracker {
	return &ReliabilityTracker{
		scores: make(map[core.ExpertID]float64),
		decay:  decay,
	}
}

// Score returns an expert's current reliability, neutral when unobserved.
func (t *ReliabilityTracker) Score(id core.ExpertID) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.scores[id]; ok {
		return s
	}
	return neutralReliability
}

// Observe folds one round outcome into an expert's reliability.
func (t *ReliabilityTracker) Observe(id core.ExpertID, agreedWithMajority bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.scores[id]
	if !ok {
		current = neutralReliability
	}
	outcome := 0.0
	if agreedWithMajority {
		outcome = 1.0
	}
	next := t.decay*current + (1-t.decay)*outcome
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}
	t.scores[id] = next
}

// Weights returns normalized reliability weights for a set of experts. The
// weights sum to 1; an all-zero set falls back to equal weights so a round
// can always be synthesized.
func (t *ReliabilityTracker) Weights(ids []core.ExpertID) map[core.ExpertID]float64 {
	weights := make(map[core.ExpertID]float64, len(ids))
	total := 0.0
	for _, id := range ids {
		w := t.Score(id)
		weights[id] = w
		total += w
	}

	if total <= 0 {
		for _, id := range ids {
			weights[id] = 1.0 / float64(len(ids))
		}
		return weights
	}
	for id, w := range weights {
		weights[id] = w / total
	}
	return weights
}
