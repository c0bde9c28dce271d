package session

import (
	"sync"
	"time"

	"merlt/domain/core"
	"merlt/domain/expert"
)

// Phase is the lifecycle state of a refinement session.
type Phase string

const (
	PhaseActive Phase = "active"
	// Terminal phases; a session enters exactly one of them, once.
	PhaseConverged          Phase = "converged"
	PhaseMaxRoundsReached   Phase = "max_rounds_reached"
	PhaseTimeout            Phase = "timeout"
	PhaseLowConfidenceFloor Phase = "low_confidence_floor"
	PhaseStableConsensus    Phase = "stable_consensus"
)

// StopReason is set exactly when the session becomes terminal.
type StopReason string

const (
	StopConverged          StopReason = "CONVERGED"
	StopMaxRoundsReached   StopReason = "MAX_ROUNDS_REACHED"
	StopTimeout            StopReason = "TIMEOUT"
	StopLowConfidenceFloor StopReason = "LOW_CONFIDENCE_FLOOR"
	StopStableConsensus    StopReason = "STABLE_CONSENSUS"
)

// phaseFor maps a stop reason to its terminal phase.
func phaseFor(reason StopReason) Phase {
	switch reason {
	case StopConverged:
		return PhaseConverged
	case StopMaxRoundsReached:
		return PhaseMaxRoundsReached
	case StopTimeout:
		return PhaseTimeout
	case StopLowConfidenceFloor:
		return PhaseLowConfidenceFloor
	case StopStableConsensus:
		return PhaseStableConsensus
	}
	return PhaseActive
}

// RoundSummary records one completed refinement round.
type RoundSummary struct {
	Round            int            `json:"round"`
	Confidence       float64        `json:"confidence"`
	AgreementScore   float64        `json:"agreement_score"`
	Entropy          float64        `json:"entropy"`
	ImprovementDelta float64        `json:"improvement_delta"`
	Degraded         bool           `json:"degraded,omitempty"`
	OpinionCount     int            `json:"opinion_count"`
	Synthesis        expert.Result  `json:"synthesis"`
	CompletedAt      core.Timestamp `json:"completed_at"`
}

// IterationState tracks a refinement session across rounds. It is created at
// session start, mutated once per round by the owning controller, and becomes
// terminal exactly once. BestEffort carries the best synthesis so far, so a
// timed-out session still returns a usable answer.
type IterationState struct {
	SessionID   core.SessionID  `json:"session_id"`
	Query       string          `json:"query"`
	Phase       Phase           `json:"phase"`
	Round       int             `json:"round_number"`
	History     []RoundSummary  `json:"history"`
	StopReason  *StopReason     `json:"stop_reason"`
	MaxRounds   int             `json:"max_rounds"`
	StartedAt   core.Timestamp  `json:"started_at"`
	Budget      time.Duration   `json:"elapsed_budget"`
	BestEffort  *expert.Result  `json:"best_effort,omitempty"`
	CompletedAt *core.Timestamp `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// New creates an active session state.
func New(id core.SessionID, query string, maxRounds int, budget time.Duration) *IterationState {
	return &IterationState{
		SessionID: id,
		Query:     query,
		Phase:     PhaseActive,
		Round:     0,
		History:   make([]RoundSummary, 0, maxRounds),
		MaxRounds: maxRounds,
		StartedAt: core.Now(),
		Budget:    budget,
	}
}

// Terminal reports whether the session has stopped.
func (s *IterationState) Terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.StopReason != nil
}

// AppendRound records a completed round and tracks the best synthesis by
// primary confidence. Returns the improvement delta vs the previous round.
func (s *IterationState) AppendRound(summary RoundSummary) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.History) > 0 {
		summary.ImprovementDelta = summary.Confidence - s.History[len(s.History)-1].Confidence
	}
	s.Round = summary.Round
	s.History = append(s.History, summary)

	if s.BestEffort == nil || summary.Confidence >= s.bestConfidenceLocked() {
		result := summary.Synthesis
		s.BestEffort = &result
	}
	return summary.ImprovementDelta
}

func (s *IterationState) bestConfidenceLocked() float64 {
	best := 0.0
	for _, r := range s.History[:len(s.History)-1] {
		if r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}

// MarkTerminal transitions to a terminal phase. Once terminal the state never
// changes again; a second call is a no-op returning false.
func (s *IterationState) MarkTerminal(reason StopReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StopReason != nil {
		return false
	}
	r := reason
	s.StopReason = &r
	s.Phase = phaseFor(reason)
	now := core.Now()
	s.CompletedAt = &now
	return true
}

// LastTwoDeltas returns the improvement deltas of the two most recent rounds,
// in order. ok is false before round 2.
func (s *IterationState) LastTwoDeltas() (prev, last float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.History)
	if n < 3 {
		// Delta of round 1 is against nothing; two consecutive deltas
		// need at least three rounds of history.
		return 0, 0, false
	}
	return s.History[n-2].ImprovementDelta, s.History[n-1].ImprovementDelta, true
}

// Elapsed returns the wall time since session start.
func (s *IterationState) Elapsed() time.Duration {
	return time.Since(s.StartedAt.Time())
}

// Snapshot returns a copy safe to hand to streaming consumers.
func (s *IterationState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID: s.SessionID,
		Phase:     s.Phase,
		Round:     s.Round,
		MaxRounds: s.MaxRounds,
		History:   make([]RoundSummary, len(s.History)),
		StartedAt: s.StartedAt,
	}
	copy(snap.History, s.History)
	if s.StopReason != nil {
		r := *s.StopReason
		snap.StopReason = &r
	}
	if s.BestEffort != nil {
		b := *s.BestEffort
		snap.BestEffort = &b
	}
	return snap
}

// Snapshot is an immutable view of an IterationState for streaming and
// persistence.
type Snapshot struct {
	SessionID  core.SessionID `json:"session_id"`
	Phase      Phase          `json:"phase"`
	Round      int            `json:"round_number"`
	MaxRounds  int            `json:"max_rounds"`
	History    []RoundSummary `json:"history"`
	StopReason *StopReason    `json:"stop_reason"`
	BestEffort *expert.Result `json:"best_effort,omitempty"`
	StartedAt  core.Timestamp `json:"started_at"`
}
