package iteration

import (
	"testing"
	"time"

	"merlt/domain/core"
	"merlt/domain/expert"
	"merlt/domain/session"
	"merlt/internal/config"
)

func testConfig() config.SessionConfig {
	return config.SessionConfig{
		MaxRounds:          5,
		ConfidenceFloor:    0.30,
		MinRoundsForFloor:  2,
		ConvergenceEpsilon: 0.02,
		HighConsensus:      0.85,
		StabilityEntropy:   0.30,
	}
}

func newState(maxRounds int) *session.IterationState {
	return session.New(core.SessionID(core.NewID()), "test query", maxRounds, 0)
}

// roundInput builds a round where every expert agrees with the given
// confidence, yielding agreement 1.0 and entropy 0.
func roundInput(round int, confidence float64) RoundInput {
	opinions := []expert.Opinion{
		{ExpertID: "a", Position: "affirmative", Confidence: confidence},
		{ExpertID: "b", Position: "affirmative", Confidence: confidence},
	}
	return RoundInput{
		Round:    round,
		Opinions: opinions,
		Weights:  map[core.ExpertID]float64{"a": 0.5, "b": 0.5},
		Synthesis: expert.Result{
			Mode:    expert.ModeConvergent,
			Primary: expert.Answer{Position: "affirmative", Confidence: confidence},
		},
	}
}

// splitInput builds a round with a 50/50 expert split so entropy is 1 and
// the stable-consensus criterion never fires.
func splitInput(round int, confidence float64) RoundInput {
	opinions := []expert.Opinion{
		{ExpertID: "a", Position: "affirmative", Confidence: confidence},
		{ExpertID: "b", Position: "restrictive", Confidence: confidence},
	}
	return RoundInput{
		Round:    round,
		Opinions: opinions,
		Weights:  map[core.ExpertID]float64{"a": 0.5, "b": 0.5},
		Synthesis: expert.Result{
			Mode:    expert.ModeDivergent,
			Primary: expert.Answer{Position: "affirmative", Confidence: confidence},
		},
	}
}

func TestDecide_RoundCap(t *testing.T) {
	controller := NewController(testConfig())
	state := newState(3)

	// Disagreeing rounds with growing confidence: no quality stop fires.
	phase, reason := controller.Decide(state, splitInput(1, 0.40))
	if reason != nil {
		t.Fatalf("round 1 should continue, stopped with %s", *reason)
	}
	phase, reason = controller.Decide(state, splitInput(2, 0.50))
	if reason != nil {
		t.Fatalf("round 2 should continue, stopped with %s", *reason)
	}
	phase, reason = controller.Decide(state, splitInput(3, 0.60))
	if reason == nil {
		t.Fatal("round 3 of 3 must stop at the cap")
	}
	if *reason != session.StopMaxRoundsReached {
		t.Errorf("expected MAX_ROUNDS_REACHED, got %s", *reason)
	}
	if phase != session.PhaseMaxRoundsReached {
		t.Errorf("expected max_rounds_reached phase, got %s", phase)
	}
}

func TestDecide_RoundCapBeatsStableConsensus(t *testing.T) {
	// The final round also reaches stable consensus; the hard limit is
	// reported, not the quality stop.
	controller := NewController(testConfig())
	state := newState(1)

	_, reason := controller.Decide(state, roundInput(1, 0.9))
	if reason == nil {
		t.Fatal("round 1 of 1 must stop")
	}
	if *reason != session.StopMaxRoundsReached {
		t.Errorf("hard limit should outrank stable consensus, got %s", *reason)
	}
}

func TestDecide_StableConsensus(t *testing.T) {
	controller := NewController(testConfig())
	state := newState(5)

	// Unanimous round: agreement 1.0 >= 0.85, entropy 0 < 0.30.
	phase, reason := controller.Decide(state, roundInput(1, 0.9))
	if reason == nil {
		t.Fatal("a unanimous high-confidence round should stop immediately")
	}
	if *reason != session.StopStableConsensus {
		t.Errorf("expected STABLE_CONSENSUS, got %s", *reason)
	}
	if phase != session.PhaseStableConsensus {
		t.Errorf("expected stable_consensus phase, got %s", phase)
	}
}

func TestDecide_ConfidenceFloor(t *testing.T) {
	controller := NewController(testConfig())
	state := newState(5)

	// Round 1 below the floor does not stop: the floor needs MinRounds.
	_, reason := controller.Decide(state, splitInput(1, 0.20))
	if reason != nil {
		t.Fatalf("round 1 under the floor should still continue, got %s", *reason)
	}

	_, reason = controller.Decide(state, splitInput(2, 0.22))
	if reason == nil {
		t.Fatal("round 2 under the floor must stop")
	}
	if *reason != session.StopLowConfidenceFloor {
		t.Errorf("expected LOW_CONFIDENCE_FLOOR, got %s", *reason)
	}
}

func TestDecide_MarginalGainConvergence(t *testing.T) {
	controller := NewController(testConfig())
	state := newState(10)

	// Confidence 0.50 -> 0.51 -> 0.515: two consecutive deltas under
	// epsilon 0.02, detectable from round 3 on.
	_, reason := controller.Decide(state, splitInput(1, 0.50))
	if reason != nil {
		t.Fatalf("round 1 should continue, got %s", *reason)
	}
	_, reason = controller.Decide(state, splitInput(2, 0.51))
	if reason != nil {
		t.Fatalf("round 2 should continue (one delta is not a trend), got %s", *reason)
	}
	phase, reason := controller.Decide(state, splitInput(3, 0.515))
	if reason == nil {
		t.Fatal("round 3 with two sub-epsilon deltas must converge")
	}
	if *reason != session.StopConverged {
		t.Errorf("expected CONVERGED, got %s", *reason)
	}
	if phase != session.PhaseConverged {
		t.Errorf("expected converged phase, got %s", phase)
	}
}

func TestDecide_LargeGainKeepsGoing(t *testing.T) {
	controller := NewController(testConfig())
	state := newState(10)

	controller.Decide(state, splitInput(1, 0.40))
	controller.Decide(state, splitInput(2, 0.55))
	_, reason := controller.Decide(state, splitInput(3, 0.70))
	if reason != nil {
		t.Fatalf("steady improvement must not converge, got %s", *reason)
	}
}

func TestDecide_TimeBudget(t *testing.T) {
	controller := NewController(testConfig())
	state := session.New(core.SessionID(core.NewID()), "q", 10, time.Nanosecond)

	time.Sleep(time.Millisecond)
	_, reason := controller.Decide(state, splitInput(1, 0.50))
	if reason == nil {
		t.Fatal("an exhausted budget must stop the session")
	}
	if *reason != session.StopTimeout {
		t.Errorf("expected TIMEOUT, got %s", *reason)
	}
}

func TestDecide_TerminalIsIdempotent(t *testing.T) {
	controller := NewController(testConfig())
	state := newState(1)

	_, first := controller.Decide(state, roundInput(1, 0.9))
	if first == nil {
		t.Fatal("round 1 of 1 must stop")
	}
	snapshotBefore := state.Snapshot()

	phase, again := controller.Decide(state, roundInput(2, 0.95))
	if again == nil || *again != *first {
		t.Errorf("terminal decision must not change: %v vs %v", again, first)
	}
	if phase != snapshotBefore.Phase {
		t.Errorf("terminal phase must not change: %s vs %s", phase, snapshotBefore.Phase)
	}
	if len(state.Snapshot().History) != len(snapshotBefore.History) {
		t.Error("a terminal session must not accept new rounds")
	}
}

func TestDecide_DegradedRoundStillCounts(t *testing.T) {
	controller := NewController(testConfig())
	state := newState(2)

	input := splitInput(1, 0.50)
	input.Degraded = true
	_, reason := controller.Decide(state, input)
	if reason != nil {
		t.Fatalf("degraded round 1 of 2 should continue, got %s", *reason)
	}

	history := state.Snapshot().History
	if len(history) != 1 || !history[0].Degraded {
		t.Error("degraded round must be recorded in history with its flag")
	}
}
