package authority

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/internal/config"
)

func testConfig() config.AuthorityConfig {
	return config.AuthorityConfig{
		Alpha:            0.4,
		Beta:             0.4,
		Gamma:            0.2,
		TrackRecordDecay: 0.9,
		RecencyWindow:    10,
	}
}

func newEvaluator(id string, baseline float64) *review.Evaluator {
	return review.NewEvaluator(core.EvaluatorID(id), "Eval "+id, baseline,
		review.CategoryAcademic, "north")
}

func TestComputeAuthority_NeutralStart(t *testing.T) {
	tracker := NewTracker(testConfig())
	tracker.Register(newEvaluator("e1", 0.8))

	// A = 0.4*0.8 + 0.4*0.5 + 0.2*0.5 = 0.62
	got := tracker.ComputeAuthority("e1", core.DomainGeneral)
	if math.Abs(got-0.62) > 1e-9 {
		t.Errorf("expected authority 0.62 for fresh evaluator, got %f", got)
	}
}

func TestComputeAuthority_AlwaysInUnitInterval(t *testing.T) {
	tracker := NewTracker(testConfig())

	baselines := []float64{-3.0, 0.0, 0.5, 1.0, 42.0}
	for i, b := range baselines {
		id := core.EvaluatorID(fmt.Sprintf("e%d", i))
		tracker.Register(newEvaluator(string(id), b))

		a := tracker.ComputeAuthority(id, core.DomainGeneral)
		if a < 0 || a > 1 {
			t.Errorf("authority for baseline %f escaped [0,1]: %f", b, a)
		}
	}
}

func TestUpdateTrackRecord_DegenerateWindowKeepsAuthorityFinite(t *testing.T) {
	// A misconfigured zero-length recency window must never poison
	// authority with a 0/0 division.
	cfg := testConfig()
	cfg.RecencyWindow = 0
	tracker := NewTracker(cfg)
	tracker.Register(newEvaluator("e1", 0.8))

	for i := 0; i < 5; i++ {
		if err := tracker.UpdateTrackRecord("e1", i%2 == 0, core.DomainGeneral); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		a := tracker.ComputeAuthority("e1", core.DomainGeneral)
		if math.IsNaN(a) || a < 0 || a > 1 {
			t.Fatalf("authority escaped [0,1] after update %d: %f", i, a)
		}
	}
}

func TestComputeAuthority_UnknownEvaluatorIsZero(t *testing.T) {
	tracker := NewTracker(testConfig())
	if a := tracker.ComputeAuthority("ghost", core.DomainGeneral); a != 0 {
		t.Errorf("unknown evaluator should have zero authority, got %f", a)
	}
}

func TestUpdateTrackRecord_MovesTrust(t *testing.T) {
	tracker := NewTracker(testConfig())
	tracker.Register(newEvaluator("e1", 0.5))
	before := tracker.ComputeAuthority("e1", core.DomainGeneral)

	for i := 0; i < 5; i++ {
		if err := tracker.UpdateTrackRecord("e1", true, core.DomainGeneral); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	afterCorrect := tracker.ComputeAuthority("e1", core.DomainGeneral)
	if afterCorrect <= before {
		t.Errorf("authority should rise after correct votes: %f -> %f", before, afterCorrect)
	}

	for i := 0; i < 10; i++ {
		if err := tracker.UpdateTrackRecord("e1", false, core.DomainGeneral); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	afterWrong := tracker.ComputeAuthority("e1", core.DomainGeneral)
	if afterWrong >= afterCorrect {
		t.Errorf("authority should fall after wrong votes: %f -> %f", afterCorrect, afterWrong)
	}
}

func TestUpdateTrackRecord_UnknownEvaluator(t *testing.T) {
	tracker := NewTracker(testConfig())
	err := tracker.UpdateTrackRecord("ghost", true, core.DomainGeneral)
	if !errors.Is(err, core.ErrEvaluatorNotFound) {
		t.Fatalf("expected ErrEvaluatorNotFound, got %v", err)
	}
}

func TestUpdateTrackRecord_DomainScoped(t *testing.T) {
	tracker := NewTracker(testConfig())
	tracker.Register(newEvaluator("e1", 0.5))

	for i := 0; i < 8; i++ {
		if err := tracker.UpdateTrackRecord("e1", true, "tax"); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}

	tax := tracker.ComputeAuthority("e1", "tax")
	criminal := tracker.ComputeAuthority("e1", "criminal")
	if tax <= criminal {
		t.Errorf("tax authority should exceed untouched criminal domain: %f vs %f", tax, criminal)
	}

	// Untouched domains fall back to neutral trust.
	general := tracker.ComputeAuthority("e1", core.DomainGeneral)
	if math.Abs(criminal-general) > 1e-9 {
		t.Errorf("untouched domains should share the neutral score: %f vs %f", criminal, general)
	}
}

func TestRegister_RefreshKeepsTrust(t *testing.T) {
	tracker := NewTracker(testConfig())
	tracker.Register(newEvaluator("e1", 0.5))

	for i := 0; i < 6; i++ {
		if err := tracker.UpdateTrackRecord("e1", true, core.DomainGeneral); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	earned := tracker.Get("e1").TrustIn(core.DomainGeneral)

	// Credential refresh must not reset the earned track record.
	tracker.Register(newEvaluator("e1", 0.9))

	refreshed := tracker.Get("e1")
	if refreshed.BaselineCredential != 0.9 {
		t.Errorf("baseline should refresh to 0.9, got %f", refreshed.BaselineCredential)
	}
	if refreshed.TrustIn(core.DomainGeneral) != earned {
		t.Errorf("trust should survive re-registration: %+v vs %+v",
			refreshed.TrustIn(core.DomainGeneral), earned)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	tracker := NewTracker(testConfig())
	tracker.Register(newEvaluator("e1", 0.5))

	cp := tracker.Get("e1")
	cp.BaselineCredential = 0.0
	cp.Trust[core.DomainGeneral] = review.TrustComponents{}

	if got := tracker.Get("e1").BaselineCredential; got != 0.5 {
		t.Errorf("mutating a returned copy leaked into the arena: baseline %f", got)
	}
	if got := tracker.Get("e1").TrustIn(core.DomainGeneral); got != review.NeutralTrust() {
		t.Errorf("mutating a returned trust map leaked into the arena: %+v", got)
	}
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tracker := NewTracker(testConfig())
	const evaluators = 50

	for i := 0; i < evaluators; i++ {
		tracker.Register(newEvaluator(fmt.Sprintf("e%d", i), 0.5))
	}

	var wg sync.WaitGroup
	for i := 0; i < evaluators; i++ {
		id := core.EvaluatorID(fmt.Sprintf("e%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = tracker.UpdateTrackRecord(id, j%2 == 0, core.DomainGeneral)
				_ = tracker.ComputeAuthority(id, core.DomainGeneral)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < evaluators; i++ {
		id := core.EvaluatorID(fmt.Sprintf("e%d", i))
		rec := tracker.Get(id)
		if rec.TrustIn(core.DomainGeneral).ResolvedVotes != 20 {
			t.Errorf("evaluator %s lost updates: %d resolved votes",
				id, rec.TrustIn(core.DomainGeneral).ResolvedVotes)
		}
	}
}

func TestSnapshotWeights(t *testing.T) {
	tracker := NewTracker(testConfig())
	tracker.Register(newEvaluator("e1", 0.8))

	weights := tracker.SnapshotWeights([]core.EvaluatorID{"e1", "ghost"}, core.DomainGeneral)
	if weights["ghost"] != 0 {
		t.Errorf("unknown evaluator should snapshot to zero, got %f", weights["ghost"])
	}
	if weights["e1"] <= 0 {
		t.Errorf("known evaluator should snapshot positive, got %f", weights["e1"])
	}
}
