package authority

import (
	"hash/fnv"
	"sync"

	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/internal/config"
)

// shardCount fixes the arena's lock granularity. Writes for one evaluator
// always land on the same shard, which gives single-writer-per-key ordering
// without a global lock.
const shardCount = 32

// record is one evaluator's mutable trust state. The recent outcome windows
// are per competence domain, like the trust components themselves.
type record struct {
	evaluator *review.Evaluator
	recent    map[core.CompetenceDomain][]bool
}

type shard struct {
	mu      sync.RWMutex
	records map[core.EvaluatorID]*record
}

// Tracker maintains per-evaluator authority over time. It is the only
// mutable shared state in the engine: updates are serialized per shard,
// reads return the latest committed snapshot without blocking writers on
// other shards.
type Tracker struct {
	cfg    config.AuthorityConfig
	shards [shardCount]*shard
}

// NewTracker creates an authority tracker with the given weight coefficients.
func NewTracker(cfg config.AuthorityConfig) *Tracker {
	t := &Tracker{cfg: cfg}
	for i := range t.shards {
		t.shards[i] = &shard{records: make(map[core.EvaluatorID]*record)}
	}
	return t
}

func (t *Tracker) shardFor(id core.EvaluatorID) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return t.shards[h.Sum32()%shardCount]
}

// Register adds an evaluator to the arena. Re-registering an existing id
// refreshes the baseline credential but keeps accumulated trust.
func (t *Tracker) Register(evaluator *review.Evaluator) {
	s := t.shardFor(evaluator.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[evaluator.ID]; ok {
		existing.evaluator.BaselineCredential = evaluator.BaselineCredential
		existing.evaluator.Category = evaluator.Category
		existing.evaluator.Region = evaluator.Region
		return
	}
	s.records[evaluator.ID] = &record{
		evaluator: evaluator,
		recent:    make(map[core.CompetenceDomain][]bool),
	}
}

// Get returns a copy of the evaluator, or nil if unknown.
func (t *Tracker) Get(id core.EvaluatorID) *review.Evaluator {
	s := t.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	cp := *rec.evaluator
	cp.Trust = make(map[core.CompetenceDomain]review.TrustComponents, len(rec.evaluator.Trust))
	for d, tc := range rec.evaluator.Trust {
		cp.Trust[d] = tc
	}
	return &cp
}

// Known reports whether an evaluator is registered.
func (t *Tracker) Known(id core.EvaluatorID) bool {
	s := t.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// ComputeAuthority derives A(t) = alpha*B + beta*T + gamma*P for an
// evaluator, domain-scoped when a domain is given. The result is clamped,
// not renormalized, to [0,1]: clamping keeps repeated updates from inflating
// scores. Unknown evaluators get zero authority.
func (t *Tracker) ComputeAuthority(id core.EvaluatorID, domain core.CompetenceDomain) float64 {
	s := t.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return 0
	}
	return t.authorityLocked(rec, domain)
}

func (t *Tracker) authorityLocked(rec *record, domain core.CompetenceDomain) float64 {
	tc := rec.evaluator.TrustIn(domain)
	a := t.cfg.Alpha*rec.evaluator.BaselineCredential +
		t.cfg.Beta*tc.TrackRecord +
		t.cfg.Gamma*tc.RecentPerformance
	return clamp01(a)
}

// UpdateTrackRecord folds one resolved vote into the evaluator's trust for a
// domain. TrackRecord decays exponentially toward the new outcome;
// RecentPerformance is the correct share of the last RecencyWindow outcomes.
func (t *Tracker) UpdateTrackRecord(id core.EvaluatorID, wasCorrect bool, domain core.CompetenceDomain) error {
	if domain == "" {
		domain = core.DomainGeneral
	}

	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return core.ErrEvaluatorNotFound
	}

	tc := rec.evaluator.TrustIn(domain)
	outcome := 0.0
	if wasCorrect {
		outcome = 1.0
	}
	tc.TrackRecord = clamp01(t.cfg.TrackRecordDecay*tc.TrackRecord + (1-t.cfg.TrackRecordDecay)*outcome)
	tc.ResolvedVotes++

	window := append(rec.recent[domain], wasCorrect)
	if t.cfg.RecencyWindow > 0 && len(window) > t.cfg.RecencyWindow {
		window = window[len(window)-t.cfg.RecencyWindow:]
	}
	rec.recent[domain] = window

	correct := 0
	for _, ok := range window {
		if ok {
			correct++
		}
	}
	if len(window) > 0 {
		tc.RecentPerformance = clamp01(float64(correct) / float64(len(window)))
	}

	rec.evaluator.Trust[domain] = tc
	return nil
}

// SnapshotWeights resolves current authority for a set of evaluators in one
// pass. Aggregation works off this snapshot so concurrent track-record
// updates never skew a consensus computation mid-flight.
func (t *Tracker) SnapshotWeights(ids []core.EvaluatorID, domain core.CompetenceDomain) map[core.EvaluatorID]float64 {
	weights := make(map[core.EvaluatorID]float64, len(ids))
	for _, id := range ids {
		weights[id] = t.ComputeAuthority(id, domain)
	}
	return weights
}

// All returns a copy of every registered evaluator. Used by the bias
// detectors, which need category and region attributes.
func (t *Tracker) All() []*review.Evaluator {
	var out []*review.Evaluator
	for _, s := range t.shards {
		s.mu.RLock()
		for _, rec := range s.records {
			cp := *rec.evaluator
			out = append(out, &cp)
		}
		s.mu.RUnlock()
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
