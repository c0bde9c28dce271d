package session

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"merlt/domain/core"
	"merlt/domain/expert"
	domainsession "merlt/domain/session"
	"merlt/internal"
	"merlt/internal/config"
	"merlt/internal/iteration"
	"merlt/internal/synthesis"
	"merlt/ports"
)

// EventType classifies streamed session events.
type EventType string

const (
	// EventRoundCompleted is emitted after every refinement round.
	EventRoundCompleted EventType = "round_completed"
	// EventSessionTerminal closes the stream with the final state and the
	// best-effort synthesis.
	EventSessionTerminal EventType = "session_terminal"
)

// Event is one streamed session transition. Result is set only on the
// terminal event.
type Event struct {
	Type   EventType              `json:"type"`
	State  domainsession.Snapshot `json:"state"`
	Result *expert.Result         `json:"result,omitempty"`
}

// Runner drives one refinement session: a sequential round loop whose
// expert-opinion generation fans out concurrently within each round, joined
// at a per-round barrier. Each run owns its IterationState; separate
// sessions never contend.
type Runner struct {
	cfg         config.SessionConfig
	synthesizer *synthesis.Synthesizer
	logger      *internal.Logger
}

// NewRunner creates a session runner.
func NewRunner(cfg config.SessionConfig, synthesizer *synthesis.Synthesizer) *Runner {
	return &Runner{
		cfg:         cfg,
		synthesizer: synthesizer,
		logger:      internal.DefaultLogger.Component("Session"),
	}
}

// Run starts the refinement loop and returns a stream of state transitions
// ending in a terminal event. The stream is closed when the session stops.
// Cancellation of ctx takes effect between rounds only: in-flight expert
// calls finish or time out normally and their results are discarded.
func (r *Runner) Run(ctx context.Context, query string, producers []ports.OpinionProducer) (<-chan Event, error) {
	if len(producers) == 0 {
		return nil, core.ErrNoProducers
	}

	state := domainsession.New(core.SessionID(core.NewID()), query, r.cfg.MaxRounds, r.cfg.SessionTimeout)
	controller := iteration.NewController(r.cfg)
	events := make(chan Event, r.cfg.MaxRounds+1)

	go func() {
		defer close(events)
		r.loop(ctx, state, controller, producers, events)
	}()

	return events, nil
}

func (r *Runner) loop(ctx context.Context, state *domainsession.IterationState, controller *iteration.Controller, producers []ports.OpinionProducer, events chan<- Event) {
	var previous *expert.Result

	for round := 1; ; round++ {
		// Cancellation and budget are only honored here, between rounds.
		if err := ctx.Err(); err != nil {
			r.logger.Warn("session %s cancelled before round %d", state.SessionID, round)
			state.MarkTerminal(domainsession.StopTimeout)
			r.emitTerminal(state, events)
			return
		}

		opinions, missing := r.collectOpinions(ctx, producers, ports.QueryContext{
			Query:    state.Query,
			Round:    round,
			Previous: previous,
		})

		result := r.synthesizeRound(state, round, opinions, missing)
		weights := r.synthesizer.Weights(opinions)
		if len(opinions) > 0 {
			r.synthesizer.RecordRound(opinions, result.Primary.Position)
		}

		phase, stopReason := controller.Decide(state, iteration.RoundInput{
			Round:     round,
			Opinions:  opinions,
			Weights:   weights,
			Synthesis: result,
			Degraded:  len(missing) > 0,
		})

		events <- Event{Type: EventRoundCompleted, State: state.Snapshot()}

		if stopReason != nil {
			r.logger.Info("session %s terminal in phase %s after %d round(s)", state.SessionID, phase, round)
			r.emitTerminal(state, events)
			return
		}
		snapshot := state.Snapshot()
		previous = &snapshot.History[len(snapshot.History)-1].Synthesis
	}
}

// collectOpinions fans out one producer per perspective and joins at the
// round barrier: the round advances once every expert returned or its
// per-call timeout fired. A partial round proceeds with whatever arrived.
func (r *Runner) collectOpinions(ctx context.Context, producers []ports.OpinionProducer, qc ports.QueryContext) ([]expert.Opinion, []core.ExpertID) {
	results := make([]*expert.Opinion, len(producers))

	// The group context is detached from round-level cancellation on
	// purpose: in-flight calls run to completion or timeout.
	g := new(errgroup.Group)
	for i, producer := range producers {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RoundTimeout)
			defer cancel()

			start := time.Now()
			opinion, err := producer.Produce(callCtx, qc)
			if err != nil {
				r.logger.Warn("expert %s failed in round %d after %v: %v",
					producer.Perspective(), qc.Round, time.Since(start), err)
				return nil
			}
			if opinion.ProducedAt.IsZero() {
				opinion.ProducedAt = core.Now()
			}
			results[i] = &opinion
			return nil
		})
	}
	// Producer failures degrade the round instead of failing the group.
	_ = g.Wait()

	var opinions []expert.Opinion
	var missing []core.ExpertID
	for i, op := range results {
		if op != nil {
			opinions = append(opinions, *op)
			continue
		}
		missing = append(missing, core.ExpertID(producers[i].Perspective()))
	}
	return opinions, missing
}

// synthesizeRound merges the round's opinions, annotating degraded rounds.
// A round where every expert failed yields an empty, degraded result so the
// controller can stop via the confidence floor instead of erroring out.
func (r *Runner) synthesizeRound(state *domainsession.IterationState, round int, opinions []expert.Opinion, missing []core.ExpertID) expert.Result {
	result, err := r.synthesizer.Synthesize(opinions)
	if err != nil {
		r.logger.Warn("session %s round %d produced no opinions", state.SessionID, round)
		result = expert.Result{Mode: expert.ModeConvergent}
	}
	if len(missing) > 0 {
		result.Degraded = true
		result.MissingExperts = missing
	}
	return result
}

func (r *Runner) emitTerminal(state *domainsession.IterationState, events chan<- Event) {
	snapshot := state.Snapshot()
	events <- Event{Type: EventSessionTerminal, State: snapshot, Result: snapshot.BestEffort}
}
