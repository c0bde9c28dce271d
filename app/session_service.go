package app

import (
	"context"

	"merlt/domain/core"
	domainsession "merlt/domain/session"
	"merlt/internal"
	"merlt/internal/config"
	"merlt/internal/session"
	"merlt/internal/synthesis"
	"merlt/ports"
)

// SessionService runs multi-round refinement sessions and persists their
// state transitions. Sessions are independent: each run owns its own
// iteration state and the service may drive any number concurrently.
type SessionService struct {
	cfg         config.SessionConfig
	runner      *session.Runner
	sessionRepo ports.SessionRepository
	logger      *internal.Logger
}

// NewSessionService wires the session surface.
func NewSessionService(cfg config.SessionConfig, synthesizer *synthesis.Synthesizer, sessionRepo ports.SessionRepository) *SessionService {
	return &SessionService{
		cfg:         cfg,
		runner:      session.NewRunner(cfg, synthesizer),
		sessionRepo: sessionRepo,
		logger:      internal.DefaultLogger.Component("SessionService"),
	}
}

// RunSession starts a refinement session over the given opinion producers
// and returns the event stream. Every transition is persisted as it is
// forwarded, so a consumer that disconnects can recover the session state.
func (s *SessionService) RunSession(ctx context.Context, query string, producers []ports.OpinionProducer) (<-chan session.Event, error) {
	events, err := s.runner.Run(ctx, query, producers)
	if err != nil {
		return nil, err
	}

	out := make(chan session.Event, cap(events))
	go func() {
		defer close(out)
		for event := range events {
			if err := s.sessionRepo.Save(ctx, event.State); err != nil {
				s.logger.Error("session %s snapshot persistence failed: %v", event.State.SessionID, err)
			}
			out <- event
		}
	}()
	return out, nil
}

// GetSession returns the persisted snapshot of a session.
func (s *SessionService) GetSession(ctx context.Context, id core.SessionID) (*domainsession.Snapshot, error) {
	return s.sessionRepo.GetByID(ctx, id)
}
