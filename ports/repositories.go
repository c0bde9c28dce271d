package ports

import (
	"context"

	"merlt/domain/bias"
	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/domain/session"
)

// EvaluatorRepository defines the interface for evaluator persistence
type EvaluatorRepository interface {
	// Create persists a newly registered evaluator
	Create(ctx context.Context, evaluator *review.Evaluator) error

	// GetByID retrieves an evaluator by ID
	GetByID(ctx context.Context, id core.EvaluatorID) (*review.Evaluator, error)

	// List returns all registered evaluators
	List(ctx context.Context) ([]*review.Evaluator, error)

	// UpdateTrust persists an evaluator's trust components for one domain
	UpdateTrust(ctx context.Context, id core.EvaluatorID, domain core.CompetenceDomain, trust review.TrustComponents) error
}

// VoteRepository defines the interface for vote persistence. Votes are
// append-only: once recorded they are never updated.
type VoteRepository interface {
	// Create records a vote
	Create(ctx context.Context, vote *review.Vote) error

	// ListByTarget returns all votes on a target, oldest first
	ListByTarget(ctx context.Context, targetID core.TargetID) ([]review.Vote, error)

	// HasVoted reports whether an evaluator already voted on a target
	HasVoted(ctx context.Context, evaluatorID core.EvaluatorID, targetID core.TargetID) (bool, error)
}

// ConsensusRepository defines the interface for consensus result persistence
type ConsensusRepository interface {
	// Upsert stores the latest consensus for a target, replacing any
	// previous computation
	Upsert(ctx context.Context, result *review.ConsensusResult) error

	// GetByTarget returns the latest consensus for a target
	GetByTarget(ctx context.Context, targetID core.TargetID) (*review.ConsensusResult, error)
}

// BiasReportRepository defines the interface for bias report persistence
type BiasReportRepository interface {
	// Create persists a bias report
	Create(ctx context.Context, report *bias.Report) error

	// ListByTarget returns all reports for a target
	ListByTarget(ctx context.Context, targetID core.TargetID) ([]bias.Report, error)

	// ListByTimeRange returns reports detected within the range
	ListByTimeRange(ctx context.Context, rng core.TimeRange) ([]bias.Report, error)
}

// SessionRepository defines the interface for refinement session persistence
type SessionRepository interface {
	// Save persists a session snapshot (create or update)
	Save(ctx context.Context, snapshot session.Snapshot) error

	// GetByID retrieves the latest snapshot of a session
	GetByID(ctx context.Context, id core.SessionID) (*session.Snapshot, error)
}
