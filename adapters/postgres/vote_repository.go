package postgres

import (
	"context"
	"errors"
	"fmt"

	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// VoteRepositoryImpl implements VoteRepository for PostgreSQL
type VoteRepositoryImpl struct {
	db *sqlx.DB
}

// NewVoteRepository creates a new PostgreSQL vote repository
func NewVoteRepository(db *sqlx.DB) ports.VoteRepository {
	return &VoteRepositoryImpl{db: db}
}

// Create records a vote. The (evaluator_id, target_id) primary key enforces
// one vote per evaluator per target at the database level.
func (r *VoteRepositoryImpl) Create(ctx context.Context, vote *review.Vote) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO votes (evaluator_id, target_id, target_type, position, correction, domain, cast_at)
		VALUES (:evaluator_id, :target_id, :target_type, :position, :correction, :domain, :cast_at)
	`, vote)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("%w: evaluator %s already voted on %s",
				core.ErrInvalidVote, vote.EvaluatorID, vote.TargetID)
		}
		return err
	}
	return nil
}

// ListByTarget returns all votes on a target, oldest first
func (r *VoteRepositoryImpl) ListByTarget(ctx context.Context, targetID core.TargetID) ([]review.Vote, error) {
	var votes []review.Vote
	err := r.db.SelectContext(ctx, &votes, `
		SELECT evaluator_id, target_id, target_type, position, correction, domain, cast_at
		FROM votes
		WHERE target_id = $1
		ORDER BY cast_at ASC
	`, targetID)
	return votes, err
}

// HasVoted reports whether an evaluator already voted on a target
func (r *VoteRepositoryImpl) HasVoted(ctx context.Context, evaluatorID core.EvaluatorID, targetID core.TargetID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM votes WHERE evaluator_id = $1 AND target_id = $2
		)
	`, evaluatorID, targetID)
	return exists, err
}
