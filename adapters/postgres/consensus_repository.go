package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/ports"

	"github.com/jmoiron/sqlx"
)

// ConsensusRepositoryImpl implements ConsensusRepository for PostgreSQL
type ConsensusRepositoryImpl struct {
	db *sqlx.DB
}

// NewConsensusRepository creates a new PostgreSQL consensus repository
func NewConsensusRepository(db *sqlx.DB) ports.ConsensusRepository {
	return &ConsensusRepositoryImpl{db: db}
}

type consensusRow struct {
	TargetID            core.TargetID     `db:"target_id"`
	TargetType          review.TargetType `db:"target_type"`
	Decision            review.Decision   `db:"decision"`
	AgreementScore      *float64          `db:"agreement_score"`
	MajorityPosition    sql.NullString    `db:"majority_position"`
	DisagreementEntropy *float64          `db:"disagreement_entropy"`
	QuorumMet           bool              `db:"quorum_met"`
	Contributing        []byte            `db:"contributing"`
	ComputedAt          core.Timestamp    `db:"computed_at"`
}

// Upsert stores the latest consensus for a target. Each recomputation
// replaces the previous row; history lives in the votes table.
func (r *ConsensusRepositoryImpl) Upsert(ctx context.Context, result *review.ConsensusResult) error {
	contributing, err := json.Marshal(result.Contributing)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO consensus_results
			(target_id, target_type, decision, agreement_score, majority_position,
			 disagreement_entropy, quorum_met, contributing, computed_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
		ON CONFLICT (target_id) DO UPDATE SET
			target_type = EXCLUDED.target_type,
			decision = EXCLUDED.decision,
			agreement_score = EXCLUDED.agreement_score,
			majority_position = EXCLUDED.majority_position,
			disagreement_entropy = EXCLUDED.disagreement_entropy,
			quorum_met = EXCLUDED.quorum_met,
			contributing = EXCLUDED.contributing,
			computed_at = EXCLUDED.computed_at
	`, result.TargetID, result.TargetType, result.Decision, result.AgreementScore,
		string(result.MajorityPosition), result.DisagreementEntropy, result.QuorumMet,
		contributing, result.ComputedAt)
	return err
}

// GetByTarget returns the latest consensus for a target
func (r *ConsensusRepositoryImpl) GetByTarget(ctx context.Context, targetID core.TargetID) (*review.ConsensusResult, error) {
	var row consensusRow
	err := r.db.GetContext(ctx, &row, `
		SELECT target_id, target_type, decision, agreement_score, majority_position,
		       disagreement_entropy, quorum_met, contributing, computed_at
		FROM consensus_results
		WHERE target_id = $1
	`, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	result := &review.ConsensusResult{
		TargetID:            row.TargetID,
		TargetType:          row.TargetType,
		Decision:            row.Decision,
		AgreementScore:      row.AgreementScore,
		MajorityPosition:    review.Position(row.MajorityPosition.String),
		DisagreementEntropy: row.DisagreementEntropy,
		QuorumMet:           row.QuorumMet,
		ComputedAt:          row.ComputedAt,
	}
	if len(row.Contributing) > 0 {
		if err := json.Unmarshal(row.Contributing, &result.Contributing); err != nil {
			return nil, err
		}
	}
	return result, nil
}
