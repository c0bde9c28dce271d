package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// EvaluatorRepositoryImpl implements EvaluatorRepository for PostgreSQL
type EvaluatorRepositoryImpl struct {
	db *sqlx.DB
}

// NewEvaluatorRepository creates a new PostgreSQL evaluator repository
func NewEvaluatorRepository(db *sqlx.DB) ports.EvaluatorRepository {
	return &EvaluatorRepositoryImpl{db: db}
}

// evaluatorRow is the flat DB shape; per-domain trust lives in its own table.
type evaluatorRow struct {
	ID                 core.EvaluatorID            `db:"id"`
	Name               string                      `db:"name"`
	BaselineCredential float64                     `db:"baseline_credential"`
	Category           review.ProfessionalCategory `db:"category"`
	Region             sql.NullString              `db:"region"`
	RegisteredAt       core.Timestamp              `db:"registered_at"`
}

type trustRow struct {
	EvaluatorID       core.EvaluatorID      `db:"evaluator_id"`
	Domain            core.CompetenceDomain `db:"domain"`
	TrackRecord       float64               `db:"track_record"`
	RecentPerformance float64               `db:"recent_performance"`
	ResolvedVotes     int                   `db:"resolved_votes"`
}

// Create persists an evaluator and its initial trust components
func (r *EvaluatorRepositoryImpl) Create(ctx context.Context, evaluator *review.Evaluator) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluators (id, name, baseline_credential, category, region, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evaluator.ID, evaluator.Name, evaluator.BaselineCredential, evaluator.Category, evaluator.Region, evaluator.RegisteredAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("evaluator %s already registered", evaluator.ID)
		}
		return err
	}

	for domain, trust := range evaluator.Trust {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO evaluator_trust (evaluator_id, domain, track_record, recent_performance, resolved_votes, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, evaluator.ID, domain, trust.TrackRecord, trust.RecentPerformance, trust.ResolvedVotes)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves an evaluator with all its per-domain trust components
func (r *EvaluatorRepositoryImpl) GetByID(ctx context.Context, id core.EvaluatorID) (*review.Evaluator, error) {
	var row evaluatorRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, baseline_credential, category, region, registered_at
		FROM evaluators
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrEvaluatorNotFound
	}
	if err != nil {
		return nil, err
	}

	var trustRows []trustRow
	err = r.db.SelectContext(ctx, &trustRows, `
		SELECT evaluator_id, domain, track_record, recent_performance, resolved_votes
		FROM evaluator_trust
		WHERE evaluator_id = $1
	`, id)
	if err != nil {
		return nil, err
	}

	return assemble(row, trustRows), nil
}

// List returns all registered evaluators, newest first
func (r *EvaluatorRepositoryImpl) List(ctx context.Context) ([]*review.Evaluator, error) {
	var rows []evaluatorRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, baseline_credential, category, region, registered_at
		FROM evaluators
		ORDER BY registered_at DESC
	`)
	if err != nil {
		return nil, err
	}

	var trustRows []trustRow
	err = r.db.SelectContext(ctx, &trustRows, `
		SELECT evaluator_id, domain, track_record, recent_performance, resolved_votes
		FROM evaluator_trust
	`)
	if err != nil {
		return nil, err
	}

	trustByEvaluator := make(map[core.EvaluatorID][]trustRow)
	for _, tr := range trustRows {
		trustByEvaluator[tr.EvaluatorID] = append(trustByEvaluator[tr.EvaluatorID], tr)
	}

	evaluators := make([]*review.Evaluator, 0, len(rows))
	for _, row := range rows {
		evaluators = append(evaluators, assemble(row, trustByEvaluator[row.ID]))
	}
	return evaluators, nil
}

// UpdateTrust upserts one domain's trust components for an evaluator
func (r *EvaluatorRepositoryImpl) UpdateTrust(ctx context.Context, id core.EvaluatorID, domain core.CompetenceDomain, trust review.TrustComponents) error {
	if domain == "" {
		domain = core.DomainGeneral
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evaluator_trust (evaluator_id, domain, track_record, recent_performance, resolved_votes, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (evaluator_id, domain) DO UPDATE SET
			track_record = EXCLUDED.track_record,
			recent_performance = EXCLUDED.recent_performance,
			resolved_votes = EXCLUDED.resolved_votes,
			updated_at = NOW()
	`, id, domain, trust.TrackRecord, trust.RecentPerformance, trust.ResolvedVotes)
	return err
}

func assemble(row evaluatorRow, trustRows []trustRow) *review.Evaluator {
	e := &review.Evaluator{
		ID:                 row.ID,
		Name:               row.Name,
		BaselineCredential: row.BaselineCredential,
		Category:           row.Category,
		Region:             row.Region.String,
		Trust:              make(map[core.CompetenceDomain]review.TrustComponents, len(trustRows)),
		RegisteredAt:       row.RegisteredAt,
	}
	for _, tr := range trustRows {
		e.Trust[tr.Domain] = review.TrustComponents{
			TrackRecord:       tr.TrackRecord,
			RecentPerformance: tr.RecentPerformance,
			ResolvedVotes:     tr.ResolvedVotes,
		}
	}
	if len(e.Trust) == 0 {
		e.Trust[core.DomainGeneral] = review.NeutralTrust()
	}
	return e
}
