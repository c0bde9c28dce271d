package migration

import (
	"context"
	"fmt"

	"merlt/internal/errors"

	"github.com/jmoiron/sqlx"
)

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createEvaluatorsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create evaluators table")
	}

	if err := r.createEvaluatorTrustTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create evaluator_trust table")
	}

	if err := r.createVotesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create votes table")
	}

	if err := r.createConsensusResultsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create consensus_results table")
	}

	if err := r.createBiasReportsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create bias_reports table")
	}

	if err := r.createSessionsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create refinement_sessions table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createEvaluatorsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS evaluators (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			baseline_credential DECIMAL(4,3) NOT NULL CHECK (baseline_credential >= 0 AND baseline_credential <= 1),
			category VARCHAR(50) NOT NULL,
			region VARCHAR(100),
			registered_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createEvaluatorTrustTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS evaluator_trust (
			evaluator_id VARCHAR(64) NOT NULL REFERENCES evaluators(id) ON DELETE CASCADE,
			domain VARCHAR(100) NOT NULL DEFAULT 'general',
			track_record DECIMAL(4,3) NOT NULL CHECK (track_record >= 0 AND track_record <= 1),
			recent_performance DECIMAL(4,3) NOT NULL CHECK (recent_performance >= 0 AND recent_performance <= 1),
			resolved_votes INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (evaluator_id, domain)
		)
	`)
	return err
}

func (r *MigrationRunner) createVotesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS votes (
			evaluator_id VARCHAR(64) NOT NULL REFERENCES evaluators(id),
			target_id VARCHAR(64) NOT NULL,
			target_type VARCHAR(50) NOT NULL,
			position VARCHAR(64) NOT NULL,
			correction TEXT,
			domain VARCHAR(100) DEFAULT '',
			cast_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (evaluator_id, target_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createConsensusResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS consensus_results (
			target_id VARCHAR(64) PRIMARY KEY,
			target_type VARCHAR(50) NOT NULL,
			decision VARCHAR(30) NOT NULL,
			agreement_score DECIMAL(5,4),
			majority_position VARCHAR(64),
			disagreement_entropy DECIMAL(5,4),
			quorum_met BOOLEAN NOT NULL DEFAULT false,
			contributing JSONB NOT NULL DEFAULT '[]',
			computed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createBiasReportsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bias_reports (
			id UUID PRIMARY KEY,
			type VARCHAR(50) NOT NULL,
			target_id VARCHAR(64) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			evidence JSONB NOT NULL DEFAULT '{}',
			detected_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createSessionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS refinement_sessions (
			id UUID PRIMARY KEY,
			phase VARCHAR(50) NOT NULL DEFAULT 'active',
			round_number INTEGER NOT NULL DEFAULT 0,
			max_rounds INTEGER NOT NULL,
			stop_reason VARCHAR(50),
			history JSONB NOT NULL DEFAULT '[]',
			best_effort JSONB,
			started_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_votes_target_id ON votes(target_id)",
		"CREATE INDEX IF NOT EXISTS idx_votes_cast_at ON votes(cast_at)",
		"CREATE INDEX IF NOT EXISTS idx_bias_reports_target ON bias_reports(target_id)",
		"CREATE INDEX IF NOT EXISTS idx_bias_reports_detected_at ON bias_reports(detected_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_phase ON refinement_sessions(phase)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON refinement_sessions(started_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Index creation failures are logged, not fatal
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
