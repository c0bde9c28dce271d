package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"merlt/domain/core"
	"merlt/domain/expert"
	"merlt/domain/session"
	"merlt/ports"

	"github.com/jmoiron/sqlx"
)

// SessionRepositoryImpl implements SessionRepository for PostgreSQL
type SessionRepositoryImpl struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) ports.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

type sessionRow struct {
	ID         core.SessionID `db:"id"`
	Phase      session.Phase  `db:"phase"`
	Round      int            `db:"round_number"`
	MaxRounds  int            `db:"max_rounds"`
	StopReason sql.NullString `db:"stop_reason"`
	History    []byte         `db:"history"`
	BestEffort []byte         `db:"best_effort"`
	StartedAt  core.Timestamp `db:"started_at"`
}

// Save persists a session snapshot (create or update). Sessions are saved
// after every round, so the stored row always reflects the latest state.
func (r *SessionRepositoryImpl) Save(ctx context.Context, snapshot session.Snapshot) error {
	history, err := json.Marshal(snapshot.History)
	if err != nil {
		return err
	}

	var bestEffort []byte
	if snapshot.BestEffort != nil {
		bestEffort, err = json.Marshal(snapshot.BestEffort)
		if err != nil {
			return err
		}
	}

	var stopReason interface{}
	if snapshot.StopReason != nil {
		stopReason = string(*snapshot.StopReason)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO refinement_sessions
			(id, phase, round_number, max_rounds, stop_reason, history, best_effort, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			round_number = EXCLUDED.round_number,
			stop_reason = EXCLUDED.stop_reason,
			history = EXCLUDED.history,
			best_effort = EXCLUDED.best_effort,
			updated_at = NOW()
	`, snapshot.SessionID, snapshot.Phase, snapshot.Round, snapshot.MaxRounds,
		stopReason, history, bestEffort, snapshot.StartedAt)
	return err
}

// GetByID retrieves the latest snapshot of a session
func (r *SessionRepositoryImpl) GetByID(ctx context.Context, id core.SessionID) (*session.Snapshot, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, phase, round_number, max_rounds, stop_reason, history, best_effort, started_at
		FROM refinement_sessions
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	snapshot := &session.Snapshot{
		SessionID: row.ID,
		Phase:     row.Phase,
		Round:     row.Round,
		MaxRounds: row.MaxRounds,
		StartedAt: row.StartedAt,
	}
	if row.StopReason.Valid {
		reason := session.StopReason(row.StopReason.String)
		snapshot.StopReason = &reason
	}
	if len(row.History) > 0 {
		if err := json.Unmarshal(row.History, &snapshot.History); err != nil {
			return nil, err
		}
	}
	if len(row.BestEffort) > 0 {
		var best expert.Result
		if err := json.Unmarshal(row.BestEffort, &best); err != nil {
			return nil, err
		}
		snapshot.BestEffort = &best
	}
	return snapshot, nil
}
