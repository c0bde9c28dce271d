package postgres

import (
	"context"
	"encoding/json"

	"merlt/domain/bias"
	"merlt/domain/core"
	"merlt/ports"

	"github.com/jmoiron/sqlx"
)

// BiasReportRepositoryImpl implements BiasReportRepository for PostgreSQL
type BiasReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewBiasReportRepository creates a new PostgreSQL bias report repository
func NewBiasReportRepository(db *sqlx.DB) ports.BiasReportRepository {
	return &BiasReportRepositoryImpl{db: db}
}

type biasReportRow struct {
	ID         core.ReportID  `db:"id"`
	Type       bias.Type      `db:"type"`
	TargetID   core.TargetID  `db:"target_id"`
	Severity   bias.Severity  `db:"severity"`
	Evidence   []byte         `db:"evidence"`
	DetectedAt core.Timestamp `db:"detected_at"`
}

// Create persists a bias report
func (r *BiasReportRepositoryImpl) Create(ctx context.Context, report *bias.Report) error {
	evidence, err := json.Marshal(report.Evidence)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bias_reports (id, type, target_id, severity, evidence, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, report.ID, report.Type, report.TargetID, report.Severity, evidence, report.DetectedAt)
	return err
}

// ListByTarget returns all reports for a target, newest first
func (r *BiasReportRepositoryImpl) ListByTarget(ctx context.Context, targetID core.TargetID) ([]bias.Report, error) {
	var rows []biasReportRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, type, target_id, severity, evidence, detected_at
		FROM bias_reports
		WHERE target_id = $1
		ORDER BY detected_at DESC
	`, targetID)
	if err != nil {
		return nil, err
	}
	return inflate(rows)
}

// ListByTimeRange returns reports detected within the range, newest first.
// A zero bound is open on that side.
func (r *BiasReportRepositoryImpl) ListByTimeRange(ctx context.Context, rng core.TimeRange) ([]bias.Report, error) {
	query := `
		SELECT id, type, target_id, severity, evidence, detected_at
		FROM bias_reports
		WHERE ($1::timestamptz IS NULL OR detected_at >= $1)
		  AND ($2::timestamptz IS NULL OR detected_at < $2)
		ORDER BY detected_at DESC
	`
	var from, to interface{}
	if !rng.From.IsZero() {
		from = rng.From.Time()
	}
	if !rng.To.IsZero() {
		to = rng.To.Time()
	}

	var rows []biasReportRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, err
	}
	return inflate(rows)
}

func inflate(rows []biasReportRow) ([]bias.Report, error) {
	reports := make([]bias.Report, 0, len(rows))
	for _, row := range rows {
		report := bias.Report{
			ID:         row.ID,
			Type:       row.Type,
			TargetID:   row.TargetID,
			Severity:   row.Severity,
			DetectedAt: row.DetectedAt,
		}
		if len(row.Evidence) > 0 {
			if err := json.Unmarshal(row.Evidence, &report.Evidence); err != nil {
				return nil, err
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}
