package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

// MetricRepository appends step audit records. The table is append-only;
// there is no update or delete path.
type MetricRepository struct {
	db *sql.DB
}

func NewMetricRepository(db *sql.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

func (r *MetricRepository) Record(ctx context.Context, metric domain.StepMetric) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO step_metrics (journal_id, step, outcome, score, duration_ms, cost_units, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		metric.JournalID, metric.Step, metric.Outcome, metric.Score,
		float64(metric.Duration.Microseconds())/1000.0, metric.CostUnits, metric.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step metric: %w", err)
	}
	return nil
}

func (r *MetricRepository) ListByJournalID(ctx context.Context, journalID int64) ([]domain.StepMetric, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, journal_id, step, outcome, score, duration_ms, cost_units, recorded_at
FROM step_metrics
WHERE journal_id = $1
ORDER BY recorded_at ASC
`, journalID)
	if err != nil {
		return nil, fmt.Errorf("list step metrics: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StepMetric, 0)
	for rows.Next() {
		var metric domain.StepMetric
		var durationMS float64
		err := rows.Scan(
			&metric.ID, &metric.JournalID, &metric.Step, &metric.Outcome,
			&metric.Score, &durationMS, &metric.CostUnits, &metric.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan step metric: %w", err)
		}
		metric.Duration = time.Duration(durationMS * float64(time.Millisecond))
		out = append(out, metric)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step metrics: %w", err)
	}
	return out, nil
}
