package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onconav/onconav/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) StageAggregates(ctx context.Context) ([]StageAggregateRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT journey_stage,
			COUNT(DISTINCT patient_id),
			COUNT(*),
			COUNT(*) FILTER (WHERE is_completed),
			COUNT(*) FILTER (WHERE status IN ('PENDING','IN_PROGRESS')),
			COUNT(*) FILTER (WHERE status = 'OVERDUE')
		FROM navigation_step
		GROUP BY journey_stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StageAggregateRow
	for rows.Next() {
		var row StageAggregateRow
		if err := rows.Scan(&row.Stage, &row.PatientsCount, &row.TotalSteps,
			&row.CompletedSteps, &row.PendingSteps, &row.OverdueSteps); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repoPG) StageDurations(ctx context.Context) ([]StageDurationRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, journey_stage,
			MIN(created_at),
			MAX(completed_at) FILTER (WHERE is_completed),
			COUNT(*) FILTER (WHERE is_completed)
		FROM navigation_step
		GROUP BY patient_id, journey_stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StageDurationRow
	for rows.Next() {
		var row StageDurationRow
		if err := rows.Scan(&row.PatientID, &row.Stage, &row.EarliestCreated,
			&row.LatestCompleted, &row.CompletedCount); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repoPG) CountOverdue(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM navigation_step WHERE status = 'OVERDUE'`).Scan(&count)
	return count, err
}

// CountCriticalOverdue counts required diagnosis and treatment steps whose due
// date is older than the cutoff.
func (r *repoPG) CountCriticalOverdue(ctx context.Context, requiredCutoff time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM navigation_step
		WHERE status = 'OVERDUE' AND is_required
		  AND journey_stage IN ('DIAGNOSIS','TREATMENT')
		  AND due_date < $1`, requiredCutoff).Scan(&count)
	return count, err
}

func (r *repoPG) CountStepsDueSoon(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM navigation_step
		WHERE status IN ('PENDING','IN_PROGRESS') AND is_completed = false
		  AND due_date >= $1 AND due_date < $2`, from, to).Scan(&count)
	return count, err
}

func (r *repoPG) PatientsByStage(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT current_stage, COUNT(*) FROM patient
		WHERE status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP')
		GROUP BY current_stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		out[stage] = count
	}
	return out, rows.Err()
}

func (r *repoPG) ListRequiredOverdueSteps(ctx context.Context) ([]CriticalStepRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.name, p.age, p.cancer_type, p.current_stage, p.priority_score, p.priority_category,
			s.id, s.name, s.description, s.journey_stage, s.status, s.is_required, s.due_date, s.expected_date
		FROM navigation_step s
		JOIN patient p ON p.id = s.patient_id
		WHERE s.status = 'OVERDUE' AND s.is_required
		  AND p.status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP')
		ORDER BY s.due_date NULLS LAST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CriticalStepRow
	for rows.Next() {
		var row CriticalStepRow
		if err := rows.Scan(&row.PatientID, &row.PatientName, &row.PatientAge, &row.CancerType,
			&row.CurrentStage, &row.PriorityScore, &row.PriorityCategory,
			&row.StepID, &row.StepName, &row.StepDescription, &row.JourneyStage,
			&row.Status, &row.IsRequired, &row.DueDate, &row.ExpectedDate); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repoPG) ListStepCounts(ctx context.Context) ([]StepCountRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, COUNT(*), COUNT(*) FILTER (WHERE is_completed)
		FROM navigation_step GROUP BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StepCountRow
	for rows.Next() {
		var row StepCountRow
		if err := rows.Scan(&row.PatientID, &row.TotalSteps, &row.CompletedSteps); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repoPG) ListOpenDelayAlertCounts(ctx context.Context) ([]AlertCountRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, COUNT(*) FROM alert
		WHERE type = 'NAVIGATION_DELAY' AND status IN ('PENDING','ACKNOWLEDGED')
		GROUP BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AlertCountRow
	for rows.Next() {
		var row AlertCountRow
		if err := rows.Scan(&row.PatientID, &row.Count); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

// ListTimelineSteps returns diagnosis and treatment steps for patients with a
// known cancer type, for the benchmark comparisons.
func (r *repoPG) ListTimelineSteps(ctx context.Context) ([]TimelineStepRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.patient_id, p.cancer_type, s.step_key, s.journey_stage,
			s.created_at, s.completed_at, s.is_completed
		FROM navigation_step s
		JOIN patient p ON p.id = s.patient_id
		WHERE p.cancer_type IS NOT NULL
		  AND s.journey_stage IN ('DIAGNOSIS','TREATMENT')
		ORDER BY s.patient_id, s.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TimelineStepRow
	for rows.Next() {
		var row TimelineStepRow
		if err := rows.Scan(&row.PatientID, &row.CancerType, &row.StepKey, &row.JourneyStage,
			&row.CreatedAt, &row.CompletedAt, &row.IsCompleted); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repoPG) CountActivePatients(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM patient
		WHERE status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP')`).Scan(&count)
	return count, err
}

func (r *repoPG) CountCriticalPatients(ctx context.Context, minPriorityScore int) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM patient
		WHERE status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP') AND priority_score >= $1`,
		minPriorityScore).Scan(&count)
	return count, err
}

func (r *repoPG) OpenAlertCountsBySeverity(ctx context.Context) ([]SeverityCountRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT severity, COUNT(*) FROM alert
		WHERE status IN ('PENDING','ACKNOWLEDGED')
		GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SeverityCountRow
	for rows.Next() {
		var row SeverityCountRow
		if err := rows.Scan(&row.Severity, &row.Count); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repoPG) CountAlertsResolvedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM alert WHERE status = 'RESOLVED' AND resolved_at >= $1`,
		since).Scan(&count)
	return count, err
}

// AverageAlertResponseMinutes measures creation to acknowledgement over alerts
// that were acknowledged. Returns nil when none were.
func (r *repoPG) AverageAlertResponseMinutes(ctx context.Context) (*int, error) {
	var minutes *float64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (acknowledged_at - created_at)) / 60)
		FROM alert WHERE acknowledged_at IS NOT NULL`).Scan(&minutes)
	if err != nil {
		return nil, err
	}
	if minutes == nil {
		return nil, nil
	}
	v := int(*minutes)
	return &v, nil
}

func (r *repoPG) labelCounts(ctx context.Context, query string) ([]LabelCountRow, error) {
	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LabelCountRow
	for rows.Next() {
		var row LabelCountRow
		if err := rows.Scan(&row.Label, &row.Count); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repoPG) PriorityDistribution(ctx context.Context) ([]LabelCountRow, error) {
	return r.labelCounts(ctx, `
		SELECT priority_category, COUNT(*) FROM patient
		WHERE status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP')
		GROUP BY priority_category ORDER BY COUNT(*) DESC`)
}

func (r *repoPG) CancerTypeDistribution(ctx context.Context) ([]LabelCountRow, error) {
	return r.labelCounts(ctx, `
		SELECT COALESCE(cancer_type, 'unknown'), COUNT(*) FROM patient
		WHERE status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP')
		GROUP BY cancer_type ORDER BY COUNT(*) DESC`)
}

func (r *repoPG) JourneyStageDistribution(ctx context.Context) ([]LabelCountRow, error) {
	return r.labelCounts(ctx, `
		SELECT current_stage, COUNT(*) FROM patient
		WHERE status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP')
		GROUP BY current_stage ORDER BY COUNT(*) DESC`)
}

func (r *repoPG) StatusDistribution(ctx context.Context) ([]LabelCountRow, error) {
	return r.labelCounts(ctx, `
		SELECT status, COUNT(*) FROM patient
		GROUP BY status ORDER BY COUNT(*) DESC`)
}
