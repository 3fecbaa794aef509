package navigation

import (
	"context"
	"time"

	"github.com/google/uuid"
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

type stepRepoPG struct{ pool *pgxpool.Pool }

func NewStepRepoPG(pool *pgxpool.Pool) StepRepository {
	return &stepRepoPG{pool: pool}
}

func (r *stepRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const stepCols = `id, patient_id, step_key, name, description, journey_stage,
	status, is_required, is_completed, due_date, expected_date,
	completed_at, actual_date, notes, created_at, updated_at`

// stageOrderSQL keeps listings in care pathway order regardless of insert order.
const stageOrderSQL = `CASE journey_stage
	WHEN 'SCREENING' THEN 0 WHEN 'NAVIGATION' THEN 1 WHEN 'DIAGNOSIS' THEN 2
	WHEN 'TREATMENT' THEN 3 WHEN 'FOLLOW_UP' THEN 4 ELSE 5 END`

func (r *stepRepoPG) scanStep(row pgx.Row) (*Step, error) {
	var s Step
	err := row.Scan(&s.ID, &s.PatientID, &s.StepKey, &s.Name, &s.Description, &s.JourneyStage,
		&s.Status, &s.IsRequired, &s.IsCompleted, &s.DueDate, &s.ExpectedDate,
		&s.CompletedAt, &s.ActualDate, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *stepRepoPG) scanSteps(rows pgx.Rows) ([]*Step, error) {
	defer rows.Close()
	var items []*Step
	for rows.Next() {
		s, err := r.scanStep(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *stepRepoPG) Create(ctx context.Context, s *Step) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO navigation_step (id, patient_id, step_key, name, description, journey_stage,
			status, is_required, is_completed, due_date, expected_date,
			completed_at, actual_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		s.ID, s.PatientID, s.StepKey, s.Name, s.Description, s.JourneyStage,
		s.Status, s.IsRequired, s.IsCompleted, s.DueDate, s.ExpectedDate,
		s.CompletedAt, s.ActualDate, s.Notes)
	return err
}

func (r *stepRepoPG) CreateBatch(ctx context.Context, steps []*Step) error {
	for _, s := range steps {
		if err := r.Create(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *stepRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Step, error) {
	return r.scanStep(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stepCols+` FROM navigation_step WHERE id = $1`, id))
}

func (r *stepRepoPG) Update(ctx context.Context, s *Step) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE navigation_step SET status=$2, is_completed=$3, due_date=$4, expected_date=$5,
			completed_at=$6, actual_date=$7, notes=$8, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Status, s.IsCompleted, s.DueDate, s.ExpectedDate,
		s.CompletedAt, s.ActualDate, s.Notes)
	return err
}

func (r *stepRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM navigation_step WHERE id = $1`, id)
	return err
}

func (r *stepRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM navigation_step WHERE patient_id = $1`, patientID)
	return err
}

func (r *stepRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Step, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stepCols+` FROM navigation_step WHERE patient_id = $1
		ORDER BY `+stageOrderSQL+`, due_date NULLS LAST, created_at`, patientID)
	if err != nil {
		return nil, err
	}
	return r.scanSteps(rows)
}

func (r *stepRepoPG) ListByPatientAndStage(ctx context.Context, patientID uuid.UUID, stage string) ([]*Step, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stepCols+` FROM navigation_step WHERE patient_id = $1 AND journey_stage = $2
		ORDER BY due_date NULLS LAST, created_at`, patientID, stage)
	if err != nil {
		return nil, err
	}
	return r.scanSteps(rows)
}

func (r *stepRepoPG) HasSteps(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM navigation_step WHERE patient_id = $1)`, patientID).Scan(&exists)
	return exists, err
}

func (r *stepRepoPG) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*Step, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stepCols+` FROM navigation_step
		WHERE status IN ('PENDING','IN_PROGRESS') AND is_completed = false AND due_date < $1
		ORDER BY due_date`, now)
	if err != nil {
		return nil, err
	}
	return r.scanSteps(rows)
}

func (r *stepRepoPG) ListOverdueCandidatesForPatient(ctx context.Context, patientID uuid.UUID, now time.Time) ([]*Step, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stepCols+` FROM navigation_step
		WHERE patient_id = $1 AND status IN ('PENDING','IN_PROGRESS') AND is_completed = false AND due_date < $2
		ORDER BY due_date`, patientID, now)
	if err != nil {
		return nil, err
	}
	return r.scanSteps(rows)
}

func (r *stepRepoPG) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_lock(hashtextextended($1::text, 0))`, patientID)
	return err
}

func (r *stepRepoPG) UnlockPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_unlock(hashtextextended($1::text, 0))`, patientID)
	return err
}
