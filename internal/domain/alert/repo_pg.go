package alert

import (
	"context"
	"fmt"

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

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &alertRepoPG{pool: pool}
}

func (r *alertRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const alertCols = `id, patient_id, type, severity, status, title, message, context,
	created_at, acknowledged_at, acknowledged_by, resolved_at, resolved_by`

// severityOrderSQL lists most urgent alerts first.
const severityOrderSQL = `CASE severity
	WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END`

func (r *alertRepoPG) scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.PatientID, &a.Type, &a.Severity, &a.Status, &a.Title, &a.Message, &a.Context,
		&a.CreatedAt, &a.AcknowledgedAt, &a.AcknowledgedBy, &a.ResolvedAt, &a.ResolvedBy)
	return &a, err
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO alert (id, patient_id, type, severity, status, title, message, context)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.PatientID, a.Type, a.Severity, a.Status, a.Title, a.Message, a.Context)
	return err
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return r.scanAlert(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM alert WHERE id = $1`, id))
}

func (r *alertRepoPG) Update(ctx context.Context, a *Alert) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE alert SET status=$2, acknowledged_at=$3, acknowledged_by=$4, resolved_at=$5, resolved_by=$6
		WHERE id = $1`,
		a.ID, a.Status, a.AcknowledgedAt, a.AcknowledgedBy, a.ResolvedAt, a.ResolvedBy)
	return err
}

func (r *alertRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Alert, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(clause string, val interface{}) {
		n++
		where += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, val)
	}
	if filter.PatientID != nil {
		add("patient_id", *filter.PatientID)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	if filter.Severity != "" {
		add("severity", filter.Severity)
	}
	if filter.Type != "" {
		add("type", filter.Type)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM alert `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM alert %s ORDER BY %s, created_at DESC LIMIT $%d OFFSET $%d`,
		alertCols, where, severityOrderSQL, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Alert
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *alertRepoPG) FindOpenDelayAlert(ctx context.Context, patientID uuid.UUID, stepID uuid.UUID) (*Alert, error) {
	a, err := r.scanAlert(r.conn(ctx).QueryRow(ctx, `
		SELECT `+alertCols+` FROM alert
		WHERE patient_id = $1 AND type = 'NAVIGATION_DELAY'
		  AND status IN ('PENDING','ACKNOWLEDGED')
		  AND context->>'stepId' = $2
		LIMIT 1`, patientID, stepID.String()))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *alertRepoPG) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM alert WHERE status IN ('PENDING','ACKNOWLEDGED')`).Scan(&count)
	return count, err
}

func (r *alertRepoPG) CountOpenDelayByPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM alert
		WHERE patient_id = $1 AND type = 'NAVIGATION_DELAY' AND status IN ('PENDING','ACKNOWLEDGED')`,
		patientID).Scan(&count)
	return count, err
}
