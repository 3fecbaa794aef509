package patient

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

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, name, age, cancer_type, is_palliative_care, current_stage,
	status, priority_score, priority_category, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.CancerType, &p.IsPalliativeCare, &p.CurrentStage,
		&p.Status, &p.PriorityScore, &p.PriorityCategory, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, name, age, cancer_type, is_palliative_care, current_stage,
			status, priority_score, priority_category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Name, p.Age, p.CancerType, p.IsPalliativeCare, p.CurrentStage,
		p.Status, p.PriorityScore, p.PriorityCategory)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET name=$2, age=$3, cancer_type=$4, is_palliative_care=$5,
			current_stage=$6, status=$7, priority_score=$8, priority_category=$9, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Age, p.CancerType, p.IsPalliativeCare,
		p.CurrentStage, p.Status, p.PriorityScore, p.PriorityCategory)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(col string, val interface{}) {
		n++
		where += fmt.Sprintf(" AND %s = $%d", col, n)
		args = append(args, val)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	if filter.Stage != "" {
		add("current_stage", filter.Stage)
	}
	if filter.CancerType != "" {
		add("cancer_type", filter.CancerType)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM patient %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		patientCols, where, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) ListNavigable(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE status IN ('ACTIVE','IN_TREATMENT','FOLLOW_UP')
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
