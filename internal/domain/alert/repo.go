package alert

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists alerts within the current tenant schema.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	Update(ctx context.Context, a *Alert) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Alert, int, error)

	// FindOpenDelayAlert returns the open NAVIGATION_DELAY alert for a step,
	// or nil when none exists.
	FindOpenDelayAlert(ctx context.Context, patientID uuid.UUID, stepID uuid.UUID) (*Alert, error)
	CountOpen(ctx context.Context) (int, error)
	CountOpenDelayByPatient(ctx context.Context, patientID uuid.UUID) (int, error)
}
