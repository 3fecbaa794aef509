package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patients within the current tenant schema.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error)
	ListNavigable(ctx context.Context) ([]*Patient, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
