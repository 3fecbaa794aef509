package navigation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StepRepository persists navigation steps within the current tenant schema.
type StepRepository interface {
	Create(ctx context.Context, s *Step) error
	CreateBatch(ctx context.Context, steps []*Step) error
	GetByID(ctx context.Context, id uuid.UUID) (*Step, error)
	Update(ctx context.Context, s *Step) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Step, error)
	ListByPatientAndStage(ctx context.Context, patientID uuid.UUID, stage string) ([]*Step, error)
	HasSteps(ctx context.Context, patientID uuid.UUID) (bool, error)

	// ListOverdueCandidates returns open steps whose due date lies before now.
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]*Step, error)
	ListOverdueCandidatesForPatient(ctx context.Context, patientID uuid.UUID, now time.Time) ([]*Step, error)

	// LockPatient serializes step initialization per patient for the duration
	// of the tenant-scoped connection. UnlockPatient releases it.
	LockPatient(ctx context.Context, patientID uuid.UUID) error
	UnlockPatient(ctx context.Context, patientID uuid.UUID) error
}
