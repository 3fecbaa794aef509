package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/onconav/onconav/internal/domain/navigation"
)

// NavigationSource adapts the patient repository to the navigation engine's
// patient interface.
type NavigationSource struct {
	repo Repository
}

func NewNavigationSource(repo Repository) *NavigationSource {
	return &NavigationSource{repo: repo}
}

func (s *NavigationSource) Find(ctx context.Context, id uuid.UUID) (*navigation.PatientInfo, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, navigation.ErrPatientNotFound
	}
	return toPatientInfo(p), nil
}

func (s *NavigationSource) ListNavigable(ctx context.Context) ([]*navigation.PatientInfo, error) {
	patients, err := s.repo.ListNavigable(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]*navigation.PatientInfo, 0, len(patients))
	for _, p := range patients {
		infos = append(infos, toPatientInfo(p))
	}
	return infos, nil
}

func toPatientInfo(p *Patient) *navigation.PatientInfo {
	return &navigation.PatientInfo{
		ID:               p.ID,
		CancerType:       p.CancerType,
		IsPalliativeCare: p.IsPalliativeCare,
		Status:           p.Status,
	}
}
