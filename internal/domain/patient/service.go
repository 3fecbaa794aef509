package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.CurrentStage == "" {
		p.CurrentStage = "SCREENING"
	}
	if !validStages[p.CurrentStage] {
		return fmt.Errorf("invalid current_stage: %s", p.CurrentStage)
	}
	if p.PriorityCategory == "" {
		p.PriorityCategory = "LOW"
	}
	if !validPriorityCategories[p.PriorityCategory] {
		return fmt.Errorf("invalid priority_category: %s", p.PriorityCategory)
	}
	if p.PriorityScore < 0 || p.PriorityScore > 100 {
		return fmt.Errorf("priority_score must be between 0 and 100")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// Update applies a full patient update, revalidating enum fields.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return ErrNotFound
	}
	if p.Name == "" {
		p.Name = existing.Name
	}
	if p.Status == "" {
		p.Status = existing.Status
	}
	if p.CurrentStage == "" {
		p.CurrentStage = existing.CurrentStage
	}
	if p.PriorityCategory == "" {
		p.PriorityCategory = existing.PriorityCategory
	}
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if !validStages[p.CurrentStage] {
		return fmt.Errorf("invalid current_stage: %s", p.CurrentStage)
	}
	if !validPriorityCategories[p.PriorityCategory] {
		return fmt.Errorf("invalid priority_category: %s", p.PriorityCategory)
	}
	if p.PriorityScore < 0 || p.PriorityScore > 100 {
		return fmt.Errorf("priority_score must be between 0 and 100")
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	if filter.Status != "" && !validStatuses[filter.Status] {
		return nil, 0, fmt.Errorf("invalid status: %s", filter.Status)
	}
	if filter.Stage != "" && !validStages[filter.Stage] {
		return nil, 0, fmt.Errorf("invalid stage: %s", filter.Stage)
	}
	return s.repo.List(ctx, filter, limit, offset)
}
