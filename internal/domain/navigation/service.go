package navigation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrStepNotFound    = errors.New("navigation step not found")
)

// PatientInfo is the slice of patient state the engine needs.
type PatientInfo struct {
	ID               uuid.UUID
	CancerType       *string
	IsPalliativeCare bool
	Status           string
}

// PatientSource resolves patients within the current tenant. Find returns
// ErrPatientNotFound when the patient does not exist in the tenant.
type PatientSource interface {
	Find(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
	ListNavigable(ctx context.Context) ([]*PatientInfo, error)
}

// DelayAlertInput describes an overdue step for alert creation.
type DelayAlertInput struct {
	PatientID    uuid.UUID
	StepID       uuid.UUID
	StepKey      string
	JourneyStage string
	DueDate      time.Time
	DaysOverdue  int
	Severity     string
	Title        string
	Message      string
}

// Alerter creates navigation-delay alerts. Implementations deduplicate: the
// returned bool is false when an open alert for the same step already exists.
type Alerter interface {
	CreateDelayAlert(ctx context.Context, in DelayAlertInput) (bool, error)
}

type Service struct {
	steps               StepRepository
	patients            PatientSource
	alerts              Alerter
	logger              zerolog.Logger
	criticalOverdueDays int
}

func NewService(steps StepRepository, patients PatientSource, alerts Alerter, logger zerolog.Logger, criticalOverdueDays int) *Service {
	return &Service{
		steps:               steps,
		patients:            patients,
		alerts:              alerts,
		logger:              logger,
		criticalOverdueDays: criticalOverdueDays,
	}
}

// InitializeSteps rebuilds a patient's full pathway from the catalog. Existing
// steps are replaced; the run is serialized per patient so concurrent calls
// cannot interleave delete and insert phases.
func (s *Service) InitializeSteps(ctx context.Context, patientID uuid.UUID) ([]*Step, error) {
	p, err := s.patients.Find(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if err := s.steps.LockPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("lock patient: %w", err)
	}
	defer s.steps.UnlockPatient(ctx, patientID)

	cancerType := ""
	if p.CancerType != nil {
		cancerType = *p.CancerType
	}
	templates := TemplatesFor(cancerType, p.IsPalliativeCare)

	if err := s.steps.DeleteByPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("delete existing steps: %w", err)
	}

	now := time.Now()
	today := truncateToDay(now)
	steps := make([]*Step, 0, len(templates))
	for _, t := range templates {
		due := today.AddDate(0, 0, t.DueOffsetDays)
		desc := t.Description
		steps = append(steps, &Step{
			PatientID:    patientID,
			StepKey:      t.StepKey,
			Name:         t.Name,
			Description:  &desc,
			JourneyStage: t.JourneyStage,
			Status:       StatusPending,
			IsRequired:   t.IsRequired,
			DueDate:      &due,
		})
	}

	if err := s.steps.CreateBatch(ctx, steps); err != nil {
		return nil, fmt.Errorf("create steps: %w", err)
	}

	// Templates with a due offset already in the past (re-initialization of a
	// long-running patient) go straight to OVERDUE.
	for _, st := range steps {
		if st.DueDate != nil && st.DueDate.Before(now) {
			if _, err := s.markOverdueAndAlert(ctx, st, now); err != nil {
				s.logger.Error().Err(err).Str("step_id", st.ID.String()).Msg("overdue check on init failed")
			}
		}
	}

	s.logger.Info().
		Str("patient_id", patientID.String()).
		Int("steps", len(steps)).
		Bool("palliative", p.IsPalliativeCare).
		Msg("navigation steps initialized")

	return steps, nil
}

// InitializeAllPatientsSteps initializes every navigable patient that has no
// steps yet. Per-patient failures are counted, not propagated.
func (s *Service) InitializeAllPatientsSteps(ctx context.Context) (*InitializeAllResult, error) {
	patients, err := s.patients.ListNavigable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	result := &InitializeAllResult{}
	for _, p := range patients {
		has, err := s.steps.HasSteps(ctx, p.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("step lookup failed")
			result.Errors = append(result.Errors, fmt.Sprintf("patient %s: %v", p.ID, err))
			continue
		}
		if has {
			result.Skipped++
			continue
		}
		if _, err := s.InitializeSteps(ctx, p.ID); err != nil {
			s.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("step initialization failed")
			result.Errors = append(result.Errors, fmt.Sprintf("patient %s: %v", p.ID, err))
			continue
		}
		result.Initialized++
	}

	s.logger.Info().
		Int("initialized", result.Initialized).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("bulk step initialization finished")

	return result, nil
}

// CreateMissingStepsForStage adds catalog steps of one stage that the patient
// lacks, leaving existing steps untouched.
func (s *Service) CreateMissingStepsForStage(ctx context.Context, patientID uuid.UUID, stage string) ([]*Step, error) {
	if !ValidStages[stage] {
		return nil, fmt.Errorf("invalid journey_stage: %s", stage)
	}
	p, err := s.patients.Find(ctx, patientID)
	if err != nil {
		return nil, err
	}

	existing, err := s.steps.ListByPatientAndStage(ctx, patientID, stage)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, st := range existing {
		present[st.StepKey] = true
	}

	cancerType := ""
	if p.CancerType != nil {
		cancerType = *p.CancerType
	}

	today := truncateToDay(time.Now())
	var created []*Step
	for _, t := range TemplatesForStage(cancerType, p.IsPalliativeCare, stage) {
		if present[t.StepKey] {
			continue
		}
		due := today.AddDate(0, 0, t.DueOffsetDays)
		desc := t.Description
		st := &Step{
			PatientID:    patientID,
			StepKey:      t.StepKey,
			Name:         t.Name,
			Description:  &desc,
			JourneyStage: t.JourneyStage,
			Status:       StatusPending,
			IsRequired:   t.IsRequired,
			DueDate:      &due,
		}
		if err := s.steps.Create(ctx, st); err != nil {
			return nil, fmt.Errorf("create step %s: %w", t.StepKey, err)
		}
		created = append(created, st)
	}
	return created, nil
}

func (s *Service) GetPatientSteps(ctx context.Context, patientID uuid.UUID) ([]*Step, error) {
	if _, err := s.patients.Find(ctx, patientID); err != nil {
		return nil, err
	}
	return s.steps.ListByPatient(ctx, patientID)
}

func (s *Service) GetStepsByJourneyStage(ctx context.Context, patientID uuid.UUID, stage string) ([]*Step, error) {
	if !ValidStages[stage] {
		return nil, fmt.Errorf("invalid journey_stage: %s", stage)
	}
	if _, err := s.patients.Find(ctx, patientID); err != nil {
		return nil, err
	}
	return s.steps.ListByPatientAndStage(ctx, patientID, stage)
}

func (s *Service) GetStep(ctx context.Context, id uuid.UUID) (*Step, error) {
	st, err := s.steps.GetByID(ctx, id)
	if err != nil {
		return nil, ErrStepNotFound
	}
	return st, nil
}

// CreateStep records an ad-hoc step outside the catalog.
func (s *Service) CreateStep(ctx context.Context, st *Step) error {
	if st.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if st.Name == "" {
		return fmt.Errorf("name is required")
	}
	if st.StepKey == "" {
		return fmt.Errorf("step_key is required")
	}
	if !ValidStages[st.JourneyStage] {
		return fmt.Errorf("invalid journey_stage: %s", st.JourneyStage)
	}
	if st.Status == "" {
		st.Status = StatusPending
	}
	if !ValidStatuses[st.Status] {
		return fmt.Errorf("invalid status: %s", st.Status)
	}
	if _, err := s.patients.Find(ctx, st.PatientID); err != nil {
		return err
	}
	if st.IsCompleted || st.Status == StatusCompleted {
		now := time.Now()
		st.IsCompleted = true
		st.Status = StatusCompleted
		if st.CompletedAt == nil {
			st.CompletedAt = &now
		}
		if st.ActualDate == nil {
			st.ActualDate = st.CompletedAt
		}
	}
	return s.steps.Create(ctx, st)
}

// UpdateStep applies a partial update, keeping the completion invariant:
// is_completed is true exactly when status is COMPLETED. An OVERDUE step only
// leaves OVERDUE through completion.
func (s *Service) UpdateStep(ctx context.Context, id uuid.UUID, in UpdateStepInput) (*Step, error) {
	st, err := s.steps.GetByID(ctx, id)
	if err != nil {
		return nil, ErrStepNotFound
	}

	now := time.Now()
	wasOverdue := st.Status == StatusOverdue

	if in.Status != nil {
		if !ValidStatuses[*in.Status] {
			return nil, fmt.Errorf("invalid status: %s", *in.Status)
		}
		if wasOverdue && (*in.Status == StatusPending || *in.Status == StatusInProgress) {
			return nil, fmt.Errorf("an overdue step can only transition to COMPLETED")
		}
		st.Status = *in.Status
	}
	if in.DueDate != nil {
		st.DueDate = in.DueDate
	}
	if in.ExpectedDate != nil {
		st.ExpectedDate = in.ExpectedDate
	}
	if in.Notes != nil {
		st.Notes = in.Notes
	}

	completed := st.Status == StatusCompleted
	if in.IsCompleted != nil {
		completed = *in.IsCompleted
	}

	if completed {
		st.IsCompleted = true
		st.Status = StatusCompleted
		if in.CompletedAt != nil {
			st.CompletedAt = in.CompletedAt
		} else if st.CompletedAt == nil {
			st.CompletedAt = &now
		}
		if in.ActualDate != nil {
			st.ActualDate = in.ActualDate
		} else if st.ActualDate == nil {
			st.ActualDate = st.CompletedAt
		}
	} else {
		st.IsCompleted = false
		st.CompletedAt = nil
		st.ActualDate = nil
		if st.Status == StatusCompleted {
			st.Status = StatusPending
		}
		if wasOverdue && in.Status == nil && in.IsCompleted != nil {
			// Un-completing a step that had been overdue puts it back where
			// the detector left it.
			st.Status = StatusOverdue
		}
	}

	if err := s.steps.Update(ctx, st); err != nil {
		return nil, err
	}

	if st.IsOpen() && st.DueDate != nil && st.DueDate.Before(now) {
		if _, err := s.markOverdueAndAlert(ctx, st, now); err != nil {
			s.logger.Error().Err(err).Str("step_id", st.ID.String()).Msg("overdue check after update failed")
		}
	}

	return st, nil
}

func (s *Service) DeleteStep(ctx context.Context, id uuid.UUID) error {
	if _, err := s.steps.GetByID(ctx, id); err != nil {
		return ErrStepNotFound
	}
	return s.steps.Delete(ctx, id)
}

// CheckOverdueSteps is one detector pass over the current tenant. A failing
// step is logged and skipped so a single bad row cannot stall the sweep.
func (s *Service) CheckOverdueSteps(ctx context.Context) (*SweepResult, error) {
	now := time.Now()
	candidates, err := s.steps.ListOverdueCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}
	return s.sweep(ctx, candidates, now), nil
}

// CheckOverdueStepsForPatient runs the detector for a single patient.
func (s *Service) CheckOverdueStepsForPatient(ctx context.Context, patientID uuid.UUID) (*SweepResult, error) {
	if _, err := s.patients.Find(ctx, patientID); err != nil {
		return nil, err
	}
	now := time.Now()
	candidates, err := s.steps.ListOverdueCandidatesForPatient(ctx, patientID, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}
	return s.sweep(ctx, candidates, now), nil
}

func (s *Service) sweep(ctx context.Context, candidates []*Step, now time.Time) *SweepResult {
	result := &SweepResult{Checked: len(candidates)}
	for _, st := range candidates {
		created, err := s.markOverdueAndAlert(ctx, st, now)
		if err != nil {
			s.logger.Error().Err(err).Str("step_id", st.ID.String()).Msg("overdue marking failed")
			continue
		}
		result.MarkedOverdue++
		if created {
			result.AlertsCreated++
		}
	}
	return result
}

func (s *Service) markOverdueAndAlert(ctx context.Context, st *Step, now time.Time) (bool, error) {
	if st.Status != StatusOverdue {
		st.Status = StatusOverdue
		if err := s.steps.Update(ctx, st); err != nil {
			return false, fmt.Errorf("mark overdue: %w", err)
		}
	}

	days := DaysOverdue(*st.DueDate, now)
	severity := SeverityForStep(st.JourneyStage, st.IsRequired, days, s.criticalOverdueDays)

	desc := ""
	if st.Description != nil {
		desc = *st.Description
	}
	message := fmt.Sprintf("Step overdue: %s - %s (%d day(s) overdue)", st.Name, desc, days)

	created, err := s.alerts.CreateDelayAlert(ctx, DelayAlertInput{
		PatientID:    st.PatientID,
		StepID:       st.ID,
		StepKey:      st.StepKey,
		JourneyStage: st.JourneyStage,
		DueDate:      *st.DueDate,
		DaysOverdue:  days,
		Severity:     severity,
		Title:        "Navigation step overdue",
		Message:      message,
	})
	if err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	return created, nil
}

// Templates exposes the catalog for a cancer type.
func (s *Service) Templates(cancerType string, palliative bool) []StepTemplate {
	return TemplatesFor(cancerType, palliative)
}
