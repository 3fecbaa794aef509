package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onconav/onconav/internal/domain/navigation"
	"github.com/onconav/onconav/internal/platform/websocket"
)

var ErrAlertNotFound = errors.New("alert not found")

// PatientChecker verifies a patient exists in the current tenant.
type PatientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// CriticalNotifier delivers out-of-band notifications for critical alerts.
type CriticalNotifier interface {
	NotifyCriticalAlert(ctx context.Context, a *Alert) error
}

type Service struct {
	repo     Repository
	patients PatientChecker
	events   websocket.EventPublisher
	notifier CriticalNotifier
	logger   zerolog.Logger
}

func NewService(repo Repository, patients PatientChecker, events websocket.EventPublisher, notifier CriticalNotifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		events:   events,
		notifier: notifier,
		logger:   logger,
	}
}

// Create records a manually raised alert. Status is always PENDING on entry.
func (s *Service) Create(ctx context.Context, a *Alert) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.Title == "" {
		return fmt.Errorf("title is required")
	}
	if a.Type == "" {
		a.Type = TypeClinical
	}
	if !validTypes[a.Type] {
		return fmt.Errorf("invalid type: %s", a.Type)
	}
	if a.Severity == "" {
		a.Severity = SeverityMedium
	}
	if !validSeverities[a.Severity] {
		return fmt.Errorf("invalid severity: %s", a.Severity)
	}

	ok, err := s.patients.Exists(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("patient lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("patient not found")
	}

	a.Status = StatusPending
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.publishAlertEvent(ctx, "alert.created", a)
	return nil
}

// CreateDelayAlert implements the overdue detector's alert sink. At most one
// open NAVIGATION_DELAY alert exists per step; a second detection of the same
// delay is a no-op.
func (s *Service) CreateDelayAlert(ctx context.Context, in navigation.DelayAlertInput) (bool, error) {
	existing, err := s.repo.FindOpenDelayAlert(ctx, in.PatientID, in.StepID)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	a := &Alert{
		PatientID: in.PatientID,
		Type:      TypeNavigationDelay,
		Severity:  in.Severity,
		Status:    StatusPending,
		Title:     in.Title,
		Message:   in.Message,
		Context: map[string]interface{}{
			"stepId":       in.StepID.String(),
			"stepKey":      in.StepKey,
			"journeyStage": in.JourneyStage,
			"dueDate":      in.DueDate.Format(time.RFC3339),
			"daysOverdue":  in.DaysOverdue,
		},
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return false, err
	}

	s.publishAlertEvent(ctx, "alert.created", a)
	if a.Severity == SeverityCritical && s.notifier != nil {
		if err := s.notifier.NotifyCriticalAlert(ctx, a); err != nil {
			s.logger.Error().Err(err).Str("alert_id", a.ID.String()).Msg("critical alert notification failed")
		}
	}
	return true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrAlertNotFound
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Alert, int, error) {
	if filter.Status != "" && !validStatuses[filter.Status] {
		return nil, 0, fmt.Errorf("invalid status: %s", filter.Status)
	}
	if filter.Severity != "" && !validSeverities[filter.Severity] {
		return nil, 0, fmt.Errorf("invalid severity: %s", filter.Severity)
	}
	return s.repo.List(ctx, filter, limit, offset)
}

// Acknowledge marks a pending alert as seen by a navigator.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, by string) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrAlertNotFound
	}
	if a.Status != StatusPending {
		return nil, fmt.Errorf("only pending alerts can be acknowledged")
	}
	now := time.Now()
	a.Status = StatusAcknowledged
	a.AcknowledgedAt = &now
	if by != "" {
		a.AcknowledgedBy = &by
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.publishAlertEvent(ctx, "alert.acknowledged", a)
	return a, nil
}

// Resolve closes an open alert.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, by string) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrAlertNotFound
	}
	if !a.IsOpen() {
		return nil, fmt.Errorf("alert is already resolved")
	}
	now := time.Now()
	a.Status = StatusResolved
	a.ResolvedAt = &now
	if by != "" {
		a.ResolvedBy = &by
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.publishAlertEvent(ctx, "alert.resolved", a)
	return a, nil
}

func (s *Service) publishAlertEvent(ctx context.Context, eventType string, a *Alert) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(a)
	if err != nil {
		s.logger.Error().Err(err).Msg("alert event marshal failed")
		return
	}

	event := websocket.Event{
		Type:         eventType,
		Topic:        "alerts",
		ResourceType: "Alert",
		ResourceID:   a.ID.String(),
		Timestamp:    time.Now(),
		Data:         data,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error().Err(err).Msg("alert event publish failed")
	}

	if a.Severity == SeverityCritical && eventType == "alert.created" {
		event.Topic = "alerts:critical"
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Error().Err(err).Msg("critical alert event publish failed")
		}
	}

	if count, err := s.repo.CountOpen(ctx); err == nil {
		countData, _ := json.Marshal(map[string]int{"count": count})
		_ = s.events.Publish(ctx, websocket.Event{
			Type:      "alerts.open_count",
			Topic:     "alerts",
			Timestamp: time.Now(),
			Data:      countData,
		})
	}
}
