package navigation

import (
	"time"

	"github.com/google/uuid"
)

// Journey stages, in care pathway order.
const (
	StageScreening  = "SCREENING"
	StageNavigation = "NAVIGATION"
	StageDiagnosis  = "DIAGNOSIS"
	StageTreatment  = "TREATMENT"
	StageFollowUp   = "FOLLOW_UP"
)

// Step statuses.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusOverdue    = "OVERDUE"
)

// StageOrder is the canonical ordering of journey stages.
var StageOrder = []string{StageScreening, StageNavigation, StageDiagnosis, StageTreatment, StageFollowUp}

// Step maps to the navigation_step table. A step is one concrete action in a
// patient's care pathway (an exam, a procedure, a consultation) with a due
// date derived from its template offset.
type Step struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	StepKey      string     `db:"step_key" json:"step_key"`
	Name         string     `db:"name" json:"name"`
	Description  *string    `db:"description" json:"description,omitempty"`
	JourneyStage string     `db:"journey_stage" json:"journey_stage"`
	Status       string     `db:"status" json:"status"`
	IsRequired   bool       `db:"is_required" json:"is_required"`
	IsCompleted  bool       `db:"is_completed" json:"is_completed"`
	DueDate      *time.Time `db:"due_date" json:"due_date,omitempty"`
	ExpectedDate *time.Time `db:"expected_date" json:"expected_date,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ActualDate   *time.Time `db:"actual_date" json:"actual_date,omitempty"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsOpen reports whether the step still counts toward overdue detection.
func (s *Step) IsOpen() bool {
	return !s.IsCompleted && (s.Status == StatusPending || s.Status == StatusInProgress)
}

// StepTemplate describes one entry of the pathway catalog. DueOffsetDays is
// counted from the day the patient's steps are initialized.
type StepTemplate struct {
	StepKey       string `json:"step_key"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	JourneyStage  string `json:"journey_stage"`
	IsRequired    bool   `json:"is_required"`
	DueOffsetDays int    `json:"due_offset_days"`
	Order         int    `json:"order"`
}

// UpdateStepInput carries a partial step update. Nil fields are left untouched.
type UpdateStepInput struct {
	Status       *string    `json:"status,omitempty"`
	IsCompleted  *bool      `json:"is_completed,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ActualDate   *time.Time `json:"actual_date,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ExpectedDate *time.Time `json:"expected_date,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

// InitializeAllResult summarizes a bulk step initialization run. Errors holds
// one message per failed patient so callers can report which ones need a rerun.
type InitializeAllResult struct {
	Initialized int      `json:"initialized"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
}

// SweepResult summarizes one overdue detection pass.
type SweepResult struct {
	Checked       int `json:"checked"`
	MarkedOverdue int `json:"marked_overdue"`
	AlertsCreated int `json:"alerts_created"`
}

// ValidStages and ValidStatuses guard enum fields on writes.
var ValidStages = map[string]bool{
	StageScreening: true, StageNavigation: true, StageDiagnosis: true,
	StageTreatment: true, StageFollowUp: true,
}

var ValidStatuses = map[string]bool{
	StatusPending: true, StatusInProgress: true, StatusCompleted: true, StatusOverdue: true,
}
