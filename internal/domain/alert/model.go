package alert

import (
	"time"

	"github.com/google/uuid"
)

// Alert types. NAVIGATION_DELAY alerts are created by the overdue detector;
// the remaining types cover manually raised alerts.
const (
	TypeNavigationDelay = "NAVIGATION_DELAY"
	TypeClinical        = "CLINICAL"
	TypeAdministrative  = "ADMINISTRATIVE"
)

// Severities, most urgent first in listings.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Statuses. PENDING and ACKNOWLEDGED count as open.
const (
	StatusPending      = "PENDING"
	StatusAcknowledged = "ACKNOWLEDGED"
	StatusResolved     = "RESOLVED"
)

// Alert maps to the alert table. Context carries type-specific detail; for
// NAVIGATION_DELAY it holds the step identity and delay figures.
type Alert struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	PatientID      uuid.UUID              `db:"patient_id" json:"patient_id"`
	Type           string                 `db:"type" json:"type"`
	Severity       string                 `db:"severity" json:"severity"`
	Status         string                 `db:"status" json:"status"`
	Title          string                 `db:"title" json:"title"`
	Message        string                 `db:"message" json:"message"`
	Context        map[string]interface{} `db:"context" json:"context,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	AcknowledgedAt *time.Time             `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string                `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time             `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     *string                `db:"resolved_by" json:"resolved_by,omitempty"`
}

// IsOpen reports whether the alert still needs attention.
func (a *Alert) IsOpen() bool {
	return a.Status == StatusPending || a.Status == StatusAcknowledged
}

// StepID extracts the step identity from a NAVIGATION_DELAY context.
func (a *Alert) StepID() string {
	if a.Context == nil {
		return ""
	}
	id, _ := a.Context["stepId"].(string)
	return id
}

// ListFilter narrows alert listings.
type ListFilter struct {
	PatientID *uuid.UUID
	Status    string
	Severity  string
	Type      string
}

var validSeverities = map[string]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
}

var validStatuses = map[string]bool{
	StatusPending: true, StatusAcknowledged: true, StatusResolved: true,
}

var validTypes = map[string]bool{
	TypeNavigationDelay: true, TypeClinical: true, TypeAdministrative: true,
}
