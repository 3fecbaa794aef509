package navigation

import "time"

// Alert severities, mirrored by the alert domain.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// DaysOverdue returns how many whole days the due date lies in the past,
// comparing calendar days (both sides truncated to midnight). Steps due later
// today or in the future return 0.
func DaysOverdue(dueDate, now time.Time) int {
	due := truncateToDay(dueDate)
	today := truncateToDay(now)
	if !due.Before(today) {
		return 0
	}
	return int(today.Sub(due).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SeverityForStep classifies an overdue step. Delays in the diagnosis and
// treatment stages carry prognostic weight, so required steps there escalate
// to CRITICAL once the delay passes criticalOverdueDays.
func SeverityForStep(stage string, isRequired bool, daysOverdue, criticalOverdueDays int) string {
	if stage == StageDiagnosis || stage == StageTreatment {
		if isRequired {
			if daysOverdue > criticalOverdueDays {
				return SeverityCritical
			}
			return SeverityHigh
		}
		return SeverityMedium
	}
	if isRequired {
		return SeverityMedium
	}
	return SeverityLow
}
