package analytics

import (
	"context"
	"time"
)

// Repository runs the aggregate queries behind the analytics reports. All
// heavy lifting happens in SQL; the service only assembles payloads.
type Repository interface {
	StageAggregates(ctx context.Context) ([]StageAggregateRow, error)
	StageDurations(ctx context.Context) ([]StageDurationRow, error)
	CountOverdue(ctx context.Context) (int, error)
	CountCriticalOverdue(ctx context.Context, requiredCutoff time.Time) (int, error)
	CountStepsDueSoon(ctx context.Context, from, to time.Time) (int, error)
	PatientsByStage(ctx context.Context) (map[string]int, error)

	ListRequiredOverdueSteps(ctx context.Context) ([]CriticalStepRow, error)
	ListStepCounts(ctx context.Context) ([]StepCountRow, error)
	ListOpenDelayAlertCounts(ctx context.Context) ([]AlertCountRow, error)

	ListTimelineSteps(ctx context.Context) ([]TimelineStepRow, error)

	CountActivePatients(ctx context.Context) (int, error)
	CountCriticalPatients(ctx context.Context, minPriorityScore int) (int, error)
	OpenAlertCountsBySeverity(ctx context.Context) ([]SeverityCountRow, error)
	CountAlertsResolvedSince(ctx context.Context, since time.Time) (int, error)
	AverageAlertResponseMinutes(ctx context.Context) (*int, error)
	PriorityDistribution(ctx context.Context) ([]LabelCountRow, error)
	CancerTypeDistribution(ctx context.Context) ([]LabelCountRow, error)
	JourneyStageDistribution(ctx context.Context) ([]LabelCountRow, error)
	StatusDistribution(ctx context.Context) ([]LabelCountRow, error)
}
