package analytics

import (
	"time"

	"github.com/google/uuid"
)

// StageMetrics aggregates step progress for one journey stage.
type StageMetrics struct {
	Stage          string   `json:"stage"`
	PatientsCount  int      `json:"patients_count"`
	CompletionRate int      `json:"completion_rate"`
	AverageTimeDays *int    `json:"average_time_days"`
	TotalSteps     int      `json:"total_steps"`
	CompletedSteps int      `json:"completed_steps"`
	PendingSteps   int      `json:"pending_steps"`
	OverdueSteps   int      `json:"overdue_steps"`
}

// Bottleneck flags a stage where patients accumulate or stall.
type Bottleneck struct {
	Stage           string `json:"stage"`
	StageLabel      string `json:"stage_label"`
	PatientsCount   int    `json:"patients_count"`
	Percentage      int    `json:"percentage"`
	AverageTimeDays *int   `json:"average_time_days"`
	Reason          string `json:"reason"`
}

// NavigationMetrics is the navigation dashboard payload.
type NavigationMetrics struct {
	OverdueStepsCount         int             `json:"overdue_steps_count"`
	CriticalOverdueStepsCount int             `json:"critical_overdue_steps_count"`
	PatientsByStage           map[string]int  `json:"patients_by_stage"`
	StepsDueSoonCount         int             `json:"steps_due_soon_count"`
	OverallCompletionRate     int             `json:"overall_completion_rate"`
	StageMetrics              []StageMetrics  `json:"stage_metrics"`
	Bottlenecks               []Bottleneck    `json:"bottlenecks"`
	AverageTimePerStage       map[string]*int `json:"average_time_per_stage"`
}

// CriticalStepDetail is the worst overdue required step of a patient.
type CriticalStepDetail struct {
	ID              uuid.UUID  `json:"id"`
	StepName        string     `json:"step_name"`
	StepDescription *string    `json:"step_description"`
	JourneyStage    string     `json:"journey_stage"`
	Status          string     `json:"status"`
	IsRequired      bool       `json:"is_required"`
	DueDate         *time.Time `json:"due_date"`
	DaysOverdue     *int       `json:"days_overdue"`
	ExpectedDate    *time.Time `json:"expected_date"`
}

// PatientWithCriticalStep pairs a patient with their worst overdue step and
// overall pathway progress.
type PatientWithCriticalStep struct {
	PatientID             uuid.UUID          `json:"patient_id"`
	PatientName           string             `json:"patient_name"`
	PatientAge            *int               `json:"patient_age"`
	CancerType            *string            `json:"cancer_type"`
	CurrentStage          string             `json:"current_stage"`
	PriorityScore         int                `json:"priority_score"`
	PriorityCategory      string             `json:"priority_category"`
	CriticalStep          CriticalStepDetail `json:"critical_step"`
	TotalSteps            int                `json:"total_steps"`
	CompletedSteps        int                `json:"completed_steps"`
	CompletionRate        int                `json:"completion_rate"`
	NavigationAlertsCount int                `json:"navigation_alerts_count"`
}

// TimelineBenchmark is a reference interval for one cancer type and metric.
type TimelineBenchmark struct {
	CancerType     string `json:"cancer_type"`
	Metric         string `json:"metric"`
	IdealDays      int    `json:"ideal_days"`
	AcceptableDays int    `json:"acceptable_days"`
	CriticalDays   int    `json:"critical_days"`
}

// Timeline statuses.
const (
	TimelineIdeal      = "IDEAL"
	TimelineAcceptable = "ACCEPTABLE"
	TimelineCritical   = "CRITICAL"
	TimelineNoData     = "NO_DATA"
)

// TimelineMetric compares the tenant's average against a benchmark.
type TimelineMetric struct {
	CancerType         string            `json:"cancer_type"`
	Metric             string            `json:"metric"`
	MetricLabel        string            `json:"metric_label"`
	CurrentAverageDays *int              `json:"current_average_days"`
	Benchmark          TimelineBenchmark `json:"benchmark"`
	Status             string            `json:"status"`
	PatientsCount      int               `json:"patients_count"`
	PatientsAtRisk     int               `json:"patients_at_risk"`
}

// CriticalTimelines is the timeline benchmark report.
type CriticalTimelines struct {
	Metrics []TimelineMetric       `json:"metrics"`
	Summary CriticalTimelinesSummary `json:"summary"`
}

type CriticalTimelinesSummary struct {
	TotalMetrics            int `json:"total_metrics"`
	MetricsInIdealRange     int `json:"metrics_in_ideal_range"`
	MetricsInAcceptableRange int `json:"metrics_in_acceptable_range"`
	MetricsInCriticalRange  int `json:"metrics_in_critical_range"`
	MetricsWithNoData       int `json:"metrics_with_no_data"`
}

// DistributionItem is one slice of a dashboard distribution.
type DistributionItem struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DashboardMetrics is the tenant-wide summary payload.
type DashboardMetrics struct {
	TotalActivePatients        int                `json:"total_active_patients"`
	CriticalPatientsCount      int                `json:"critical_patients_count"`
	TotalPendingAlerts         int                `json:"total_pending_alerts"`
	CriticalAlertsCount        int                `json:"critical_alerts_count"`
	HighAlertsCount            int                `json:"high_alerts_count"`
	MediumAlertsCount          int                `json:"medium_alerts_count"`
	LowAlertsCount             int                `json:"low_alerts_count"`
	ResolvedTodayCount         int                `json:"resolved_today_count"`
	AverageResponseTimeMinutes *int               `json:"average_response_time_minutes"`
	PriorityDistribution       []DistributionItem `json:"priority_distribution"`
	CancerTypeDistribution     []DistributionItem `json:"cancer_type_distribution"`
	JourneyStageDistribution   []DistributionItem `json:"journey_stage_distribution"`
	StatusDistribution         []DistributionItem `json:"status_distribution"`
}

// Row types returned by the aggregate queries.

type StageAggregateRow struct {
	Stage          string
	PatientsCount  int
	TotalSteps     int
	CompletedSteps int
	PendingSteps   int
	OverdueSteps   int
}

type StageDurationRow struct {
	PatientID       uuid.UUID
	Stage           string
	EarliestCreated time.Time
	LatestCompleted *time.Time
	CompletedCount  int
}

type CriticalStepRow struct {
	PatientID        uuid.UUID
	PatientName      string
	PatientAge       *int
	CancerType       *string
	CurrentStage     string
	PriorityScore    int
	PriorityCategory string

	StepID          uuid.UUID
	StepName        string
	StepDescription *string
	JourneyStage    string
	Status          string
	IsRequired      bool
	DueDate         *time.Time
	ExpectedDate    *time.Time
}

type StepCountRow struct {
	PatientID      uuid.UUID
	TotalSteps     int
	CompletedSteps int
}

type AlertCountRow struct {
	PatientID uuid.UUID
	Count     int
}

type TimelineStepRow struct {
	PatientID    uuid.UUID
	CancerType   *string
	StepKey      string
	JourneyStage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
	IsCompleted  bool
}

type SeverityCountRow struct {
	Severity string
	Count    int
}

type LabelCountRow struct {
	Label string
	Count int
}
