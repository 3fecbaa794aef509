package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onconav/onconav/internal/domain/navigation"
)

// mockRepo returns canned rows. Individual queries can be failed to exercise
// partial degradation.
type mockRepo struct {
	aggregates    []StageAggregateRow
	durations     []StageDurationRow
	overdue       int
	critOverdue   int
	dueSoon       int
	byStage       map[string]int
	criticalRows  []CriticalStepRow
	stepCounts    []StepCountRow
	alertCounts   []AlertCountRow
	timelineRows  []TimelineStepRow
	activeCount   int
	critPatients  int
	severities    []SeverityCountRow
	resolvedToday int
	avgResponse   *int
	priorities    []LabelCountRow
	cancerTypes   []LabelCountRow
	stages        []LabelCountRow
	statuses      []LabelCountRow

	failSections map[string]bool
}

func (m *mockRepo) fail(section string) error {
	if m.failSections[section] {
		return errors.New(section + " query failed")
	}
	return nil
}

func (m *mockRepo) StageAggregates(context.Context) ([]StageAggregateRow, error) {
	return m.aggregates, m.fail("aggregates")
}
func (m *mockRepo) StageDurations(context.Context) ([]StageDurationRow, error) {
	return m.durations, m.fail("durations")
}
func (m *mockRepo) CountOverdue(context.Context) (int, error) {
	return m.overdue, m.fail("overdue")
}
func (m *mockRepo) CountCriticalOverdue(context.Context, time.Time) (int, error) {
	return m.critOverdue, m.fail("crit_overdue")
}
func (m *mockRepo) CountStepsDueSoon(context.Context, time.Time, time.Time) (int, error) {
	return m.dueSoon, m.fail("due_soon")
}
func (m *mockRepo) PatientsByStage(context.Context) (map[string]int, error) {
	return m.byStage, m.fail("by_stage")
}
func (m *mockRepo) ListRequiredOverdueSteps(context.Context) ([]CriticalStepRow, error) {
	return m.criticalRows, m.fail("critical_rows")
}
func (m *mockRepo) ListStepCounts(context.Context) ([]StepCountRow, error) {
	return m.stepCounts, m.fail("step_counts")
}
func (m *mockRepo) ListOpenDelayAlertCounts(context.Context) ([]AlertCountRow, error) {
	return m.alertCounts, m.fail("alert_counts")
}
func (m *mockRepo) ListTimelineSteps(context.Context) ([]TimelineStepRow, error) {
	return m.timelineRows, m.fail("timeline_rows")
}
func (m *mockRepo) CountActivePatients(context.Context) (int, error) {
	return m.activeCount, m.fail("active")
}
func (m *mockRepo) CountCriticalPatients(context.Context, int) (int, error) {
	return m.critPatients, m.fail("crit_patients")
}
func (m *mockRepo) OpenAlertCountsBySeverity(context.Context) ([]SeverityCountRow, error) {
	return m.severities, m.fail("severities")
}
func (m *mockRepo) CountAlertsResolvedSince(context.Context, time.Time) (int, error) {
	return m.resolvedToday, m.fail("resolved")
}
func (m *mockRepo) AverageAlertResponseMinutes(context.Context) (*int, error) {
	return m.avgResponse, m.fail("response")
}
func (m *mockRepo) PriorityDistribution(context.Context) ([]LabelCountRow, error) {
	return m.priorities, m.fail("priorities")
}
func (m *mockRepo) CancerTypeDistribution(context.Context) ([]LabelCountRow, error) {
	return m.cancerTypes, m.fail("cancer_types")
}
func (m *mockRepo) JourneyStageDistribution(context.Context) ([]LabelCountRow, error) {
	return m.stages, m.fail("stages")
}
func (m *mockRepo) StatusDistribution(context.Context) ([]LabelCountRow, error) {
	return m.statuses, m.fail("statuses")
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, nil, Config{}, zerolog.Nop())
}

func intptr(v int) *int          { return &v }
func timeptr(t time.Time) *time.Time { return &t }

func TestGetNavigationMetrics(t *testing.T) {
	days10 := time.Now().AddDate(0, 0, -10)
	done := days10.AddDate(0, 0, 8)
	repo := &mockRepo{
		overdue:     4,
		critOverdue: 1,
		dueSoon:     3,
		byStage:     map[string]int{"SCREENING": 2, "DIAGNOSIS": 6, "TREATMENT": 2},
		aggregates: []StageAggregateRow{
			{Stage: "SCREENING", PatientsCount: 2, TotalSteps: 4, CompletedSteps: 2, PendingSteps: 2},
			{Stage: "DIAGNOSIS", PatientsCount: 6, TotalSteps: 20, CompletedSteps: 5, PendingSteps: 10, OverdueSteps: 5},
			{Stage: "TREATMENT", PatientsCount: 2, TotalSteps: 6, CompletedSteps: 3, PendingSteps: 3},
		},
		durations: []StageDurationRow{
			{PatientID: uuid.New(), Stage: "DIAGNOSIS", EarliestCreated: days10, LatestCompleted: &done, CompletedCount: 2},
		},
	}
	svc := newTestService(repo)

	m, err := svc.GetNavigationMetrics(context.Background())
	if err != nil {
		t.Fatalf("GetNavigationMetrics: %v", err)
	}
	if m.OverdueStepsCount != 4 || m.CriticalOverdueStepsCount != 1 || m.StepsDueSoonCount != 3 {
		t.Fatalf("got overdue=%d critical=%d due_soon=%d", m.OverdueStepsCount, m.CriticalOverdueStepsCount, m.StepsDueSoonCount)
	}
	// 10 completed of 30 total.
	if m.OverallCompletionRate != 33 {
		t.Fatalf("overall completion rate = %d, want 33", m.OverallCompletionRate)
	}
	if len(m.StageMetrics) != len(navigation.StageOrder) {
		t.Fatalf("expected all %d stages, got %d", len(navigation.StageOrder), len(m.StageMetrics))
	}
	for i, sm := range m.StageMetrics {
		if sm.Stage != navigation.StageOrder[i] {
			t.Fatalf("stage %d = %s, want %s", i, sm.Stage, navigation.StageOrder[i])
		}
	}
	if m.PatientsByStage["NAVIGATION"] != 0 || m.PatientsByStage["DIAGNOSIS"] != 6 {
		t.Fatalf("unexpected patients by stage: %v", m.PatientsByStage)
	}
	if avg := m.AverageTimePerStage["DIAGNOSIS"]; avg == nil || *avg != 8 {
		t.Fatalf("DIAGNOSIS average = %v, want 8", avg)
	}
	if m.AverageTimePerStage["SCREENING"] != nil {
		t.Fatal("SCREENING has no completed steps, average should be nil")
	}
}

func TestGetNavigationMetricsBottlenecks(t *testing.T) {
	repo := &mockRepo{
		byStage: map[string]int{"SCREENING": 1, "DIAGNOSIS": 8, "TREATMENT": 1},
		aggregates: []StageAggregateRow{
			{Stage: "DIAGNOSIS", PatientsCount: 8, TotalSteps: 20, CompletedSteps: 2, PendingSteps: 8, OverdueSteps: 10},
		},
	}
	svc := newTestService(repo)

	m, err := svc.GetNavigationMetrics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Bottlenecks) == 0 {
		t.Fatal("expected a bottleneck for DIAGNOSIS")
	}
	b := m.Bottlenecks[0]
	if b.Stage != "DIAGNOSIS" {
		t.Fatalf("bottleneck stage = %s, want DIAGNOSIS", b.Stage)
	}
	// 8 of 10 patients and overdue outnumbering completed both apply.
	if b.Percentage != 80 {
		t.Fatalf("bottleneck percentage = %d, want 80", b.Percentage)
	}
	if b.Reason == "" {
		t.Fatal("bottleneck reason must name what triggered it")
	}
}

func TestGetNavigationMetricsBottlenecksCappedAtThree(t *testing.T) {
	repo := &mockRepo{
		byStage: map[string]int{
			"SCREENING": 25, "NAVIGATION": 25, "DIAGNOSIS": 25, "TREATMENT": 25,
		},
	}
	svc := newTestService(repo)
	m, err := svc.GetNavigationMetrics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Bottlenecks) != 3 {
		t.Fatalf("expected bottleneck list capped at 3, got %d", len(m.Bottlenecks))
	}
}

func TestGetNavigationMetricsDegradesPerSection(t *testing.T) {
	repo := &mockRepo{
		overdue:      7,
		failSections: map[string]bool{"by_stage": true, "aggregates": true},
	}
	svc := newTestService(repo)

	m, err := svc.GetNavigationMetrics(context.Background())
	if err != nil {
		t.Fatalf("a failing section should not fail the report: %v", err)
	}
	if m.OverdueStepsCount != 7 {
		t.Fatalf("healthy sections should still render, got overdue=%d", m.OverdueStepsCount)
	}
	if m.OverallCompletionRate != 0 {
		t.Fatalf("failed aggregates should zero the completion rate, got %d", m.OverallCompletionRate)
	}
}

func TestGetPatientsWithCriticalSteps(t *testing.T) {
	urgent := uuid.New()
	routine := uuid.New()
	due20 := time.Now().AddDate(0, 0, -20)
	due5 := time.Now().AddDate(0, 0, -5)
	due2 := time.Now().AddDate(0, 0, -2)

	repo := &mockRepo{
		criticalRows: []CriticalStepRow{
			{PatientID: routine, PatientName: "Rita Melo", CurrentStage: "DIAGNOSIS", PriorityScore: 40, PriorityCategory: "MEDIUM",
				StepID: uuid.New(), StepName: "Pathology report", JourneyStage: "DIAGNOSIS", Status: "OVERDUE", IsRequired: true, DueDate: &due2},
			{PatientID: urgent, PatientName: "Ana Lima", CurrentStage: "TREATMENT", PriorityScore: 85, PriorityCategory: "CRITICAL",
				StepID: uuid.New(), StepName: "Surgical evaluation", JourneyStage: "TREATMENT", Status: "OVERDUE", IsRequired: true, DueDate: &due5},
			{PatientID: urgent, PatientName: "Ana Lima", CurrentStage: "TREATMENT", PriorityScore: 85, PriorityCategory: "CRITICAL",
				StepID: uuid.New(), StepName: "Colectomy", JourneyStage: "TREATMENT", Status: "OVERDUE", IsRequired: true, DueDate: &due20},
		},
		stepCounts: []StepCountRow{
			{PatientID: urgent, TotalSteps: 16, CompletedSteps: 4},
			{PatientID: routine, TotalSteps: 10, CompletedSteps: 5},
		},
		alertCounts: []AlertCountRow{{PatientID: urgent, Count: 2}},
	}
	svc := newTestService(repo)

	items, err := svc.GetPatientsWithCriticalSteps(context.Background())
	if err != nil {
		t.Fatalf("GetPatientsWithCriticalSteps: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected one entry per patient, got %d", len(items))
	}
	first := items[0]
	if first.PatientID != urgent {
		t.Fatal("highest priority score should sort first")
	}
	if first.CriticalStep.StepName != "Colectomy" {
		t.Fatalf("worst step = %s, want the 20-day overdue Colectomy", first.CriticalStep.StepName)
	}
	if first.CriticalStep.DaysOverdue == nil || *first.CriticalStep.DaysOverdue != 20 {
		t.Fatalf("days overdue = %v, want 20", first.CriticalStep.DaysOverdue)
	}
	if first.CompletionRate != 25 || first.NavigationAlertsCount != 2 {
		t.Fatalf("got completion=%d alerts=%d", first.CompletionRate, first.NavigationAlertsCount)
	}
	if items[1].NavigationAlertsCount != 0 {
		t.Fatal("patient without open delay alerts should report zero")
	}
}

func TestGetCriticalTimelines(t *testing.T) {
	onTrack := uuid.New()
	stalled := uuid.New()
	breast := "breast"

	base := time.Now().AddDate(0, 0, -100)
	pathologyFast := base.AddDate(0, 0, 10)

	repo := &mockRepo{
		timelineRows: []TimelineStepRow{
			// Diagnosed in 10 days, within the 21-day ideal for breast.
			{PatientID: onTrack, CancerType: &breast, StepKey: "breast_biopsy", JourneyStage: "DIAGNOSIS",
				CreatedAt: base, IsCompleted: true, CompletedAt: timeptr(base.AddDate(0, 0, 5))},
			{PatientID: onTrack, CancerType: &breast, StepKey: "pathology_report", JourneyStage: "DIAGNOSIS",
				CreatedAt: base, IsCompleted: true, CompletedAt: &pathologyFast},
			// Open interval 100 days long, past the breast diagnosis critical
			// threshold of 60 days.
			{PatientID: stalled, CancerType: &breast, StepKey: "pathology_report", JourneyStage: "DIAGNOSIS",
				CreatedAt: base, IsCompleted: false},
		},
	}
	svc := newTestService(repo)

	report, err := svc.GetCriticalTimelines(context.Background())
	if err != nil {
		t.Fatalf("GetCriticalTimelines: %v", err)
	}
	if report.Summary.TotalMetrics != len(DefaultBenchmarks) {
		t.Fatalf("expected %d metrics, got %d", len(DefaultBenchmarks), report.Summary.TotalMetrics)
	}

	var diag *TimelineMetric
	for i := range report.Metrics {
		m := &report.Metrics[i]
		if m.CancerType == "breast" && m.Metric == MetricTimeToDiagnosis {
			diag = m
		}
	}
	if diag == nil {
		t.Fatal("missing breast time_to_diagnosis metric")
	}
	if diag.PatientsCount != 1 {
		t.Fatalf("completed intervals = %d, want 1", diag.PatientsCount)
	}
	if diag.CurrentAverageDays == nil || *diag.CurrentAverageDays != 10 {
		t.Fatalf("average = %v, want 10", diag.CurrentAverageDays)
	}
	if diag.Status != TimelineIdeal {
		t.Fatalf("status = %s, want IDEAL", diag.Status)
	}
	if diag.PatientsAtRisk != 1 {
		t.Fatalf("the stalled open interval should count as at risk, got %d", diag.PatientsAtRisk)
	}
	if report.Summary.MetricsWithNoData == 0 {
		t.Fatal("benchmarks without observations should report NO_DATA")
	}
}

func TestGetCriticalTimelinesSurgeryIntervals(t *testing.T) {
	patient := uuid.New()
	colorectal := "colorectal"

	base := time.Now().UTC().AddDate(0, 0, -120)
	surgeryDone := base.AddDate(0, 0, 50)
	chemoDone := surgeryDone.AddDate(0, 0, 30)

	repo := &mockRepo{
		timelineRows: []TimelineStepRow{
			{PatientID: patient, CancerType: &colorectal, StepKey: "colonoscopy_with_biopsy", JourneyStage: "DIAGNOSIS",
				CreatedAt: base, IsCompleted: true, CompletedAt: timeptr(base.AddDate(0, 0, 7))},
			{PatientID: patient, CancerType: &colorectal, StepKey: "colectomy", JourneyStage: "TREATMENT",
				CreatedAt: base, IsCompleted: true, CompletedAt: &surgeryDone},
			{PatientID: patient, CancerType: &colorectal, StepKey: "adjuvant_chemotherapy", JourneyStage: "TREATMENT",
				CreatedAt: base, IsCompleted: true, CompletedAt: &chemoDone},
		},
	}
	svc := newTestService(repo)

	report, err := svc.GetCriticalTimelines(context.Background())
	if err != nil {
		t.Fatalf("GetCriticalTimelines: %v", err)
	}

	var toSurgery, toChemo *TimelineMetric
	for i := range report.Metrics {
		m := &report.Metrics[i]
		if m.CancerType != "colorectal" {
			continue
		}
		switch m.Metric {
		case MetricDiagnosisToSurgery:
			toSurgery = m
		case MetricSurgeryToAdjuvantChemo:
			toChemo = m
		}
	}
	if toSurgery == nil || toChemo == nil {
		t.Fatal("missing colorectal surgery interval metrics")
	}
	// 50 days sits between the 42-day ideal and the 60-day acceptable bound.
	if toSurgery.CurrentAverageDays == nil || *toSurgery.CurrentAverageDays != 50 {
		t.Fatalf("diagnosis to surgery average = %v, want 50", toSurgery.CurrentAverageDays)
	}
	if toSurgery.Status != TimelineAcceptable {
		t.Fatalf("diagnosis to surgery status = %s, want ACCEPTABLE", toSurgery.Status)
	}
	if toChemo.CurrentAverageDays == nil || *toChemo.CurrentAverageDays != 30 {
		t.Fatalf("surgery to adjuvant average = %v, want 30", toChemo.CurrentAverageDays)
	}
	if toChemo.Status != TimelineIdeal {
		t.Fatalf("surgery to adjuvant status = %s, want IDEAL", toChemo.Status)
	}
}

func TestTimelineStatusThresholds(t *testing.T) {
	b := TimelineBenchmark{IdealDays: 21, AcceptableDays: 35, CriticalDays: 60}
	cases := []struct {
		avg  *int
		want string
	}{
		{nil, TimelineNoData},
		{intptr(10), TimelineIdeal},
		{intptr(21), TimelineIdeal},
		{intptr(30), TimelineAcceptable},
		{intptr(35), TimelineAcceptable},
		{intptr(36), TimelineCritical},
		{intptr(90), TimelineCritical},
	}
	for _, tc := range cases {
		if got := timelineStatus(tc.avg, b); got != tc.want {
			t.Errorf("timelineStatus(%v) = %s, want %s", tc.avg, got, tc.want)
		}
	}
}

func TestGetDashboardMetrics(t *testing.T) {
	repo := &mockRepo{
		activeCount:  40,
		critPatients: 6,
		severities: []SeverityCountRow{
			{Severity: "CRITICAL", Count: 2},
			{Severity: "HIGH", Count: 5},
			{Severity: "LOW", Count: 3},
		},
		resolvedToday: 4,
		avgResponse:   intptr(42),
		priorities: []LabelCountRow{
			{Label: "HIGH", Count: 3},
			{Label: "LOW", Count: 1},
		},
	}
	svc := newTestService(repo)

	m, err := svc.GetDashboardMetrics(context.Background())
	if err != nil {
		t.Fatalf("GetDashboardMetrics: %v", err)
	}
	if m.TotalActivePatients != 40 || m.CriticalPatientsCount != 6 {
		t.Fatalf("got active=%d critical=%d", m.TotalActivePatients, m.CriticalPatientsCount)
	}
	if m.TotalPendingAlerts != 10 || m.CriticalAlertsCount != 2 || m.HighAlertsCount != 5 || m.MediumAlertsCount != 0 || m.LowAlertsCount != 3 {
		t.Fatalf("unexpected alert counts: %+v", m)
	}
	if m.ResolvedTodayCount != 4 || m.AverageResponseTimeMinutes == nil || *m.AverageResponseTimeMinutes != 42 {
		t.Fatalf("got resolved=%d response=%v", m.ResolvedTodayCount, m.AverageResponseTimeMinutes)
	}
	if len(m.PriorityDistribution) != 2 {
		t.Fatalf("expected 2 priority slices, got %d", len(m.PriorityDistribution))
	}
	if m.PriorityDistribution[0].Percentage != 75.0 {
		t.Fatalf("HIGH share = %v, want 75.0", m.PriorityDistribution[0].Percentage)
	}
	if m.CancerTypeDistribution == nil || len(m.CancerTypeDistribution) != 0 {
		t.Fatal("empty distributions should render as empty lists, not null")
	}
}

func TestGetDashboardMetricsDegradesPerSection(t *testing.T) {
	repo := &mockRepo{
		activeCount:  12,
		failSections: map[string]bool{"severities": true, "priorities": true},
	}
	svc := newTestService(repo)

	m, err := svc.GetDashboardMetrics(context.Background())
	if err != nil {
		t.Fatalf("a failing section should not fail the dashboard: %v", err)
	}
	if m.TotalActivePatients != 12 {
		t.Fatalf("healthy sections should still render, got %d", m.TotalActivePatients)
	}
	if m.TotalPendingAlerts != 0 || len(m.PriorityDistribution) != 0 {
		t.Fatal("failed sections should render zero values")
	}
}
