package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onconav/onconav/internal/domain/navigation"
)

// Config tunes the report thresholds. Zero values fall back to defaults.
type Config struct {
	CriticalOverdueDays   int
	DueSoonDays           int
	BottleneckSharePct    int
	BottleneckTimeFactor  float64
	CriticalPriorityScore int
}

func (c Config) withDefaults() Config {
	if c.CriticalOverdueDays <= 0 {
		c.CriticalOverdueDays = 14
	}
	if c.DueSoonDays <= 0 {
		c.DueSoonDays = 7
	}
	if c.BottleneckSharePct <= 0 {
		c.BottleneckSharePct = 20
	}
	if c.BottleneckTimeFactor <= 0 {
		c.BottleneckTimeFactor = 1.5
	}
	if c.CriticalPriorityScore <= 0 {
		c.CriticalPriorityScore = 75
	}
	return c
}

type Service struct {
	repo       Repository
	benchmarks []TimelineBenchmark
	cfg        Config
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, benchmarks []TimelineBenchmark, cfg Config, logger zerolog.Logger) *Service {
	if len(benchmarks) == 0 {
		benchmarks = DefaultBenchmarks
	}
	return &Service{
		repo:       repo,
		benchmarks: benchmarks,
		cfg:        cfg.withDefaults(),
		logger:     logger.With().Str("component", "analytics").Logger(),
		now:        time.Now,
	}
}

// sectionErr logs a failed report section. The remaining sections still
// render so a single bad query does not blank the whole dashboard.
func (s *Service) sectionErr(section string, err error) {
	s.logger.Error().Err(err).Str("section", section).Msg("analytics section failed")
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func wholeDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func pct(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// GetNavigationMetrics builds the navigation progress dashboard.
func (s *Service) GetNavigationMetrics(ctx context.Context) (*NavigationMetrics, error) {
	now := s.now()
	today := truncateToDay(now)
	m := &NavigationMetrics{
		PatientsByStage:     map[string]int{},
		AverageTimePerStage: map[string]*int{},
	}

	var err error
	if m.OverdueStepsCount, err = s.repo.CountOverdue(ctx); err != nil {
		s.sectionErr("overdue_count", err)
	}
	cutoff := today.AddDate(0, 0, -s.cfg.CriticalOverdueDays)
	if m.CriticalOverdueStepsCount, err = s.repo.CountCriticalOverdue(ctx, cutoff); err != nil {
		s.sectionErr("critical_overdue_count", err)
	}
	if m.StepsDueSoonCount, err = s.repo.CountStepsDueSoon(ctx, today, today.AddDate(0, 0, s.cfg.DueSoonDays)); err != nil {
		s.sectionErr("due_soon_count", err)
	}
	byStage, err := s.repo.PatientsByStage(ctx)
	if err != nil {
		s.sectionErr("patients_by_stage", err)
		byStage = map[string]int{}
	}
	for _, stage := range navigation.StageOrder {
		m.PatientsByStage[stage] = byStage[stage]
	}

	aggregates, err := s.repo.StageAggregates(ctx)
	if err != nil {
		s.sectionErr("stage_aggregates", err)
		aggregates = nil
	}
	durations, err := s.repo.StageDurations(ctx)
	if err != nil {
		s.sectionErr("stage_durations", err)
		durations = nil
	}
	avgByStage := averageStageDays(durations)

	aggByStage := map[string]StageAggregateRow{}
	totalSteps, completedSteps := 0, 0
	for _, row := range aggregates {
		aggByStage[row.Stage] = row
		totalSteps += row.TotalSteps
		completedSteps += row.CompletedSteps
	}
	m.OverallCompletionRate = pct(completedSteps, totalSteps)

	for _, stage := range navigation.StageOrder {
		agg := aggByStage[stage]
		sm := StageMetrics{
			Stage:           stage,
			PatientsCount:   agg.PatientsCount,
			CompletionRate:  pct(agg.CompletedSteps, agg.TotalSteps),
			AverageTimeDays: avgByStage[stage],
			TotalSteps:      agg.TotalSteps,
			CompletedSteps:  agg.CompletedSteps,
			PendingSteps:    agg.PendingSteps,
			OverdueSteps:    agg.OverdueSteps,
		}
		m.StageMetrics = append(m.StageMetrics, sm)
		m.AverageTimePerStage[stage] = avgByStage[stage]
	}

	m.Bottlenecks = s.detectBottlenecks(m.PatientsByStage, aggByStage, avgByStage)
	return m, nil
}

// averageStageDays computes, per stage, the mean whole-day span from the
// earliest step creation to the latest completion across patients that
// completed at least one step there. Spans that come out negative (clock skew
// on imported records) are discarded.
func averageStageDays(durations []StageDurationRow) map[string]*int {
	sums := map[string]int{}
	counts := map[string]int{}
	for _, row := range durations {
		if row.CompletedCount == 0 || row.LatestCompleted == nil {
			continue
		}
		days := wholeDays(row.EarliestCreated, *row.LatestCompleted)
		if days < 0 {
			continue
		}
		sums[row.Stage] += days
		counts[row.Stage]++
	}
	out := map[string]*int{}
	for _, stage := range navigation.StageOrder {
		if counts[stage] == 0 {
			out[stage] = nil
			continue
		}
		avg := int(math.Floor(float64(sums[stage]) / float64(counts[stage])))
		out[stage] = &avg
	}
	return out
}

func (s *Service) detectBottlenecks(patientsByStage map[string]int, aggByStage map[string]StageAggregateRow, avgByStage map[string]*int) []Bottleneck {
	totalPatients := 0
	for _, n := range patientsByStage {
		totalPatients += n
	}

	var found []Bottleneck
	for _, stage := range navigation.StageOrder {
		count := patientsByStage[stage]
		share := pct(count, totalPatients)
		avg := avgByStage[stage]
		agg := aggByStage[stage]

		var reasons []string
		if share > s.cfg.BottleneckSharePct {
			reasons = append(reasons, fmt.Sprintf("%d%% of active patients are concentrated in this stage", share))
		}
		expected := referenceExpectedDays[stage]
		if avg != nil && float64(*avg) > s.cfg.BottleneckTimeFactor*float64(expected) {
			reasons = append(reasons, fmt.Sprintf("average time of %d days exceeds the expected %d days", *avg, expected))
		}
		if agg.OverdueSteps > agg.CompletedSteps && agg.OverdueSteps > 0 {
			reasons = append(reasons, fmt.Sprintf("%d overdue steps outnumber %d completed", agg.OverdueSteps, agg.CompletedSteps))
		}
		if len(reasons) == 0 {
			continue
		}
		reason := reasons[0]
		for _, r := range reasons[1:] {
			reason += "; " + r
		}
		found = append(found, Bottleneck{
			Stage:           stage,
			StageLabel:      stageLabels[stage],
			PatientsCount:   count,
			Percentage:      share,
			AverageTimeDays: avg,
			Reason:          reason,
		})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Percentage > found[j].Percentage })
	if len(found) > 3 {
		found = found[:3]
	}
	return found
}

// GetPatientsWithCriticalSteps lists active patients whose required steps are
// overdue, one entry per patient keyed on their longest-overdue step.
func (s *Service) GetPatientsWithCriticalSteps(ctx context.Context) ([]PatientWithCriticalStep, error) {
	rows, err := s.repo.ListRequiredOverdueSteps(ctx)
	if err != nil {
		return nil, err
	}
	stepCounts := map[uuid.UUID]StepCountRow{}
	if counts, err := s.repo.ListStepCounts(ctx); err != nil {
		s.sectionErr("step_counts", err)
	} else {
		for _, c := range counts {
			stepCounts[c.PatientID] = c
		}
	}
	alertCounts := map[uuid.UUID]int{}
	if counts, err := s.repo.ListOpenDelayAlertCounts(ctx); err != nil {
		s.sectionErr("alert_counts", err)
	} else {
		for _, c := range counts {
			alertCounts[c.PatientID] = c.Count
		}
	}

	now := s.now()
	byPatient := map[uuid.UUID]*PatientWithCriticalStep{}
	var order []uuid.UUID
	for _, row := range rows {
		detail := CriticalStepDetail{
			ID:              row.StepID,
			StepName:        row.StepName,
			StepDescription: row.StepDescription,
			JourneyStage:    row.JourneyStage,
			Status:          row.Status,
			IsRequired:      row.IsRequired,
			DueDate:         row.DueDate,
			ExpectedDate:    row.ExpectedDate,
		}
		if row.DueDate != nil {
			d := navigation.DaysOverdue(*row.DueDate, now)
			detail.DaysOverdue = &d
		}
		existing, ok := byPatient[row.PatientID]
		if !ok {
			counts := stepCounts[row.PatientID]
			byPatient[row.PatientID] = &PatientWithCriticalStep{
				PatientID:             row.PatientID,
				PatientName:           row.PatientName,
				PatientAge:            row.PatientAge,
				CancerType:            row.CancerType,
				CurrentStage:          row.CurrentStage,
				PriorityScore:         row.PriorityScore,
				PriorityCategory:      row.PriorityCategory,
				CriticalStep:          detail,
				TotalSteps:            counts.TotalSteps,
				CompletedSteps:        counts.CompletedSteps,
				CompletionRate:        pct(counts.CompletedSteps, counts.TotalSteps),
				NavigationAlertsCount: alertCounts[row.PatientID],
			}
			order = append(order, row.PatientID)
			continue
		}
		if moreOverdue(detail, existing.CriticalStep) {
			existing.CriticalStep = detail
		}
	}

	items := make([]PatientWithCriticalStep, 0, len(order))
	for _, id := range order {
		items = append(items, *byPatient[id])
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PriorityScore != items[j].PriorityScore {
			return items[i].PriorityScore > items[j].PriorityScore
		}
		return daysOrZero(items[i].CriticalStep.DaysOverdue) > daysOrZero(items[j].CriticalStep.DaysOverdue)
	})
	return items, nil
}

func moreOverdue(a, b CriticalStepDetail) bool {
	return daysOrZero(a.DaysOverdue) > daysOrZero(b.DaysOverdue)
}

func daysOrZero(d *int) int {
	if d == nil {
		return 0
	}
	return *d
}

// patientTimeline captures the anchor timestamps needed for the benchmark
// intervals of one patient.
type patientTimeline struct {
	cancerType         string
	diagnosisStart     *time.Time
	pathologyDone      *time.Time
	biopsyDone         *time.Time
	firstTreatmentDone *time.Time
	surgeryDone        *time.Time
	adjuvantChemoDone  *time.Time
}

// GetCriticalTimelines compares observed care intervals against the
// per-cancer-type benchmarks.
func (s *Service) GetCriticalTimelines(ctx context.Context) (*CriticalTimelines, error) {
	rows, err := s.repo.ListTimelineSteps(ctx)
	if err != nil {
		return nil, err
	}
	timelines := buildTimelines(rows)

	now := s.now()
	report := &CriticalTimelines{Metrics: []TimelineMetric{}}
	for _, b := range s.benchmarks {
		metric := TimelineMetric{
			CancerType:  b.CancerType,
			Metric:      b.Metric,
			MetricLabel: metricLabels[b.Metric],
			Benchmark:   b,
		}
		var durations []int
		for _, tl := range timelines {
			if tl.cancerType != b.CancerType {
				continue
			}
			start, end, ok := tl.interval(b.Metric)
			if !ok {
				// Interval not started yet for this patient.
				continue
			}
			if end != nil {
				days := wholeDays(*start, *end)
				if days < 0 {
					continue
				}
				durations = append(durations, days)
				if days > b.CriticalDays {
					metric.PatientsAtRisk++
				}
				continue
			}
			// Still in flight; elapsed time past the critical
			// threshold already puts the patient at risk.
			if wholeDays(*start, now) > b.CriticalDays {
				metric.PatientsAtRisk++
			}
		}
		metric.PatientsCount = len(durations)
		if len(durations) > 0 {
			sum := 0
			for _, d := range durations {
				sum += d
			}
			avg := int(math.Floor(float64(sum) / float64(len(durations))))
			metric.CurrentAverageDays = &avg
		}
		metric.Status = timelineStatus(metric.CurrentAverageDays, b)

		report.Metrics = append(report.Metrics, metric)
		report.Summary.TotalMetrics++
		switch metric.Status {
		case TimelineIdeal:
			report.Summary.MetricsInIdealRange++
		case TimelineAcceptable:
			report.Summary.MetricsInAcceptableRange++
		case TimelineCritical:
			report.Summary.MetricsInCriticalRange++
		default:
			report.Summary.MetricsWithNoData++
		}
	}
	return report, nil
}

func buildTimelines(rows []TimelineStepRow) map[uuid.UUID]*patientTimeline {
	timelines := map[uuid.UUID]*patientTimeline{}
	for _, row := range rows {
		if row.CancerType == nil {
			continue
		}
		tl, ok := timelines[row.PatientID]
		if !ok {
			tl = &patientTimeline{cancerType: navigation.NormalizeCancerType(*row.CancerType)}
			timelines[row.PatientID] = tl
		}
		created := row.CreatedAt
		if row.JourneyStage == navigation.StageDiagnosis {
			if tl.diagnosisStart == nil || created.Before(*tl.diagnosisStart) {
				tl.diagnosisStart = &created
			}
		}
		if !row.IsCompleted || row.CompletedAt == nil {
			continue
		}
		done := *row.CompletedAt
		// Surgery and adjuvant anchors are tracked independently of the
		// pathology/biopsy/treatment classification; a step like
		// radical_orchiectomy serves as both biopsy and surgery anchor.
		if surgeryStepKeys[row.StepKey] {
			if tl.surgeryDone == nil || done.Before(*tl.surgeryDone) {
				tl.surgeryDone = &done
			}
		}
		if row.StepKey == adjuvantChemoStepKey {
			if tl.adjuvantChemoDone == nil || done.Before(*tl.adjuvantChemoDone) {
				tl.adjuvantChemoDone = &done
			}
		}
		switch {
		case row.StepKey == pathologyStepKey:
			if tl.pathologyDone == nil || done.After(*tl.pathologyDone) {
				tl.pathologyDone = &done
			}
		case biopsyStepKeys[row.StepKey]:
			if tl.biopsyDone == nil || done.Before(*tl.biopsyDone) {
				tl.biopsyDone = &done
			}
		case row.JourneyStage == navigation.StageTreatment:
			if tl.firstTreatmentDone == nil || done.Before(*tl.firstTreatmentDone) {
				tl.firstTreatmentDone = &done
			}
		}
	}
	return timelines
}

// interval returns the start and end anchors for a metric. A nil end with
// ok=true means the interval is open, still counting.
func (tl *patientTimeline) interval(metric string) (start, end *time.Time, ok bool) {
	switch metric {
	case MetricTimeToDiagnosis:
		return tl.diagnosisStart, tl.pathologyDone, tl.diagnosisStart != nil
	case MetricTimeToTreatment:
		return tl.diagnosisStart, tl.firstTreatmentDone, tl.diagnosisStart != nil
	case MetricBiopsyToPathology:
		return tl.biopsyDone, tl.pathologyDone, tl.biopsyDone != nil
	case MetricDiagnosisToSurgery:
		return tl.diagnosisStart, tl.surgeryDone, tl.diagnosisStart != nil
	case MetricSurgeryToAdjuvantChemo:
		return tl.surgeryDone, tl.adjuvantChemoDone, tl.surgeryDone != nil
	}
	return nil, nil, false
}

// GetDashboardMetrics assembles the tenant-wide summary.
func (s *Service) GetDashboardMetrics(ctx context.Context) (*DashboardMetrics, error) {
	m := &DashboardMetrics{}
	var err error
	if m.TotalActivePatients, err = s.repo.CountActivePatients(ctx); err != nil {
		s.sectionErr("active_patients", err)
	}
	if m.CriticalPatientsCount, err = s.repo.CountCriticalPatients(ctx, s.cfg.CriticalPriorityScore); err != nil {
		s.sectionErr("critical_patients", err)
	}
	if rows, err := s.repo.OpenAlertCountsBySeverity(ctx); err != nil {
		s.sectionErr("alert_severities", err)
	} else {
		for _, row := range rows {
			m.TotalPendingAlerts += row.Count
			switch row.Severity {
			case "CRITICAL":
				m.CriticalAlertsCount = row.Count
			case "HIGH":
				m.HighAlertsCount = row.Count
			case "MEDIUM":
				m.MediumAlertsCount = row.Count
			case "LOW":
				m.LowAlertsCount = row.Count
			}
		}
	}
	today := truncateToDay(s.now())
	if m.ResolvedTodayCount, err = s.repo.CountAlertsResolvedSince(ctx, today); err != nil {
		s.sectionErr("resolved_today", err)
	}
	if m.AverageResponseTimeMinutes, err = s.repo.AverageAlertResponseMinutes(ctx); err != nil {
		s.sectionErr("response_time", err)
	}

	m.PriorityDistribution = s.distribution(ctx, "priority_distribution", s.repo.PriorityDistribution)
	m.CancerTypeDistribution = s.distribution(ctx, "cancer_type_distribution", s.repo.CancerTypeDistribution)
	m.JourneyStageDistribution = s.distribution(ctx, "journey_stage_distribution", s.repo.JourneyStageDistribution)
	m.StatusDistribution = s.distribution(ctx, "status_distribution", s.repo.StatusDistribution)
	return m, nil
}

func (s *Service) distribution(ctx context.Context, section string, fetch func(context.Context) ([]LabelCountRow, error)) []DistributionItem {
	rows, err := fetch(ctx)
	if err != nil {
		s.sectionErr(section, err)
		return []DistributionItem{}
	}
	total := 0
	for _, row := range rows {
		total += row.Count
	}
	items := make([]DistributionItem, 0, len(rows))
	for _, row := range rows {
		share := 0.0
		if total > 0 {
			share = math.Round(float64(row.Count)/float64(total)*1000) / 10
		}
		items = append(items, DistributionItem{Label: row.Label, Count: row.Count, Percentage: share})
	}
	return items
}
