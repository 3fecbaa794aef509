package analytics

// Timeline metrics tracked against benchmarks.
const (
	MetricTimeToDiagnosis        = "time_to_diagnosis"
	MetricTimeToTreatment        = "time_to_treatment"
	MetricBiopsyToPathology      = "biopsy_to_pathology"
	MetricDiagnosisToSurgery     = "diagnosis_to_surgery"
	MetricSurgeryToAdjuvantChemo = "surgery_to_adjuvant_chemotherapy"
)

var metricLabels = map[string]string{
	MetricTimeToDiagnosis:        "Time to diagnosis",
	MetricTimeToTreatment:        "Time to treatment",
	MetricBiopsyToPathology:      "Biopsy to pathology report",
	MetricDiagnosisToSurgery:     "Diagnosis to surgery",
	MetricSurgeryToAdjuvantChemo: "Surgery to adjuvant chemotherapy",
}

// DefaultBenchmarks holds the reference intervals per cancer type and metric.
// Values follow commonly cited care pathway targets and can be overridden at
// construction time for tenants with stricter contracts.
var DefaultBenchmarks = []TimelineBenchmark{
	{CancerType: "breast", Metric: MetricTimeToDiagnosis, IdealDays: 21, AcceptableDays: 35, CriticalDays: 60},
	{CancerType: "breast", Metric: MetricTimeToTreatment, IdealDays: 42, AcceptableDays: 60, CriticalDays: 90},
	{CancerType: "breast", Metric: MetricBiopsyToPathology, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "breast", Metric: MetricDiagnosisToSurgery, IdealDays: 42, AcceptableDays: 60, CriticalDays: 90},
	{CancerType: "breast", Metric: MetricSurgeryToAdjuvantChemo, IdealDays: 42, AcceptableDays: 56, CriticalDays: 84},

	{CancerType: "lung", Metric: MetricTimeToDiagnosis, IdealDays: 14, AcceptableDays: 30, CriticalDays: 45},
	{CancerType: "lung", Metric: MetricTimeToTreatment, IdealDays: 21, AcceptableDays: 35, CriticalDays: 60},
	{CancerType: "lung", Metric: MetricBiopsyToPathology, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "lung", Metric: MetricDiagnosisToSurgery, IdealDays: 28, AcceptableDays: 42, CriticalDays: 60},
	{CancerType: "lung", Metric: MetricSurgeryToAdjuvantChemo, IdealDays: 42, AcceptableDays: 56, CriticalDays: 84},

	{CancerType: "colorectal", Metric: MetricTimeToDiagnosis, IdealDays: 28, AcceptableDays: 42, CriticalDays: 60},
	{CancerType: "colorectal", Metric: MetricTimeToTreatment, IdealDays: 42, AcceptableDays: 60, CriticalDays: 90},
	{CancerType: "colorectal", Metric: MetricBiopsyToPathology, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "colorectal", Metric: MetricDiagnosisToSurgery, IdealDays: 42, AcceptableDays: 60, CriticalDays: 90},
	{CancerType: "colorectal", Metric: MetricSurgeryToAdjuvantChemo, IdealDays: 42, AcceptableDays: 56, CriticalDays: 84},

	{CancerType: "prostate", Metric: MetricTimeToDiagnosis, IdealDays: 30, AcceptableDays: 45, CriticalDays: 90},
	{CancerType: "prostate", Metric: MetricTimeToTreatment, IdealDays: 60, AcceptableDays: 90, CriticalDays: 120},
	{CancerType: "prostate", Metric: MetricBiopsyToPathology, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "prostate", Metric: MetricDiagnosisToSurgery, IdealDays: 60, AcceptableDays: 90, CriticalDays: 120},
	{CancerType: "prostate", Metric: MetricSurgeryToAdjuvantChemo, IdealDays: 42, AcceptableDays: 56, CriticalDays: 84},

	{CancerType: "kidney", Metric: MetricTimeToDiagnosis, IdealDays: 21, AcceptableDays: 35, CriticalDays: 60},
	{CancerType: "kidney", Metric: MetricTimeToTreatment, IdealDays: 42, AcceptableDays: 60, CriticalDays: 90},
	{CancerType: "kidney", Metric: MetricBiopsyToPathology, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "kidney", Metric: MetricDiagnosisToSurgery, IdealDays: 42, AcceptableDays: 60, CriticalDays: 90},
	{CancerType: "kidney", Metric: MetricSurgeryToAdjuvantChemo, IdealDays: 42, AcceptableDays: 56, CriticalDays: 84},

	{CancerType: "bladder", Metric: MetricTimeToDiagnosis, IdealDays: 21, AcceptableDays: 35, CriticalDays: 60},
	{CancerType: "bladder", Metric: MetricTimeToTreatment, IdealDays: 30, AcceptableDays: 45, CriticalDays: 90},
	{CancerType: "bladder", Metric: MetricBiopsyToPathology, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "bladder", Metric: MetricDiagnosisToSurgery, IdealDays: 42, AcceptableDays: 60, CriticalDays: 90},
	{CancerType: "bladder", Metric: MetricSurgeryToAdjuvantChemo, IdealDays: 42, AcceptableDays: 56, CriticalDays: 84},

	{CancerType: "testicular", Metric: MetricTimeToDiagnosis, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "testicular", Metric: MetricTimeToTreatment, IdealDays: 14, AcceptableDays: 21, CriticalDays: 30},
	{CancerType: "testicular", Metric: MetricBiopsyToPathology, IdealDays: 7, AcceptableDays: 10, CriticalDays: 14},
	{CancerType: "testicular", Metric: MetricDiagnosisToSurgery, IdealDays: 7, AcceptableDays: 14, CriticalDays: 21},
	{CancerType: "testicular", Metric: MetricSurgeryToAdjuvantChemo, IdealDays: 28, AcceptableDays: 42, CriticalDays: 60},
}

// biopsyStepKeys identifies the tissue-sampling step per pathway for the
// biopsy-to-pathology interval.
var biopsyStepKeys = map[string]bool{
	"colonoscopy_with_biopsy": true,
	"breast_biopsy":           true,
	"bronchoscopy_biopsy":     true,
	"prostate_biopsy":         true,
	"biopsy_or_surgery":       true,
	"transurethral_resection": true,
	"radical_orchiectomy":     true,
	"biopsy":                  true,
}

const pathologyStepKey = "pathology_report"

// surgeryStepKeys identifies the definitive surgery step per pathway for the
// diagnosis-to-surgery and surgery-to-adjuvant intervals. radical_orchiectomy
// doubles as the tissue-sampling step for testicular disease.
var surgeryStepKeys = map[string]bool{
	"colectomy":                      true,
	"mastectomy_or_lumpectomy":       true,
	"lobectomy_or_pneumonectomy":     true,
	"radical_prostatectomy":          true,
	"partial_or_radical_nephrectomy": true,
	"radical_cystectomy":             true,
	"radical_orchiectomy":            true,
}

const adjuvantChemoStepKey = "adjuvant_chemotherapy"

// stageLabels render journey stages for bottleneck reports.
var stageLabels = map[string]string{
	"SCREENING":  "Screening",
	"NAVIGATION": "Navigation",
	"DIAGNOSIS":  "Diagnosis",
	"TREATMENT":  "Treatment",
	"FOLLOW_UP":  "Follow-up",
}

// referenceExpectedDays is the expected dwell time per stage used by the
// bottleneck time factor.
var referenceExpectedDays = map[string]int{
	"SCREENING":  30,
	"NAVIGATION": 14,
	"DIAGNOSIS":  30,
	"TREATMENT":  90,
	"FOLLOW_UP":  180,
}

// timelineStatus classifies an observed average against a benchmark.
func timelineStatus(avgDays *int, b TimelineBenchmark) string {
	if avgDays == nil {
		return TimelineNoData
	}
	switch {
	case *avgDays <= b.IdealDays:
		return TimelineIdeal
	case *avgDays <= b.AcceptableDays:
		return TimelineAcceptable
	default:
		return TimelineCritical
	}
}
