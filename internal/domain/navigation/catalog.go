package navigation

import (
	"sort"
	"strings"
)

// The pathway catalog maps a cancer type to the ordered step templates of its
// care pathway. Due offsets are counted in days from initialization. Patients
// in palliative care get the palliative set regardless of cancer type, and
// unknown cancer types fall back to the generic pathway.

func tpl(key, name, desc, stage string, required bool, offsetDays int) StepTemplate {
	return StepTemplate{
		StepKey:       key,
		Name:          name,
		Description:   desc,
		JourneyStage:  stage,
		IsRequired:    required,
		DueOffsetDays: offsetDays,
	}
}

var pathways = map[string][]StepTemplate{
	"colorectal": {
		tpl("fecal_occult_blood", "Fecal occult blood test", "Stool screening test for hidden blood", StageScreening, true, 30),
		tpl("colonoscopy", "Screening colonoscopy", "Full colon examination for screening", StageScreening, false, 60),
		tpl("colonoscopy_with_biopsy", "Colonoscopy with biopsy", "Diagnostic colonoscopy with tissue sampling", StageDiagnosis, true, 14),
		tpl("pathology_report", "Pathology report", "Histopathological analysis of the biopsy", StageDiagnosis, true, 21),
		tpl("staging_ct_abdomen", "Staging CT abdomen", "Abdominal CT for disease staging", StageDiagnosis, true, 28),
		tpl("staging_ct_thorax", "Staging CT thorax", "Thoracic CT for disease staging", StageDiagnosis, true, 28),
		tpl("genetic_testing", "Genetic testing", "MSI/KRAS/BRAF molecular profile", StageDiagnosis, false, 35),
		tpl("cea_baseline", "Baseline CEA", "Carcinoembryonic antigen baseline dosage", StageDiagnosis, true, 14),
		tpl("surgical_evaluation", "Surgical evaluation", "Colorectal surgery consultation", StageTreatment, true, 14),
		tpl("colectomy", "Colectomy", "Surgical resection of the affected segment", StageTreatment, true, 42),
		tpl("adjuvant_chemotherapy", "Adjuvant chemotherapy", "Post-operative systemic therapy when indicated", StageTreatment, false, 90),
		tpl("radiotherapy", "Radiotherapy", "Radiation therapy for rectal involvement", StageTreatment, false, 60),
		tpl("cea_3months", "CEA at 3 months", "Carcinoembryonic antigen follow-up dosage", StageFollowUp, true, 90),
		tpl("colonoscopy_1year", "Colonoscopy at 1 year", "First surveillance colonoscopy", StageFollowUp, true, 365),
		tpl("ct_abdomen_annual", "Annual CT abdomen", "Yearly abdominal imaging surveillance", StageFollowUp, true, 365),
		tpl("colonoscopy_3years", "Colonoscopy at 3 years", "Extended surveillance colonoscopy", StageFollowUp, true, 1095),
	},
	"breast": {
		tpl("mammography", "Mammography", "Bilateral screening mammography", StageScreening, true, 30),
		tpl("breast_ultrasound", "Breast ultrasound", "Complementary breast ultrasound", StageScreening, false, 45),
		tpl("breast_biopsy", "Breast biopsy", "Core needle biopsy of the lesion", StageDiagnosis, true, 14),
		tpl("pathology_report", "Pathology report", "Histology with hormone receptor and HER2 status", StageDiagnosis, true, 21),
		tpl("breast_mri", "Breast MRI", "Magnetic resonance for extent assessment", StageDiagnosis, false, 28),
		tpl("staging_ct_thorax_abdomen", "Staging CT thorax and abdomen", "Systemic staging imaging", StageDiagnosis, true, 28),
		tpl("bone_scan", "Bone scan", "Bone scintigraphy for metastasis screening", StageDiagnosis, false, 35),
		tpl("genetic_counseling", "Genetic counseling", "BRCA risk evaluation and counseling", StageDiagnosis, false, 42),
		tpl("surgical_evaluation", "Surgical evaluation", "Breast surgery consultation", StageTreatment, true, 14),
		tpl("neoadjuvant_chemotherapy", "Neoadjuvant chemotherapy", "Pre-operative systemic therapy when indicated", StageTreatment, false, 21),
		tpl("mastectomy_or_lumpectomy", "Mastectomy or lumpectomy", "Definitive breast surgery", StageTreatment, true, 42),
		tpl("sentinel_lymph_node", "Sentinel lymph node biopsy", "Axillary staging procedure", StageTreatment, true, 42),
		tpl("adjuvant_chemotherapy", "Adjuvant chemotherapy", "Post-operative systemic therapy when indicated", StageTreatment, false, 90),
		tpl("radiotherapy", "Radiotherapy", "Adjuvant breast irradiation", StageTreatment, false, 120),
		tpl("hormonal_therapy", "Hormonal therapy", "Endocrine therapy for receptor-positive disease", StageTreatment, false, 90),
		tpl("targeted_therapy", "Targeted therapy", "Anti-HER2 therapy when indicated", StageTreatment, false, 90),
		tpl("mammography_6months", "Mammography at 6 months", "First post-treatment mammography", StageFollowUp, true, 180),
		tpl("mammography_annual", "Annual mammography", "Yearly surveillance mammography", StageFollowUp, true, 365),
		tpl("clinical_exam_6months", "Clinical exam at 6 months", "Semiannual clinical breast examination", StageFollowUp, true, 180),
	},
	"lung": {
		tpl("low_dose_ct", "Low-dose CT", "Low-dose chest CT screening", StageScreening, true, 30),
		tpl("ct_thorax_contrast", "CT thorax with contrast", "Contrast-enhanced chest CT", StageDiagnosis, true, 7),
		tpl("bronchoscopy_biopsy", "Bronchoscopy with biopsy", "Endoscopic tissue sampling", StageDiagnosis, true, 14),
		tpl("pathology_report", "Pathology report", "Histological subtype confirmation", StageDiagnosis, true, 21),
		tpl("pet_ct", "PET-CT", "Whole-body metabolic staging", StageDiagnosis, true, 28),
		tpl("molecular_testing", "Molecular testing", "EGFR/ALK/PD-L1 molecular profile", StageDiagnosis, true, 28),
		tpl("brain_mri", "Brain MRI", "Brain imaging for metastasis screening", StageDiagnosis, false, 35),
		tpl("surgical_evaluation", "Surgical evaluation", "Thoracic surgery consultation", StageTreatment, false, 14),
		tpl("lobectomy_or_pneumonectomy", "Lobectomy or pneumonectomy", "Surgical resection when operable", StageTreatment, false, 42),
		tpl("chemotherapy", "Chemotherapy", "Systemic chemotherapy", StageTreatment, false, 28),
		tpl("radiotherapy", "Radiotherapy", "Thoracic radiation therapy", StageTreatment, false, 42),
		tpl("targeted_therapy", "Targeted therapy", "Driver-mutation directed therapy", StageTreatment, false, 28),
		tpl("immunotherapy", "Immunotherapy", "Checkpoint inhibitor therapy", StageTreatment, false, 28),
		tpl("ct_thorax_3months", "CT thorax at 3 months", "First surveillance chest CT", StageFollowUp, true, 90),
		tpl("ct_thorax_6months", "CT thorax at 6 months", "Semiannual surveillance chest CT", StageFollowUp, true, 180),
		tpl("ct_thorax_annual", "Annual CT thorax", "Yearly surveillance chest CT", StageFollowUp, true, 365),
	},
	"prostate": {
		tpl("psa_test", "PSA test", "Prostate-specific antigen dosage", StageScreening, true, 30),
		tpl("digital_rectal_exam", "Digital rectal exam", "Prostate clinical examination", StageScreening, true, 30),
		tpl("prostate_biopsy", "Prostate biopsy", "Transrectal or transperineal biopsy", StageDiagnosis, true, 14),
		tpl("pathology_report", "Pathology report", "Histology with Gleason score", StageDiagnosis, true, 21),
		tpl("prostate_mri", "Prostate MRI", "Multiparametric prostate MRI", StageDiagnosis, false, 28),
		tpl("bone_scan", "Bone scan", "Bone scintigraphy for metastasis screening", StageDiagnosis, false, 35),
		tpl("ct_abdomen_pelvis", "CT abdomen and pelvis", "Nodal staging imaging", StageDiagnosis, false, 35),
		tpl("treatment_decision", "Treatment decision", "Shared decision on surgery, radiation or surveillance", StageTreatment, true, 14),
		tpl("radical_prostatectomy", "Radical prostatectomy", "Surgical removal of the prostate", StageTreatment, false, 60),
		tpl("radiotherapy", "Radiotherapy", "Definitive or adjuvant irradiation", StageTreatment, false, 60),
		tpl("hormonal_therapy", "Hormonal therapy", "Androgen deprivation therapy", StageTreatment, false, 30),
		tpl("psa_3months", "PSA at 3 months", "First post-treatment PSA", StageFollowUp, true, 90),
		tpl("psa_6months", "PSA at 6 months", "Semiannual PSA surveillance", StageFollowUp, true, 180),
		tpl("psa_annual", "Annual PSA", "Yearly PSA surveillance", StageFollowUp, true, 365),
	},
	"kidney": {
		tpl("abdominal_ultrasound", "Abdominal ultrasound", "Renal mass screening ultrasound", StageScreening, true, 30),
		tpl("ct_abdomen_contrast", "CT abdomen with contrast", "Characterization of the renal mass", StageDiagnosis, true, 14),
		tpl("biopsy_or_surgery", "Biopsy or upfront surgery", "Tissue diagnosis strategy definition", StageDiagnosis, true, 21),
		tpl("pathology_report", "Pathology report", "Histological subtype confirmation", StageDiagnosis, true, 28),
		tpl("ct_thorax", "CT thorax", "Thoracic staging imaging", StageDiagnosis, true, 28),
		tpl("bone_scan", "Bone scan", "Bone scintigraphy when symptomatic", StageDiagnosis, false, 35),
		tpl("surgical_evaluation", "Surgical evaluation", "Urology surgery consultation", StageTreatment, true, 14),
		tpl("partial_or_radical_nephrectomy", "Partial or radical nephrectomy", "Definitive renal surgery", StageTreatment, true, 42),
		tpl("targeted_therapy", "Targeted therapy", "TKI therapy for advanced disease", StageTreatment, false, 60),
		tpl("immunotherapy", "Immunotherapy", "Checkpoint inhibitor therapy", StageTreatment, false, 60),
		tpl("ct_abdomen_3months", "CT abdomen at 3 months", "First surveillance abdominal CT", StageFollowUp, true, 90),
		tpl("ct_abdomen_6months", "CT abdomen at 6 months", "Semiannual surveillance abdominal CT", StageFollowUp, true, 180),
		tpl("ct_abdomen_annual", "Annual CT abdomen", "Yearly surveillance abdominal CT", StageFollowUp, true, 365),
	},
	"bladder": {
		tpl("urine_cytology", "Urine cytology", "Urinary cytology screening", StageScreening, true, 30),
		tpl("cystoscopy", "Cystoscopy", "Endoscopic bladder examination", StageDiagnosis, true, 14),
		tpl("transurethral_resection", "Transurethral resection", "TURBT for diagnosis and local treatment", StageDiagnosis, true, 21),
		tpl("pathology_report", "Pathology report", "Histology with muscle invasion assessment", StageDiagnosis, true, 28),
		tpl("ct_urography", "CT urography", "Upper tract imaging", StageDiagnosis, true, 28),
		tpl("ct_thorax", "CT thorax", "Thoracic staging imaging", StageDiagnosis, true, 28),
		tpl("intravesical_bcg", "Intravesical BCG", "BCG instillation for non-muscle-invasive disease", StageTreatment, false, 42),
		tpl("radical_cystectomy", "Radical cystectomy", "Bladder removal for muscle-invasive disease", StageTreatment, false, 60),
		tpl("neobladder_or_urostomy", "Neobladder or urostomy", "Urinary diversion reconstruction", StageTreatment, false, 90),
		tpl("chemotherapy", "Chemotherapy", "Perioperative systemic therapy", StageTreatment, false, 60),
		tpl("cystoscopy_3months", "Cystoscopy at 3 months", "First surveillance cystoscopy", StageFollowUp, true, 90),
		tpl("cystoscopy_6months", "Cystoscopy at 6 months", "Semiannual surveillance cystoscopy", StageFollowUp, true, 180),
		tpl("cystoscopy_annual", "Annual cystoscopy", "Yearly surveillance cystoscopy", StageFollowUp, true, 365),
	},
	"testicular": {
		tpl("testicular_ultrasound", "Testicular ultrasound", "Scrotal ultrasound of the mass", StageScreening, true, 7),
		tpl("radical_orchiectomy", "Radical orchiectomy", "Inguinal orchiectomy for diagnosis and treatment", StageDiagnosis, true, 7),
		tpl("pathology_report", "Pathology report", "Histology with germ cell subtype", StageDiagnosis, true, 14),
		tpl("tumor_markers", "Tumor markers", "AFP, beta-hCG and LDH dosage", StageDiagnosis, true, 7),
		tpl("ct_abdomen_pelvis", "CT abdomen and pelvis", "Retroperitoneal staging imaging", StageDiagnosis, true, 14),
		tpl("ct_thorax", "CT thorax", "Thoracic staging imaging", StageDiagnosis, true, 14),
		tpl("retroperitoneal_lymph_node_dissection", "Retroperitoneal lymph node dissection", "RPLND when indicated", StageTreatment, false, 60),
		tpl("chemotherapy", "Chemotherapy", "BEP-based systemic therapy", StageTreatment, false, 30),
		tpl("radiotherapy", "Radiotherapy", "Retroperitoneal irradiation for seminoma", StageTreatment, false, 30),
		tpl("tumor_markers_1month", "Tumor markers at 1 month", "Post-treatment marker normalization check", StageFollowUp, true, 30),
		tpl("ct_abdomen_3months", "CT abdomen at 3 months", "First surveillance abdominal CT", StageFollowUp, true, 90),
		tpl("ct_abdomen_6months", "CT abdomen at 6 months", "Semiannual surveillance abdominal CT", StageFollowUp, true, 180),
		tpl("ct_abdomen_annual", "Annual CT abdomen", "Yearly surveillance abdominal CT", StageFollowUp, true, 365),
	},
}

// genericSteps covers cancer types without a dedicated pathway. There is no
// screening stage; by the time a generic patient enters navigation a lesion
// is already known.
var genericSteps = []StepTemplate{
	tpl("biopsy", "Biopsy", "Tissue sampling of the suspicious lesion", StageDiagnosis, true, 14),
	tpl("pathology_report", "Pathology report", "Histopathological confirmation", StageDiagnosis, true, 21),
	tpl("staging_imaging", "Staging imaging", "Imaging workup for disease extent", StageDiagnosis, true, 28),
	tpl("treatment_planning", "Treatment planning", "Multidisciplinary treatment definition", StageTreatment, true, 14),
	tpl("follow_up_3months", "Follow-up at 3 months", "First post-treatment follow-up visit", StageFollowUp, true, 90),
	tpl("follow_up_6months", "Follow-up at 6 months", "Semiannual follow-up visit", StageFollowUp, true, 180),
}

// palliativeSteps replaces the curative pathway for palliative care patients.
var palliativeSteps = []StepTemplate{
	tpl("palliative_symptom_assessment", "Symptom assessment", "Structured pain and symptom evaluation", StageFollowUp, true, 7),
	tpl("palliative_family_support_assessment", "Family support assessment", "Caregiver and family support evaluation", StageFollowUp, true, 14),
	tpl("palliative_medication_review", "Medication review", "Comfort-oriented medication reconciliation", StageFollowUp, true, 7),
	tpl("palliative_nutritional_assessment", "Nutritional assessment", "Nutrition and hydration evaluation", StageFollowUp, true, 14),
	tpl("palliative_comfort_care", "Comfort care plan", "Immediate comfort measures definition", StageFollowUp, true, 3),
	tpl("palliative_advance_care_planning", "Advance care planning", "Goals of care and directives discussion", StageFollowUp, false, 30),
	tpl("palliative_spiritual_support", "Spiritual support", "Spiritual and emotional support offer", StageFollowUp, false, 30),
	tpl("palliative_quality_of_life_assessment", "Quality of life assessment", "Periodic quality of life scoring", StageFollowUp, true, 7),
	tpl("palliative_multidisciplinary_team", "Multidisciplinary team review", "Palliative team case discussion", StageFollowUp, true, 14),
}

// cancerTypeAliases folds common spellings onto catalog keys.
var cancerTypeAliases = map[string]string{
	"colon":     "colorectal",
	"rectal":    "colorectal",
	"rectum":    "colorectal",
	"renal":     "kidney",
	"pulmonary": "lung",
	"testis":    "testicular",
}

// NormalizeCancerType lowercases and resolves aliases. An empty or unknown
// type maps to the generic pathway.
func NormalizeCancerType(cancerType string) string {
	ct := strings.ToLower(strings.TrimSpace(cancerType))
	if alias, ok := cancerTypeAliases[ct]; ok {
		ct = alias
	}
	if _, ok := pathways[ct]; ok {
		return ct
	}
	return "generic"
}

// TemplatesFor returns the ordered template set for a patient. Palliative
// care overrides the cancer-specific pathway.
func TemplatesFor(cancerType string, palliative bool) []StepTemplate {
	var src []StepTemplate
	if palliative {
		src = palliativeSteps
	} else if set, ok := pathways[NormalizeCancerType(cancerType)]; ok {
		src = set
	} else {
		src = genericSteps
	}

	out := make([]StepTemplate, len(src))
	copy(out, src)
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// TemplatesForStage filters TemplatesFor down to a single journey stage.
func TemplatesForStage(cancerType string, palliative bool, stage string) []StepTemplate {
	var out []StepTemplate
	for _, t := range TemplatesFor(cancerType, palliative) {
		if t.JourneyStage == stage {
			out = append(out, t)
		}
	}
	return out
}

// CancerTypes lists the cancer types with a dedicated pathway.
func CancerTypes() []string {
	types := make([]string, 0, len(pathways))
	for ct := range pathways {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}
