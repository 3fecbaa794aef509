package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient statuses.
const (
	StatusActive      = "ACTIVE"
	StatusInTreatment = "IN_TREATMENT"
	StatusFollowUp    = "FOLLOW_UP"
	StatusDischarged  = "DISCHARGED"
	StatusDeceased    = "DECEASED"
)

// NavigableStatuses are the statuses eligible for pathway navigation.
var NavigableStatuses = []string{StatusActive, StatusInTreatment, StatusFollowUp}

// Patient maps to the patient table.
type Patient struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Age              *int      `db:"age" json:"age,omitempty"`
	CancerType       *string   `db:"cancer_type" json:"cancer_type,omitempty"`
	IsPalliativeCare bool      `db:"is_palliative_care" json:"is_palliative_care"`
	CurrentStage     string    `db:"current_stage" json:"current_stage"`
	Status           string    `db:"status" json:"status"`
	PriorityScore    int       `db:"priority_score" json:"priority_score"`
	PriorityCategory string    `db:"priority_category" json:"priority_category"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// ListFilter narrows patient listings.
type ListFilter struct {
	Status     string
	Stage      string
	CancerType string
}

var validStatuses = map[string]bool{
	StatusActive: true, StatusInTreatment: true, StatusFollowUp: true,
	StatusDischarged: true, StatusDeceased: true,
}

var validStages = map[string]bool{
	"SCREENING": true, "NAVIGATION": true, "DIAGNOSIS": true,
	"TREATMENT": true, "FOLLOW_UP": true,
}

var validPriorityCategories = map[string]bool{
	"LOW": true, "MEDIUM": true, "HIGH": true, "CRITICAL": true,
}
