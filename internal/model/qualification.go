package model

import "time"

// Grade is the categorical form of a fit score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

// Criterion names a qualification sub-score.
type Criterion string

const (
	CriterionSector   Criterion = "sector"
	CriterionGeo      Criterion = "geo"
	CriterionSize     Criterion = "size"
	CriterionMaturity Criterion = "maturity"
	CriterionProduct  Criterion = "product"
)

// QualificationResult is the outcome of scoring one company against one ICP.
type QualificationResult struct {
	ID                string         `json:"id"`
	TenantID          string         `json:"tenant_id"`
	CompanyID         string         `json:"company_id"`
	ICPID             string         `json:"icp_id"`
	FitScore          float64        `json:"fit_score"`
	Grade             Grade          `json:"grade"`
	SectorFit         float64        `json:"sector_fit_score"`
	GeoFit            float64        `json:"geo_fit_score"`
	CapitalFit        float64        `json:"capital_fit_score"`
	MaturityFit       float64        `json:"maturity_score"`
	ProductSimilarity float64        `json:"product_similarity_score"`
	Criteria          []Criterion    `json:"criteria"`
	Status            PipelineStatus `json:"pipeline_status"`
	DiscardReason     string         `json:"discard_reason,omitempty"`
	RestoreCount      int            `json:"restore_count"`
	CreatedAt         time.Time      `json:"created_at"`
	ApprovedAt        *time.Time     `json:"approved_at,omitempty"`
	DiscardedAt       *time.Time     `json:"discarded_at,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
