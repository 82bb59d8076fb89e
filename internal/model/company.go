package model

import (
	"time"
)

// CompanySource records how a company entered the system.
type CompanySource string

const (
	SourceCSV    CompanySource = "csv"
	SourceXLSX   CompanySource = "xlsx"
	SourceNotion CompanySource = "notion"
	SourceAPI    CompanySource = "api"
	SourceManual CompanySource = "manual"
)

// Company is a prospect that can be scored against an ICP.
type Company struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	Name            string         `json:"name"`
	TaxID           string         `json:"tax_id,omitempty"`
	TaxIDValidated  bool           `json:"tax_id_validated"`
	Sector          string         `json:"sector,omitempty"`
	State           string         `json:"state,omitempty"`
	City            string         `json:"city,omitempty"`
	EmployeesMin    int            `json:"employees_min,omitempty"`
	EmployeesMax    int            `json:"employees_max,omitempty"`
	Capital         float64        `json:"capital,omitempty"`
	DigitalMaturity *float64       `json:"digital_maturity_score,omitempty"` // 0-10
	Technologies    []string       `json:"technologies,omitempty"`
	Source          CompanySource  `json:"source,omitempty"`
	SourceMeta      map[string]any `json:"source_meta,omitempty"`
	PipelineStatus  PipelineStatus `json:"pipeline_status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Employees returns a single representative headcount for the company's
// employee band. Zero means unknown.
func (c *Company) Employees() int {
	switch {
	case c.EmployeesMin > 0 && c.EmployeesMax > 0:
		return (c.EmployeesMin + c.EmployeesMax) / 2
	case c.EmployeesMax > 0:
		return c.EmployeesMax
	default:
		return c.EmployeesMin
	}
}

// Range is an inclusive numeric interval. A zero Max means unbounded.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	if v < r.Min {
		return false
	}
	return r.Max <= 0 || v <= r.Max
}

// Weights are the relative importance of each qualification sub-score.
type Weights struct {
	Sector   float64 `json:"sector" yaml:"sector" mapstructure:"sector"`
	Geo      float64 `json:"geo" yaml:"geo" mapstructure:"geo"`
	Size     float64 `json:"size" yaml:"size" mapstructure:"size"`
	Maturity float64 `json:"maturity" yaml:"maturity" mapstructure:"maturity"`
	Product  float64 `json:"product" yaml:"product" mapstructure:"product"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Sector + w.Geo + w.Size + w.Maturity + w.Product
}

// ICP is a tenant-owned Ideal Customer Profile.
type ICP struct {
	ID                     string    `json:"id" yaml:"id"`
	TenantID               string    `json:"tenant_id" yaml:"tenant_id"`
	Name                   string    `json:"name" yaml:"name"`
	TargetSectors          []string  `json:"target_sectors,omitempty" yaml:"target_sectors"`
	TargetStates           []string  `json:"target_states,omitempty" yaml:"target_states"`
	TargetRegions          []string  `json:"target_regions,omitempty" yaml:"target_regions"`
	TargetCities           []string  `json:"target_cities,omitempty" yaml:"target_cities"`
	EmployeeRange          *Range    `json:"target_employee_range,omitempty" yaml:"target_employee_range"`
	CapitalRange           *Range    `json:"target_capital_range,omitempty" yaml:"target_capital_range"`
	MinDigitalMaturity     *float64  `json:"min_digital_maturity,omitempty" yaml:"min_digital_maturity"`
	TargetTechnologies     []string  `json:"target_technologies,omitempty" yaml:"target_technologies"`
	SpecialCharacteristics string    `json:"special_characteristics,omitempty" yaml:"special_characteristics"`
	Weights                *Weights  `json:"weights,omitempty" yaml:"weights"`
	CreatedAt              time.Time `json:"created_at" yaml:"-"`
	UpdatedAt              time.Time `json:"updated_at" yaml:"-"`
}

// HasSectorCriteria reports whether the ICP targets any sector.
func (p *ICP) HasSectorCriteria() bool { return len(p.TargetSectors) > 0 }

// HasGeoCriteria reports whether the ICP targets any geography.
func (p *ICP) HasGeoCriteria() bool {
	return len(p.TargetStates) > 0 || len(p.TargetRegions) > 0 || len(p.TargetCities) > 0
}

// HasSizeCriteria reports whether the ICP targets a headcount or capital band.
func (p *ICP) HasSizeCriteria() bool { return p.EmployeeRange != nil || p.CapitalRange != nil }

// HasMaturityCriteria reports whether the ICP sets a digital maturity floor.
func (p *ICP) HasMaturityCriteria() bool { return p.MinDigitalMaturity != nil }

// HasProductCriteria reports whether the ICP targets any technology.
func (p *ICP) HasProductCriteria() bool { return len(p.TargetTechnologies) > 0 }

// HasCriteria reports whether at least one scored criterion is set.
// Special characteristics are free text and do not count.
func (p *ICP) HasCriteria() bool {
	return p.HasSectorCriteria() || p.HasGeoCriteria() || p.HasSizeCriteria() ||
		p.HasMaturityCriteria() || p.HasProductCriteria()
}
