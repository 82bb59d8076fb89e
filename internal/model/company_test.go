package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompanyEmployees(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		min, max int
		want     int
	}{
		{"both", 10, 50, 30},
		{"max only", 0, 40, 40},
		{"min only", 25, 0, 25},
		{"unknown", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Company{EmployeesMin: tt.min, EmployeesMax: tt.max}
			assert.Equal(t, tt.want, c.Employees())
		})
	}
}

func TestRangeContains(t *testing.T) {
	t.Parallel()

	r := Range{Min: 10, Max: 200}
	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(200))
	assert.False(t, r.Contains(9))
	assert.False(t, r.Contains(201))

	open := Range{Min: 100}
	assert.True(t, open.Contains(1e9))
}

func TestICPHasCriteria(t *testing.T) {
	t.Parallel()

	assert.False(t, (&ICP{}).HasCriteria())
	assert.False(t, (&ICP{SpecialCharacteristics: "family owned"}).HasCriteria())
	assert.True(t, (&ICP{TargetSectors: []string{"Agro"}}).HasCriteria())
	assert.True(t, (&ICP{TargetRegions: []string{"Sul"}}).HasCriteria())
	assert.True(t, (&ICP{CapitalRange: &Range{Min: 1}}).HasCriteria())
	mat := 5.0
	assert.True(t, (&ICP{MinDigitalMaturity: &mat}).HasCriteria())
	assert.True(t, (&ICP{TargetTechnologies: []string{"SAP"}}).HasCriteria())
}

func TestPipelineStatus(t *testing.T) {
	t.Parallel()

	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, PipelineStatus("deal.unknown").Valid())

	assert.True(t, StatusDealProposal.IsDeal())
	assert.False(t, StatusApproved.IsDeal())

	assert.True(t, StatusDiscarded.IsTerminal())
	assert.True(t, StatusDealClosedWon.IsTerminal())
	assert.True(t, StatusDealClosedLost.IsTerminal())
	assert.False(t, StatusDealNegotiation.IsTerminal())

	stage, ok := StageOf(StatusDealNegotiation)
	assert.True(t, ok)
	assert.Equal(t, StageNegotiation, stage)
	assert.Equal(t, StatusDealNegotiation, stage.Status())

	_, ok = StageOf(StatusQualified)
	assert.False(t, ok)
}

func TestDealDaysInStage(t *testing.T) {
	t.Parallel()

	changed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := Deal{Stage: StageProposal, StageChangedAt: changed}

	assert.Equal(t, 0, d.DaysInStage(changed.Add(23*time.Hour)))
	assert.Equal(t, 1, d.DaysInStage(changed.Add(24*time.Hour)))
	assert.Equal(t, 10, d.DaysInStage(changed.AddDate(0, 0, 10)))
	assert.Equal(t, 0, d.DaysInStage(changed.Add(-time.Hour)))
	assert.Equal(t, StatusDealProposal, d.Status())
}

func TestFireMarkerKey(t *testing.T) {
	t.Parallel()

	m := FireMarker{RuleID: "r1", EntityID: "e1"}
	assert.Equal(t, "r1:e1", m.Key())
}
