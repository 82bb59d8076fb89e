package qualify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvconsultores/stratevo/internal/model"
)

func TestDefaultWeightsSumTo100(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 100, w.Sum(), 0.001)
	require.NoError(t, ValidateWeights(w))
}

func TestValidateWeights(t *testing.T) {
	err := ValidateWeights(model.Weights{Sector: -1, Geo: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sector weight must be >= 0")

	err = ValidateWeights(model.Weights{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight sum must be > 0")
}

func TestResolveWeights(t *testing.T) {
	tenant := DefaultWeights()
	assert.Equal(t, tenant, ResolveWeights(&model.ICP{}, tenant))
	assert.Equal(t, tenant, ResolveWeights(nil, tenant))

	override := model.Weights{Sector: 1}
	assert.Equal(t, override, ResolveWeights(&model.ICP{Weights: &override}, tenant))
	assert.Equal(t, tenant, ResolveWeights(&model.ICP{Weights: &model.Weights{}}, tenant))
}

func TestParseICP(t *testing.T) {
	data := []byte(`
id: icp-agro
tenant_id: t-1
name: Agro Sudeste
target_sectors: [Agro]
target_states: [SP, MG]
target_employee_range:
  min: 10
  max: 200
weights:
  sector: 50
  geo: 30
  size: 20
`)
	icp, err := ParseICP(data)
	require.NoError(t, err)
	assert.Equal(t, "icp-agro", icp.ID)
	assert.Equal(t, []string{"SP", "MG"}, icp.TargetStates)
	require.NotNil(t, icp.EmployeeRange)
	assert.InDelta(t, 200, icp.EmployeeRange.Max, 0.001)
	require.NotNil(t, icp.Weights)
	assert.InDelta(t, 50, icp.Weights.Sector, 0.001)
}

func TestParseICP_NoCriteria(t *testing.T) {
	_, err := ParseICP([]byte("name: vazio\nspecial_characteristics: qualquer\n"))
	assert.ErrorIs(t, err, ErrInvalidICP)
}

func TestParseICP_BadWeights(t *testing.T) {
	_, err := ParseICP([]byte("target_sectors: [Agro]\nweights:\n  sector: -5\n  geo: 10\n"))
	require.Error(t, err)
}

func TestFoldAndStates(t *testing.T) {
	assert.Equal(t, "sao paulo", Fold("  São   Paulo "))
	assert.Equal(t, "SP", NormalizeState("são paulo"))
	assert.Equal(t, "RS", NormalizeState("rs"))
	assert.Equal(t, RegionSul, RegionOf("Rio Grande do Sul"))
	assert.Equal(t, Region(""), RegionOf("XX"))
	assert.Equal(t, RegionCentroOeste, NormalizeRegion("Centro-Oeste"))
	assert.Equal(t, Region(""), NormalizeRegion("Atlantida"))
}
