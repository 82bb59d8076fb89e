package qualify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvconsultores/stratevo/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }

func agroCompany() *model.Company {
	return &model.Company{
		ID:           "c-1",
		Name:         "Fazenda Boa Vista",
		Sector:       "Agro",
		State:        "SP",
		EmployeesMin: 50,
		EmployeesMax: 50,
	}
}

func TestGradeForBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  model.Grade
	}{
		{0, model.GradeD},
		{39.9, model.GradeD},
		{40.0, model.GradeC},
		{59.9, model.GradeC},
		{60.0, model.GradeB},
		{74.9, model.GradeB},
		{75.0, model.GradeA},
		{89.9, model.GradeA},
		{90.0, model.GradeAPlus},
		{100, model.GradeAPlus},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, GradeFor(tt.score))
		})
	}
}

func TestScore_AgroScenario(t *testing.T) {
	icp := &model.ICP{
		ID:            "icp-1",
		TenantID:      "t-1",
		TargetSectors: []string{"Agro"},
		TargetStates:  []string{"SP", "MG"},
		EmployeeRange: &model.Range{Min: 10, Max: 200},
	}

	res, err := Score(agroCompany(), icp, DefaultWeights())
	require.NoError(t, err)

	assert.InDelta(t, 100, res.SectorFit, 0.001)
	assert.InDelta(t, 100, res.GeoFit, 0.001)
	assert.InDelta(t, 100, res.CapitalFit, 0.001)
	assert.GreaterOrEqual(t, res.FitScore, 90.0)
	assert.Equal(t, model.GradeAPlus, res.Grade)
	assert.Equal(t, []model.Criterion{model.CriterionSector, model.CriterionGeo, model.CriterionSize}, res.Criteria)
	assert.Equal(t, "c-1", res.CompanyID)
	assert.Equal(t, "icp-1", res.ICPID)
	assert.Equal(t, "t-1", res.TenantID)
}

func TestScore_VarejoScenario(t *testing.T) {
	icp := &model.ICP{
		TargetSectors: []string{"Varejo"},
		TargetStates:  []string{"RS"},
	}

	res, err := Score(agroCompany(), icp, DefaultWeights())
	require.NoError(t, err)

	assert.InDelta(t, 0, res.SectorFit, 0.001)
	assert.InDelta(t, 0, res.GeoFit, 0.001)
	assert.Less(t, res.FitScore, 40.0)
	assert.Equal(t, model.GradeD, res.Grade)
}

func TestScore_InvalidICP(t *testing.T) {
	_, err := Score(agroCompany(), &model.ICP{SpecialCharacteristics: "inovadoras"}, DefaultWeights())
	assert.ErrorIs(t, err, ErrInvalidICP)

	_, err = Score(agroCompany(), nil, DefaultWeights())
	assert.ErrorIs(t, err, ErrInvalidICP)
}

func TestScore_Deterministic(t *testing.T) {
	mat := 6.5
	c := &model.Company{
		Sector:          "Comércio varejista",
		State:           "Paraná",
		City:            "Curitiba",
		EmployeesMin:    80,
		EmployeesMax:    120,
		Capital:         2_500_000,
		DigitalMaturity: &mat,
		Technologies:    []string{"SAP", "Salesforce", "AWS"},
	}
	icp := &model.ICP{
		TargetSectors:      []string{"Comércio"},
		TargetStates:       []string{"SC"},
		EmployeeRange:      &model.Range{Min: 150, Max: 500},
		CapitalRange:       &model.Range{Min: 1_000_000},
		MinDigitalMaturity: ptrFloat64(8),
		TargetTechnologies: []string{"SAP", "Oracle"},
	}

	first, err := Score(c, icp, DefaultWeights())
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Score(c, icp, DefaultWeights())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_MissingFieldsScoreZero(t *testing.T) {
	icp := &model.ICP{
		TargetSectors:      []string{"Agro"},
		TargetStates:       []string{"SP"},
		MinDigitalMaturity: ptrFloat64(5),
		TargetTechnologies: []string{"SAP"},
	}

	res, err := Score(&model.Company{Name: "Sem dados"}, icp, DefaultWeights())
	require.NoError(t, err)
	assert.Zero(t, res.SectorFit)
	assert.Zero(t, res.GeoFit)
	assert.Zero(t, res.MaturityFit)
	assert.Zero(t, res.ProductSimilarity)
	assert.Zero(t, res.FitScore)
	assert.Equal(t, model.GradeD, res.Grade)
}

func TestScore_WeightedAverage(t *testing.T) {
	// sector 100 (w 30), geo 50 (w 25): (3000 + 1250) / 55
	icp := &model.ICP{
		TargetSectors: []string{"agro"},
		TargetStates:  []string{"MG"},
	}
	c := &model.Company{Sector: "AGRO", State: "RJ"}

	res, err := Score(c, icp, DefaultWeights())
	require.NoError(t, err)
	assert.InDelta(t, 50, res.GeoFit, 0.001)
	assert.InDelta(t, 77.27, res.FitScore, 0.001)
	assert.Equal(t, model.GradeA, res.Grade)
}

func TestScore_ICPWeightOverride(t *testing.T) {
	icp := &model.ICP{
		TargetSectors: []string{"agro"},
		TargetStates:  []string{"MG"},
		Weights:       &model.Weights{Sector: 0, Geo: 1},
	}
	c := &model.Company{Sector: "agro", State: "RJ"}

	res, err := Score(c, icp, DefaultWeights())
	require.NoError(t, err)
	assert.InDelta(t, 50, res.FitScore, 0.001)
}

func TestScore_ZeroWeightFallsBackToMean(t *testing.T) {
	icp := &model.ICP{TargetTechnologies: []string{"SAP", "AWS"}}
	c := &model.Company{Technologies: []string{"sap"}}

	res, err := Score(c, icp, model.Weights{Sector: 1})
	require.NoError(t, err)
	assert.InDelta(t, 50, res.FitScore, 0.001)
}

func TestScoreSector(t *testing.T) {
	tests := []struct {
		name    string
		sector  string
		targets []string
		want    float64
	}{
		{"exact", "Agro", []string{"Varejo", "Agro"}, 100},
		{"accent and case", "Agronegócio", []string{"AGRONEGOCIO"}, 100},
		{"word prefix", "Agronegócio", []string{"Agro"}, 75},
		{"same cnae", "01.11-3/01", []string{"0111-3/01"}, 100},
		{"same division", "01.11-3/01", []string{"01.61-0/01"}, 50},
		{"other division", "47.11-3/02", []string{"01.61-0/01"}, 0},
		{"no match", "Agro", []string{"Varejo"}, 0},
		{"empty sector", "", []string{"Agro"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreSector(tt.sector, tt.targets), 0.001)
		})
	}
}

func TestScoreGeo(t *testing.T) {
	tests := []struct {
		name    string
		company model.Company
		icp     model.ICP
		want    float64
	}{
		{"state match", model.Company{State: "SP"}, model.ICP{TargetStates: []string{"SP"}}, 100},
		{"state by name", model.Company{State: "São Paulo"}, model.ICP{TargetStates: []string{"sp"}}, 100},
		{"same region", model.Company{State: "RJ"}, model.ICP{TargetStates: []string{"SP"}}, 50},
		{"other region", model.Company{State: "RS"}, model.ICP{TargetStates: []string{"SP"}}, 0},
		{"city match", model.Company{City: "Ribeirão Preto"}, model.ICP{TargetCities: []string{"ribeirao preto"}}, 100},
		{"region target", model.Company{State: "SC"}, model.ICP{TargetRegions: []string{"Sul"}}, 100},
		{"region target other", model.Company{State: "GO"}, model.ICP{TargetRegions: []string{"Centro Oeste"}}, 100},
		{"missing geography", model.Company{}, model.ICP{TargetStates: []string{"SP"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreGeo(&tt.company, &tt.icp), 0.001)
		})
	}
}

func TestRangeFit(t *testing.T) {
	r := model.Range{Min: 10, Max: 200}
	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"inside", 50, 100},
		{"at min", 10, 100},
		{"at max", 200, 100},
		{"half below", 5, 50},
		{"double above", 400, 50},
		{"unknown", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, rangeFit(tt.v, r), 0.001)
		})
	}
}

func TestScoreSize_AveragesEmployeesAndCapital(t *testing.T) {
	icp := &model.ICP{
		EmployeeRange: &model.Range{Min: 10, Max: 200},
		CapitalRange:  &model.Range{Min: 1_000_000, Max: 10_000_000},
	}
	c := &model.Company{EmployeesMin: 40, EmployeesMax: 60, Capital: 500_000}
	assert.InDelta(t, 75, scoreSize(c, icp), 0.001)
}

func TestScoreMaturity(t *testing.T) {
	assert.InDelta(t, 100, scoreMaturity(ptrFloat64(8), ptrFloat64(7)), 0.001)
	assert.InDelta(t, 50, scoreMaturity(ptrFloat64(3), ptrFloat64(6)), 0.001)
	assert.InDelta(t, 0, scoreMaturity(nil, ptrFloat64(6)), 0.001)
	assert.InDelta(t, 100, scoreMaturity(ptrFloat64(0), ptrFloat64(0)), 0.001)
}

func TestScoreProduct(t *testing.T) {
	assert.InDelta(t, 50, scoreProduct([]string{"SAP", "aws"}, []string{"sap", "Oracle"}), 0.001)
	assert.InDelta(t, 100, scoreProduct([]string{"SAP"}, []string{"SAP", "sap"}), 0.001)
	assert.InDelta(t, 0, scoreProduct(nil, []string{"SAP"}), 0.001)
}
