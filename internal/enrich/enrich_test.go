package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/resilience"
	"github.com/olvconsultores/stratevo/pkg/brasilapi"
)

func TestValidCNPJ(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"11.222.333/0001-81", true},
		{"11222333000181", true},
		{"11.222.333/0001-82", false},
		{"11111111111111", false},
		{"1122233300018", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidCNPJ(tt.in), tt.in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", FormatCNPJ("11222333000181"))
	assert.Equal(t, "123", FormatCNPJ("123"))
	assert.Equal(t, "4683-4/00", FormatCNAE(4683400))
	assert.Equal(t, "0111-3/01", FormatCNAE(111301))
}

type fakeRegistry struct {
	mu    sync.Mutex
	calls int
	errs  []error
	rec   *brasilapi.Company
}

func (f *fakeRegistry) LookupCNPJ(_ context.Context, _ string) (*brasilapi.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.rec, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []model.Company
}

func (f *fakeStore) UpdateCompanyEnrichment(_ context.Context, c *model.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *c)
	return nil
}

var agroSul = &brasilapi.Company{
	RazaoSocial: "AGRO SUL LTDA", UF: "PR", Municipio: "LONDRINA",
	CNAEFiscal: 4683400, CNAEDescricao: "Comércio atacadista de defensivos agrícolas",
	CapitalSocial: 1500000, SituacaoCadastral: "ATIVA",
}

func TestEnrich_FillsBlanksOnly(t *testing.T) {
	reg := &fakeRegistry{rec: agroSul}
	st := &fakeStore{}
	e := New(reg, st, Config{})

	c := &model.Company{ID: "c1", TenantID: "t1", Name: "Agro Sul", TaxID: "11.222.333/0001-81", City: "Maringá"}
	require.NoError(t, e.Enrich(context.Background(), c))

	assert.True(t, c.TaxIDValidated)
	assert.Equal(t, "11222333000181", c.TaxID)
	assert.Equal(t, "4683-4/00", c.Sector)
	assert.Equal(t, "PR", c.State)
	assert.Equal(t, "Maringá", c.City)
	assert.InDelta(t, 1500000, c.Capital, 0.01)
	assert.Equal(t, "AGRO SUL LTDA", c.SourceMeta["razao_social"])
	require.Len(t, st.saved, 1)
}

func TestEnrich_InvalidChecksumSkipsLookup(t *testing.T) {
	reg := &fakeRegistry{rec: agroSul}
	st := &fakeStore{}
	e := New(reg, st, Config{})

	c := &model.Company{ID: "c1", TaxID: "11.222.333/0001-82", TaxIDValidated: true}
	err := e.Enrich(context.Background(), c)
	assert.ErrorIs(t, err, ErrInvalidTaxID)
	assert.False(t, c.TaxIDValidated)
	assert.Zero(t, reg.calls)
	assert.Len(t, st.saved, 1)
}

func TestEnrich_RetriesTransientOnce(t *testing.T) {
	transient := resilience.NewTransientError(errors.New("brasilapi: status 503"), 503)
	reg := &fakeRegistry{rec: agroSul, errs: []error{transient}}
	e := New(reg, &fakeStore{}, Config{})
	e.retry.InitialBackoff = time.Millisecond

	c := &model.Company{ID: "c1", TaxID: "11222333000181"}
	require.NoError(t, e.Enrich(context.Background(), c))
	assert.Equal(t, 2, reg.calls)
	assert.True(t, c.TaxIDValidated)
}

func TestEnrich_NotFoundMarksUnvalidated(t *testing.T) {
	reg := &fakeRegistry{errs: []error{brasilapi.ErrNotFound}}
	st := &fakeStore{}
	e := New(reg, st, Config{})

	c := &model.Company{ID: "c1", TaxID: "11222333000181", TaxIDValidated: true}
	require.NoError(t, e.Enrich(context.Background(), c))
	assert.False(t, c.TaxIDValidated)
	assert.Equal(t, 1, reg.calls)
	assert.Len(t, st.saved, 1)
}

func TestEnrich_NoTaxID(t *testing.T) {
	reg := &fakeRegistry{}
	st := &fakeStore{}
	require.NoError(t, New(reg, st, Config{}).Enrich(context.Background(), &model.Company{ID: "c1"}))
	assert.Zero(t, reg.calls)
	assert.Empty(t, st.saved)
}

func TestEnrichBatch_Counts(t *testing.T) {
	reg := &fakeRegistry{rec: agroSul}
	e := New(reg, &fakeStore{}, Config{MaxConcurrency: 2})

	companies := []model.Company{
		{ID: "a", TaxID: "11222333000181"},
		{ID: "b", TaxID: "11222333000182"},
		{ID: "c", TaxID: "11.222.333/0001-81"},
	}
	sum, err := e.EnrichBatch(context.Background(), companies)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Validated)
	assert.Equal(t, int64(1), sum.Invalid)
	assert.Zero(t, sum.Failed)
}
