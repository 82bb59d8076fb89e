package brasilapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvconsultores/stratevo/internal/resilience"
)

const cnpjBody = `{
  "cnpj": "11222333000181",
  "razao_social": "AGRO SUL COMERCIO DE INSUMOS LTDA",
  "nome_fantasia": "AGRO SUL",
  "uf": "PR",
  "municipio": "LONDRINA",
  "cnae_fiscal": 4683400,
  "cnae_fiscal_descricao": "Comércio atacadista de defensivos agrícolas",
  "capital_social": 1500000.0,
  "descricao_situacao_cadastral": "ATIVA",
  "porte": "DEMAIS",
  "data_inicio_atividade": "2004-03-15"
}`

func TestLookupCNPJ_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cnpj/v1/11222333000181", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cnpjBody)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	got, err := c.LookupCNPJ(context.Background(), "11222333000181")
	require.NoError(t, err)

	assert.Equal(t, "AGRO SUL COMERCIO DE INSUMOS LTDA", got.RazaoSocial)
	assert.Equal(t, "PR", got.UF)
	assert.Equal(t, "LONDRINA", got.Municipio)
	assert.Equal(t, 4683400, got.CNAEFiscal)
	assert.InDelta(t, 1500000.0, got.CapitalSocial, 0.01)
	assert.True(t, got.Active())
}

func TestLookupCNPJ_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"CNPJ 00000000000000 não encontrado."}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := c.LookupCNPJ(context.Background(), "00000000000000")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLookupCNPJ_RateLimitedIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := c.LookupCNPJ(context.Background(), "11222333000181")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestLookupCNPJ_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := c.LookupCNPJ(context.Background(), "11222333000181")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
