// Package brasilapi provides a client for the BrasilAPI CNPJ registry lookup.
package brasilapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/olvconsultores/stratevo/internal/resilience"
)

// ErrNotFound is returned when the registry has no record for a CNPJ.
var ErrNotFound = errors.New("brasilapi: cnpj not found")

// Client looks up companies in the federal registry.
type Client interface {
	// LookupCNPJ fetches the registry record for a 14-digit CNPJ.
	LookupCNPJ(ctx context.Context, cnpj string) (*Company, error)
}

// Company is the subset of the CNPJ record used for enrichment.
type Company struct {
	CNPJ                string  `json:"cnpj"`
	RazaoSocial         string  `json:"razao_social"`
	NomeFantasia        string  `json:"nome_fantasia"`
	UF                  string  `json:"uf"`
	Municipio           string  `json:"municipio"`
	CNAEFiscal          int     `json:"cnae_fiscal"`
	CNAEDescricao       string  `json:"cnae_fiscal_descricao"`
	CapitalSocial       float64 `json:"capital_social"`
	SituacaoCadastral   string  `json:"descricao_situacao_cadastral"`
	Porte               string  `json:"porte"`
	DataInicioAtividade string  `json:"data_inicio_atividade"`
}

// Active reports whether the registry lists the company as active.
func (c *Company) Active() bool {
	return c.SituacaoCadastral == "ATIVA"
}

// Option configures the BrasilAPI client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero or negative disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new BrasilAPI client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://brasilapi.com.br/api",
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(3), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) LookupCNPJ(ctx context.Context, cnpj string) (*Company, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "brasilapi: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cnpj/v1/"+cnpj, nil)
	if err != nil {
		return nil, eris.Wrap(err, "brasilapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "brasilapi: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "brasilapi: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.HTTPError("brasilapi", resp.StatusCode, string(body))
	}

	var out Company
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "brasilapi: unmarshal response")
	}
	return &out, nil
}
