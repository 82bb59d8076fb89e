// Package enrich validates company tax ids against the federal registry
// and fills in registry data the import left blank.
package enrich

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/resilience"
	"github.com/olvconsultores/stratevo/pkg/brasilapi"
)

// ErrInvalidTaxID is returned for a CNPJ that fails the checksum.
var ErrInvalidTaxID = eris.New("enrich: invalid cnpj")

// Store persists enrichment results.
type Store interface {
	UpdateCompanyEnrichment(ctx context.Context, c *model.Company) error
}

// Config tunes registry lookups.
type Config struct {
	Timeout        time.Duration
	MaxConcurrency int
}

// Enricher validates and enriches companies.
type Enricher struct {
	registry brasilapi.Client
	store    Store
	cfg      Config
	retry    resilience.RetryConfig
	log      *zap.Logger
}

// New creates an Enricher.
func New(registry brasilapi.Client, st Store, cfg Config) *Enricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 3
	}
	return &Enricher{
		registry: registry,
		store:    st,
		cfg:      cfg,
		retry:    resilience.ReadRetry("brasilapi"),
		log:      zap.L().With(zap.String("component", "enrich")),
	}
}

// Enrich validates c's CNPJ and fills blank fields from the registry. The
// company is persisted whenever its validation flag or data changed. A
// company without a CNPJ is left alone.
func (e *Enricher) Enrich(ctx context.Context, c *model.Company) error {
	if strings.TrimSpace(c.TaxID) == "" {
		return nil
	}
	digits := NormalizeCNPJ(c.TaxID)
	if !ValidCNPJ(digits) {
		if c.TaxIDValidated {
			c.TaxIDValidated = false
			if err := e.store.UpdateCompanyEnrichment(ctx, c); err != nil {
				return eris.Wrap(err, "enrich: save")
			}
		}
		return eris.Wrapf(ErrInvalidTaxID, "company %s tax id %q", c.ID, c.TaxID)
	}

	rec, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*brasilapi.Company, error) {
		ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		return e.registry.LookupCNPJ(ctx, digits)
	})
	if errors.Is(err, brasilapi.ErrNotFound) {
		c.TaxID = digits
		c.TaxIDValidated = false
		e.log.Info("cnpj not in registry", zap.String("company_id", c.ID), zap.String("cnpj", digits))
		if err := e.store.UpdateCompanyEnrichment(ctx, c); err != nil {
			return eris.Wrap(err, "enrich: save")
		}
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "enrich: lookup %s", digits)
	}

	apply(c, digits, rec)
	if err := e.store.UpdateCompanyEnrichment(ctx, c); err != nil {
		return eris.Wrap(err, "enrich: save")
	}
	return nil
}

func apply(c *model.Company, digits string, rec *brasilapi.Company) {
	c.TaxID = digits
	c.TaxIDValidated = rec.Active()
	if c.Sector == "" && rec.CNAEFiscal > 0 {
		c.Sector = FormatCNAE(rec.CNAEFiscal)
	}
	if c.State == "" {
		c.State = rec.UF
	}
	if c.City == "" {
		c.City = rec.Municipio
	}
	if c.Capital == 0 {
		c.Capital = rec.CapitalSocial
	}
	if c.SourceMeta == nil {
		c.SourceMeta = map[string]any{}
	}
	c.SourceMeta["razao_social"] = rec.RazaoSocial
	c.SourceMeta["cnae_descricao"] = rec.CNAEDescricao
	c.SourceMeta["situacao_cadastral"] = rec.SituacaoCadastral
}

// Summary counts a batch outcome.
type Summary struct {
	Validated int64
	Invalid   int64
	Failed    int64
}

// EnrichBatch enriches companies concurrently. Per-company failures are
// logged and counted; only cancellation aborts the batch.
func (e *Enricher) EnrichBatch(ctx context.Context, companies []model.Company) (*Summary, error) {
	var sum Summary
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)

	for i := range companies {
		c := &companies[i]
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := e.Enrich(gctx, c)
			switch {
			case err == nil:
				if c.TaxIDValidated {
					atomic.AddInt64(&sum.Validated, 1)
				}
			case errors.Is(err, ErrInvalidTaxID):
				atomic.AddInt64(&sum.Invalid, 1)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				atomic.AddInt64(&sum.Failed, 1)
				e.log.Warn("enrichment failed", zap.String("company_id", c.ID), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &sum, eris.Wrap(err, "enrich: batch cancelled")
	}
	return &sum, ctx.Err()
}
