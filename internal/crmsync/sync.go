// Package crmsync exports won deals to Salesforce.
package crmsync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/pkg/salesforce"
)

// Store is the persistence the exporter needs.
type Store interface {
	ListUnsyncedWonDeals(ctx context.Context, limit int) ([]model.Deal, error)
	GetCompany(ctx context.Context, tenantID, id string) (*model.Company, error)
	SetDealExternalID(ctx context.Context, tenantID, id, externalID string) error
}

// Summary counts an export run.
type Summary struct {
	Exported int
	Failed   int
}

// Exporter pushes closed_won deals as Account + Opportunity.
type Exporter struct {
	store Store
	sf    salesforce.Client
	log   *zap.Logger
}

// New creates an Exporter.
func New(st Store, sf salesforce.Client) *Exporter {
	return &Exporter{
		store: st,
		sf:    sf,
		log:   zap.L().With(zap.String("component", "crmsync")),
	}
}

// Run exports up to limit deals. A deal that fails is logged and left
// unsynced for the next run.
func (e *Exporter) Run(ctx context.Context, limit int) (*Summary, error) {
	deals, err := e.store.ListUnsyncedWonDeals(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "crmsync: list deals")
	}

	sum := &Summary{}
	accounts := map[string]string{}
	for i := range deals {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		d := &deals[i]
		if err := e.export(ctx, d, accounts); err != nil {
			sum.Failed++
			e.log.Warn("deal export failed", zap.String("deal_id", d.ID), zap.String("tenant_id", d.TenantID), zap.Error(err))
			continue
		}
		sum.Exported++
	}

	e.log.Info("crm export complete", zap.Int("exported", sum.Exported), zap.Int("failed", sum.Failed))
	return sum, nil
}

func (e *Exporter) export(ctx context.Context, d *model.Deal, accounts map[string]string) error {
	company, err := e.store.GetCompany(ctx, d.TenantID, d.CompanyID)
	if err != nil {
		return eris.Wrap(err, "crmsync: load company")
	}

	accountID, err := e.account(ctx, company, accounts)
	if err != nil {
		return err
	}

	closed := time.Now().UTC()
	if d.ClosedAt != nil {
		closed = *d.ClosedAt
	}
	oppID, err := salesforce.CreateOpportunity(ctx, e.sf, salesforce.Opportunity{
		AccountID:   accountID,
		Name:        d.Title,
		Amount:      d.Value,
		Probability: d.Probability,
		CloseDate:   closed,
		Won:         d.Stage == model.StageClosedWon,
		ExternalRef: d.ID,
	})
	if err != nil {
		return err
	}

	if err := e.store.SetDealExternalID(ctx, d.TenantID, d.ID, oppID); err != nil {
		return eris.Wrapf(err, "crmsync: record opportunity %s", oppID)
	}
	return nil
}

// account finds the company's Account by validated CNPJ or creates one.
// Results are cached per run by company id.
func (e *Exporter) account(ctx context.Context, c *model.Company, cache map[string]string) (string, error) {
	if id, ok := cache[c.ID]; ok {
		return id, nil
	}
	want := salesforce.Account{
		Name:          c.Name,
		AccountNumber: c.TaxID,
		Industry:      c.Sector,
		BillingCity:   c.City,
		BillingState:  c.State,
	}
	if c.TaxIDValidated && c.TaxID != "" {
		acct, err := salesforce.FindAccountByNumber(ctx, e.sf, c.TaxID)
		if err != nil {
			return "", err
		}
		if acct != nil {
			// A failed backfill does not block the export.
			if _, err := salesforce.FillAccount(ctx, e.sf, acct, want); err != nil {
				e.log.Warn("account backfill failed", zap.String("account_id", acct.ID), zap.Error(err))
			}
			cache[c.ID] = acct.ID
			return acct.ID, nil
		}
	}
	id, err := salesforce.CreateAccount(ctx, e.sf, want)
	if err != nil {
		return "", err
	}
	cache[c.ID] = id
	return id, nil
}
