package salesforce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Account is the subset of a Salesforce Account used for export. The CNPJ
// is kept in the standard AccountNumber field.
type Account struct {
	ID            string `json:"Id" salesforce:"Id"`
	Name          string `json:"Name" salesforce:"Name"`
	AccountNumber string `json:"AccountNumber" salesforce:"AccountNumber"`
	Industry      string `json:"Industry" salesforce:"Industry"`
	BillingCity   string `json:"BillingCity" salesforce:"BillingCity"`
	BillingState  string `json:"BillingState" salesforce:"BillingState"`
}

// Opportunity is a closed deal pushed to Salesforce.
type Opportunity struct {
	AccountID   string
	Name        string
	Amount      float64
	Probability float64
	CloseDate   time.Time
	Won         bool
	ExternalRef string
}

// FindAccountByNumber returns the Account whose AccountNumber matches, or
// nil when there is none.
func FindAccountByNumber(ctx context.Context, c Client, number string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, AccountNumber, Industry, BillingCity, BillingState FROM Account WHERE AccountNumber = '%s' LIMIT 1",
		escapeSoql(number),
	)
	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account %s", number))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// CreateAccount creates a new Account and returns its Salesforce ID.
func CreateAccount(ctx context.Context, c Client, a Account) (string, error) {
	if strings.TrimSpace(a.Name) == "" {
		return "", eris.New("sf: account Name is required")
	}
	fields := map[string]any{"Name": a.Name}
	if a.AccountNumber != "" {
		fields["AccountNumber"] = a.AccountNumber
	}
	if a.Industry != "" {
		fields["Industry"] = a.Industry
	}
	if a.BillingCity != "" {
		fields["BillingCity"] = a.BillingCity
	}
	if a.BillingState != "" {
		fields["BillingState"] = a.BillingState
	}
	id, err := c.InsertOne(ctx, "Account", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create account")
	}
	return id, nil
}

// FillAccount copies Industry and billing address from src onto existing
// where existing has them blank. It reports whether an update was sent.
func FillAccount(ctx context.Context, c Client, existing *Account, src Account) (bool, error) {
	fields := map[string]any{}
	if existing.Industry == "" && src.Industry != "" {
		fields["Industry"] = src.Industry
	}
	if existing.BillingCity == "" && src.BillingCity != "" {
		fields["BillingCity"] = src.BillingCity
	}
	if existing.BillingState == "" && src.BillingState != "" {
		fields["BillingState"] = src.BillingState
	}
	if len(fields) == 0 {
		return false, nil
	}
	if err := c.UpdateOne(ctx, "Account", existing.ID, fields); err != nil {
		return false, eris.Wrap(err, fmt.Sprintf("sf: fill account %s", existing.ID))
	}
	return true, nil
}

// CreateOpportunity creates a closed Opportunity under an Account.
func CreateOpportunity(ctx context.Context, c Client, o Opportunity) (string, error) {
	if o.AccountID == "" {
		return "", eris.New("sf: account id is required for opportunity")
	}
	stage := "Closed Lost"
	if o.Won {
		stage = "Closed Won"
	}
	fields := map[string]any{
		"AccountId":   o.AccountID,
		"Name":        o.Name,
		"StageName":   stage,
		"CloseDate":   o.CloseDate.Format("2006-01-02"),
		"Amount":      o.Amount,
		"Probability": o.Probability,
	}
	if o.ExternalRef != "" {
		fields["Description"] = "stratevo:" + o.ExternalRef
	}
	id, err := c.InsertOne(ctx, "Opportunity", fields)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: create opportunity for account %s", o.AccountID))
	}
	return id, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
