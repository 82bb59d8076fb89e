package salesforce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	soql    []string
	inserts []map[string]any
	objects []string
	updates map[string]map[string]any
}

func (r *recordingClient) Query(_ context.Context, soql string, _ any) error {
	r.soql = append(r.soql, soql)
	return nil
}

func (r *recordingClient) InsertOne(_ context.Context, obj string, rec map[string]any) (string, error) {
	r.objects = append(r.objects, obj)
	r.inserts = append(r.inserts, rec)
	return "id-" + obj, nil
}

func (r *recordingClient) UpdateOne(_ context.Context, _ string, id string, fields map[string]any) error {
	if r.updates == nil {
		r.updates = map[string]map[string]any{}
	}
	r.updates[id] = fields
	return nil
}

func TestFindAccountByNumber_EscapesAndReturnsNil(t *testing.T) {
	c := &recordingClient{}
	acct, err := FindAccountByNumber(context.Background(), c, "o'brien")
	require.NoError(t, err)
	assert.Nil(t, acct)
	assert.Contains(t, c.soql[0], `AccountNumber = 'o\'brien'`)
}

func TestCreateAccount(t *testing.T) {
	c := &recordingClient{}
	id, err := CreateAccount(context.Background(), c, Account{Name: "Agro Sul", AccountNumber: "11222333000181", BillingState: "PR"})
	require.NoError(t, err)
	assert.Equal(t, "id-Account", id)
	assert.Equal(t, map[string]any{"Name": "Agro Sul", "AccountNumber": "11222333000181", "BillingState": "PR"}, c.inserts[0])

	_, err = CreateAccount(context.Background(), c, Account{})
	assert.Error(t, err)
}

func TestCreateOpportunity(t *testing.T) {
	c := &recordingClient{}
	closed := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	id, err := CreateOpportunity(context.Background(), c, Opportunity{
		AccountID: "001xx", Name: "Licenças", Amount: 48000, Probability: 100,
		CloseDate: closed, Won: true, ExternalRef: "deal-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-Opportunity", id)

	rec := c.inserts[0]
	assert.Equal(t, "Closed Won", rec["StageName"])
	assert.Equal(t, "2026-05-20", rec["CloseDate"])
	assert.Equal(t, "001xx", rec["AccountId"])
	assert.Equal(t, "stratevo:deal-1", rec["Description"])

	_, err = CreateOpportunity(context.Background(), c, Opportunity{Name: "x"})
	assert.Error(t, err)
}

func TestFillAccount(t *testing.T) {
	c := &recordingClient{}
	existing := &Account{ID: "001xx", Industry: "Agro"}
	updated, err := FillAccount(context.Background(), c, existing, Account{Industry: "Agribusiness", BillingCity: "Londrina", BillingState: "PR"})
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, map[string]any{"BillingCity": "Londrina", "BillingState": "PR"}, c.updates["001xx"])

	c = &recordingClient{}
	updated, err = FillAccount(context.Background(), c, &Account{ID: "001yy", BillingState: "SP"}, Account{BillingState: "PR"})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Empty(t, c.updates)
}
