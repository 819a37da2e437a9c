package ledgerclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"asoandina.org/internal/catalog"
	"asoandina.org/internal/coa"
	"asoandina.org/internal/httpapi"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/ledger"
	"asoandina.org/internal/stream"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	chart := coa.NewChart()
	if err := coa.Seed(chart); err != nil {
		t.Fatalf("seed chart: %v", err)
	}
	cats := catalog.NewInMemory()
	cats.SeedDemo()
	svc := ledger.NewInMemory(chart, journal.NewValidator(chart, cats, cats))

	api := httpapi.New(httpapi.ReadyProbe{}, svc, stream.New(), "test")
	srv := httptest.NewServer(httpapi.RequestID(api.Handler()))
	t.Cleanup(srv.Close)

	return New(srv.URL).WithHTTPClient(srv.Client())
}

func duesRequest(credit string) EntryRequest {
	return EntryRequest{
		Date:        "2026-03-05",
		Type:        "ingreso",
		Description: "Cuota de afiliación",
		Lines: []EntryLine{
			{AccountCode: "1105", CostCenter: "01", Debit: "25000.00"},
			{AccountCode: "410505", CostCenter: "01", Counterparty: "M-0001", Credit: credit},
		},
	}
}

func TestPostReverseRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	entry, err := c.PostEntry(ctx, duesRequest("25000.00"))
	if err != nil {
		t.Fatalf("PostEntry: %v", err)
	}
	if entry.ID == "" || entry.Sequence == 0 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	bal, err := c.AccountBalance(ctx, "410505")
	if err != nil {
		t.Fatalf("AccountBalance: %v", err)
	}
	if bal.BalanceCents != 2500000 {
		t.Fatalf("balance = %d", bal.BalanceCents)
	}

	reversal, err := c.Reverse(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if reversal.Reverses != entry.ID {
		t.Fatalf("missing back-reference: %+v", reversal)
	}

	bal, err = c.AccountBalance(ctx, "410505")
	if err != nil {
		t.Fatal(err)
	}
	if bal.BalanceCents != 0 {
		t.Fatalf("balance not restored: %d", bal.BalanceCents)
	}
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t)

	_, err := c.PostEntry(context.Background(), duesRequest("24999.99"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 422 || apiErr.Message == "" || apiErr.RequestID == "" {
		t.Fatalf("incomplete error: %+v", apiErr)
	}
}

func TestTrialBalanceAndLedger(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.PostEntry(ctx, duesRequest("25000.00")); err != nil {
		t.Fatal(err)
	}

	tb, err := c.TrialBalance(ctx, "2026-12-31")
	if err != nil {
		t.Fatalf("TrialBalance: %v", err)
	}
	found := false
	for _, row := range tb.Rows {
		if row.AccountCode == "4" && row.BalanceCents == 2500000 {
			found = true
		}
	}
	if !found {
		t.Fatalf("class 4 missing from trial balance: %+v", tb.Rows)
	}

	page, err := c.AccountLedger(ctx, "410505", "2026-03-01", "2026-03-31", 10, 0)
	if err != nil {
		t.Fatalf("AccountLedger: %v", err)
	}
	if len(page.Lines) != 1 || page.Lines[0].RunningCents != 2500000 {
		t.Fatalf("unexpected ledger page: %+v", page)
	}
}

func TestAccountAdministration(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	acc, err := c.AddAccount(ctx, coa.Spec{
		Code: "519505", Description: "Gastos bancarios", Nature: coa.NatureDebit, PermitsPosting: true,
	})
	if err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if acc.ParentCode != "5195" {
		t.Fatalf("parent = %q", acc.ParentCode)
	}

	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) == 0 {
		t.Fatal("expected seeded accounts")
	}

	if err := c.RetireAccount(ctx, "519505"); err != nil {
		t.Fatalf("RetireAccount: %v", err)
	}
	got, err := c.GetAccount(ctx, "519505")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != coa.StatusRetired {
		t.Fatalf("status = %s", got.Status)
	}
}
