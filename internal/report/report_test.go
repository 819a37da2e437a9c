package report

import (
	"context"
	"errors"
	"testing"

	"asoandina.org/internal/coa"
)

func chartAccounts() []coa.Account {
	return []coa.Account{
		{Code: "1", Description: "Activo", Nature: coa.NatureDebit},
		{Code: "11", Description: "Disponible", Nature: coa.NatureDebit, ParentCode: "1"},
		{Code: "1105", Description: "Bancos", Nature: coa.NatureDebit, ParentCode: "11", PermitsPosting: true},
		{Code: "4", Description: "Ingresos", Nature: coa.NatureCredit},
		{Code: "41", Description: "Operacionales", Nature: coa.NatureCredit, ParentCode: "4"},
		{Code: "4105", Description: "Cuotas", Nature: coa.NatureCredit, ParentCode: "41"},
		{Code: "410505", Description: "Cuotas de afiliación", Nature: coa.NatureCredit, ParentCode: "4105", PermitsPosting: true},
		{Code: "410510", Description: "Inscripciones", Nature: coa.NatureCredit, ParentCode: "4105", PermitsPosting: true},
	}
}

func TestAggregateRollsUpToAncestors(t *testing.T) {
	rows := Aggregate(chartAccounts(), map[string]int64{
		"410505": 2500000,
		"410510": 500000,
		"1105":   3000000,
	})

	byCode := make(map[string]TrialBalanceRow, len(rows))
	for _, r := range rows {
		byCode[r.AccountCode] = r
	}

	for code, want := range map[string]int64{
		"410505": 2500000,
		"410510": 500000,
		"4105":   3000000,
		"41":     3000000,
		"4":      3000000,
		"1105":   3000000,
		"11":     3000000,
		"1":      3000000,
	} {
		got, ok := byCode[code]
		if !ok {
			t.Fatalf("missing row for %s", code)
		}
		if got.BalanceCents != want {
			t.Fatalf("balance(%s) = %d, want %d", code, got.BalanceCents, want)
		}
	}

	// Accounts without movement never appear.
	if _, ok := byCode["2"]; ok {
		t.Fatal("unexpected row for account without postings")
	}

	// Rows come back ordered by code.
	for i := 1; i < len(rows); i++ {
		if rows[i-1].AccountCode >= rows[i].AccountCode {
			t.Fatalf("rows out of order: %s >= %s", rows[i-1].AccountCode, rows[i].AccountCode)
		}
	}

	if byCode["4"].Balance != "30000.00" {
		t.Fatalf("formatted balance = %q", byCode["4"].Balance)
	}
}

func TestAggregateParentEqualsChildren(t *testing.T) {
	rows := Aggregate(chartAccounts(), map[string]int64{
		"410505": 120000,
		"410510": -20000,
	})
	byCode := make(map[string]int64, len(rows))
	for _, r := range rows {
		byCode[r.AccountCode] = r.BalanceCents
	}
	if byCode["4105"] != byCode["410505"]+byCode["410510"] {
		t.Fatalf("parent %d != sum of children %d", byCode["4105"], byCode["410505"]+byCode["410510"])
	}
}

func TestWalkLedgerDrainsPages(t *testing.T) {
	pages := map[uint64][]LedgerLine{
		0: {{EntrySequence: 1, RunningCents: 10}, {EntrySequence: 2, RunningCents: 30}},
		2: {{EntrySequence: 3, RunningCents: 60}},
		3: nil,
	}
	fetch := func(ctx context.Context, after uint64, limit int) ([]LedgerLine, uint64, error) {
		lines := pages[after]
		var next uint64 = after
		if len(lines) > 0 {
			next = lines[len(lines)-1].EntrySequence
		}
		return lines, next, nil
	}

	var seen []uint64
	err := WalkLedger(context.Background(), fetch, 2, func(ln LedgerLine) error {
		seen = append(seen, ln.EntrySequence)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected walk order: %v", seen)
	}
}

func TestWalkLedgerStopsOnCallbackError(t *testing.T) {
	sentinel := errors.New("stop")
	fetch := func(ctx context.Context, after uint64, limit int) ([]LedgerLine, uint64, error) {
		return []LedgerLine{{EntrySequence: after + 1}}, after + 1, nil
	}
	err := WalkLedger(context.Background(), fetch, 1, func(LedgerLine) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
}
