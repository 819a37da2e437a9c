// Package report holds the read-side row types and the bottom-up balance
// aggregation shared by the in-memory engine and the Postgres store.
// Nothing in this package mutates ledger state.
package report

import (
	"context"
	"sort"
	"time"

	"asoandina.org/internal/coa"
	"asoandina.org/internal/money"
)

// TrialBalanceRow is one account's natural-signed balance as of an instant.
type TrialBalanceRow struct {
	AccountCode  string     `json:"account_code"`
	Description  string     `json:"description"`
	Nature       coa.Nature `json:"nature"`
	BalanceCents int64      `json:"balance_cents"`
	Balance      string     `json:"balance"`
}

// LedgerLine is one posted line of an account's ledger, annotated with the
// running balance immediately after it.
type LedgerLine struct {
	EntryID       string    `json:"entry_id"`
	EntrySequence uint64    `json:"entry_sequence"`
	Date          time.Time `json:"date"`
	Memo          string    `json:"memo,omitempty"`
	CostCenter    string    `json:"cost_center"`
	Counterparty  string    `json:"counterparty,omitempty"`
	DebitCents    int64     `json:"debit_cents"`
	CreditCents   int64     `json:"credit_cents"`
	RunningCents  int64     `json:"running_cents"`
	Running       string    `json:"running"`
}

// Aggregate rolls leaf balances up through the stored parent references and
// returns a row for every account that carries movement, ordered by code.
// Parents never hold balances of their own; their value is always the sum of
// their descendant leaves, so the two can never drift apart.
func Aggregate(accounts []coa.Account, leafCents map[string]int64) []TrialBalanceRow {
	index := make(map[string]coa.Account, len(accounts))
	for _, acc := range accounts {
		index[acc.Code] = acc
	}

	totals := make(map[string]int64)
	for code, cents := range leafCents {
		acc, ok := index[code]
		if !ok {
			continue
		}
		totals[code] += cents
		for parent := acc.ParentCode; parent != ""; {
			totals[parent] += cents
			p, ok := index[parent]
			if !ok {
				break
			}
			parent = p.ParentCode
		}
	}

	rows := make([]TrialBalanceRow, 0, len(totals))
	for code, cents := range totals {
		acc := index[code]
		rows = append(rows, TrialBalanceRow{
			AccountCode:  code,
			Description:  acc.Description,
			Nature:       acc.Nature,
			BalanceCents: cents,
			Balance:      money.FormatCents(cents),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountCode < rows[j].AccountCode })
	return rows
}

// PageFunc fetches one page of ledger lines after the given entry sequence.
// It is the restartable cursor underneath WalkLedger.
type PageFunc func(ctx context.Context, afterSeq uint64, limit int) ([]LedgerLine, uint64, error)

// WalkLedger drains a paged account ledger, invoking fn for every line in
// posting order. The walk is lazy: each page is fetched only after the
// previous one has been consumed.
func WalkLedger(ctx context.Context, fetch PageFunc, pageSize int, fn func(LedgerLine) error) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	var after uint64
	for {
		lines, next, err := fetch(ctx, after, pageSize)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		for _, ln := range lines {
			if err := fn(ln); err != nil {
				return err
			}
		}
		after = next
	}
}
