// Package ledger wires the chart, the validator, and the poster into the
// service surface the rest of the system consumes. Reporting reads never
// mutate state; posting is all-or-nothing.
package ledger

import (
	"context"
	"errors"
	"time"

	"asoandina.org/internal/coa"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/report"
)

// Service defines the ledger operations exposed to collaborators.
type Service interface {
	// Chart administration.
	AddAccount(ctx context.Context, spec coa.Spec) (coa.Account, error)
	GetAccount(ctx context.Context, code string) (coa.Account, error)
	ListAccounts(ctx context.Context) ([]coa.Account, error)
	Children(ctx context.Context, code string) ([]coa.Account, error)
	RetireAccount(ctx context.Context, code string) error

	// AccountBalance returns the current natural-signed balance in cents.
	// For a parent account this is always the sum of its descendant leaves.
	AccountBalance(ctx context.Context, code string) (int64, error)

	// Posting pipeline.
	Post(ctx context.Context, draft journal.Draft) (journal.Entry, error)
	Reverse(ctx context.Context, entryID string) (journal.Entry, error)
	GetEntry(ctx context.Context, id string) (journal.Entry, error)
	ListEntries(ctx context.Context, from, to time.Time, limit int, afterSeq uint64) ([]journal.Entry, uint64, error)

	// Reporting.
	TrialBalance(ctx context.Context, asOf time.Time) ([]report.TrialBalanceRow, error)
	AccountLedger(ctx context.Context, code string, from, to time.Time, limit int, afterSeq uint64) ([]report.LedgerLine, uint64, error)
}

var (
	ErrEntryNotFound       = errors.New("journal entry not found")
	ErrAlreadyReversed     = errors.New("journal entry already reversed")
	ErrConcurrencyConflict = errors.New("concurrent posting conflict, retries exhausted")
)

// clampLimit keeps page sizes within sane bounds.
func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
