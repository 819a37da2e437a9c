package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"asoandina.org/internal/coa"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/money"
	"asoandina.org/internal/report"
)

// InMemory implements Service with in-process concurrency safety. It backs
// tests, the CLI smoke scenario, and DSN-less runs of the API binary; the
// Postgres store in internal/store/pg is the durable twin.
type InMemory struct {
	mu        sync.RWMutex
	chart     *coa.Chart
	validator *journal.Validator
	entries   []journal.Entry
	byID      map[string]int   // entry id -> index into entries
	balances  map[string]int64 // leaf code -> current natural-signed cents
	seq       uint64
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an engine over the given chart and validator. The
// validator must read from the same chart or revalidation is meaningless.
func NewInMemory(chart *coa.Chart, validator *journal.Validator) *InMemory {
	return &InMemory{
		chart:     chart,
		validator: validator,
		byID:      make(map[string]int),
		balances:  make(map[string]int64),
	}
}

// --- chart administration ---

func (s *InMemory) AddAccount(ctx context.Context, spec coa.Spec) (coa.Account, error) {
	return s.chart.Add(spec)
}

func (s *InMemory) GetAccount(ctx context.Context, code string) (coa.Account, error) {
	return s.chart.Get(code)
}

func (s *InMemory) ListAccounts(ctx context.Context) ([]coa.Account, error) {
	return s.chart.List(), nil
}

func (s *InMemory) Children(ctx context.Context, code string) ([]coa.Account, error) {
	return s.chart.Children(code)
}

func (s *InMemory) RetireAccount(ctx context.Context, code string) error {
	return s.chart.Retire(code)
}

// AccountBalance reads the maintained leaf balance, or sums the descendant
// leaves when the code names an interior account.
func (s *InMemory) AccountBalance(ctx context.Context, code string) (int64, error) {
	acc, err := s.chart.Get(code)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if acc.PermitsPosting {
		return s.balances[code], nil
	}
	var total int64
	for leaf, cents := range s.balances {
		if s.isDescendant(leaf, code) {
			total += cents
		}
	}
	return total, nil
}

func (s *InMemory) isDescendant(code, ancestor string) bool {
	for code != "" {
		acc, err := s.chart.Get(code)
		if err != nil {
			return false
		}
		if acc.ParentCode == ancestor {
			return true
		}
		code = acc.ParentCode
	}
	return false
}

// --- posting pipeline ---

// Post validates the draft, then applies it atomically: the entry record and
// every balance delta land together or not at all.
func (s *InMemory) Post(ctx context.Context, draft journal.Draft) (journal.Entry, error) {
	if err := s.validator.Validate(ctx, draft); err != nil {
		return journal.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postLocked(ctx, draft, "")
}

// postLocked commits a validated draft. The chart is consulted once more so
// an account retired between validation and commit still rejects the entry.
func (s *InMemory) postLocked(ctx context.Context, draft journal.Draft, reverses string) (journal.Entry, error) {
	// Revalidate against current chart state before anything mutates.
	if err := s.validator.Validate(ctx, draft); err != nil {
		return journal.Entry{}, err
	}

	codes := make([]string, len(draft.Lines))
	for i, ln := range draft.Lines {
		codes[i] = ln.AccountCode
	}
	if err := s.chart.NotePostings(codes...); err != nil {
		return journal.Entry{}, mapChartErr(err)
	}

	for _, ln := range draft.Lines {
		acc, err := s.chart.Get(ln.AccountCode)
		if err != nil {
			// NotePostings just saw the account; this cannot happen.
			return journal.Entry{}, err
		}
		s.balances[ln.AccountCode] += coa.NaturalDelta(acc.Nature, ln.DebitCents, ln.CreditCents)
	}

	s.seq++
	entry := journal.Entry{
		ID:          journal.NewID(),
		Sequence:    s.seq,
		Date:        draft.Date,
		Type:        draft.Type,
		Description: draft.Description,
		Lines:       append([]journal.Line(nil), draft.Lines...),
		Reverses:    reverses,
		PostedAt:    time.Now().UTC(),
	}
	s.entries = append(s.entries, entry)
	s.byID[entry.ID] = len(s.entries) - 1
	return entry, nil
}

// Reverse posts a new entry whose lines are the original's with debit and
// credit swapped, then tags the original with the reversal id. The original
// record itself is never edited beyond that back-reference.
func (s *InMemory) Reverse(ctx context.Context, entryID string) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[entryID]
	if !ok {
		return journal.Entry{}, ErrEntryNotFound
	}
	original := s.entries[idx]
	if original.ReversedBy != "" {
		return journal.Entry{}, fmt.Errorf("%w: by %s", ErrAlreadyReversed, original.ReversedBy)
	}

	draft := original.ReversalDraft(time.Now().UTC())
	reversal, err := s.postLocked(ctx, draft, original.ID)
	if err != nil {
		return journal.Entry{}, err
	}
	s.entries[idx].ReversedBy = reversal.ID
	return reversal, nil
}

func (s *InMemory) GetEntry(ctx context.Context, id string) (journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return journal.Entry{}, ErrEntryNotFound
	}
	entry := s.entries[idx]
	entry.Lines = append([]journal.Line(nil), entry.Lines...)
	return entry, nil
}

func (s *InMemory) ListEntries(ctx context.Context, from, to time.Time, limit int, afterSeq uint64) ([]journal.Entry, uint64, error) {
	limit = clampLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []journal.Entry
	last := afterSeq
	for _, e := range s.entries {
		if e.Sequence <= afterSeq {
			continue
		}
		if !inPeriod(e.Date, from, to) {
			continue
		}
		entry := e
		entry.Lines = append([]journal.Line(nil), e.Lines...)
		res = append(res, entry)
		last = e.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last, nil
}

// --- reporting ---

// TrialBalance aggregates leaf movement at or before asOf bottom-up through
// the hierarchy. A zero asOf means "everything posted so far".
func (s *InMemory) TrialBalance(ctx context.Context, asOf time.Time) ([]report.TrialBalanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := s.chart.List()
	index := make(map[string]coa.Account, len(accounts))
	for _, acc := range accounts {
		index[acc.Code] = acc
	}

	leafCents := make(map[string]int64)
	for _, e := range s.entries {
		if !asOf.IsZero() && e.Date.After(asOf) {
			continue
		}
		for _, ln := range e.Lines {
			acc := index[ln.AccountCode]
			leafCents[ln.AccountCode] += coa.NaturalDelta(acc.Nature, ln.DebitCents, ln.CreditCents)
		}
	}
	return report.Aggregate(accounts, leafCents), nil
}

// AccountLedger returns one page of the account's line history within
// [from, to], each annotated with the running balance after it. Lines are
// served strictly in posting order, so the sequence cursor covers every
// entry exactly once, including ones backdated after later postings. Pages
// cut on entry boundaries; pass the returned sequence back to resume.
func (s *InMemory) AccountLedger(ctx context.Context, code string, from, to time.Time, limit int, afterSeq uint64) ([]report.LedgerLine, uint64, error) {
	limit = clampLimit(limit)

	acc, err := s.chart.Get(code)
	if err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Opening balance: everything dated before the period, plus in-period
	// lines already served on earlier pages.
	var running int64
	for _, e := range s.entries {
		pre := !from.IsZero() && e.Date.Before(from)
		served := e.Sequence <= afterSeq && inPeriod(e.Date, from, to)
		if !pre && !served {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountCode == code {
				running += coa.NaturalDelta(acc.Nature, ln.DebitCents, ln.CreditCents)
			}
		}
	}

	// Entries are held in posting order, which is sequence order.
	var page []report.LedgerLine
	last := afterSeq
	for _, e := range s.entries {
		if e.Sequence <= afterSeq || !inPeriod(e.Date, from, to) {
			continue
		}
		if len(page) >= limit {
			break
		}
		for _, ln := range e.Lines {
			if ln.AccountCode != code {
				continue
			}
			running += coa.NaturalDelta(acc.Nature, ln.DebitCents, ln.CreditCents)
			page = append(page, ledgerLine(e, ln, running))
			last = e.Sequence
		}
	}
	return page, last, nil
}

func ledgerLine(e journal.Entry, ln journal.Line, running int64) report.LedgerLine {
	return report.LedgerLine{
		EntryID:       e.ID,
		EntrySequence: e.Sequence,
		Date:          e.Date,
		Memo:          ln.Memo,
		CostCenter:    ln.CostCenter,
		Counterparty:  ln.Counterparty,
		DebitCents:    ln.DebitCents,
		CreditCents:   ln.CreditCents,
		RunningCents:  running,
		Running:       money.FormatCents(running),
	}
}

func inPeriod(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

func mapChartErr(err error) error {
	switch {
	case errors.Is(err, coa.ErrNotFound):
		return fmt.Errorf("%w: %v", journal.ErrAccountNotFound, err)
	case errors.Is(err, coa.ErrRetired), errors.Is(err, coa.ErrNotPostable):
		return fmt.Errorf("%w: %v", journal.ErrAccountNotPostable, err)
	}
	return err
}
