package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"asoandina.org/internal/catalog"
	"asoandina.org/internal/coa"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/ledger"
	"asoandina.org/internal/money"
	"asoandina.org/internal/report"
)

// Store keeps the chart, the journal and the maintained leaf balances in
// Postgres. Every posting commits in one serializable transaction.
type Store struct {
	db        *sql.DB
	validator *journal.Validator
}

var _ ledger.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing pool. Used by Open and by tests.
func New(db *sql.DB) *Store {
	s := &Store{db: db}
	cats := catalog.NewPG(db)
	s.validator = journal.NewValidator(accountReader{db}, cats, cats)
	return s
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// accountReader satisfies the validator's account lookup against the table.
type accountReader struct{ db *sql.DB }

func (r accountReader) Account(ctx context.Context, code string) (coa.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, selectAccount+` where code=$1`, code))
}

const selectAccount = `
	select code, description, nature, permits_posting, requires_counterparty,
	       coalesce(parent_code,''), status, created_at
	from accounts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (coa.Account, error) {
	var a coa.Account
	err := row.Scan(&a.Code, &a.Description, &a.Nature, &a.PermitsPosting,
		&a.RequiresCounterparty, &a.ParentCode, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return coa.Account{}, coa.ErrNotFound
	}
	if err != nil {
		return coa.Account{}, err
	}
	return a, nil
}

// --- chart administration ---

func (s *Store) AddAccount(ctx context.Context, spec coa.Spec) (coa.Account, error) {
	if err := coa.ValidCode(spec.Code); err != nil {
		return coa.Account{}, err
	}
	if spec.Nature != coa.NatureDebit && spec.Nature != coa.NatureCredit {
		return coa.Account{}, coa.ErrInvalidNature
	}
	parentCode := coa.DeriveParent(spec.Code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return coa.Account{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if parentCode != "" {
		var status string
		var permits bool
		var postings int64
		err := tx.QueryRowContext(ctx, `
			select status, permits_posting, posting_count
			from accounts where code=$1 for update
		`, parentCode).Scan(&status, &permits, &postings)
		if errors.Is(err, sql.ErrNoRows) {
			return coa.Account{}, coa.ErrInvalidParentCode
		}
		if err != nil {
			return coa.Account{}, err
		}
		if status == string(coa.StatusRetired) {
			return coa.Account{}, coa.ErrParentRetired
		}
		if postings > 0 {
			return coa.Account{}, coa.ErrChildUnderPostedAccount
		}
		// A parent gaining its first child stops accepting direct postings.
		if permits {
			if _, err := tx.ExecContext(ctx, `
				update accounts set permits_posting=false where code=$1
			`, parentCode); err != nil {
				return coa.Account{}, err
			}
		}
	}

	var created time.Time
	err = tx.QueryRowContext(ctx, `
		insert into accounts(code, description, nature, permits_posting, requires_counterparty, parent_code, status)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7)
		returning created_at
	`, spec.Code, spec.Description, spec.Nature, spec.PermitsPosting,
		spec.RequiresCounterparty, parentCode, coa.StatusActive).Scan(&created)
	if isUniqueViolation(err) {
		return coa.Account{}, coa.ErrDuplicateCode
	}
	if err != nil {
		return coa.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return coa.Account{}, err
	}

	return coa.Account{
		Code:                 spec.Code,
		Description:          spec.Description,
		Nature:               spec.Nature,
		PermitsPosting:       spec.PermitsPosting,
		RequiresCounterparty: spec.RequiresCounterparty,
		ParentCode:           parentCode,
		Status:               coa.StatusActive,
		CreatedAt:            created,
	}, nil
}

func (s *Store) GetAccount(ctx context.Context, code string) (coa.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, selectAccount+` where code=$1`, code))
}

func (s *Store) ListAccounts(ctx context.Context) ([]coa.Account, error) {
	return s.queryAccounts(ctx, selectAccount+` order by code`)
}

func (s *Store) Children(ctx context.Context, code string) ([]coa.Account, error) {
	if _, err := s.GetAccount(ctx, code); err != nil {
		return nil, err
	}
	return s.queryAccounts(ctx, selectAccount+` where parent_code=$1 order by code`, code)
}

func (s *Store) queryAccounts(ctx context.Context, q string, args ...any) ([]coa.Account, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []coa.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *Store) RetireAccount(ctx context.Context, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var postings int64
	err = tx.QueryRowContext(ctx, `
		select status, posting_count from accounts where code=$1 for update
	`, code).Scan(&status, &postings)
	if errors.Is(err, sql.ErrNoRows) {
		return coa.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status == string(coa.StatusRetired) {
		return coa.ErrRetired
	}
	if postings > 0 {
		return coa.ErrHasPostings
	}

	var active int
	if err := tx.QueryRowContext(ctx, `
		select count(*) from accounts where parent_code=$1 and status=$2
	`, code, coa.StatusActive).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return coa.ErrHasActiveChildren
	}

	if _, err := tx.ExecContext(ctx, `
		update accounts set status=$2 where code=$1
	`, code, coa.StatusRetired); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AccountBalance(ctx context.Context, code string) (int64, error) {
	acc, err := s.GetAccount(ctx, code)
	if err != nil {
		return 0, err
	}
	if acc.PermitsPosting {
		var cents int64
		err := s.db.QueryRowContext(ctx, `
			select coalesce(balance_cents,0) from account_balances where account_code=$1
		`, code).Scan(&cents)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return cents, err
	}
	// Interior account: sum the descendant leaves reachable through the
	// stored parent references.
	var total int64
	err = s.db.QueryRowContext(ctx, `
		with recursive subtree as (
			select code from accounts where code=$1
			union all
			select a.code from accounts a join subtree s on a.parent_code = s.code
		)
		select coalesce(sum(b.balance_cents),0)
		from subtree t
		join account_balances b on b.account_code = t.code
		where t.code <> $1
	`, code).Scan(&total)
	return total, err
}

// --- posting pipeline ---

func (s *Store) Post(ctx context.Context, draft journal.Draft) (journal.Entry, error) {
	if err := s.validator.Validate(ctx, draft); err != nil {
		return journal.Entry{}, err
	}
	var entry journal.Entry
	err := s.inSerializableTx(ctx, func(tx *sql.Tx) error {
		e, err := s.postTx(ctx, tx, draft, "")
		entry = e
		return err
	})
	return entry, err
}

func (s *Store) Reverse(ctx context.Context, entryID string) (journal.Entry, error) {
	var reversal journal.Entry
	err := s.inSerializableTx(ctx, func(tx *sql.Tx) error {
		var reversedBy sql.NullString
		original := journal.Entry{}
		err := tx.QueryRowContext(ctx, `
			select id, sequence, entry_date, entry_type, description, coalesce(reverses,''), reversed_by
			from journal_entries where id=$1 for update
		`, entryID).Scan(&original.ID, &original.Sequence, &original.Date, &original.Type,
			&original.Description, &original.Reverses, &reversedBy)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		if reversedBy.Valid {
			return fmt.Errorf("%w: by %s", ledger.ErrAlreadyReversed, reversedBy.String)
		}

		original.Lines, err = s.entryLines(ctx, tx, entryID)
		if err != nil {
			return err
		}

		// A reversal is an ordinary entry: it passes the same referential
		// checks as the original did, against the catalogs as they are now.
		draft := original.ReversalDraft(time.Now().UTC())
		if err := s.validator.Validate(ctx, draft); err != nil {
			return err
		}
		reversal, err = s.postTx(ctx, tx, draft, original.ID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			update journal_entries set reversed_by=$2 where id=$1
		`, original.ID, reversal.ID)
		return err
	})
	return reversal, err
}

// postTx commits a draft inside tx. Account rows are locked in sorted order
// so two concurrent postings touching the same accounts never deadlock, and
// postability is re-checked under the lock.
func (s *Store) postTx(ctx context.Context, tx *sql.Tx, draft journal.Draft, reverses string) (journal.Entry, error) {
	natures := map[string]coa.Nature{}
	for _, code := range sortedCodes(draft.Lines) {
		var nature string
		var permits bool
		var status string
		err := tx.QueryRowContext(ctx, `
			select nature, permits_posting, status from accounts where code=$1 for update
		`, code).Scan(&nature, &permits, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return journal.Entry{}, fmt.Errorf("%w: %s", journal.ErrAccountNotFound, code)
		}
		if err != nil {
			return journal.Entry{}, err
		}
		if status != string(coa.StatusActive) || !permits {
			return journal.Entry{}, fmt.Errorf("%w: %s", journal.ErrAccountNotPostable, code)
		}
		natures[code] = coa.Nature(nature)
	}

	entry := journal.Entry{
		ID:          journal.NewID(),
		Date:        draft.Date,
		Type:        draft.Type,
		Description: draft.Description,
		Lines:       append([]journal.Line(nil), draft.Lines...),
		Reverses:    reverses,
	}
	err := tx.QueryRowContext(ctx, `
		insert into journal_entries(id, entry_date, entry_type, description, reverses)
		values ($1,$2,$3,$4,nullif($5,''))
		returning sequence, posted_at
	`, entry.ID, entry.Date, entry.Type, entry.Description, reverses).Scan(&entry.Sequence, &entry.PostedAt)
	if err != nil {
		return journal.Entry{}, err
	}

	for i, ln := range entry.Lines {
		if _, err := tx.ExecContext(ctx, `
			insert into journal_lines(entry_id, line_no, account_code, cost_center, counterparty, memo, debit_cents, credit_cents)
			values ($1,$2,$3,nullif($4,''),nullif($5,''),$6,$7,$8)
		`, entry.ID, i+1, ln.AccountCode, ln.CostCenter, ln.Counterparty, ln.Memo, ln.DebitCents, ln.CreditCents); err != nil {
			return journal.Entry{}, err
		}
		delta := coa.NaturalDelta(natures[ln.AccountCode], ln.DebitCents, ln.CreditCents)
		if _, err := tx.ExecContext(ctx, `
			insert into account_balances(account_code, balance_cents)
			values ($1,$2)
			on conflict (account_code) do update
			set balance_cents = account_balances.balance_cents + excluded.balance_cents
		`, ln.AccountCode, delta); err != nil {
			return journal.Entry{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			update accounts set posting_count = posting_count + 1 where code=$1
		`, ln.AccountCode); err != nil {
			return journal.Entry{}, err
		}
	}
	return entry, nil
}

// --- journal reads ---

func (s *Store) GetEntry(ctx context.Context, id string) (journal.Entry, error) {
	entry, err := s.scanEntry(s.db.QueryRowContext(ctx, selectEntry+` where id=$1`, id))
	if err != nil {
		return journal.Entry{}, err
	}
	entry.Lines, err = s.entryLines(ctx, s.db, id)
	return entry, err
}

const selectEntry = `
	select id, sequence, entry_date, entry_type, description,
	       coalesce(reverses,''), coalesce(reversed_by,''), posted_at
	from journal_entries`

func (s *Store) scanEntry(row rowScanner) (journal.Entry, error) {
	var e journal.Entry
	err := row.Scan(&e.ID, &e.Sequence, &e.Date, &e.Type, &e.Description,
		&e.Reverses, &e.ReversedBy, &e.PostedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, ledger.ErrEntryNotFound
	}
	if err != nil {
		return journal.Entry{}, err
	}
	return e, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) entryLines(ctx context.Context, q querier, entryID string) ([]journal.Line, error) {
	rows, err := q.QueryContext(ctx, `
		select account_code, coalesce(cost_center,''), coalesce(counterparty,''), memo, debit_cents, credit_cents
		from journal_lines where entry_id=$1 order by line_no
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []journal.Line
	for rows.Next() {
		var ln journal.Line
		if err := rows.Scan(&ln.AccountCode, &ln.CostCenter, &ln.Counterparty,
			&ln.Memo, &ln.DebitCents, &ln.CreditCents); err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}

func (s *Store) ListEntries(ctx context.Context, from, to time.Time, limit int, afterSeq uint64) ([]journal.Entry, uint64, error) {
	limit = clampLimit(limit)
	lo, hi := periodBounds(from, to)

	rows, err := s.db.QueryContext(ctx, selectEntry+`
		where sequence > $1 and entry_date >= $2 and entry_date <= $3
		order by sequence asc
		limit $4
	`, afterSeq, lo, hi, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []journal.Entry
	last := afterSeq
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, e)
		last = e.Sequence
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range res {
		if res[i].Lines, err = s.entryLines(ctx, s.db, res[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return res, last, nil
}

// --- reporting ---

func (s *Store) TrialBalance(ctx context.Context, asOf time.Time) ([]report.TrialBalanceRow, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	_, hi := periodBounds(time.Time{}, asOf)
	rows, err := s.db.QueryContext(ctx, `
		select l.account_code, a.nature,
		       coalesce(sum(l.debit_cents),0), coalesce(sum(l.credit_cents),0)
		from journal_lines l
		join journal_entries e on e.id = l.entry_id
		join accounts a on a.code = l.account_code
		where e.entry_date <= $1
		group by l.account_code, a.nature
	`, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leafCents := map[string]int64{}
	for rows.Next() {
		var code, nature string
		var debits, credits int64
		if err := rows.Scan(&code, &nature, &debits, &credits); err != nil {
			return nil, err
		}
		leafCents[code] = coa.NaturalDelta(coa.Nature(nature), debits, credits)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return report.Aggregate(accounts, leafCents), nil
}

func (s *Store) AccountLedger(ctx context.Context, code string, from, to time.Time, limit int, afterSeq uint64) ([]report.LedgerLine, uint64, error) {
	limit = clampLimit(limit)

	acc, err := s.GetAccount(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	lo, hi := periodBounds(from, to)

	// Opening balance: everything before the period, plus in-period lines
	// already served on earlier pages.
	var debits, credits int64
	err = s.db.QueryRowContext(ctx, `
		select coalesce(sum(l.debit_cents),0), coalesce(sum(l.credit_cents),0)
		from journal_lines l
		join journal_entries e on e.id = l.entry_id
		where l.account_code=$1
		  and (e.entry_date < $2 or (e.entry_date <= $3 and e.sequence <= $4))
	`, code, lo, hi, afterSeq).Scan(&debits, &credits)
	if err != nil {
		return nil, 0, err
	}
	running := coa.NaturalDelta(acc.Nature, debits, credits)

	rows, err := s.db.QueryContext(ctx, `
		select e.id, e.sequence, e.entry_date, l.memo,
		       coalesce(l.cost_center,''), coalesce(l.counterparty,''),
		       l.debit_cents, l.credit_cents
		from journal_lines l
		join journal_entries e on e.id = l.entry_id
		where l.account_code=$1 and e.entry_date >= $2 and e.entry_date <= $3 and e.sequence > $4
		order by e.sequence, l.line_no
	`, code, lo, hi, afterSeq)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	// Strict posting order: the sequence cursor covers every entry exactly
	// once even when later postings are backdated. Pages cut on entry
	// boundaries so the cursor never splits an entry's lines.
	var page []report.LedgerLine
	last := afterSeq
	for rows.Next() {
		var ln report.LedgerLine
		if err := rows.Scan(&ln.EntryID, &ln.EntrySequence, &ln.Date, &ln.Memo,
			&ln.CostCenter, &ln.Counterparty, &ln.DebitCents, &ln.CreditCents); err != nil {
			return nil, 0, err
		}
		if len(page) >= limit && ln.EntrySequence != last {
			break
		}
		running += coa.NaturalDelta(acc.Nature, ln.DebitCents, ln.CreditCents)
		ln.RunningCents = running
		ln.Running = money.FormatCents(running)
		page = append(page, ln)
		last = ln.EntrySequence
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return page, last, nil
}

// --- helpers ---

// inSerializableTx runs fn in a serializable transaction, retrying a bounded
// number of times on serialization failure or deadlock.
func (s *Store) inSerializableTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const attempts = 3
	var err error
	for i := 0; i < attempts; i++ {
		err = s.tryTx(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ledger.ErrConcurrencyConflict, err)
}

func (s *Store) tryTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sortedCodes(lines []journal.Line) []string {
	seen := map[string]bool{}
	var codes []string
	for _, ln := range lines {
		if !seen[ln.AccountCode] {
			seen[ln.AccountCode] = true
			codes = append(codes, ln.AccountCode)
		}
	}
	sort.Strings(codes)
	return codes
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func periodBounds(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return from, to
}
