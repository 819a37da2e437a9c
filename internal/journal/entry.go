// Package journal defines comprobantes (journal entries), their lines, and the
// validator that gates every entry before the poster may commit it.
package journal

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryType is the fixed classifier carried by every comprobante.
type EntryType string

const (
	TypeIngreso  EntryType = "ingreso"
	TypeEgreso   EntryType = "egreso"
	TypeTraslado EntryType = "traslado"
	TypeNota     EntryType = "nota"
)

// Valid reports whether the classifier is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case TypeIngreso, TypeEgreso, TypeTraslado, TypeNota:
		return true
	}
	return false
}

// Line is one side of a double-entry movement. Amounts are integer cents;
// exactly one of DebitCents/CreditCents is positive, the other exactly zero.
type Line struct {
	AccountCode  string `json:"account_code"`
	CostCenter   string `json:"cost_center"`
	Counterparty string `json:"counterparty,omitempty"`
	Memo         string `json:"memo,omitempty"`
	DebitCents   int64  `json:"debit_cents"`
	CreditCents  int64  `json:"credit_cents"`
}

// Draft is a candidate entry before validation. Drafts are never persisted;
// a rejected draft leaves no trace.
type Draft struct {
	Date        time.Time `json:"date"`
	Type        EntryType `json:"type"`
	Description string    `json:"description"`
	Lines       []Line    `json:"lines"`
}

// TotalDebitCents sums the debit side of the draft.
func (d Draft) TotalDebitCents() int64 {
	var total int64
	for _, ln := range d.Lines {
		total += ln.DebitCents
	}
	return total
}

// TotalCreditCents sums the credit side of the draft.
func (d Draft) TotalCreditCents() int64 {
	var total int64
	for _, ln := range d.Lines {
		total += ln.CreditCents
	}
	return total
}

// Entry is a posted comprobante. Once posted it is immutable; the only later
// change is ReversedBy gaining the id of the reversing entry.
type Entry struct {
	ID          string    `json:"id"`
	Sequence    uint64    `json:"sequence"`
	Date        time.Time `json:"date"`
	Type        EntryType `json:"type"`
	Description string    `json:"description"`
	Lines       []Line    `json:"lines"`
	Reverses    string    `json:"reverses,omitempty"`
	ReversedBy  string    `json:"reversed_by,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
}

// ReversalDraft builds the draft that undoes a posted entry: same lines with
// debit and credit swapped, dated at the reversal instant. The caller tags the
// resulting entry with the original's id.
func (e Entry) ReversalDraft(date time.Time) Draft {
	lines := make([]Line, len(e.Lines))
	for i, ln := range e.Lines {
		lines[i] = Line{
			AccountCode:  ln.AccountCode,
			CostCenter:   ln.CostCenter,
			Counterparty: ln.Counterparty,
			Memo:         ln.Memo,
			DebitCents:   ln.CreditCents,
			CreditCents:  ln.DebitCents,
		}
	}
	return Draft{
		Date:        date,
		Type:        TypeNota,
		Description: "Reversión de " + e.ID,
		Lines:       lines,
	}
}

// NewID returns a fresh entry identifier.
func NewID() string { return uuid.NewString() }

var (
	ErrInvalidEntryType     = errors.New("unknown entry type")
	ErrMissingDate          = errors.New("entry date is required")
	ErrTooFewLines          = errors.New("entry needs at least two lines")
	ErrNegativeAmount       = errors.New("line amounts must not be negative")
	ErrLineBothSides        = errors.New("line sets both debit and credit")
	ErrLineNoAmount         = errors.New("line sets neither debit nor credit")
	ErrUnbalanced           = errors.New("entry debits and credits do not balance")
	ErrAccountNotFound      = errors.New("line references an unknown account")
	ErrAccountNotPostable   = errors.New("line references an account that does not accept postings")
	ErrCostCenterRequired   = errors.New("line is missing a cost center")
	ErrCostCenterNotFound   = errors.New("line references an unknown or inactive cost center")
	ErrCounterpartyRequired = errors.New("account requires a counterparty on every line")
	ErrCounterpartyNotFound = errors.New("line references an unknown counterparty")
)

// Reason maps a validation failure to a short stable label for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEntryType):
		return "invalid_type"
	case errors.Is(err, ErrMissingDate):
		return "missing_date"
	case errors.Is(err, ErrTooFewLines):
		return "too_few_lines"
	case errors.Is(err, ErrNegativeAmount):
		return "negative_amount"
	case errors.Is(err, ErrLineBothSides):
		return "line_both_sides"
	case errors.Is(err, ErrLineNoAmount):
		return "line_no_amount"
	case errors.Is(err, ErrUnbalanced):
		return "unbalanced"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrAccountNotPostable):
		return "account_not_postable"
	case errors.Is(err, ErrCostCenterRequired):
		return "cost_center_required"
	case errors.Is(err, ErrCostCenterNotFound):
		return "cost_center_not_found"
	case errors.Is(err, ErrCounterpartyRequired):
		return "counterparty_required"
	case errors.Is(err, ErrCounterpartyNotFound):
		return "counterparty_not_found"
	}
	return "other"
}
