package journal

import (
	"context"
	"errors"
	"fmt"

	"asoandina.org/internal/catalog"
	"asoandina.org/internal/coa"
)

// Accounts is the chart view the validator needs. Both the in-memory chart
// and the Postgres store satisfy it.
type Accounts interface {
	Account(ctx context.Context, code string) (coa.Account, error)
}

// Validator checks a draft entry against the structural invariants and the
// chart, cost-center, and counterparty catalogs. It never mutates anything,
// so a validation may be retried or abandoned at any point.
type Validator struct {
	accounts       Accounts
	costCenters    catalog.CostCenters
	counterparties catalog.Counterparties
}

func NewValidator(accounts Accounts, costCenters catalog.CostCenters, counterparties catalog.Counterparties) *Validator {
	return &Validator{
		accounts:       accounts,
		costCenters:    costCenters,
		counterparties: counterparties,
	}
}

// Validate runs the structural checks first (no I/O), then the referential
// checks, and returns the first violation found.
func (v *Validator) Validate(ctx context.Context, d Draft) error {
	if err := v.validateShape(d); err != nil {
		return err
	}
	return v.validateReferences(ctx, d)
}

func (v *Validator) validateShape(d Draft) error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntryType, d.Type)
	}
	if d.Date.IsZero() {
		return ErrMissingDate
	}
	if len(d.Lines) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewLines, len(d.Lines))
	}

	for i, ln := range d.Lines {
		if ln.DebitCents < 0 || ln.CreditCents < 0 {
			return fmt.Errorf("line %d: %w", i+1, ErrNegativeAmount)
		}
		hasDebit := ln.DebitCents > 0
		hasCredit := ln.CreditCents > 0
		if hasDebit && hasCredit {
			return fmt.Errorf("line %d: %w", i+1, ErrLineBothSides)
		}
		if !hasDebit && !hasCredit {
			return fmt.Errorf("line %d: %w", i+1, ErrLineNoAmount)
		}
	}

	// Compared as integer cents; floating representations never enter here.
	if debits, credits := d.TotalDebitCents(), d.TotalCreditCents(); debits != credits {
		return fmt.Errorf("%w: debits %d != credits %d (cents)", ErrUnbalanced, debits, credits)
	}
	return nil
}

func (v *Validator) validateReferences(ctx context.Context, d Draft) error {
	for i, ln := range d.Lines {
		if err := ctx.Err(); err != nil {
			return err
		}

		acc, err := v.accounts.Account(ctx, ln.AccountCode)
		if err != nil {
			if errors.Is(err, coa.ErrNotFound) {
				return fmt.Errorf("line %d: %w: %s", i+1, ErrAccountNotFound, ln.AccountCode)
			}
			return fmt.Errorf("line %d: look up account %s: %w", i+1, ln.AccountCode, err)
		}
		if !acc.Postable() {
			return fmt.Errorf("line %d: %w: %s", i+1, ErrAccountNotPostable, ln.AccountCode)
		}

		if ln.CostCenter == "" {
			return fmt.Errorf("line %d: %w", i+1, ErrCostCenterRequired)
		}
		cc, err := v.costCenters.CostCenter(ctx, ln.CostCenter)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("line %d: %w: %s", i+1, ErrCostCenterNotFound, ln.CostCenter)
			}
			return fmt.Errorf("line %d: look up cost center %s: %w", i+1, ln.CostCenter, err)
		}
		if !cc.Active {
			return fmt.Errorf("line %d: %w: %s", i+1, ErrCostCenterNotFound, ln.CostCenter)
		}

		if acc.RequiresCounterparty && ln.Counterparty == "" {
			return fmt.Errorf("line %d: %w: %s", i+1, ErrCounterpartyRequired, ln.AccountCode)
		}
		if ln.Counterparty != "" {
			if _, err := v.counterparties.Counterparty(ctx, ln.Counterparty); err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return fmt.Errorf("line %d: %w: %s", i+1, ErrCounterpartyNotFound, ln.Counterparty)
				}
				return fmt.Errorf("line %d: look up counterparty %s: %w", i+1, ln.Counterparty, err)
			}
		}
	}
	return nil
}
