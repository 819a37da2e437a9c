// Package coa implements the hierarchical chart of accounts. Codes follow the
// PUC layout used by the association: segment boundaries at lengths 1 (clase),
// 2 (grupo), 4 (cuenta), 6 (subcuenta) and every further 2 digits (auxiliar).
// Only leaf accounts marked as movement accounts may receive postings.
package coa

import (
	"errors"
	"regexp"
	"time"
)

// Nature is the side on which an account's balance increases.
type Nature string

const (
	NatureDebit  Nature = "debit"
	NatureCredit Nature = "credit"
)

// Status marks whether an account may participate in new activity. Retired
// accounts stay in the chart forever; nothing is ever hard-deleted.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

var (
	ErrNotFound                = errors.New("account not found")
	ErrDuplicateCode           = errors.New("account code already exists")
	ErrInvalidCode             = errors.New("account code must be numeric")
	ErrInvalidCodeLength       = errors.New("account code length does not fall on a hierarchy boundary")
	ErrInvalidParentCode       = errors.New("derived parent account does not exist")
	ErrParentRetired           = errors.New("parent account is retired")
	ErrInvalidNature           = errors.New("nature must be debit or credit")
	ErrHasActiveChildren       = errors.New("account has active children")
	ErrHasPostings             = errors.New("account has postings")
	ErrRetired                 = errors.New("account is retired")
	ErrNotPostable             = errors.New("account does not permit posting")
	ErrChildUnderPostedAccount = errors.New("cannot add a child under an account with postings")
)

// Account is a node in the chart. ParentCode is the stored, authoritative
// parent reference; length-based derivation is only used when the account is
// created or seeded.
type Account struct {
	Code                 string    `json:"code"`
	Description          string    `json:"description"`
	Nature               Nature    `json:"nature"`
	PermitsPosting       bool      `json:"permits_posting"`
	RequiresCounterparty bool      `json:"requires_counterparty"`
	ParentCode           string    `json:"parent_code,omitempty"`
	Status               Status    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

// Postable reports whether a line may reference this account right now.
func (a Account) Postable() bool {
	return a.Status == StatusActive && a.PermitsPosting
}

// Spec describes an account to be added to the chart.
type Spec struct {
	Code                 string `json:"code"`
	Description          string `json:"description"`
	Nature               Nature `json:"nature"`
	PermitsPosting       bool   `json:"permits_posting"`
	RequiresCounterparty bool   `json:"requires_counterparty"`
}

// NaturalDelta converts a raw debit/credit pair into the signed movement on
// an account's natural side. This is the only place sign conversion happens;
// every other component carries raw debit and credit magnitudes.
func NaturalDelta(n Nature, debitCents, creditCents int64) int64 {
	if n == NatureCredit {
		return creditCents - debitCents
	}
	return debitCents - creditCents
}

var codePattern = regexp.MustCompile(`^[0-9]+$`)

// ValidCode reports whether the code is numeric and ends on a recognized
// hierarchy boundary: lengths 1, 2, 4, 6, 8, 10, ...
func ValidCode(code string) error {
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}
	n := len(code)
	if n == 1 || n == 2 || (n >= 4 && n%2 == 0) {
		return nil
	}
	return ErrInvalidCodeLength
}

// DeriveParent truncates a code to the previous boundary length. A length-1
// code has no parent. The result seeds the stored parent reference; it is
// never re-derived at query time.
func DeriveParent(code string) string {
	switch n := len(code); {
	case n <= 1:
		return ""
	case n == 2:
		return code[:1]
	case n == 4:
		return code[:2]
	default:
		return code[:n-2]
	}
}
