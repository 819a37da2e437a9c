package coa

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Chart holds the account tree in memory with in-process concurrency safety.
// The Postgres store in internal/store/pg enforces the same rules in SQL.
type Chart struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	children map[string][]string // parent code -> sorted child codes
	postings map[string]int64    // lifetime posting-line count per account
}

// NewChart creates an empty chart.
func NewChart() *Chart {
	return &Chart{
		accounts: make(map[string]*Account),
		children: make(map[string][]string),
		postings: make(map[string]int64),
	}
}

// Add validates the spec against the hierarchy and inserts the account.
// Adding a child under a postable parent with no postings silently flips the
// parent to non-postable; under a parent that already has movement it fails.
func (c *Chart) Add(spec Spec) (Account, error) {
	if err := ValidCode(spec.Code); err != nil {
		return Account{}, err
	}
	if spec.Nature != NatureDebit && spec.Nature != NatureCredit {
		return Account{}, ErrInvalidNature
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.accounts[spec.Code]; exists {
		return Account{}, ErrDuplicateCode
	}

	parentCode := DeriveParent(spec.Code)
	if parentCode != "" {
		parent, ok := c.accounts[parentCode]
		if !ok {
			return Account{}, ErrInvalidParentCode
		}
		if parent.Status == StatusRetired {
			return Account{}, ErrParentRetired
		}
		if parent.PermitsPosting {
			if c.postings[parentCode] > 0 {
				return Account{}, ErrChildUnderPostedAccount
			}
			// The parent stops being a movement account the moment it
			// gains structure underneath it.
			parent.PermitsPosting = false
		}
	}

	acc := &Account{
		Code:                 spec.Code,
		Description:          spec.Description,
		Nature:               spec.Nature,
		PermitsPosting:       spec.PermitsPosting,
		RequiresCounterparty: spec.RequiresCounterparty,
		ParentCode:           parentCode,
		Status:               StatusActive,
		CreatedAt:            time.Now().UTC(),
	}
	c.accounts[spec.Code] = acc
	c.children[parentCode] = insertSorted(c.children[parentCode], spec.Code)
	return *acc, nil
}

// Account is the context-aware lookup used by the journal validator.
func (c *Chart) Account(_ context.Context, code string) (Account, error) {
	return c.Get(code)
}

// Get returns the account for a code.
func (c *Chart) Get(code string) (Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acc, ok := c.accounts[code]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

// List returns every account, retired ones included, ordered by code.
func (c *Chart) List() []Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Account, 0, len(c.accounts))
	for _, acc := range c.accounts {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Children returns the direct children of an account, ordered by code.
func (c *Chart) Children(code string) ([]Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.accounts[code]; !ok {
		return nil, ErrNotFound
	}
	codes := c.children[code]
	out := make([]Account, 0, len(codes))
	for _, child := range codes {
		out = append(out, *c.accounts[child])
	}
	return out, nil
}

// Retire marks a postable leaf with zero lifetime postings as retired.
func (c *Chart) Retire(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[code]
	if !ok {
		return ErrNotFound
	}
	if acc.Status == StatusRetired {
		return ErrRetired
	}
	for _, child := range c.children[code] {
		if c.accounts[child].Status == StatusActive {
			return ErrHasActiveChildren
		}
	}
	if c.postings[code] > 0 {
		return ErrHasPostings
	}
	acc.Status = StatusRetired
	return nil
}

// NotePostings atomically re-checks that every code is a postable active leaf
// and records one posting line against each. The poster calls this inside its
// commit step; an account that fails here fails the whole entry.
func (c *Chart) NotePostings(codes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range codes {
		acc, ok := c.accounts[code]
		if !ok {
			return ErrNotFound
		}
		if acc.Status == StatusRetired {
			return ErrRetired
		}
		if !acc.PermitsPosting {
			return ErrNotPostable
		}
	}
	for _, code := range codes {
		c.postings[code]++
	}
	return nil
}

// PostingCount returns the lifetime number of posting lines for an account.
func (c *Chart) PostingCount(code string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.postings[code]
}

func insertSorted(codes []string, code string) []string {
	i := sort.SearchStrings(codes, code)
	codes = append(codes, "")
	copy(codes[i+1:], codes[i:])
	codes[i] = code
	return codes
}
