// Package ledgerclient is the Go client for the ledger HTTP API. The CLI and
// smoke checks use it; other association services can too.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"asoandina.org/internal/coa"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/report"
)

// EntryLine carries amounts as 2-decimal strings, matching the wire format.
type EntryLine struct {
	AccountCode  string `json:"account_code"`
	CostCenter   string `json:"cost_center"`
	Counterparty string `json:"counterparty,omitempty"`
	Memo         string `json:"memo,omitempty"`
	Debit        string `json:"debit,omitempty"`
	Credit       string `json:"credit,omitempty"`
}

type EntryRequest struct {
	Date        string      `json:"date"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Lines       []EntryLine `json:"lines"`
}

type Balance struct {
	AccountCode  string `json:"account_code"`
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
}

type TrialBalance struct {
	Rows []report.TrialBalanceRow `json:"rows"`
	AsOf time.Time                `json:"as_of"`
}

type LedgerPage struct {
	AccountCode string              `json:"account_code"`
	Lines       []report.LedgerLine `json:"lines"`
	NextAfter   uint64              `json:"next_after"`
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("ledger api: %s (status %d, request %s)", e.Message, e.Status, e.RequestID)
	}
	return fmt.Sprintf("ledger api: %s (status %d)", e.Message, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient overrides the underlying transport. Tests use it.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) PostEntry(ctx context.Context, req EntryRequest) (journal.Entry, error) {
	var entry journal.Entry
	err := c.do(ctx, http.MethodPost, "/v1/entries", nil, req, &entry)
	return entry, err
}

func (c *Client) GetEntry(ctx context.Context, id string) (journal.Entry, error) {
	var entry journal.Entry
	err := c.do(ctx, http.MethodGet, "/v1/entries/"+url.PathEscape(id), nil, nil, &entry)
	return entry, err
}

func (c *Client) Reverse(ctx context.Context, id string) (journal.Entry, error) {
	var entry journal.Entry
	err := c.do(ctx, http.MethodPost, "/v1/entries/"+url.PathEscape(id)+"/reverse", nil, nil, &entry)
	return entry, err
}

func (c *Client) AddAccount(ctx context.Context, spec coa.Spec) (coa.Account, error) {
	var acc coa.Account
	body := map[string]any{
		"code":                  spec.Code,
		"description":           spec.Description,
		"nature":                spec.Nature,
		"permits_posting":       spec.PermitsPosting,
		"requires_counterparty": spec.RequiresCounterparty,
	}
	err := c.do(ctx, http.MethodPost, "/v1/accounts", nil, body, &acc)
	return acc, err
}

func (c *Client) GetAccount(ctx context.Context, code string) (coa.Account, error) {
	var acc coa.Account
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(code), nil, nil, &acc)
	return acc, err
}

func (c *Client) ListAccounts(ctx context.Context) ([]coa.Account, error) {
	var payload struct {
		Items []coa.Account `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, nil, &payload)
	return payload.Items, err
}

func (c *Client) RetireAccount(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/v1/accounts/"+url.PathEscape(code)+"/retire", nil, nil, nil)
}

func (c *Client) AccountBalance(ctx context.Context, code string) (Balance, error) {
	var bal Balance
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(code)+"/balance", nil, nil, &bal)
	return bal, err
}

func (c *Client) TrialBalance(ctx context.Context, asOf string) (TrialBalance, error) {
	params := url.Values{}
	if asOf != "" {
		params.Set("as_of", asOf)
	}
	var tb TrialBalance
	err := c.do(ctx, http.MethodGet, "/v1/trial-balance", params, nil, &tb)
	return tb, err
}

func (c *Client) AccountLedger(ctx context.Context, code, from, to string, limit int, after uint64) (LedgerPage, error) {
	params := url.Values{}
	if from != "" {
		params.Set("from", from)
	}
	if to != "" {
		params.Set("to", to)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if after > 0 {
		params.Set("after", strconv.FormatUint(after, 10))
	}
	var page LedgerPage
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(code)+"/ledger", params, nil, &page)
	return page, err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.RequestID = errBody.RequestID
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
