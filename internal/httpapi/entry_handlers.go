package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"asoandina.org/internal/coa"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/ledger"
	"asoandina.org/internal/money"
	"asoandina.org/internal/obs"
	"asoandina.org/internal/report"
	"asoandina.org/internal/stream"
)

// Amounts cross the boundary as 2-decimal strings and are converted to
// integer cents before validation ever sees them.
type entryLineRequest struct {
	AccountCode  string `json:"account_code"`
	CostCenter   string `json:"cost_center"`
	Counterparty string `json:"counterparty"`
	Memo         string `json:"memo"`
	Debit        string `json:"debit"`
	Credit       string `json:"credit"`
}

type postEntryRequest struct {
	Date        string             `json:"date"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Lines       []entryLineRequest `json:"lines"`
}

type listEntriesResponse struct {
	Items     []journal.Entry `json:"items"`
	NextAfter uint64          `json:"next_after"`
	AsOf      time.Time       `json:"as_of"`
}

type trialBalanceResponse struct {
	Rows []report.TrialBalanceRow `json:"rows"`
	AsOf time.Time                `json:"as_of"`
}

type accountLedgerResponse struct {
	AccountCode string              `json:"account_code"`
	Lines       []report.LedgerLine `json:"lines"`
	NextAfter   uint64              `json:"next_after"`
}

func (a *API) handleEntriesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.postEntry(w, r)
	case http.MethodGet:
		a.listEntries(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleEntryResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/entries/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case id == "" || strings.Contains(sub, "/"):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case sub == "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getEntry(w, r, id)
	case sub == "reverse":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.reverseEntry(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) postEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	draft, err := draftFromRequest(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := a.svc.Post(r.Context(), draft)
	if err != nil {
		if isValidationError(err) {
			obs.PostingRejections.WithLabelValues(journal.Reason(err)).Inc()
		}
		handleServiceError(w, r, err)
		return
	}
	obs.PostingsTotal.Inc()

	if a.stream != nil {
		a.stream.Publish(stream.FromEntry(entry))
	}
	a.audit(r.Context(), "ledger.entry.post", "entry", entry.ID, map[string]string{
		"type":        string(entry.Type),
		"sequence":    strconv.FormatUint(entry.Sequence, 10),
		"total_cents": strconv.FormatInt(entryTotal(entry), 10),
	})

	w.Header().Set("Location", "/v1/entries/"+entry.ID)
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) getEntry(w http.ResponseWriter, r *http.Request, id string) {
	entry, err := a.svc.GetEntry(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) reverseEntry(w http.ResponseWriter, r *http.Request, id string) {
	reversal, err := a.svc.Reverse(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	obs.ReversalsTotal.Inc()

	if a.stream != nil {
		a.stream.Publish(stream.FromEntry(reversal))
	}
	a.audit(r.Context(), "ledger.entry.reverse", "entry", id, map[string]string{
		"reversal_id": reversal.ID,
	})

	writeJSON(w, http.StatusCreated, reversal)
}

func (a *API) listEntries(w http.ResponseWriter, r *http.Request) {
	from, to, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, after, err := parsePage(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, next, err := a.svc.ListEntries(r.Context(), from, to, limit, after)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listEntriesResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      time.Now().UTC(),
	})
}

func (a *API) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	rows, err := a.svc.TrialBalance(r.Context(), asOf)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trialBalanceResponse{Rows: rows, AsOf: asOf})
}

func (a *API) accountLedger(w http.ResponseWriter, r *http.Request, code string) {
	from, to, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, after, err := parsePage(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	lines, next, err := a.svc.AccountLedger(r.Context(), code, from, to, limit, after)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountLedgerResponse{
		AccountCode: code,
		Lines:       lines,
		NextAfter:   next,
	})
}

// --- request parsing ---

func draftFromRequest(req postEntryRequest) (journal.Draft, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return journal.Draft{}, err
	}

	lines := make([]journal.Line, len(req.Lines))
	for i, ln := range req.Lines {
		debit, err := parseAmount(ln.Debit)
		if err != nil {
			return journal.Draft{}, fmt.Errorf("line %d debit: %w", i+1, err)
		}
		credit, err := parseAmount(ln.Credit)
		if err != nil {
			return journal.Draft{}, fmt.Errorf("line %d credit: %w", i+1, err)
		}
		lines[i] = journal.Line{
			AccountCode:  strings.TrimSpace(ln.AccountCode),
			CostCenter:   strings.TrimSpace(ln.CostCenter),
			Counterparty: strings.TrimSpace(ln.Counterparty),
			Memo:         ln.Memo,
			DebitCents:   debit,
			CreditCents:  credit,
		}
	}

	return journal.Draft{
		Date:        date,
		Type:        journal.EntryType(req.Type),
		Description: strings.TrimSpace(req.Description),
		Lines:       lines,
	}, nil
}

func parseAmount(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return money.ParseCents(raw)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return d, nil
}

func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not precede from")
	}
	return from, to, nil
}

func parsePage(r *http.Request) (int, uint64, error) {
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 1000 {
			return 0, 0, errors.New("limit must be between 1 and 1000")
		}
		limit = v
	}
	var after uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, errors.New("after must be a non-negative integer")
		}
		after = v
	}
	return limit, after, nil
}

func entryTotal(e journal.Entry) int64 {
	var total int64
	for _, ln := range e.Lines {
		total += ln.DebitCents
	}
	return total
}

// --- error mapping ---

func isValidationError(err error) bool {
	return journal.Reason(err) != "other"
}

// handleServiceError is the single place HTTP status codes are decided.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrEntryNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrAlreadyReversed),
		errors.Is(err, ledger.ErrConcurrencyConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, journal.ErrAccountNotFound),
		errors.Is(err, journal.ErrCostCenterNotFound),
		errors.Is(err, journal.ErrCounterpartyNotFound):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, coa.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, coa.ErrDuplicateCode),
		errors.Is(err, coa.ErrParentRetired),
		errors.Is(err, coa.ErrChildUnderPostedAccount),
		errors.Is(err, coa.ErrHasActiveChildren),
		errors.Is(err, coa.ErrHasPostings),
		errors.Is(err, coa.ErrRetired):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, coa.ErrInvalidCode),
		errors.Is(err, coa.ErrInvalidCodeLength),
		errors.Is(err, coa.ErrInvalidParentCode),
		errors.Is(err, coa.ErrInvalidNature):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
