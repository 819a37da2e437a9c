package httpapi

import (
	"net/http"
	"strings"

	"asoandina.org/internal/coa"
	"asoandina.org/internal/money"
)

type addAccountRequest struct {
	Code                 string `json:"code"`
	Description          string `json:"description"`
	Nature               string `json:"nature"`
	PermitsPosting       bool   `json:"permits_posting"`
	RequiresCounterparty bool   `json:"requires_counterparty"`
}

type balanceResponse struct {
	AccountCode  string `json:"account_code"`
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.addAccount(w, r)
	case http.MethodGet:
		a.listAccounts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	code, sub, _ := strings.Cut(path, "/")
	if code == "" || strings.Contains(sub, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getAccount(w, r, code)
	case "children":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.accountChildren(w, r, code)
	case "balance":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.accountBalance(w, r, code)
	case "ledger":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.accountLedger(w, r, code)
	case "retire":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.retireAccount(w, r, code)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) addAccount(w http.ResponseWriter, r *http.Request) {
	var req addAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, r, http.StatusBadRequest, "description is required")
		return
	}

	acc, err := a.svc.AddAccount(r.Context(), coa.Spec{
		Code:                 strings.TrimSpace(req.Code),
		Description:          strings.TrimSpace(req.Description),
		Nature:               coa.Nature(req.Nature),
		PermitsPosting:       req.PermitsPosting,
		RequiresCounterparty: req.RequiresCounterparty,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	a.audit(r.Context(), "coa.account.add", "account", acc.Code, map[string]string{
		"nature":          string(acc.Nature),
		"permits_posting": boolStr(acc.PermitsPosting),
	})

	w.Header().Set("Location", "/v1/accounts/"+acc.Code)
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.svc.ListAccounts(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": accounts})
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, code string) {
	acc, err := a.svc.GetAccount(r.Context(), code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) accountChildren(w http.ResponseWriter, r *http.Request, code string) {
	children, err := a.svc.Children(r.Context(), code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": children})
}

func (a *API) accountBalance(w http.ResponseWriter, r *http.Request, code string) {
	cents, err := a.svc.AccountBalance(r.Context(), code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		AccountCode:  code,
		BalanceCents: cents,
		Balance:      money.FormatCents(cents),
	})
}

func (a *API) retireAccount(w http.ResponseWriter, r *http.Request, code string) {
	if err := a.svc.RetireAccount(r.Context(), code); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "coa.account.retire", "account", code, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "retired", "code": code})
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
