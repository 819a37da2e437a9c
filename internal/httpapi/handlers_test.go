package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"asoandina.org/internal/catalog"
	"asoandina.org/internal/coa"
	"asoandina.org/internal/journal"
	"asoandina.org/internal/ledger"
	"asoandina.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	chart := coa.NewChart()
	if err := coa.Seed(chart); err != nil {
		t.Fatalf("seed chart: %v", err)
	}
	cats := catalog.NewInMemory()
	cats.SeedDemo()
	svc := ledger.NewInMemory(chart, journal.NewValidator(chart, cats, cats))

	api := New(ReadyProbe{}, svc, stream.New(), "test")

	srv := httptest.NewServer(RequestID(api.Handler()))
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) post(path string, body any) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	resp, err := c.client.Get(u.String())
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func duesRequest(credit string) map[string]any {
	return map[string]any{
		"date":        "2026-03-05",
		"type":        "ingreso",
		"description": "Cuota de afiliación",
		"lines": []map[string]any{
			{"account_code": "1105", "cost_center": "01", "memo": "Efectivo", "debit": "25000.00"},
			{"account_code": "410505", "cost_center": "01", "counterparty": "M-0001", "credit": credit},
		},
	}
}

func TestPostEntryAndReadBack(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/entries", duesRequest("25000.00"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
	entry := decode[map[string]any](t, resp)
	id := entry["id"].(string)
	if id == "" {
		t.Fatalf("entry id missing: %v", entry)
	}
	if resp.Header.Get("Location") != "/v1/entries/"+id {
		t.Fatalf("bad location header")
	}

	// Read the entry back.
	resp = api.get("/v1/entries/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	got := decode[map[string]any](t, resp)
	if got["id"] != id {
		t.Fatalf("round trip mismatch: %v", got)
	}

	// Leaf balance moved.
	resp = api.get("/v1/accounts/410505/balance", nil)
	bal := decode[balanceResponse](t, resp)
	if bal.BalanceCents != 2500000 || bal.Balance != "25000.00" {
		t.Fatalf("unexpected balance: %+v", bal)
	}

	// Group balance aggregates upward.
	resp = api.get("/v1/accounts/4/balance", nil)
	group := decode[balanceResponse](t, resp)
	if group.BalanceCents != 2500000 {
		t.Fatalf("group balance = %d", group.BalanceCents)
	}
}

func TestPostEntryRejectsUnbalanced(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/entries", duesRequest("24999.99"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] == "" || body["request_id"] == "" {
		t.Fatalf("error body incomplete: %v", body)
	}
}

func TestPostEntryRejectsSubCentAmount(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/entries", duesRequest("25000.005"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReverseEntryOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/entries", duesRequest("25000.00"))
	entry := decode[map[string]any](t, resp)
	id := entry["id"].(string)

	resp = api.post("/v1/entries/"+id+"/reverse", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	reversal := decode[map[string]any](t, resp)
	if reversal["reverses"] != id {
		t.Fatalf("missing back-reference: %v", reversal)
	}

	// Second reversal conflicts.
	resp = api.post("/v1/entries/"+id+"/reverse", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	// Balances are restored.
	resp = api.get("/v1/accounts/410505/balance", nil)
	bal := decode[balanceResponse](t, resp)
	if bal.BalanceCents != 0 {
		t.Fatalf("balance not restored: %d", bal.BalanceCents)
	}
}

func TestTrialBalanceEndpoint(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/entries", duesRequest("25000.00"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp = api.get("/v1/trial-balance", url.Values{"as_of": []string{"2026-12-31"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[trialBalanceResponse](t, resp)
	byCode := map[string]int64{}
	for _, row := range payload.Rows {
		byCode[row.AccountCode] = row.BalanceCents
	}
	for _, code := range []string{"410505", "4105", "41", "4"} {
		if byCode[code] != 2500000 {
			t.Fatalf("balance(%s) = %d", code, byCode[code])
		}
	}
}

func TestAccountLedgerEndpoint(t *testing.T) {
	api := newTestAPI(t)

	for i := 0; i < 3; i++ {
		resp := api.post("/v1/entries", duesRequest("25000.00"))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("unexpected status: %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := api.get("/v1/accounts/410505/ledger", url.Values{
		"from":  []string{"2026-03-01"},
		"to":    []string{"2026-03-31"},
		"limit": []string{"2"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	page := decode[accountLedgerResponse](t, resp)
	if len(page.Lines) != 2 || page.NextAfter == 0 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Lines[1].RunningCents != 5000000 {
		t.Fatalf("running balance = %d", page.Lines[1].RunningCents)
	}

	resp = api.get("/v1/accounts/410505/ledger", url.Values{
		"from":  []string{"2026-03-01"},
		"to":    []string{"2026-03-31"},
		"after": []string{"2"},
	})
	rest := decode[accountLedgerResponse](t, resp)
	if len(rest.Lines) != 1 || rest.Lines[0].RunningCents != 7500000 {
		t.Fatalf("unexpected continuation: %+v", rest)
	}
}

func TestAccountAdministration(t *testing.T) {
	api := newTestAPI(t)

	// Add a new postable leaf under 42 (donaciones branch).
	resp := api.post("/v1/accounts", map[string]any{
		"code":            "421005",
		"description":     "Donaciones en especie",
		"nature":          "credit",
		"permits_posting": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	acc := decode[map[string]any](t, resp)
	if acc["parent_code"] != "4210" {
		t.Fatalf("parent not derived: %v", acc)
	}

	// Duplicate code conflicts.
	resp = api.post("/v1/accounts", map[string]any{
		"code":            "421005",
		"description":     "dup",
		"nature":          "credit",
		"permits_posting": true,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Children listing includes the new leaf.
	resp = api.get("/v1/accounts/4210/children", nil)
	children := decode[map[string]any](t, resp)
	items := children["items"].([]any)
	if len(items) == 0 {
		t.Fatalf("expected children under 4210")
	}

	// Retire it again.
	resp = api.post("/v1/accounts/421005/retire", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown account yields 404.
	resp = api.get("/v1/accounts/999999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", health)
	}

	resp = api.get("/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/info", nil)
	info := decode[map[string]any](t, resp)
	if info["version"] != "test" {
		t.Fatalf("unexpected info payload: %v", info)
	}
}
