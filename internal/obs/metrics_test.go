package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/accounts/410505":             "/v1/accounts/:code",
		"/v1/accounts/410505/children":    "/v1/accounts/:code/children",
		"/v1/accounts/410505/retire":      "/v1/accounts/:code/retire",
		"/v1/accounts/410505/ledger":      "/v1/accounts/:code/ledger",
		"/v1/accounts/410505/extra":       "/v1/accounts/410505/extra",
		"/v1/entries/abc":                 "/v1/entries/:id",
		"/v1/entries/abc/reverse":         "/v1/entries/:id/reverse",
		"/v1/trial-balance":               "/v1/trial-balance",
		"/v1/trial-balance?as_of=2026-01": "/v1/trial-balance",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
