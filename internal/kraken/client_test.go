package kraken

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// newGraphQLServer routes requests by operation keyword in the query text.
func newGraphQLServer(t *testing.T, handler func(req graphQLRequest, auth string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(req, r.Header.Get("Authorization"))))
	}))
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Credentials{Email: "user@example.com", Password: "secret"}, WithEndpoint(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestLoginStoresToken(t *testing.T) {
	server := newGraphQLServer(t, func(req graphQLRequest, _ string) string {
		if !strings.Contains(req.Query, "obtainKrakenToken") {
			t.Fatalf("unexpected query: %s", req.Query)
		}
		return `{"data":{"obtainKrakenToken":{"token":"tok-123"}}}`
	})
	defer server.Close()

	client := newTestClient(t, server)
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if client.token != "tok-123" {
		t.Fatalf("token not stored: %q", client.token)
	}
}

func TestLoginSurfacesGraphQLErrors(t *testing.T) {
	server := newGraphQLServer(t, func(_ graphQLRequest, _ string) string {
		return `{"errors":[{"message":"invalid credentials"}]}`
	})
	defer server.Close()

	client := newTestClient(t, server)
	err := client.Login(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("expected graphql error, got %v", err)
	}
}

func TestAccountsLogsInAndSendsToken(t *testing.T) {
	server := newGraphQLServer(t, func(req graphQLRequest, auth string) string {
		if strings.Contains(req.Query, "obtainKrakenToken") {
			return `{"data":{"obtainKrakenToken":{"token":"tok-accounts"}}}`
		}
		if auth != "tok-accounts" {
			t.Fatalf("missing authorization header, got %q", auth)
		}
		return `{"data":{"viewer":{"accounts":[{"number":"A-1"},{"number":"A-2"}]}}}`
	})
	defer server.Close()

	client := newTestClient(t, server)
	accounts, err := client.Accounts(context.Background())
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0] != "A-1" || accounts[1] != "A-2" {
		t.Fatalf("unexpected accounts: %v", accounts)
	}
}

func TestHourlyMeasurementsMapsEdgesAndWindow(t *testing.T) {
	var gotStart, gotEnd string
	server := newGraphQLServer(t, func(req graphQLRequest, _ string) string {
		if strings.Contains(req.Query, "obtainKrakenToken") {
			return `{"data":{"obtainKrakenToken":{"token":"tok"}}}`
		}
		gotStart, _ = req.Variables["startAt"].(string)
		gotEnd, _ = req.Variables["endAt"].(string)
		return `{"data":{"account":{"properties":[{"id":"p1","measurements":{"edges":[
			{"node":{"value":"0.25","unit":"kWh","startAt":"2025-03-01T00:00:00Z","endAt":"2025-03-01T01:00:00Z"}},
			{"node":{"value":"0.50","unit":"kWh","startAt":"2025-03-01T01:00:00Z","endAt":"2025-03-01T02:00:00Z"}}
		]}}]}}}`
	})
	defer server.Close()

	client := newTestClient(t, server)
	start := time.Date(2025, 2, 19, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	measurements, err := client.HourlyMeasurements(context.Background(), "A-1", start, end)
	if err != nil {
		t.Fatalf("measurements: %v", err)
	}
	if len(measurements) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(measurements))
	}
	if measurements[0].Value != "0.25" || measurements[1].StartAt != "2025-03-01T01:00:00Z" {
		t.Fatalf("unexpected mapping: %+v", measurements)
	}
	if gotStart != "2025-02-19T00:00:00.000Z" || gotEnd != "2025-03-02T00:00:00.000Z" {
		t.Fatalf("unexpected window variables: %s .. %s", gotStart, gotEnd)
	}
}

func TestHourlyMeasurementsEmptyProperties(t *testing.T) {
	server := newGraphQLServer(t, func(req graphQLRequest, _ string) string {
		if strings.Contains(req.Query, "obtainKrakenToken") {
			return `{"data":{"obtainKrakenToken":{"token":"tok"}}}`
		}
		return `{"data":{"account":{"properties":[]}}}`
	})
	defer server.Close()

	client := newTestClient(t, server)
	measurements, err := client.HourlyMeasurements(context.Background(), "A-1", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("measurements: %v", err)
	}
	if len(measurements) != 0 {
		t.Fatalf("expected no measurements, got %d", len(measurements))
	}
}

func TestBillingInfoConvertsCentsAndPicksLedgers(t *testing.T) {
	server := newGraphQLServer(t, func(req graphQLRequest, _ string) string {
		if strings.Contains(req.Query, "obtainKrakenToken") {
			return `{"data":{"obtainKrakenToken":{"token":"tok"}}}`
		}
		return `{"data":{"accountBillingInfo":{"ledgers":[
			{"ledgerType":"SOLAR_WALLET_LEDGER","balance":1250,"statementsWithDetails":{"edges":[]}},
			{"ledgerType":"SPAIN_ELECTRICITY_LEDGER","balance":"-300","statementsWithDetails":{"edges":[
				{"node":{"amount":42.5,"consumptionStartDate":"2025-02-01","consumptionEndDate":"2025-02-28","issuedDate":"2025-03-02"}}
			]}}
		]}}}`
	})
	defer server.Close()

	client := newTestClient(t, server)
	info, err := client.BillingInfo(context.Background(), "A-1")
	if err != nil {
		t.Fatalf("billing info: %v", err)
	}
	if info.SolarWalletEUR != 12.5 {
		t.Fatalf("solar wallet: %v", info.SolarWalletEUR)
	}
	if info.CreditEUR != -3 {
		t.Fatalf("credit: %v", info.CreditEUR)
	}
	if !info.HasInvoice || info.LastInvoice.Amount != 42.5 || info.LastInvoice.IssuedAt != "2025-03-02" {
		t.Fatalf("invoice: %+v", info.LastInvoice)
	}
}

func TestBillingInfoRequiresElectricityLedger(t *testing.T) {
	server := newGraphQLServer(t, func(req graphQLRequest, _ string) string {
		if strings.Contains(req.Query, "obtainKrakenToken") {
			return `{"data":{"obtainKrakenToken":{"token":"tok"}}}`
		}
		return `{"data":{"accountBillingInfo":{"ledgers":[]}}}`
	})
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.BillingInfo(context.Background(), "A-1"); err == nil {
		t.Fatal("expected error for missing electricity ledger")
	}
}
