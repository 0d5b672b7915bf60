// Package kraken is a minimal client for the Octopus Energy (Kraken) GraphQL
// API: token auth, account discovery, hourly interval measurements and
// billing ledgers.
package kraken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultEndpoint is the Kraken GraphQL endpoint for Octopus Spain.
const DefaultEndpoint = "https://api.oees-kraken.energy/v1/graphql/"

// Ledger types returned by accountBillingInfo.
const (
	ElectricityLedger = "SPAIN_ELECTRICITY_LEDGER"
	SolarWalletLedger = "SOLAR_WALLET_LEDGER"
)

// tokenSkew forces a re-login slightly before the token actually expires.
const tokenSkew = time.Minute

// Credentials holds either email/password or an API key.
type Credentials struct {
	Email    string
	Password string
	APIKey   string
}

func (c Credentials) validate() error {
	if c.APIKey == "" && (c.Email == "" || c.Password == "") {
		return errors.New("kraken: need email/password or api key")
	}
	return nil
}

// Client is a Kraken GraphQL client. Safe for concurrent use.
type Client struct {
	endpoint string
	creds    Credentials
	client   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option configures the client.
type Option func(*Client)

// WithEndpoint overrides the default GraphQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a client.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	c := &Client{
		endpoint: DefaultEndpoint,
		creds:    creds,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IntervalMeasurement is one hourly sample, fields verbatim from the API.
type IntervalMeasurement struct {
	Value   string `json:"value"`
	Unit    string `json:"unit"`
	StartAt string `json:"startAt"`
	EndAt   string `json:"endAt"`
}

// Invoice is the latest statement of the electricity ledger.
type Invoice struct {
	Amount    float64
	IssuedAt  string
	StartDate string
	EndDate   string
}

// BillingInfo carries wallet balances and the latest invoice for an account.
type BillingInfo struct {
	SolarWalletEUR float64
	CreditEUR      float64
	HasInvoice     bool
	LastInvoice    Invoice
}

const loginMutation = `
mutation obtainKrakenToken($input: ObtainJSONWebTokenInput!) {
  obtainKrakenToken(input: $input) {
    token
  }
}`

const accountsQuery = `
query getAccountNames {
  viewer {
    accounts {
      ... on Account {
        number
      }
    }
  }
}`

const measurementsQuery = `
query getMeasurements($account: String!, $startAt: DateTime!, $endAt: DateTime!) {
  account(accountNumber: $account) {
    properties {
      id
      measurements(
        first: 1500,
        utilityFilters: [{
          electricityFilters: {
            readingDirection: "CONSUMPTION",
            readingFrequencyType: "HOUR_INTERVAL"
          }
        }],
        startAt: $startAt,
        endAt: $endAt,
        timezone: "Etc/GMT"
      ) {
        edges {
          node {
            value
            unit
            ... on IntervalMeasurementType {
              startAt
              endAt
            }
          }
        }
      }
    }
  }
}`

const billingQuery = `
query ($account: String!) {
  accountBillingInfo(accountNumber: $account) {
    ledgers {
      ledgerType
      statementsWithDetails(first: 1) {
        edges {
          node {
            amount
            consumptionStartDate
            consumptionEndDate
            issuedDate
          }
        }
      }
      balance
    }
  }
}`

// Login obtains a fresh token regardless of the cached one.
func (c *Client) Login(ctx context.Context) error {
	input := map[string]any{}
	if c.creds.APIKey != "" {
		input["APIKey"] = c.creds.APIKey
	} else {
		input["email"] = c.creds.Email
		input["password"] = c.creds.Password
	}

	var resp struct {
		ObtainKrakenToken struct {
			Token string `json:"token"`
		} `json:"obtainKrakenToken"`
	}
	if err := c.execute(ctx, "", loginMutation, map[string]any{"input": input}, &resp); err != nil {
		return fmt.Errorf("kraken: login: %w", err)
	}
	if resp.ObtainKrakenToken.Token == "" {
		return errors.New("kraken: login returned empty token")
	}

	c.mu.Lock()
	c.token = resp.ObtainKrakenToken.Token
	c.tokenExpiry = tokenExpiry(c.token)
	c.mu.Unlock()
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the token
// is only inspected to schedule re-login, never trusted for authorization.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	expiry := c.tokenExpiry
	c.mu.Unlock()

	if token != "" && (expiry.IsZero() || time.Now().Before(expiry.Add(-tokenSkew))) {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

// Accounts lists the account numbers visible to the credentials.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Viewer struct {
			Accounts []struct {
				Number string `json:"number"`
			} `json:"accounts"`
		} `json:"viewer"`
	}
	if err := c.execute(ctx, token, accountsQuery, nil, &resp); err != nil {
		return nil, fmt.Errorf("kraken: accounts: %w", err)
	}

	numbers := make([]string, 0, len(resp.Viewer.Accounts))
	for _, a := range resp.Viewer.Accounts {
		if a.Number != "" {
			numbers = append(numbers, a.Number)
		}
	}
	return numbers, nil
}

// HourlyMeasurements fetches hourly consumption samples for [start, end).
// Timestamps are sent as UTC ISO-8601 with millisecond precision.
func (c *Client) HourlyMeasurements(ctx context.Context, account string, start, end time.Time) ([]IntervalMeasurement, error) {
	if account == "" {
		return nil, errors.New("kraken: empty account")
	}
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	variables := map[string]any{
		"account": account,
		"startAt": isoMillisZ(start),
		"endAt":   isoMillisZ(end),
	}
	var resp struct {
		Account struct {
			Properties []struct {
				ID           string `json:"id"`
				Measurements struct {
					Edges []struct {
						Node IntervalMeasurement `json:"node"`
					} `json:"edges"`
				} `json:"measurements"`
			} `json:"properties"`
		} `json:"account"`
	}
	if err := c.execute(ctx, token, measurementsQuery, variables, &resp); err != nil {
		return nil, fmt.Errorf("kraken: measurements: %w", err)
	}
	if len(resp.Account.Properties) == 0 {
		return nil, nil
	}

	edges := resp.Account.Properties[0].Measurements.Edges
	measurements := make([]IntervalMeasurement, 0, len(edges))
	for _, edge := range edges {
		measurements = append(measurements, edge.Node)
	}
	return measurements, nil
}

// BillingInfo fetches ledger balances and the latest electricity invoice.
// Balances arrive in cents and are converted to euros.
func (c *Client) BillingInfo(ctx context.Context, account string) (BillingInfo, error) {
	if account == "" {
		return BillingInfo{}, errors.New("kraken: empty account")
	}
	token, err := c.ensureToken(ctx)
	if err != nil {
		return BillingInfo{}, err
	}

	var resp struct {
		AccountBillingInfo struct {
			Ledgers []struct {
				LedgerType            string `json:"ledgerType"`
				Balance               any    `json:"balance"`
				StatementsWithDetails struct {
					Edges []struct {
						Node struct {
							Amount               any    `json:"amount"`
							ConsumptionStartDate string `json:"consumptionStartDate"`
							ConsumptionEndDate   string `json:"consumptionEndDate"`
							IssuedDate           string `json:"issuedDate"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"statementsWithDetails"`
			} `json:"ledgers"`
		} `json:"accountBillingInfo"`
	}
	if err := c.execute(ctx, token, billingQuery, map[string]any{"account": account}, &resp); err != nil {
		return BillingInfo{}, fmt.Errorf("kraken: billing info: %w", err)
	}

	info := BillingInfo{}
	foundElectricity := false
	for _, ledger := range resp.AccountBillingInfo.Ledgers {
		switch ledger.LedgerType {
		case SolarWalletLedger:
			info.SolarWalletEUR = numeric(ledger.Balance) / 100
		case ElectricityLedger:
			foundElectricity = true
			info.CreditEUR = numeric(ledger.Balance) / 100
			edges := ledger.StatementsWithDetails.Edges
			if len(edges) > 0 {
				node := edges[0].Node
				info.HasInvoice = true
				info.LastInvoice = Invoice{
					Amount:    numeric(node.Amount),
					IssuedAt:  node.IssuedDate,
					StartDate: node.ConsumptionStartDate,
					EndDate:   node.ConsumptionEndDate,
				}
			}
		}
	}
	if !foundElectricity {
		return BillingInfo{}, errors.New("kraken: electricity ledger not found")
	}
	return info, nil
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *Client) execute(ctx context.Context, token, query string, variables map[string]any, out any) error {
	body := map[string]any{"query": query}
	if variables != nil {
		body["variables"] = variables
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// numeric tolerates the API returning numbers either as JSON numbers or as
// strings.
func numeric(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func isoMillisZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
