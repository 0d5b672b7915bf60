// Package billing maps Kraken ledger/statement data onto the read-only
// wallet and invoice fields exposed alongside the consumption series. It is
// a field-mapping transform only; no ledger computation happens here.
package billing

import (
	"fmt"
	"time"

	"octopus-importer/internal/kraken"
)

// Invoice is the latest issued statement of the electricity ledger.
type Invoice struct {
	AmountEUR   float64   `json:"amount_eur"`
	Issued      time.Time `json:"issued"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Snapshot carries the per-account wallet and invoice fields.
type Snapshot struct {
	SolarWalletEUR float64  `json:"solar_wallet_eur"`
	CreditEUR      float64  `json:"credit_eur"`
	HasInvoice     bool     `json:"has_invoice"`
	LastInvoice    *Invoice `json:"last_invoice,omitempty"`
}

// FromKraken converts the API billing payload. Invoice period bounds arrive
// as midnight boundaries in local billing time; the start is shifted forward
// and the end pulled back one second so both truncate to the covered days.
func FromKraken(info kraken.BillingInfo) (Snapshot, error) {
	snapshot := Snapshot{
		SolarWalletEUR: info.SolarWalletEUR,
		CreditEUR:      info.CreditEUR,
	}
	if !info.HasInvoice {
		return snapshot, nil
	}

	issued, err := parseDate(info.LastInvoice.IssuedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("billing: issued date: %w", err)
	}
	start, err := parseDate(info.LastInvoice.StartDate)
	if err != nil {
		return Snapshot{}, fmt.Errorf("billing: period start: %w", err)
	}
	end, err := parseDate(info.LastInvoice.EndDate)
	if err != nil {
		return Snapshot{}, fmt.Errorf("billing: period end: %w", err)
	}

	snapshot.HasInvoice = true
	snapshot.LastInvoice = &Invoice{
		AmountEUR:   info.LastInvoice.Amount,
		Issued:      truncateToDay(issued),
		PeriodStart: truncateToDay(start.Add(2 * time.Hour)),
		PeriodEnd:   truncateToDay(end.Add(-time.Second)),
	}
	return snapshot, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
