// Package kraken adapts the Kraken API client to the importer's ports.
package kraken

import (
	"context"
	"errors"
	"time"

	"octopus-importer/internal/billing"
	"octopus-importer/internal/consumption/domain"
	"octopus-importer/internal/kraken"
)

// Adapter exposes the Kraken client as MeasurementFetcher, BillingReader and
// AccountLister.
type Adapter struct {
	client *kraken.Client
}

// NewAdapter wraps a client.
func NewAdapter(client *kraken.Client) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("kraken adapter: nil client")
	}
	return &Adapter{client: client}, nil
}

// FetchHourly fetches and maps raw hourly samples for the window.
func (a *Adapter) FetchHourly(ctx context.Context, account string, start, end time.Time) ([]domain.RawMeasurement, error) {
	measurements, err := a.client.HourlyMeasurements(ctx, account, start, end)
	if err != nil {
		return nil, err
	}
	raw := make([]domain.RawMeasurement, 0, len(measurements))
	for _, m := range measurements {
		raw = append(raw, domain.RawMeasurement{
			Value:   m.Value,
			Unit:    m.Unit,
			StartAt: m.StartAt,
			EndAt:   m.EndAt,
		})
	}
	return raw, nil
}

// Read loads the wallet/invoice snapshot.
func (a *Adapter) Read(ctx context.Context, account string) (billing.Snapshot, error) {
	info, err := a.client.BillingInfo(ctx, account)
	if err != nil {
		return billing.Snapshot{}, err
	}
	return billing.FromKraken(info)
}

// Accounts lists account numbers visible to the credentials.
func (a *Adapter) Accounts(ctx context.Context) ([]string, error) {
	return a.client.Accounts(ctx)
}
