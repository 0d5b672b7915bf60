package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"octopus-importer/internal/consumption/application"
	"octopus-importer/internal/consumption/domain"
	"octopus-importer/internal/consumption/interfaces"
	"octopus-importer/internal/statstore"
)

const timeLayout = time.RFC3339

// SeriesHandler serves the read-only live state and export downloads under
// /api/v1/series.
type SeriesHandler struct {
	live  *application.LiveState
	store statstore.Store
}

// NewSeriesHandler constructs a SeriesHandler.
func NewSeriesHandler(live *application.LiveState, store statstore.Store) (*SeriesHandler, error) {
	if live == nil {
		return nil, errors.New("series handler: nil live state")
	}
	if store == nil {
		return nil, errors.New("series handler: nil store")
	}
	return &SeriesHandler{live: live, store: store}, nil
}

func (h *SeriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/series")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		h.listSeries(w)
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	account, resource := parts[0], parts[1]
	switch resource {
	case "points.xlsx":
		h.exportPoints(w, r, account)
	case "invoice.pdf":
		h.exportInvoice(w, account)
	default:
		http.NotFound(w, r)
	}
}

func (h *SeriesHandler) listSeries(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.live.Snapshots())
}

func (h *SeriesHandler) exportPoints(w http.ResponseWriter, r *http.Request, account string) {
	seriesID, err := domain.BuildSeriesID(account)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.store.ListPoints(r.Context(), seriesID.String(), from, to)
	if err != nil {
		http.Error(w, "list points error", http.StatusInternalServerError)
		return
	}

	payload, err := interfaces.BuildPointsXLSX(account, "kWh", points)
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="points.xlsx"`)
	_, _ = w.Write(payload)
}

func (h *SeriesHandler) exportInvoice(w http.ResponseWriter, account string) {
	snapshot, ok := h.live.Snapshot(account)
	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}

	payload, err := interfaces.BuildInvoicePDF(snapshot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice.pdf"`)
	_, _ = w.Write(payload)
}

// parseRange reads optional from/to query params, defaulting to the last 30
// days.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now.Add(time.Hour)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC3339")
		}
		from = parsed.UTC()
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC3339")
		}
		to = parsed.UTC()
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("from must precede to")
	}
	return from, to, nil
}
