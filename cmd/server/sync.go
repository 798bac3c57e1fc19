package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/puntogamer/gamestore/internal/catalog"
	"github.com/puntogamer/gamestore/internal/reconcile"
	"github.com/puntogamer/gamestore/internal/sheet"
)

type missingPayload struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	CostPrice float64 `json:"costPrice"`
	Currency  string  `json:"currency"`
	Platform  string  `json:"platform"`
	PriceText string  `json:"priceText"`
}

type syncResponse struct {
	Matched    int              `json:"matched"`
	Updated    int              `json:"updated"`
	OutOfStock int              `json:"outOfStock"`
	Failed     int              `json:"failed"`
	Missing    []missingPayload `json:"missing"`
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	resp, err := s.runSync(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, sheet.ErrNoURL):
			respondError(w, http.StatusBadRequest, "sheet URL is not configured")
		case errors.Is(err, errFeedUnavailable):
			respondError(w, http.StatusBadGateway, "supplier feed is unavailable")
		default:
			s.log.Error().Err(err).Msg("sync failed")
			respondError(w, http.StatusInternalServerError, "sync failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

var errFeedUnavailable = errors.New("feed unavailable")

// runSync fetches the supplier feed, reconciles it against the catalog,
// applies the staged updates in bounded batches, stamps last_sync and
// records an audit row. The settings snapshot is read once; an edit during
// a long sync only affects the next run.
func (s *server) runSync(ctx context.Context) (syncResponse, error) {
	started := time.Now().UTC()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return syncResponse{}, err
	}

	rows, err := sheet.Fetch(ctx, s.feedClient, settings.SheetURL)
	if err != nil {
		if errors.Is(err, sheet.ErrNoURL) {
			// Configuration error: fail fast, no state change, no audit row.
			return syncResponse{}, err
		}
		s.recordSyncFailure(ctx, started, err)
		return syncResponse{}, errors.Join(errFeedUnavailable, err)
	}

	items, err := s.store.GetAll(ctx)
	if err != nil {
		s.recordSyncFailure(ctx, started, err)
		return syncResponse{}, err
	}

	result := reconcile.Run(rows, items, settings.Settings)

	var updated, outOfStock int
	for _, u := range result.Updates {
		if u.Kind == catalog.UpdateOutOfStock {
			outOfStock++
		} else {
			updated++
		}
	}

	if _, err := s.store.ApplyUpdates(ctx, result.Updates, s.batchSize, nil); err != nil {
		s.recordSyncFailure(ctx, started, err)
		return syncResponse{}, err
	}

	finished := time.Now().UTC()
	if err := s.store.TouchLastSync(ctx, finished); err != nil {
		return syncResponse{}, err
	}

	run := catalog.SyncRun{
		StartedAt:  started.Format(time.RFC3339),
		FinishedAt: finished.Format(time.RFC3339),
		Status:     catalog.SyncStatusOK,
		Matched:    result.Matched,
		Updated:    updated,
		OutOfStock: outOfStock,
		Missing:    len(result.Missing),
		Failed:     result.Failed,
	}
	if err := s.store.RecordSyncRun(ctx, run); err != nil {
		s.log.Error().Err(err).Msg("record sync run failed")
	}

	resp := syncResponse{
		Matched:    result.Matched,
		Updated:    updated,
		OutOfStock: outOfStock,
		Failed:     result.Failed,
		Missing:    make([]missingPayload, 0, len(result.Missing)),
	}
	for _, c := range result.Missing {
		resp.Missing = append(resp.Missing, missingPayload{
			SKU:       c.SKU,
			Name:      c.Name,
			CostPrice: c.CostPrice,
			Currency:  string(c.Currency),
			Platform:  c.Platform,
			PriceText: c.PriceText,
		})
	}

	s.log.Info().
		Int("matched", resp.Matched).
		Int("updated", resp.Updated).
		Int("outOfStock", resp.OutOfStock).
		Int("missing", len(resp.Missing)).
		Int("failed", resp.Failed).
		Msg("sync finished")

	return resp, nil
}

func (s *server) recordSyncFailure(ctx context.Context, started time.Time, cause error) {
	run := catalog.SyncRun{
		StartedAt:  started.Format(time.RFC3339),
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
		Status:     catalog.SyncStatusFailed,
		Error:      cause.Error(),
	}
	if err := s.store.RecordSyncRun(ctx, run); err != nil {
		s.log.Error().Err(err).Msg("record sync failure failed")
	}
}
