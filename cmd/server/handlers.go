package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/puntogamer/gamestore/internal/catalog"
	"github.com/puntogamer/gamestore/internal/importer"
	"github.com/puntogamer/gamestore/internal/pricing"
	"github.com/puntogamer/gamestore/internal/reconcile"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// --- auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	valid, err := s.auth.validateCredentials(req.Email, req.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("credential check failed")
		respondError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if !valid {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.auth.setSessionCookie(w, req.Email)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- settings ---

type settingsPayload struct {
	GlobalMargin    float64 `json:"globalMargin"`
	VATRate         float64 `json:"vatRate"`
	EnableVATGlobal bool    `json:"enableVatGlobal"`
	ExchangeRate    float64 `json:"exchangeRate"`
	SheetURL        string  `json:"sheetUrl"`
	LastSync        string  `json:"lastSync,omitempty"`
}

func settingsToPayload(cfg catalog.Settings) settingsPayload {
	return settingsPayload{
		GlobalMargin:    cfg.GlobalMargin,
		VATRate:         cfg.VATRate,
		EnableVATGlobal: cfg.EnableVATGlobal,
		ExchangeRate:    cfg.ExchangeRate,
		SheetURL:        cfg.SheetURL,
		LastSync:        cfg.LastSync,
	}
}

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load settings failed")
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, settingsToPayload(cfg))
}

func (s *server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := validatePercent(req.GlobalMargin, "globalMargin"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validatePercent(req.VATRate, "vatRate"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ExchangeRate < 0 {
		respondError(w, http.StatusBadRequest, "exchangeRate must be zero or positive")
		return
	}

	cfg := catalog.Settings{
		Settings: pricing.Settings{
			GlobalMargin:    req.GlobalMargin,
			VATRate:         req.VATRate,
			EnableVATGlobal: req.EnableVATGlobal,
			ExchangeRate:    req.ExchangeRate,
		},
		SheetURL: strings.TrimSpace(req.SheetURL),
	}
	if err := s.store.UpdateSettings(r.Context(), cfg); err != nil {
		s.log.Error().Err(err).Msg("save settings failed")
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	respondJSON(w, http.StatusOK, settingsToPayload(cfg))
}

func validatePercent(v float64, field string) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be between 0 and 100", field)
	}
	return nil
}

// --- products ---

type productPayload struct {
	ID                 string   `json:"id,omitempty"`
	SKU                string   `json:"sku"`
	Name               string   `json:"name"`
	Slug               string   `json:"slug,omitempty"`
	Platform           string   `json:"platform"`
	CostPrice          float64  `json:"costPrice"`
	Currency           string   `json:"currency"`
	CustomMargin       *float64 `json:"customMargin"`
	DiscountPercentage float64  `json:"discountPercentage"`
	ManualPrice        *float64 `json:"manualPrice"`
	Price              float64  `json:"price,omitempty"`
	BasePrice          float64  `json:"basePrice,omitempty"`
	Stock              bool     `json:"stock"`
	IsHidden           bool     `json:"isHidden"`
}

func productToPayload(p catalog.Product) productPayload {
	return productPayload{
		ID:                 p.ID,
		SKU:                p.SKU,
		Name:               p.Name,
		Slug:               p.Slug,
		Platform:           p.Platform,
		CostPrice:          p.CostPrice,
		Currency:           string(p.Currency),
		CustomMargin:       p.CustomMargin,
		DiscountPercentage: p.DiscountPercentage,
		ManualPrice:        p.ManualPrice,
		Price:              p.Price,
		BasePrice:          p.BasePrice,
		Stock:              p.Stock,
		IsHidden:           p.IsHidden,
	}
}

func (req productPayload) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if req.CostPrice < 0 {
		return fmt.Errorf("costPrice must be zero or positive")
	}
	switch pricing.Currency(req.Currency) {
	case pricing.CurrencyLocal, pricing.CurrencyForeign:
	default:
		return fmt.Errorf("currency must be %s or %s", pricing.CurrencyLocal, pricing.CurrencyForeign)
	}
	if req.DiscountPercentage < 0 || req.DiscountPercentage >= 100 {
		return fmt.Errorf("discountPercentage must be in [0, 100)")
	}
	if req.CustomMargin != nil {
		if err := validatePercent(*req.CustomMargin, "customMargin"); err != nil {
			return err
		}
	}
	if req.ManualPrice != nil && *req.ManualPrice < 0 {
		return fmt.Errorf("manualPrice must be zero or positive")
	}
	return nil
}

func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	products, err := s.store.Search(r.Context(), query)
	if err != nil {
		s.log.Error().Err(err).Msg("list products failed")
		respondError(w, http.StatusInternalServerError, "failed to load products")
		return
	}

	payload := make([]productPayload, 0, len(products))
	for _, p := range products {
		payload = append(payload, productToPayload(p))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load settings failed")
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	p := payloadToProduct(req, settings.Settings)
	p.ID = uuid.NewString()
	p.Slug = importer.Slugify(p.Name)

	if err := s.store.Insert(r.Context(), p); err != nil {
		s.log.Error().Err(err).Msg("create product failed")
		respondError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	respondJSON(w, http.StatusCreated, productToPayload(p))
}

func (s *server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load settings failed")
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	p := payloadToProduct(req, settings.Settings)
	p.ID = id
	p.Slug = importer.Slugify(p.Name)

	if err := s.store.UpdateProduct(r.Context(), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		s.log.Error().Err(err).Msg("update product failed")
		respondError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	respondJSON(w, http.StatusOK, productToPayload(p))
}

// payloadToProduct builds a product from the request and recomputes the
// derived prices; client-sent price/basePrice values are never trusted.
func payloadToProduct(req productPayload, s pricing.Settings) catalog.Product {
	p := catalog.Product{
		SKU:                strings.TrimSpace(req.SKU),
		Name:               strings.TrimSpace(req.Name),
		Platform:           strings.TrimSpace(req.Platform),
		CostPrice:          req.CostPrice,
		Currency:           pricing.Currency(req.Currency),
		CustomMargin:       req.CustomMargin,
		DiscountPercentage: req.DiscountPercentage,
		ManualPrice:        req.ManualPrice,
		Stock:              req.Stock,
		IsHidden:           req.IsHidden,
	}
	quote := pricing.Compute(p.PricingInput(), s)
	p.BasePrice = quote.BasePrice
	p.Price = quote.FinalPrice
	return p
}

// --- bulk import / recalculation ---

type candidatePayload struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	CostPrice float64 `json:"costPrice"`
	Currency  string  `json:"currency"`
	Platform  string  `json:"platform"`
}

type importResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req []candidatePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load settings failed")
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	candidates := make([]reconcile.Candidate, 0, len(req))
	for _, c := range req {
		currency := pricing.Currency(c.Currency)
		if currency == "" {
			currency = reconcile.InferCurrency(c.CostPrice)
		}
		candidates = append(candidates, reconcile.Candidate{
			SKU:       strings.TrimSpace(c.SKU),
			Name:      strings.TrimSpace(c.Name),
			CostPrice: c.CostPrice,
			Currency:  currency,
			Platform:  strings.TrimSpace(c.Platform),
		})
	}

	created, skipped, err := s.importer.BulkImport(r.Context(), candidates, settings.Settings, s.logProgress("bulk import"))
	if err != nil {
		s.log.Error().Err(err).Int("created", created).Msg("bulk import aborted")
		respondError(w, http.StatusInternalServerError, "bulk import failed after partial progress")
		return
	}

	respondJSON(w, http.StatusOK, importResponse{Created: created, Skipped: skipped})
}

func (s *server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load settings failed")
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	updated, err := s.importer.RecalculateAll(r.Context(), settings.Settings, s.logProgress("recalculate"))
	if err != nil {
		s.log.Error().Err(err).Int("updated", updated).Msg("recalculation aborted")
		respondError(w, http.StatusInternalServerError, "recalculation failed after partial progress")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (s *server) logProgress(op string) importer.ProgressFunc {
	return func(p importer.Progress) {
		s.log.Info().
			Str("op", op).
			Str("phase", string(p.Phase)).
			Int("batch", p.Batch).
			Int("batches", p.Batches).
			Int("done", p.Done).
			Int("total", p.Total).
			Msg("progress")
	}
}

func (s *server) handleListSyncRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListSyncRuns(r.Context(), 20)
	if err != nil {
		s.log.Error().Err(err).Msg("list sync runs failed")
		respondError(w, http.StatusInternalServerError, "failed to load sync runs")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}
