package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/pricing"
)

// DeliveryHandler exposes the band calculator so the storefront can show
// fee and ETA before checkout.
type DeliveryHandler struct {
	store  SettingsStore
	engine *pricing.Engine
	log    *zap.SugaredLogger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(store SettingsStore, engine *pricing.Engine, log *zap.SugaredLogger) *DeliveryHandler {
	return &DeliveryHandler{store: store, engine: engine, log: log}
}

// RegisterRoutes registers the quote endpoint.
func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/quote", h.Quote)
}

type deliveryQuoteResponse struct {
	DeliveryCharge string  `json:"delivery_charge"`
	DistanceKm     float64 `json:"distance_km"`
	EtaMinutes     int32   `json:"eta_minutes"`
}

// Quote handles GET /delivery/quote?lat=..&lon=..
// Coordinates are optional; without them the zero-distance quote is returned.
func (h *DeliveryHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var lat, lon *float64
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")

	if (latStr == "") != (lonStr == "") {
		writeError(w, http.StatusBadRequest, "lat and lon must be provided together")
		return
	}
	if latStr != "" {
		latV, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lat")
			return
		}
		lonV, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lon")
			return
		}
		lat, lon = &latV, &lonV
	}

	cfg, err := h.store.GetSettings(r.Context())
	if err != nil {
		h.log.Errorw("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	feeBands, err := pricing.DecodeFeeBands(cfg.FeeBands)
	if err != nil {
		h.log.Errorw("decode fee bands", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	etaBands, err := pricing.DecodeEtaBands(cfg.EtaBands)
	if err != nil {
		h.log.Errorw("decode eta bands", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	quote := h.engine.QuoteDelivery(lat, lon, feeBands, etaBands)

	writeJSON(w, http.StatusOK, deliveryQuoteResponse{
		DeliveryCharge: quote.Charge.StringFixed(2),
		DistanceKm:     quote.DistanceKm,
		EtaMinutes:     quote.EtaMinutes,
	})
}
