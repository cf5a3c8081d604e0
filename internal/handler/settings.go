package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/database"
	"github.com/shopsy24/api/internal/pricing"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries.
type SettingsStore interface {
	GetSettings(ctx context.Context) (database.StoreSettings, error)
	UpdateSettings(ctx context.Context, arg database.UpdateSettingsParams) (database.StoreSettings, error)
}

// SettingsHandler handles store settings endpoints.
type SettingsHandler struct {
	store SettingsStore
	log   *zap.SugaredLogger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore, log *zap.SugaredLogger) *SettingsHandler {
	return &SettingsHandler{store: store, log: log}
}

// RegisterPublicRoutes registers the storefront read endpoint.
func (h *SettingsHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

// RegisterAdminRoutes registers the admin write endpoint.
func (h *SettingsHandler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/", h.Update)
}

// --- Request / Response types ---

type settingsPayload struct {
	OrderingDisabled bool              `json:"ordering_disabled"`
	OccasionName     *string           `json:"occasion_name"`
	OccasionMessage  *string           `json:"occasion_message"`
	OccasionStart    *time.Time        `json:"occasion_start"`
	OccasionEnd      *time.Time        `json:"occasion_end"`
	OpeningTime      string            `json:"opening_time"`
	ClosingTime      string            `json:"closing_time"`
	FeeBands         []pricing.FeeBand `json:"fee_bands"`
	EtaBands         []pricing.EtaBand `json:"eta_bands"`
}

func toSettingsPayload(s database.StoreSettings) (settingsPayload, error) {
	feeBands, err := pricing.DecodeFeeBands(s.FeeBands)
	if err != nil {
		return settingsPayload{}, err
	}
	etaBands, err := pricing.DecodeEtaBands(s.EtaBands)
	if err != nil {
		return settingsPayload{}, err
	}

	p := settingsPayload{
		OrderingDisabled: s.OrderingDisabled,
		OpeningTime:      s.OpeningTime,
		ClosingTime:      s.ClosingTime,
		FeeBands:         feeBands,
		EtaBands:         etaBands,
	}
	if s.OccasionName.Valid {
		p.OccasionName = &s.OccasionName.String
	}
	if s.OccasionMessage.Valid {
		p.OccasionMessage = &s.OccasionMessage.String
	}
	if s.OccasionStart.Valid {
		p.OccasionStart = &s.OccasionStart.Time
	}
	if s.OccasionEnd.Valid {
		p.OccasionEnd = &s.OccasionEnd.Time
	}
	return p, nil
}

// --- Handlers ---

// Get handles GET /settings. Creates the default row on first read.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.GetSettings(r.Context())
	if err != nil {
		h.log.Errorw("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	payload, err := toSettingsPayload(s)
	if err != nil {
		h.log.Errorw("decode settings bands", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// Update handles PUT /settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OpeningTime == "" {
		req.OpeningTime = "09:00"
	}
	if req.ClosingTime == "" {
		req.ClosingTime = "21:00"
	}
	if len(req.FeeBands) == 0 {
		req.FeeBands = pricing.DefaultFeeBands()
	}
	if len(req.EtaBands) == 0 {
		req.EtaBands = pricing.DefaultEtaBands()
	}

	if err := pricing.ValidateFeeBands(req.FeeBands); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := pricing.ValidateEtaBands(req.EtaBands); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feeBands, err := json.Marshal(req.FeeBands)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fee_bands")
		return
	}
	etaBands, err := json.Marshal(req.EtaBands)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid eta_bands")
		return
	}

	// Ensure the singleton row exists before updating it.
	if _, err := h.store.GetSettings(r.Context()); err != nil {
		h.log.Errorw("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	params := database.UpdateSettingsParams{
		OrderingDisabled: req.OrderingDisabled,
		OpeningTime:      req.OpeningTime,
		ClosingTime:      req.ClosingTime,
		FeeBands:         feeBands,
		EtaBands:         etaBands,
	}
	if req.OccasionName != nil {
		params.OccasionName = pgtype.Text{String: *req.OccasionName, Valid: true}
	}
	if req.OccasionMessage != nil {
		params.OccasionMessage = pgtype.Text{String: *req.OccasionMessage, Valid: true}
	}
	if req.OccasionStart != nil {
		params.OccasionStart = pgtype.Timestamptz{Time: *req.OccasionStart, Valid: true}
	}
	if req.OccasionEnd != nil {
		params.OccasionEnd = pgtype.Timestamptz{Time: *req.OccasionEnd, Valid: true}
	}

	updated, err := h.store.UpdateSettings(r.Context(), params)
	if err != nil {
		h.log.Errorw("update settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	payload, err := toSettingsPayload(updated)
	if err != nil {
		h.log.Errorw("decode settings bands", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
