package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
type ReportsStore interface {
	DailySalesSummary(ctx context.Context, arg database.DailySalesSummaryParams) (database.DailySalesSummaryRow, error)
}

// ReportsHandler serves admin sales summaries.
type ReportsHandler struct {
	store ReportsStore
	log   *zap.SugaredLogger
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore, log *zap.SugaredLogger) *ReportsHandler {
	return &ReportsHandler{store: store, log: log}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
}

type dailySummaryResponse struct {
	Date            string `json:"date"`
	OrdersCount     int64  `json:"orders_count"`
	ItemsRevenue    string `json:"items_revenue"`
	DeliveryRevenue string `json:"delivery_revenue"`
	TotalRevenue    string `json:"total_revenue"`
}

// Daily handles GET /reports/daily?date=YYYY-MM-DD (defaults to today).
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if s := r.URL.Query().Get("date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format, use YYYY-MM-DD")
			return
		}
		date = t
	}

	row, err := h.store.DailySalesSummary(r.Context(), database.DailySalesSummaryParams{
		StartDate: date,
		EndDate:   date.Add(24 * time.Hour),
	})
	if err != nil {
		h.log.Errorw("daily sales summary", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, dailySummaryResponse{
		Date:            date.Format("2006-01-02"),
		OrdersCount:     row.OrdersCount,
		ItemsRevenue:    numericToString(row.ItemsRevenue),
		DeliveryRevenue: numericToString(row.DeliveryRevenue),
		TotalRevenue:    numericToString(row.TotalRevenue),
	})
}
