package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shopsy24/api/internal/database"
	"github.com/shopsy24/api/internal/handler"
	"github.com/shopsy24/api/internal/pricing"
)

type emptyCatalog struct{}

func (emptyCatalog) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error) {
	return database.GetMenuItemForOrderRow{}, pgx.ErrNoRows
}

func setupDeliveryRouter(store *mockSettingsStore) *chi.Mux {
	engine := pricing.NewEngine(emptyCatalog{}, 25.5941, 85.1376)
	h := handler.NewDeliveryHandler(store, engine, testLogger())
	r := chi.NewRouter()
	r.Route("/delivery", h.RegisterRoutes)
	return r
}

func doQuote(t *testing.T, router http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/delivery/quote"+query, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestDeliveryQuote_NoCoordinates(t *testing.T) {
	router := setupDeliveryRouter(&mockSettingsStore{})
	rr := doQuote(t, router, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["delivery_charge"] != "0.00" {
		t.Errorf("delivery_charge: got %v, want 0.00", resp["delivery_charge"])
	}
	if resp["distance_km"] != float64(0) {
		t.Errorf("distance_km: got %v, want 0", resp["distance_km"])
	}
}

func TestDeliveryQuote_WithCoordinates(t *testing.T) {
	router := setupDeliveryRouter(&mockSettingsStore{})
	// ~1.5km due north: the [1, 2) default band charges 20.
	rr := doQuote(t, router, "?lat=25.6076&lon=85.1376")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["delivery_charge"] != "20.00" {
		t.Errorf("delivery_charge: got %v, want 20.00", resp["delivery_charge"])
	}
	if resp["eta_minutes"] != float64(25) {
		t.Errorf("eta_minutes: got %v, want 25", resp["eta_minutes"])
	}
}

func TestDeliveryQuote_ConfiguredBands(t *testing.T) {
	store := &mockSettingsStore{
		getFn: func(ctx context.Context) (database.StoreSettings, error) {
			s := defaultSettingsRow()
			s.FeeBands = []byte(`[{"min_km":0,"max_km":100,"charge":"7.50"}]`)
			return s, nil
		},
	}
	router := setupDeliveryRouter(store)
	rr := doQuote(t, router, "?lat=25.6076&lon=85.1376")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["delivery_charge"] != "7.50" {
		t.Errorf("delivery_charge: got %v, want 7.50", resp["delivery_charge"])
	}
}

func TestDeliveryQuote_UnpairedCoordinates(t *testing.T) {
	router := setupDeliveryRouter(&mockSettingsStore{})
	rr := doQuote(t, router, "?lat=25.6")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestDeliveryQuote_MalformedCoordinates(t *testing.T) {
	router := setupDeliveryRouter(&mockSettingsStore{})
	rr := doQuote(t, router, "?lat=abc&lon=85.1")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}
