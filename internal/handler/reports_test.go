package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopsy24/api/internal/database"
	"github.com/shopsy24/api/internal/enum"
	"github.com/shopsy24/api/internal/handler"
	"github.com/shopsy24/api/internal/middleware"
)

type mockReportsStore struct {
	dailyFn func(arg database.DailySalesSummaryParams) (database.DailySalesSummaryRow, error)
}

func (m *mockReportsStore) DailySalesSummary(ctx context.Context, arg database.DailySalesSummaryParams) (database.DailySalesSummaryRow, error) {
	if m.dailyFn == nil {
		return database.DailySalesSummaryRow{}, nil
	}
	return m.dailyFn(arg)
}

func setupReportsRouter(store *mockReportsStore) *chi.Mux {
	h := handler.NewReportsHandler(store, testLogger())
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Use(middleware.RequireRole(enum.UserRoleAdmin))
	r.Route("/reports", h.RegisterRoutes)
	return r
}

func TestDailyReport_ForDate(t *testing.T) {
	var requested database.DailySalesSummaryParams
	store := &mockReportsStore{
		dailyFn: func(arg database.DailySalesSummaryParams) (database.DailySalesSummaryRow, error) {
			requested = arg
			return database.DailySalesSummaryRow{
				OrdersCount:     3,
				ItemsRevenue:    testNumeric("600.00"),
				DeliveryRevenue: testNumeric("60.00"),
				TotalRevenue:    testNumeric("660.00"),
			}, nil
		},
	}
	router := setupReportsRouter(store)

	rr := doAuthRequest(t, router, http.MethodGet, "/reports/daily?date=2025-06-15", nil, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	wantStart := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !requested.StartDate.Equal(wantStart) {
		t.Errorf("start date: got %v, want %v", requested.StartDate, wantStart)
	}
	if !requested.EndDate.Equal(wantStart.Add(24 * time.Hour)) {
		t.Errorf("end date: got %v, want %v", requested.EndDate, wantStart.Add(24*time.Hour))
	}

	resp := decodeResponse(t, rr)
	if resp["date"] != "2025-06-15" {
		t.Errorf("got date %v, want 2025-06-15", resp["date"])
	}
	if resp["orders_count"].(float64) != 3 {
		t.Errorf("got orders_count %v, want 3", resp["orders_count"])
	}
	if resp["items_revenue"] != "600.00" {
		t.Errorf("got items_revenue %v, want 600.00", resp["items_revenue"])
	}
	if resp["total_revenue"] != "660.00" {
		t.Errorf("got total_revenue %v, want 660.00", resp["total_revenue"])
	}
}

func TestDailyReport_DefaultsToToday(t *testing.T) {
	var requested database.DailySalesSummaryParams
	store := &mockReportsStore{
		dailyFn: func(arg database.DailySalesSummaryParams) (database.DailySalesSummaryRow, error) {
			requested = arg
			return database.DailySalesSummaryRow{}, nil
		},
	}
	router := setupReportsRouter(store)

	rr := doAuthRequest(t, router, http.MethodGet, "/reports/daily", nil, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !requested.StartDate.Equal(today) {
		t.Errorf("start date: got %v, want %v", requested.StartDate, today)
	}
}

func TestDailyReport_InvalidDate(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{
		dailyFn: func(arg database.DailySalesSummaryParams) (database.DailySalesSummaryRow, error) {
			t.Fatal("DailySalesSummary should not be called")
			return database.DailySalesSummaryRow{}, nil
		},
	})

	rr := doAuthRequest(t, router, http.MethodGet, "/reports/daily?date=15-06-2025", nil, adminClaims())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDailyReport_CustomerForbidden(t *testing.T) {
	router := setupReportsRouter(&mockReportsStore{})

	rr := doAuthRequest(t, router, http.MethodGet, "/reports/daily", nil, customerClaims())
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusForbidden)
	}
}
