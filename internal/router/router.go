package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/shopsy24/api/internal/config"
	"github.com/shopsy24/api/internal/database"
	"github.com/shopsy24/api/internal/enum"
	"github.com/shopsy24/api/internal/handler"
	mw "github.com/shopsy24/api/internal/middleware"
	"github.com/shopsy24/api/internal/pricing"
	"github.com/shopsy24/api/internal/service"
	"github.com/shopsy24/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, log *zap.SugaredLogger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	engine := pricing.NewEngine(queries, cfg.StoreLat, cfg.StoreLon)
	newStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newStore, queries, engine, hub, time.Now, log)

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, log)
	authHandler.RegisterRoutes(r)

	// Storefront reads (public)
	menuHandler := handler.NewMenuHandler(queries, log)
	r.Route("/menu-items", func(r chi.Router) {
		menuHandler.RegisterPublicRoutes(r)

		// Menu writes are admin-only.
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			menuHandler.RegisterAdminRoutes(r)
		})
	})

	settingsHandler := handler.NewSettingsHandler(queries, log)
	r.Route("/settings", func(r chi.Router) {
		settingsHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			settingsHandler.RegisterAdminRoutes(r)
		})
	})

	deliveryHandler := handler.NewDeliveryHandler(queries, engine, log)
	r.Route("/delivery", deliveryHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Users
		userHandler := handler.NewUserHandler(queries, log)
		r.Route("/users", userHandler.RegisterRoutes)

		// Orders
		orderHandler := handler.NewOrderHandler(orderService, queries, hub, log)
		paymentHandler := handler.NewPaymentHandler(orderService, log)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)

			// Status transitions and archival are admin-only.
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleAdmin))
				orderHandler.RegisterAdminRoutes(r)
			})

			// Payments (nested under orders)
			r.Route("/{id}/payments", paymentHandler.RegisterOrderRoutes)
		})

		r.Route("/payments", paymentHandler.RegisterVerifyRoutes)

		// Reports (admin-only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			reportsHandler := handler.NewReportsHandler(queries, log)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	return r
}
