package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/spotloo/backend/internal/bootstrap"
	"github.com/spotloo/backend/internal/config"
	"github.com/spotloo/backend/internal/handlers"
	appMiddleware "github.com/spotloo/backend/internal/middleware"
	"github.com/spotloo/backend/internal/services"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close(ctx)
	logger := app.Logger

	reports, closeReports, err := app.ReportWriter(ctx, cfg.BackfillReport)
	if err != nil {
		logger.Warn("backfill report writer disabled", "error", err)
		reports, closeReports = nil, func() {}
	}
	defer closeReports()

	// Initialize handlers
	pointsHandler := handlers.NewPointsHandler(services.NewLeaderboard(app.Profiles), logger)
	adminHandler := handlers.NewAdminHandler(app.Reconciler, reports, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(appMiddleware.FirebaseAuth(app.Verifier()))

		r.Get("/leaderboard", pointsHandler.Leaderboard)
		r.Get("/me/points", pointsHandler.MyPoints)
		r.Get("/users/{userId}/points", pointsHandler.UserPoints)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(appMiddleware.AdminJWT(cfg.AdminJWTSecret))
		r.Post("/backfill", adminHandler.RunBackfill)
	})

	logger.Info("points API server starting", "addr", cfg.ServerAddress, "store", cfg.StoreBackend)
	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
