// Package bootstrap wires configuration into the services shared by the
// binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spotloo/backend/internal/config"
	"github.com/spotloo/backend/internal/logging"
	"github.com/spotloo/backend/internal/middleware"
	"github.com/spotloo/backend/internal/services"
	"github.com/spotloo/backend/internal/storage"
)

// App holds the collaborators every binary needs.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Profiles   services.ProfileStore
	Bathrooms  services.BathroomStore
	Ratings    services.RatingStore
	AuthClient *fbauth.Client
	Resolver   *services.ProfileResolver
	Ledger     *services.Ledger
	Reactors   *services.Reactors
	Reconciler *services.Reconciler

	// MongoDB is nil for the memory backend.
	MongoDB *mongo.Database
	client  *mongo.Client
}

// New connects storage and Firebase per cfg. Firebase failures are logged
// and leave AuthClient nil; the resolver then always uses placeholders.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	app := &App{Config: cfg, Logger: logger}

	switch strings.ToLower(cfg.StoreBackend) {
	case "memory":
		mem := storage.NewMemoryStore()
		app.Profiles, app.Bathrooms, app.Ratings = mem, mem, mem
		logger.Warn("using in-memory store, data is lost on exit")
	case "mongo", "":
		if cfg.MongoURI == "" {
			return nil, errors.New("MONGO_URI env var is not set")
		}
		client, err := services.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		bathrooms := services.NewMongoBathroomStore(db)
		app.client = client
		app.MongoDB = db
		app.Profiles = services.NewMongoProfileStore(ctx, db)
		app.Bathrooms, app.Ratings = bathrooms, bathrooms
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	authClient, err := middleware.NewFirebaseAuthClient(ctx, middleware.FirebaseAuthConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
	})
	var provider services.IdentityProvider
	if err != nil {
		logger.Warn("failed to initialize Firebase Auth client", "error", err)
	} else {
		app.AuthClient = authClient
		provider = services.NewFirebaseIdentityProvider(authClient)
	}

	app.Resolver = services.NewProfileResolver(provider, cfg.PlaceholderDisplayName, logger)
	quota := services.NewQuotaTracker(app.Profiles, cfg.Limits, cfg.QuotaLocation, logger)
	app.Ledger = services.NewLedger(app.Profiles, quota, app.Resolver, logger)
	app.Reactors = services.NewReactors(app.Ledger, app.Bathrooms, cfg.Points, logger)
	app.Reconciler = services.NewReconciler(app.Bathrooms, app.Ratings, app.Profiles, app.Resolver, cfg.Points, logger)
	app.Reconciler.Concurrency = cfg.BackfillConcurrency
	return app, nil
}

// ReportWriter returns where backfill reports go: a gs:// object, a local
// file, or nil when path is empty. The returned func releases the writer.
func (a *App) ReportWriter(ctx context.Context, path string) (services.ReportWriter, func(), error) {
	switch {
	case path == "":
		return nil, func() {}, nil
	case strings.HasPrefix(path, "gs://"):
		w, err := services.NewGCSReportWriter(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { _ = w.Close() }, nil
	default:
		w, err := storage.NewJSONStore(path)
		if err != nil {
			return nil, nil, err
		}
		return w, func() {}, nil
	}
}

func (a *App) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

// Verifier returns the ID-token verifier, or a nil interface when Firebase
// is unavailable.
func (a *App) Verifier() middleware.IDTokenVerifier {
	if a.AuthClient == nil {
		return nil
	}
	return a.AuthClient
}
