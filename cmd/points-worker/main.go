package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spotloo/backend/internal/bootstrap"
	"github.com/spotloo/backend/internal/config"
	"github.com/spotloo/backend/internal/handlers"
	"github.com/spotloo/backend/internal/services"
)

// points-worker reacts to bathroom and rating document events and awards
// points. Events arrive as Eventarc pushes or, with EVENT_SOURCE=changestream,
// from MongoDB change streams.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	switch cfg.EventSource {
	case "changestream":
		err = runChangeStreams(ctx, app)
	default:
		err = runPush(ctx, app, cfg.Port)
	}
	if err != nil {
		app.Logger.Error("points-worker stopped", "error", err)
		os.Exit(1)
	}
}

func runChangeStreams(ctx context.Context, app *bootstrap.App) error {
	if app.MongoDB == nil {
		return errors.New("change streams require STORE_BACKEND=mongo")
	}
	app.Logger.Info("points-worker watching change streams", "db", app.Config.MongoDB)
	err := services.NewChangeStreamSource(app.MongoDB, app.Reactors, services.NewMongoResumeTokenStore(app.MongoDB), app.Logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runPush(ctx context.Context, app *bootstrap.App, port string) error {
	events := handlers.NewEventsHandler(app.Reactors, app.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/events", func(r chi.Router) {
		r.HandleFunc("/bathroom-created", events.BathroomCreated)
		r.HandleFunc("/rating-created", events.RatingCreated)
		r.HandleFunc("/bathroom-updated", events.BathroomUpdated)
	})

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("points-worker listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
