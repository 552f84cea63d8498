package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spotloo/backend/internal/models"
)

// ReportWriter persists a finished backfill report.
type ReportWriter interface {
	WriteReport(ctx context.Context, report *models.BackfillReport) error
}

// Reconciler recomputes every user's totals from the raw bathroom and rating
// collections and overwrites the stored values. It trusts historical events:
// daily caps and self-action exclusions are not re-applied.
type Reconciler struct {
	Bathrooms   BathroomStore
	Ratings     RatingStore
	Profiles    ProfileStore
	Resolver    *ProfileResolver
	Points      models.PointValues
	Concurrency int
	Clock       Clock
	Logger      *slog.Logger
}

func NewReconciler(bathrooms BathroomStore, ratings RatingStore, profiles ProfileStore, resolver *ProfileResolver, points models.PointValues, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		Bathrooms:   bathrooms,
		Ratings:     ratings,
		Profiles:    profiles,
		Resolver:    resolver,
		Points:      points,
		Concurrency: 8,
		Logger:      logger,
	}
}

// Tally counts creations, ratings and validations per user and values them.
// The result is sorted by user id.
func Tally(bathrooms []models.Bathroom, ratings []models.Rating, points models.PointValues) []models.UserTally {
	stats := make(map[string]*models.ContributionStats)
	get := func(userID string) *models.ContributionStats {
		s, ok := stats[userID]
		if !ok {
			s = &models.ContributionStats{}
			stats[userID] = s
		}
		return s
	}

	for _, b := range bathrooms {
		if b.CreatedBy != "" {
			get(b.CreatedBy).BathroomsCreated++
		}
		for userID, ok := range b.Validations {
			if ok {
				get(userID).ValidationsGiven++
			}
		}
	}
	for _, r := range ratings {
		if r.UserUID != "" {
			get(r.UserUID).RatingsGiven++
		}
	}

	out := make([]models.UserTally, 0, len(stats))
	for userID, s := range stats {
		out = append(out, models.UserTally{
			UserID:        userID,
			Stats:         *s,
			Points:        s.Points(points),
			Contributions: s.Contributions(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Run scans both collections once and writes one overwrite per user. A
// failure to read either collection aborts the run; per-user write failures
// are counted in the report.
func (r *Reconciler) Run(ctx context.Context) (*models.BackfillReport, error) {
	logger := resolveLogger(r.Logger)
	report := &models.BackfillReport{
		RunID:     uuid.NewString(),
		StartedAt: r.Clock.now(),
	}
	logger = logger.With("run_id", report.RunID)
	logger.Info("backfill started")

	bathrooms, err := r.Bathrooms.ListBathrooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bathrooms: %w", err)
	}
	report.BathroomsScanned = len(bathrooms)

	ratings, err := r.Ratings.ListRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	report.RatingsScanned = len(ratings)

	report.Users = Tally(bathrooms, ratings, r.Points)
	report.UsersFound = len(report.Users)
	logger.Info("backfill tallied",
		"bathrooms", report.BathroomsScanned,
		"ratings", report.RatingsScanned,
		"users", report.UsersFound,
	)

	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())
	for _, t := range report.Users {
		g.Go(func() error {
			if err := r.writeTotals(gctx, t); err != nil {
				logger.Error("backfill user update failed", "user_id", t.UserID, "error", err)
				mu.Lock()
				failed = append(failed, t.UserID)
				mu.Unlock()
				return nil
			}
			logger.Debug("backfill user updated",
				"user_id", t.UserID,
				"points", t.Points,
				"contributions", t.Contributions,
			)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)
	report.FailedUsers = failed
	report.Failed = len(failed)
	report.Succeeded = report.UsersFound - report.Failed
	report.FinishedAt = r.Clock.now()

	logger.Info("backfill finished", "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

func (r *Reconciler) writeTotals(ctx context.Context, t models.UserTally) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Missing or unreadable profiles get insert-only identity fields.
	existing, _ := r.Profiles.GetProfile(ctx, t.UserID)
	fill, insert := r.Resolver.fillFor(ctx, t.UserID, existing)
	return r.Profiles.ReplaceTotals(ctx, TotalsWrite{
		UserID: t.UserID,
		Stats:  t.Stats,
		Points: t.Points,
		Now:    r.Clock.now(),
		Insert: insert,
		Fill:   fill,
	})
}

func (r *Reconciler) concurrency() int {
	if r.Concurrency < 1 {
		return 1
	}
	return r.Concurrency
}

// ReportDrift compares the per-user points of two runs. Users missing from
// one side count as zero there. The result is sorted by user id.
func ReportDrift(prev, cur *models.BackfillReport) []models.PointsDrift {
	before := map[string]int{}
	if prev != nil {
		for _, u := range prev.Users {
			before[u.UserID] = u.Points
		}
	}
	after := map[string]int{}
	if cur != nil {
		for _, u := range cur.Users {
			after[u.UserID] = u.Points
		}
	}

	var out []models.PointsDrift
	for userID, pts := range after {
		if before[userID] != pts {
			out = append(out, models.PointsDrift{UserID: userID, Before: before[userID], After: pts})
		}
	}
	for userID, pts := range before {
		if _, ok := after[userID]; !ok && pts != 0 {
			out = append(out, models.PointsDrift{UserID: userID, Before: pts})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
