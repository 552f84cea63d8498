package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spotloo/backend/internal/models"
)

// QuotaDecision says whether one more action of a kind counts today.
type QuotaDecision struct {
	Allowed bool
	// Reset means the tracked day rolled over: every counter restarts and the
	// current action is counted as 1.
	Reset bool
	Count int
	Limit int
}

// QuotaCheck is a decision together with the profile snapshot it was made on.
type QuotaCheck struct {
	QuotaDecision
	Profile *models.UserProfile
	Exists  bool
	// ReadErr is set when the profile could not be read and the check failed open.
	ReadErr error
}

// QuotaTracker enforces per-kind daily caps from the profile's daily_stats.
//
// The counter is read here and incremented later by the ledger write, so two
// concurrent actions near the cap can both pass.
type QuotaTracker struct {
	Profiles ProfileStore
	Limits   models.DailyLimits
	Location *time.Location
	Logger   *slog.Logger
}

func NewQuotaTracker(profiles ProfileStore, limits models.DailyLimits, loc *time.Location, logger *slog.Logger) *QuotaTracker {
	return &QuotaTracker{Profiles: profiles, Limits: limits, Location: loc, Logger: logger}
}

// DayStart is midnight of now's day in the tracker's reference timezone.
func (q *QuotaTracker) DayStart(now time.Time) time.Time {
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Evaluate decides on a daily_stats snapshot without touching storage.
func (q *QuotaTracker) Evaluate(stats *models.DailyStats, kind models.ActionKind, now time.Time) QuotaDecision {
	limit := q.Limits.For(kind)
	if stats == nil || stats.LastReset.IsZero() || stats.LastReset.Before(q.DayStart(now)) {
		return QuotaDecision{Allowed: true, Reset: true, Limit: limit}
	}

	count := stats.Count(kind)
	if count >= limit {
		return QuotaDecision{Allowed: false, Count: count, Limit: limit}
	}
	return QuotaDecision{Allowed: true, Count: count, Limit: limit}
}

// Check loads the user's profile and evaluates the quota for kind. Read
// errors fail open: the action is allowed without a reset.
func (q *QuotaTracker) Check(ctx context.Context, userID string, kind models.ActionKind, now time.Time) QuotaCheck {
	prof, err := q.Profiles.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return QuotaCheck{QuotaDecision: q.Evaluate(nil, kind, now)}
	case err != nil:
		resolveLogger(q.Logger).Error("daily quota check failed, allowing action",
			"user_id", userID,
			"action", string(kind),
			"error", err,
		)
		return QuotaCheck{
			QuotaDecision: QuotaDecision{Allowed: true, Limit: q.Limits.For(kind)},
			ReadErr:       err,
		}
	}

	check := QuotaCheck{
		QuotaDecision: q.Evaluate(prof.DailyStats, kind, now),
		Profile:       prof,
		Exists:        true,
	}
	if !check.Allowed {
		resolveLogger(q.Logger).Warn("daily limit reached",
			"user_id", userID,
			"action", string(kind),
			"count", check.Count,
			"limit", check.Limit,
		)
	}
	return check
}
