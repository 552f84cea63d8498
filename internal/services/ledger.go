package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spotloo/backend/internal/models"
)

// AwardStatus is the non-error outcome of a ledger update.
type AwardStatus int

const (
	// AwardSkipped means a domain rule rejected the event before the ledger
	// was consulted.
	AwardSkipped AwardStatus = iota
	AwardApplied
	AwardBlocked
)

func (s AwardStatus) String() string {
	switch s {
	case AwardApplied:
		return "applied"
	case AwardBlocked:
		return "blocked"
	}
	return "skipped"
}

// Metadata is audit context attached to an award.
type Metadata map[string]any

func (m Metadata) attrs() []any {
	out := make([]any, 0, len(m))
	for k, v := range m {
		out = append(out, slog.Any(k, v))
	}
	return out
}

// Ledger applies point awards to user profiles.
type Ledger struct {
	Profiles ProfileStore
	Quota    *QuotaTracker
	Resolver *ProfileResolver
	Clock    Clock
	Logger   *slog.Logger
}

func NewLedger(profiles ProfileStore, quota *QuotaTracker, resolver *ProfileResolver, logger *slog.Logger) *Ledger {
	return &Ledger{Profiles: profiles, Quota: quota, Resolver: resolver, Logger: logger}
}

// AwardPoints adds points for one action of kind to userID. It returns
// AwardBlocked without writing when the daily cap is reached. Storage
// failures are returned as errors.
func (l *Ledger) AwardPoints(ctx context.Context, userID string, points int, kind models.ActionKind, meta Metadata) (AwardStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || !kind.Valid() || points < 0 {
		return AwardSkipped, fmt.Errorf("%w: user=%q action=%q points=%d", ErrInvalidAward, userID, kind, points)
	}
	logger := resolveLogger(l.Logger).With("user_id", userID, "action", string(kind), "points", points)

	now := l.Clock.now()
	check := l.Quota.Check(ctx, userID, kind, now)
	if !check.Allowed {
		logger.Warn("action blocked, daily limit exceeded", slog.Group("metadata", meta.attrs()...))
		return AwardBlocked, nil
	}

	w := LedgerWrite{
		UserID:     userID,
		Action:     kind,
		Points:     points,
		Now:        now,
		ResetDaily: check.Reset,
	}
	// Profile is nil when absent or unreadable; identity fields then only
	// land if this write inserts the document.
	w.Fill, w.Insert = l.Resolver.fillFor(ctx, userID, check.Profile)

	if err := l.Profiles.ApplyAward(ctx, w); err != nil {
		logger.Error("updating user points failed", "error", err, slog.Group("metadata", meta.attrs()...))
		return AwardSkipped, fmt.Errorf("apply award to %s: %w", userID, err)
	}

	logger.Info("points awarded",
		"reset_daily", w.ResetDaily,
		slog.Group("metadata", meta.attrs()...),
	)
	return AwardApplied, nil
}
