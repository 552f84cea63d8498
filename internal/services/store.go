package services

import (
	"context"
	"errors"
	"time"

	"github.com/spotloo/backend/internal/models"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrBathroomNotFound = errors.New("bathroom not found")
	ErrInvalidAward     = errors.New("invalid award")
)

// ProfileFill holds identity fields to write. Empty strings are not written.
type ProfileFill struct {
	UID         string
	DisplayName string
	Email       string
}

// Empty reports whether there is nothing to fill.
func (f ProfileFill) Empty() bool {
	return f.UID == "" && f.DisplayName == "" && f.Email == ""
}

// LedgerWrite is a single merge-upsert against a user's profile document.
//
// Points and Contributions (always 1) are server-side increments. When
// ResetDaily is set the whole daily_stats sub-document is replaced with
// {last_reset: Now, <Action>: 1}; otherwise daily_stats.<Action> is
// incremented. created_at is written only when the document is inserted.
// If Insert is set the Fill fields are insert-only, else they are set.
type LedgerWrite struct {
	UserID     string
	Action     models.ActionKind
	Points     int
	Now        time.Time
	ResetDaily bool
	Insert     bool
	Fill       ProfileFill
}

// TotalsWrite overwrites a user's totals with recomputed values.
type TotalsWrite struct {
	UserID string
	Stats  models.ContributionStats
	Points int
	Now    time.Time
	Insert bool
	Fill   ProfileFill
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	ApplyAward(ctx context.Context, w LedgerWrite) error
	ReplaceTotals(ctx context.Context, w TotalsWrite) error
	// TopProfiles returns up to limit profiles ordered by points descending.
	TopProfiles(ctx context.Context, limit int) ([]models.UserProfile, error)
}

type BathroomStore interface {
	GetBathroom(ctx context.Context, id string) (*models.Bathroom, error)
	ListBathrooms(ctx context.Context) ([]models.Bathroom, error)
}

type RatingStore interface {
	ListRatings(ctx context.Context) ([]models.Rating, error)
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}
