package models

import "time"

// UserProfile is the per-user ledger document stored in the "users" collection
// and keyed by Firebase UID.
type UserProfile struct {
	// ID is the document key; UID may be missing on legacy documents.
	ID            string             `json:"-" bson:"_id,omitempty"`
	UID           string             `json:"uid" bson:"uid,omitempty"`
	DisplayName   string             `json:"display_name" bson:"display_name,omitempty"`
	Email         string             `json:"email" bson:"email,omitempty"`
	Points        int                `json:"points" bson:"points"`
	Contributions int                `json:"contributions" bson:"contributions"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at,omitempty"`
	LastActivity  time.Time          `json:"last_activity" bson:"last_activity,omitempty"`
	DailyStats    *DailyStats        `json:"daily_stats,omitempty" bson:"daily_stats,omitempty"`
	Stats         *ContributionStats `json:"stats,omitempty" bson:"stats,omitempty"`
}

// DailyStats counts point-earning actions since LastReset. Field names match
// the ActionKind values so "daily_stats.<kind>" addresses the counter.
type DailyStats struct {
	LastReset  time.Time `json:"last_reset" bson:"last_reset"`
	Bathroom   int       `json:"bathroom" bson:"bathroom,omitempty"`
	Rating     int       `json:"rating" bson:"rating,omitempty"`
	Validation int       `json:"validation" bson:"validation,omitempty"`
}

// Count returns the counter for kind, 0 for unknown kinds.
func (d *DailyStats) Count(kind ActionKind) int {
	if d == nil {
		return 0
	}
	switch kind {
	case ActionBathroom:
		return d.Bathroom
	case ActionRating:
		return d.Rating
	case ActionValidation:
		return d.Validation
	}
	return 0
}

// Add increments the counter for kind by n.
func (d *DailyStats) Add(kind ActionKind, n int) {
	switch kind {
	case ActionBathroom:
		d.Bathroom += n
	case ActionRating:
		d.Rating += n
	case ActionValidation:
		d.Validation += n
	}
}

// ContributionStats is the per-kind breakdown written by the backfill.
type ContributionStats struct {
	BathroomsCreated int `json:"bathrooms_created" bson:"bathrooms_created"`
	RatingsGiven     int `json:"ratings_given" bson:"ratings_given"`
	ValidationsGiven int `json:"validations_given" bson:"validations_given"`
}

// Contributions is the total number of point-earning actions.
func (s ContributionStats) Contributions() int {
	return s.BathroomsCreated + s.RatingsGiven + s.ValidationsGiven
}

// Points values the breakdown with the given point table.
func (s ContributionStats) Points(p PointValues) int {
	return s.BathroomsCreated*p.CreateBathroom + s.RatingsGiven*p.Rating + s.ValidationsGiven*p.Validation
}

// PublicPoints is what the API exposes for a user's standing.
type PublicPoints struct {
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	Points        int       `json:"points"`
	Contributions int       `json:"contributions"`
	LastActivity  time.Time `json:"last_activity,omitempty"`
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	PublicPoints
}
