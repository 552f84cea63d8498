package models

import "time"

// UserTally is one user's recomputed totals.
type UserTally struct {
	UserID        string            `json:"user_id"`
	Stats         ContributionStats `json:"stats"`
	Points        int               `json:"points"`
	Contributions int               `json:"contributions"`
}

// BackfillReport summarises one reconciler run.
type BackfillReport struct {
	RunID            string      `json:"run_id"`
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       time.Time   `json:"finished_at"`
	BathroomsScanned int         `json:"bathrooms_scanned"`
	RatingsScanned   int         `json:"ratings_scanned"`
	UsersFound       int         `json:"users_found"`
	Succeeded        int         `json:"succeeded"`
	Failed           int         `json:"failed"`
	FailedUsers      []string    `json:"failed_users,omitempty"`
	Users            []UserTally `json:"users"`
}

// PointsDrift is a user whose recomputed points changed between two runs.
type PointsDrift struct {
	UserID string `json:"user_id"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}
