package services

import (
	"context"
	"errors"

	"github.com/spotloo/backend/internal/models"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
)

// Leaderboard reads ranked standings. Results are eventually consistent with
// the ledger.
type Leaderboard struct {
	Profiles ProfileStore
}

func NewLeaderboard(profiles ProfileStore) *Leaderboard {
	return &Leaderboard{Profiles: profiles}
}

func (l *Leaderboard) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	profiles, err := l.Profiles.TopProfiles(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		out = append(out, models.LeaderboardEntry{Rank: i + 1, PublicPoints: publicPoints(p)})
	}
	return out, nil
}

// UserPoints returns a user's standing. Users without a profile have zero
// points rather than an error.
func (l *Leaderboard) UserPoints(ctx context.Context, userID string) (*models.PublicPoints, error) {
	p, err := l.Profiles.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return &models.PublicPoints{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	pub := publicPoints(*p)
	if pub.UserID == "" {
		pub.UserID = userID
	}
	return &pub, nil
}

func publicPoints(p models.UserProfile) models.PublicPoints {
	userID := p.UID
	if userID == "" {
		userID = p.ID
	}
	return models.PublicPoints{
		UserID:        userID,
		DisplayName:   p.DisplayName,
		Points:        p.Points,
		Contributions: p.Contributions,
		LastActivity:  p.LastActivity,
	}
}
