package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spotloo/backend/internal/models"
	"github.com/spotloo/backend/internal/services"
)

// MemoryStore is a thread-safe in-memory document store with the same
// merge-upsert semantics as the Mongo stores. Every write holds the lock for
// the whole update, which makes increments atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]*models.UserProfile
	bathrooms map[string]*models.Bathroom
	ratings   map[string]*models.Rating
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*models.UserProfile),
		bathrooms: make(map[string]*models.Bathroom),
		ratings:   make(map[string]*models.Rating),
	}
}

// PutProfile stores a copy of p keyed by userID.
func (s *MemoryStore) PutProfile(userID string, p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = userID
	s.profiles[userID] = cloneProfile(&p)
}

// PutBathroom stores a copy of b keyed by b.ID.
func (s *MemoryStore) PutBathroom(b models.Bathroom) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bathrooms[b.ID] = cloneBathroom(&b)
}

// PutRating stores a copy of r keyed by r.ID.
func (s *MemoryStore) PutRating(r models.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.ratings[r.ID] = &cp
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, services.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) ApplyAward(_ context.Context, w services.LedgerWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.upsert(w.UserID, w.Now, w.Insert, w.Fill)
	p.Points += w.Points
	p.Contributions++
	p.LastActivity = w.Now
	if w.ResetDaily {
		p.DailyStats = &models.DailyStats{LastReset: w.Now}
	} else if p.DailyStats == nil {
		p.DailyStats = &models.DailyStats{}
	}
	p.DailyStats.Add(w.Action, 1)
	return nil
}

func (s *MemoryStore) ReplaceTotals(_ context.Context, w services.TotalsWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.upsert(w.UserID, w.Now, w.Insert, w.Fill)
	stats := w.Stats
	p.Points = w.Points
	p.Contributions = stats.Contributions()
	p.Stats = &stats
	p.LastActivity = w.Now
	return nil
}

func (s *MemoryStore) TopProfiles(_ context.Context, limit int) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *cloneProfile(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetBathroom(_ context.Context, id string) (*models.Bathroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bathrooms[id]
	if !ok {
		return nil, services.ErrBathroomNotFound
	}
	return cloneBathroom(b), nil
}

func (s *MemoryStore) ListBathrooms(_ context.Context) ([]models.Bathroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Bathroom, 0, len(s.bathrooms))
	for _, b := range s.bathrooms {
		out = append(out, *cloneBathroom(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListRatings(_ context.Context) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rating, 0, len(s.ratings))
	for _, r := range s.ratings {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// upsert returns the stored profile, creating it if absent. Identity fields
// follow the same insert-only / set split as the Mongo store. Callers hold mu.
func (s *MemoryStore) upsert(userID string, now time.Time, insert bool, fill services.ProfileFill) *models.UserProfile {
	p, ok := s.profiles[userID]
	if !ok {
		p = &models.UserProfile{ID: userID, CreatedAt: now}
		s.profiles[userID] = p
		applyFill(p, fill)
		return p
	}
	if !insert {
		applyFill(p, fill)
	}
	return p
}

func applyFill(p *models.UserProfile, fill services.ProfileFill) {
	if fill.UID != "" {
		p.UID = fill.UID
	}
	if fill.DisplayName != "" {
		p.DisplayName = fill.DisplayName
	}
	if fill.Email != "" {
		p.Email = fill.Email
	}
}

func cloneProfile(p *models.UserProfile) *models.UserProfile {
	cp := *p
	if p.DailyStats != nil {
		ds := *p.DailyStats
		cp.DailyStats = &ds
	}
	if p.Stats != nil {
		st := *p.Stats
		cp.Stats = &st
	}
	return &cp
}

func cloneBathroom(b *models.Bathroom) *models.Bathroom {
	cp := *b
	if b.Coordinates != nil {
		c := *b.Coordinates
		cp.Coordinates = &c
	}
	if b.Validations != nil {
		cp.Validations = make(map[string]bool, len(b.Validations))
		for k, v := range b.Validations {
			cp.Validations[k] = v
		}
	}
	return &cp
}
