package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spotloo/backend/internal/models"
	"github.com/spotloo/backend/internal/services"
	"github.com/spotloo/backend/internal/storage"
)

var (
	today     = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)
	yesterday = today.Add(-24 * time.Hour)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIdentity struct {
	mu    sync.Mutex
	users map[string]services.IdentityUser
	err   error
	calls int
}

func (f *fakeIdentity) GetUser(_ context.Context, userID string) (*services.IdentityUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.New("no user record")
	}
	return &u, nil
}

// faultyStore wraps a MemoryStore and injects failures.
type faultyStore struct {
	*storage.MemoryStore

	getErr         error
	applyErr       error
	failApplyFor   map[string]bool
	failReplaceFor map[string]bool
	getBathroomErr error
	listErr        error

	applies atomic.Int32
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *faultyStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.GetProfile(ctx, userID)
}

func (s *faultyStore) ApplyAward(ctx context.Context, w services.LedgerWrite) error {
	s.applies.Add(1)
	if s.applyErr != nil {
		return s.applyErr
	}
	if s.failApplyFor[w.UserID] {
		return errors.New("write rejected")
	}
	return s.MemoryStore.ApplyAward(ctx, w)
}

func (s *faultyStore) ReplaceTotals(ctx context.Context, w services.TotalsWrite) error {
	if s.failReplaceFor[w.UserID] {
		return errors.New("write rejected")
	}
	return s.MemoryStore.ReplaceTotals(ctx, w)
}

func (s *faultyStore) GetBathroom(ctx context.Context, id string) (*models.Bathroom, error) {
	if s.getBathroomErr != nil {
		return nil, s.getBathroomErr
	}
	return s.MemoryStore.GetBathroom(ctx, id)
}

func (s *faultyStore) ListBathrooms(ctx context.Context) ([]models.Bathroom, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListBathrooms(ctx)
}

type fixture struct {
	store    *faultyStore
	identity *fakeIdentity
	ledger   *services.Ledger
	reactors *services.Reactors
	now      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store: newFaultyStore(),
		identity: &fakeIdentity{users: map[string]services.IdentityUser{
			"owner": {DisplayName: "Olga", Email: "olga@example.com"},
			"rater": {DisplayName: "Rui", Email: "rui@example.com"},
		}},
		now: today,
	}
	f.ledger = f.newLedger(f.store, models.DefaultDailyLimits())
	f.reactors = services.NewReactors(f.ledger, f.store, models.DefaultPointValues(), discardLogger())
	return f
}

func (f *fixture) newLedger(profiles services.ProfileStore, limits models.DailyLimits) *services.Ledger {
	logger := discardLogger()
	quota := services.NewQuotaTracker(profiles, limits, time.UTC, logger)
	resolver := services.NewProfileResolver(f.identity, "Usuario", logger)
	l := services.NewLedger(profiles, quota, resolver, logger)
	l.Clock = func() time.Time { return f.now }
	return l
}

func (f *fixture) profile(userID string) *models.UserProfile {
	p, err := f.store.MemoryStore.GetProfile(context.Background(), userID)
	if err != nil {
		return nil
	}
	return p
}
