package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/spotloo/backend/internal/models"
)

// recordingProfiles records ledger writes; every profile is absent.
type recordingProfiles struct {
	mu       sync.Mutex
	writes   []LedgerWrite
	applyErr error
}

func (p *recordingProfiles) GetProfile(context.Context, string) (*models.UserProfile, error) {
	return nil, ErrProfileNotFound
}

func (p *recordingProfiles) ApplyAward(_ context.Context, w LedgerWrite) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applyErr != nil {
		return p.applyErr
	}
	p.writes = append(p.writes, w)
	return nil
}

func (p *recordingProfiles) ReplaceTotals(context.Context, TotalsWrite) error { return nil }

func (p *recordingProfiles) TopProfiles(context.Context, int) ([]models.UserProfile, error) {
	return nil, nil
}

type memoryTokens struct {
	tokens  map[string]bson.Raw
	saveErr error
}

func (m *memoryTokens) LoadToken(_ context.Context, stream string) (bson.Raw, error) {
	return m.tokens[stream], nil
}

func (m *memoryTokens) SaveToken(_ context.Context, stream string, token bson.Raw) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.tokens[stream] = token
	return nil
}

func newTestSource(profiles *recordingProfiles) *ChangeStreamSource {
	quota := NewQuotaTracker(profiles, models.DefaultDailyLimits(), nil, nil)
	ledger := NewLedger(profiles, quota, NewProfileResolver(nil, "", nil), nil)
	tokens := &memoryTokens{tokens: map[string]bson.Raw{}}
	return NewChangeStreamSource(nil, NewReactors(ledger, nil, models.DefaultPointValues(), nil), tokens, nil)
}

func mustRaw(t *testing.T, v any) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestChangeStreamBathroomInsert(t *testing.T) {
	profiles := &recordingProfiles{}
	src := newTestSource(profiles)

	ev := changeEvent{OperationType: "insert"}
	ev.DocumentKey.ID = "b1"
	ev.FullDocument = mustRaw(t, bson.M{
		"_id": "b1", "created_by": "owner", "title": "Parque",
		"coordinates": bson.M{"latitude": 1.5, "longitude": 2.5},
	})
	require.NoError(t, src.handleBathroom(context.Background(), ev))

	require.Len(t, profiles.writes, 1)
	assert.Equal(t, "owner", profiles.writes[0].UserID)
	assert.Equal(t, models.ActionBathroom, profiles.writes[0].Action)
	assert.Equal(t, 15, profiles.writes[0].Points)
}

func TestChangeStreamBathroomUpdate(t *testing.T) {
	profiles := &recordingProfiles{}
	src := newTestSource(profiles)

	ev := changeEvent{OperationType: "update"}
	ev.DocumentKey.ID = "b1"
	ev.FullDocument = mustRaw(t, bson.M{"_id": "b1", "created_by": "owner", "validations": bson.M{"A": true, "B": true}})

	// No pre-image: the diff cannot be computed.
	require.NoError(t, src.handleBathroom(context.Background(), ev))
	assert.Empty(t, profiles.writes)

	ev.FullDocumentBeforeChange = mustRaw(t, bson.M{"_id": "b1", "created_by": "owner", "validations": bson.M{"A": true}})
	require.NoError(t, src.handleBathroom(context.Background(), ev))
	require.Len(t, profiles.writes, 1)
	assert.Equal(t, "B", profiles.writes[0].UserID)
	assert.Equal(t, models.ActionValidation, profiles.writes[0].Action)
}

func TestChangeStreamRatingIgnoresUpdates(t *testing.T) {
	profiles := &recordingProfiles{}
	src := newTestSource(profiles)

	ev := changeEvent{OperationType: "update"}
	ev.FullDocument = mustRaw(t, bson.M{"_id": "r1", "user_uid": "rater", "bathroom_id": "b1", "rating": 4})
	require.NoError(t, src.handleRating(context.Background(), ev))
	assert.Empty(t, profiles.writes)
}

func ratingInsert(t *testing.T) changeEvent {
	ev := changeEvent{OperationType: "insert"}
	ev.DocumentKey.ID = "r1"
	ev.FullDocument = mustRaw(t, bson.M{"_id": "r1", "user_uid": "rater", "bathroom_id": "b1", "rating": 4})
	return ev
}

func TestDispatchSavesTokenAfterHandling(t *testing.T) {
	src := newTestSource(&recordingProfiles{})
	token := mustRaw(t, bson.M{"_data": "0001"})

	err := src.dispatch(context.Background(), "ratings", ratingInsert(t), token, func(context.Context, changeEvent) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, token, src.tokens.(*memoryTokens).tokens["ratings"])
}

func TestDispatchKeepsTokenOnHandlerFailure(t *testing.T) {
	src := newTestSource(&recordingProfiles{})
	tokens := src.tokens.(*memoryTokens)
	previous := mustRaw(t, bson.M{"_data": "0001"})
	tokens.tokens["ratings"] = previous

	handlerErr := errors.New("write quorum lost")
	err := src.dispatch(context.Background(), "ratings", ratingInsert(t), mustRaw(t, bson.M{"_data": "0002"}), func(context.Context, changeEvent) error {
		return handlerErr
	})
	require.ErrorIs(t, err, handlerErr)
	assert.Equal(t, previous, tokens.tokens["ratings"])
}

func TestDispatchSkipsUndecodableEvents(t *testing.T) {
	src := newTestSource(&recordingProfiles{})
	token := mustRaw(t, bson.M{"_data": "0003"})
	called := false

	err := src.dispatch(context.Background(), "ratings", changeEvent{}, token, func(context.Context, changeEvent) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, token, src.tokens.(*memoryTokens).tokens["ratings"])
}

func TestChangeStreamStorageFailureIsReturned(t *testing.T) {
	writeErr := errors.New("write quorum lost")
	profiles := &recordingProfiles{applyErr: writeErr}
	src := newTestSource(profiles)

	ev := changeEvent{OperationType: "insert"}
	ev.DocumentKey.ID = "b1"
	ev.FullDocument = mustRaw(t, bson.M{
		"_id": "b1", "created_by": "owner", "title": "Parque",
		"coordinates": bson.M{"latitude": 1.5, "longitude": 2.5},
	})
	assert.ErrorIs(t, src.handleBathroom(context.Background(), ev), writeErr)
}

func TestChangeStreamPartialValidationFailureIsNotReplayed(t *testing.T) {
	profiles := &partialProfiles{failFor: "C"}
	quota := NewQuotaTracker(profiles, models.DefaultDailyLimits(), nil, nil)
	ledger := NewLedger(profiles, quota, NewProfileResolver(nil, "", nil), nil)
	src := NewChangeStreamSource(nil, NewReactors(ledger, nil, models.DefaultPointValues(), nil), &memoryTokens{tokens: map[string]bson.Raw{}}, nil)

	ev := changeEvent{OperationType: "update"}
	ev.DocumentKey.ID = "b1"
	ev.FullDocumentBeforeChange = mustRaw(t, bson.M{"_id": "b1", "created_by": "owner"})
	ev.FullDocument = mustRaw(t, bson.M{"_id": "b1", "created_by": "owner", "validations": bson.M{"B": true, "C": true}})

	require.NoError(t, src.handleBathroom(context.Background(), ev))
	require.Len(t, profiles.writes, 1)
	assert.Equal(t, "B", profiles.writes[0].UserID)
}

// partialProfiles fails ledger writes for a single user.
type partialProfiles struct {
	recordingProfiles
	failFor string
}

func (p *partialProfiles) ApplyAward(ctx context.Context, w LedgerWrite) error {
	if w.UserID == p.failFor {
		return errors.New("write rejected")
	}
	return p.recordingProfiles.ApplyAward(ctx, w)
}

func TestDecodeRawNil(t *testing.T) {
	b, err := decodeRaw[models.Bathroom](nil)
	require.NoError(t, err)
	assert.Nil(t, b)
}
