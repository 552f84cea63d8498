package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/spotloo/backend/internal/models"
)

var writeTime = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func operator(t *testing.T, update bson.M, name string) bson.M {
	t.Helper()
	if update[name] == nil {
		return bson.M{}
	}
	op, ok := update[name].(bson.M)
	require.True(t, ok, "%s is not a document", name)
	return op
}

// assertNoPathConflicts fails when a field path, or a parent of it, appears
// under more than one operator. MongoDB rejects such updates.
func assertNoPathConflicts(t *testing.T, update bson.M) {
	t.Helper()
	owner := map[string]string{}
	for name := range update {
		for path := range operator(t, update, name) {
			for other, otherOp := range owner {
				if otherOp == name {
					continue
				}
				if path == other || strings.HasPrefix(path, other+".") || strings.HasPrefix(other, path+".") {
					t.Errorf("path %q in %s conflicts with %q in %s", path, name, other, otherOp)
				}
			}
			owner[path] = name
		}
	}
}

func TestAwardUpdate(t *testing.T) {
	fill := ProfileFill{UID: "u1", DisplayName: "Ana", Email: "ana@example.com"}

	tests := []struct {
		name            string
		w               LedgerWrite
		wantInc         bson.M
		wantSet         bson.M
		wantSetOnInsert bson.M
	}{
		{
			name: "new profile with reset",
			w: LedgerWrite{UserID: "u1", Action: models.ActionRating, Points: 5, Now: writeTime,
				ResetDaily: true, Insert: true, Fill: fill},
			wantInc: bson.M{"points": 5, "contributions": 1},
			wantSet: bson.M{
				"last_activity": writeTime,
				"daily_stats":   bson.M{"last_reset": writeTime, "rating": 1},
			},
			wantSetOnInsert: bson.M{
				"created_at": writeTime, "uid": "u1", "display_name": "Ana", "email": "ana@example.com",
			},
		},
		{
			name: "existing profile same day",
			w:    LedgerWrite{UserID: "u1", Action: models.ActionValidation, Points: 10, Now: writeTime},
			wantInc: bson.M{
				"points": 10, "contributions": 1, "daily_stats.validation": 1,
			},
			wantSet:         bson.M{"last_activity": writeTime},
			wantSetOnInsert: bson.M{"created_at": writeTime},
		},
		{
			name: "existing profile fills missing email",
			w: LedgerWrite{UserID: "u1", Action: models.ActionBathroom, Points: 15, Now: writeTime,
				ResetDaily: true, Fill: ProfileFill{Email: "ana@example.com"}},
			wantInc: bson.M{"points": 15, "contributions": 1},
			wantSet: bson.M{
				"last_activity": writeTime,
				"daily_stats":   bson.M{"last_reset": writeTime, "bathroom": 1},
				"email":         "ana@example.com",
			},
			wantSetOnInsert: bson.M{"created_at": writeTime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := awardUpdate(tt.w)
			assert.Len(t, update, 3)
			assert.Equal(t, tt.wantInc, operator(t, update, "$inc"))
			assert.Equal(t, tt.wantSet, operator(t, update, "$set"))
			assert.Equal(t, tt.wantSetOnInsert, operator(t, update, "$setOnInsert"))
			assertNoPathConflicts(t, update)
		})
	}
}

func TestTotalsUpdate(t *testing.T) {
	stats := models.ContributionStats{BathroomsCreated: 3, RatingsGiven: 2}

	tests := []struct {
		name            string
		w               TotalsWrite
		wantFillIn      string
		wantSetOnInsert bson.M
	}{
		{
			name:            "absent profile",
			w:               TotalsWrite{UserID: "u1", Stats: stats, Points: 55, Now: writeTime, Insert: true, Fill: ProfileFill{UID: "u1", DisplayName: "Usuario"}},
			wantFillIn:      "$setOnInsert",
			wantSetOnInsert: bson.M{"created_at": writeTime, "uid": "u1", "display_name": "Usuario"},
		},
		{
			name:            "existing profile missing uid",
			w:               TotalsWrite{UserID: "u1", Stats: stats, Points: 55, Now: writeTime, Fill: ProfileFill{UID: "u1"}},
			wantFillIn:      "$set",
			wantSetOnInsert: bson.M{"created_at": writeTime},
		},
		{
			name:            "existing complete profile",
			w:               TotalsWrite{UserID: "u1", Stats: stats, Points: 55, Now: writeTime},
			wantSetOnInsert: bson.M{"created_at": writeTime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := totalsUpdate(tt.w)
			assert.NotContains(t, update, "$inc")

			set := operator(t, update, "$set")
			assert.Equal(t, 55, set["points"])
			assert.Equal(t, 5, set["contributions"])
			assert.Equal(t, stats, set["stats"])
			assert.Equal(t, writeTime, set["last_activity"])
			assert.NotContains(t, set, "created_at")
			assert.Equal(t, tt.wantSetOnInsert, operator(t, update, "$setOnInsert"))
			if tt.wantFillIn == "$set" {
				assert.Equal(t, "u1", set["uid"])
			} else {
				assert.NotContains(t, set, "uid")
			}
			assertNoPathConflicts(t, update)
		})
	}
}

func TestUserProfileDecodesDocumentKey(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": "legacy", "display_name": "Leo", "points": 90})
	require.NoError(t, err)

	var p models.UserProfile
	require.NoError(t, bson.Unmarshal(raw, &p))
	assert.Equal(t, "legacy", p.ID)
	assert.Empty(t, p.UID)
	assert.Equal(t, "legacy", publicPoints(p).UserID)
}
