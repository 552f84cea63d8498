package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotloo/backend/internal/models"
)

func TestJSONStoreWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "backfill.json")
	store, err := NewJSONStore(path)
	require.NoError(t, err)

	report := &models.BackfillReport{
		RunID:       "run-1",
		StartedAt:   time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		UsersFound:  2,
		Succeeded:   1,
		Failed:      1,
		FailedUsers: []string{"u2"},
	}
	require.NoError(t, store.WriteReport(context.Background(), report))

	got, err := store.PreviousReport(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, []string{"u2"}, got.FailedUsers)
	assert.True(t, report.StartedAt.Equal(got.StartedAt))
}

func TestJSONStorePreviousReportMissingFile(t *testing.T) {
	store, err := NewJSONStore(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)

	got, err := store.PreviousReport(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestJSONStorePreviousReportCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backfill.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))
	store, err := NewJSONStore(path)
	require.NoError(t, err)

	_, err = store.PreviousReport(context.Background())
	assert.Error(t, err)
}
