package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termsaver/indicatord/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := Connect(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Initialize())
	return NewRepository(db)
}

func TestConnectRejectsEmptyPath(t *testing.T) {
	_, err := Connect("")
	assert.Error(t, err)
}

func TestCreateAndGetRecent(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Now().Add(-time.Hour)

	for i, kind := range []string{models.KindToggle, models.KindAutoLaunch, models.KindManualLaunch} {
		require.NoError(t, repo.Create(&models.ActivationEvent{
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			RunID:          "run-1",
			Kind:           kind,
			Success:        true,
			TimeoutSeconds: 120,
		}))
	}

	events, err := repo.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.KindManualLaunch, events[0].Kind)
	assert.Equal(t, models.KindAutoLaunch, events[1].Kind)
}

func TestCreateFillsTimestamp(t *testing.T) {
	repo := newTestRepository(t)

	event := &models.ActivationEvent{RunID: "r", Kind: models.KindTimeout, Detail: "300"}
	require.NoError(t, repo.Create(event))
	assert.False(t, event.Timestamp.IsZero())
	assert.NotZero(t, event.ID)
}

func TestKindSummaryAndLatest(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	require.NoError(t, repo.Create(&models.ActivationEvent{Timestamp: now.Add(-48 * time.Hour), RunID: "r", Kind: models.KindAutoLaunch}))
	require.NoError(t, repo.Create(&models.ActivationEvent{Timestamp: now.Add(-2 * time.Hour), RunID: "r", Kind: models.KindAutoLaunch}))
	require.NoError(t, repo.Create(&models.ActivationEvent{Timestamp: now.Add(-time.Hour), RunID: "r", Kind: models.KindAutoLaunch}))
	require.NoError(t, repo.Create(&models.ActivationEvent{Timestamp: now.Add(-30 * time.Minute), RunID: "r", Kind: models.KindToggle, Detail: "disabled"}))

	summaries, err := repo.GetKindSummarySince(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, models.KindSummary{Kind: models.KindAutoLaunch, EventCount: 2}, summaries[0])
	assert.Equal(t, models.KindSummary{Kind: models.KindToggle, EventCount: 1}, summaries[1])

	latest, err := repo.GetLatest(models.KindToggle)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "disabled", latest.Detail)

	latest, err = repo.GetLatest(models.KindUpdate)
	require.NoError(t, err)
	assert.Nil(t, latest)

	latest, err = repo.GetLatest(models.KindAutoLaunch, models.KindManualLaunch)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.KindAutoLaunch, latest.Kind)
	assert.WithinDuration(t, now.Add(-time.Hour), latest.Timestamp, time.Second)

	latest, err = repo.GetLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.KindToggle, latest.Kind)

	since, err := repo.GetEventsSince(now.Add(-3 * time.Hour))
	require.NoError(t, err)
	assert.Len(t, since, 3)
}

func TestDeleteOldEvents(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	require.NoError(t, repo.Create(&models.ActivationEvent{Timestamp: now.Add(-40 * 24 * time.Hour), RunID: "r", Kind: models.KindAutoLaunch}))
	require.NoError(t, repo.Create(&models.ActivationEvent{Timestamp: now, RunID: "r", Kind: models.KindAutoLaunch}))

	deleted, err := repo.DeleteOldEvents(now.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, err := repo.GetRecent(10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestErrorLogsAndClear(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{Timestamp: time.Now(), RunID: "r", ErrorMsg: "spawn failed"}))
	require.NoError(t, repo.Create(&models.ActivationEvent{RunID: "r", Kind: models.KindAutoLaunch}))

	logs, err := repo.GetRecentErrors(5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "spawn failed", logs[0].ErrorMsg)

	require.NoError(t, repo.Clear())

	events, err := repo.GetRecent(10)
	require.NoError(t, err)
	assert.Empty(t, events)

	logs, err = repo.GetRecentErrors(5)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
