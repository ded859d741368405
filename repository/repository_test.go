package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"Toonbeat/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(
		&model.Track{}, &model.Project{}, &model.ProjectMarker{}, &model.ProjectNote{},
	))
	return gdb
}

func TestTrackRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTrackRepository(newTestDB(t))

	for _, tr := range []model.Track{
		{ID: "t1", Title: "Rain", ObjectKey: "audio/t1.mp3"},
		{ID: "t2", Title: "Storm", Duration: 93.5},
		{ID: "t3", Title: "Calm"},
	} {
		tr := tr
		require.NoError(t, repo.Create(ctx, &tr))
	}

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Rain", got.Title)
	assert.Equal(t, "audio/t1.mp3", got.ObjectKey)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	found, err := repo.GetTracksByIDs(ctx, []string{"t2", "t1", "t2", "nope"})
	require.NoError(t, err)
	ids := make([]string, 0, len(found))
	for _, tr := range found {
		ids = append(ids, tr.ID)
	}
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids)

	none, err := repo.GetTracksByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	list, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Calm", list[0].Title)
	assert.Equal(t, "Rain", list[1].Title)
}

func TestProjectRepository_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewGormProjectRepository(newTestDB(t))

	_, err := repo.LoadSnapshot(ctx, "p1")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	first := model.Snapshot{
		Markers: []model.MarkerSnapshot{
			{ID: "m2", TrackID: "t2", PositionY: 900},
			{ID: "m1", TrackID: "t1", PositionY: 120},
		},
		Notes: []model.NoteSnapshot{
			{ID: "n1", Content: "boom", PositionX: 30, PositionY: 400, Width: 200, Height: 120, TextColor: "#fff"},
		},
	}
	require.NoError(t, repo.SaveSnapshot(ctx, "p1", first))

	snap, err := repo.LoadSnapshot(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, snap.Markers, 2)
	assert.Equal(t, "m1", snap.Markers[0].ID)
	assert.Equal(t, "m2", snap.Markers[1].ID)
	assert.Equal(t, first.Notes, snap.Notes)

	// Saving again replaces the content.
	second := model.Snapshot{Markers: []model.MarkerSnapshot{{ID: "m3", TrackID: "t1", PositionY: 50}}}
	require.NoError(t, repo.SaveSnapshot(ctx, "p1", second))

	snap, err = repo.LoadSnapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, second.Markers, snap.Markers)
	assert.Empty(t, snap.Notes)

	projects, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].ID)
}

func TestProjectRepository_EmptySnapshotAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewGormProjectRepository(newTestDB(t))

	require.NoError(t, repo.SaveSnapshot(ctx, "empty", model.Snapshot{}))
	snap, err := repo.LoadSnapshot(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, snap.Markers)
	assert.Empty(t, snap.Notes)

	require.NoError(t, repo.Delete(ctx, "empty"))
	require.NoError(t, repo.Delete(ctx, "never-saved"))
	_, err = repo.GetByID(ctx, "empty")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
