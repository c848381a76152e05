package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/catalog/catalogtest"
	"kinokod-bot/internal/kv"
	"kinokod-bot/internal/logger"
	"kinokod-bot/internal/storage"
)

type failingKV struct{ kv.Store }

func (failingKV) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func setup(t *testing.T) (*kv.Badger, catalog.Store) {
	t.Helper()
	b, err := kv.OpenBadger("")
	require.NoError(t, err)
	s, err := storage.OpenSQLite(":memory:", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
		_ = s.Close(context.Background())
	})
	return b, s
}

func TestIsNewView(t *testing.T) {
	b, s := setup(t)
	tr := NewTracker(b, s, time.Hour, logger.Discard())
	ctx := context.Background()

	assert.True(t, tr.IsNewView(ctx, 1, 100))
	assert.False(t, tr.IsNewView(ctx, 1, 100))
	assert.True(t, tr.IsNewView(ctx, 2, 100))
	assert.True(t, tr.IsNewView(ctx, 1, 101))
}

func TestIsNewViewFailsClosed(t *testing.T) {
	_, s := setup(t)
	tr := NewTracker(failingKV{}, s, time.Hour, logger.Discard())
	assert.False(t, tr.IsNewView(context.Background(), 1, 100))
}

func TestTrackCountsOncePerWindow(t *testing.T) {
	b, s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Repo(catalog.Standalone).Create(ctx, catalogtest.Film(7, "Matrix")))
	tr := NewTracker(b, s, time.Hour, logger.Discard())

	rec, err := s.Repo(catalog.Standalone).Episode(ctx, 7, catalog.EpisodeKey{})
	require.NoError(t, err)

	assert.True(t, tr.Track(ctx, 42, *rec))
	assert.False(t, tr.Track(ctx, 42, *rec))
	assert.True(t, tr.Track(ctx, 43, *rec))

	rec, err = s.Repo(catalog.Standalone).Episode(ctx, 7, catalog.EpisodeKey{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Views)
}

func TestTrackDedupsAcrossEpisodes(t *testing.T) {
	b, s := setup(t)
	ctx := context.Background()
	flat := s.Repo(catalog.Flat)
	require.NoError(t, flat.Create(ctx, catalogtest.FlatEp(9, 1, "Mini")))
	require.NoError(t, flat.Create(ctx, catalogtest.FlatEp(9, 2, "Mini")))
	tr := NewTracker(b, s, time.Hour, logger.Discard())

	eps, err := flat.Episodes(ctx, 9)
	require.NoError(t, err)
	assert.True(t, tr.Track(ctx, 1, eps[0]))
	assert.False(t, tr.Track(ctx, 1, eps[1]), "the window is per code, not per episode")
}

func TestTrackWithBrokenKVNeverIncrements(t *testing.T) {
	_, s := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Repo(catalog.Standalone).Create(ctx, catalogtest.Film(7, "Matrix")))
	tr := NewTracker(failingKV{}, s, time.Hour, logger.Discard())

	rec, err := s.Repo(catalog.Standalone).Episode(ctx, 7, catalog.EpisodeKey{})
	require.NoError(t, err)
	assert.False(t, tr.Track(ctx, 1, *rec))

	rec, err = s.Repo(catalog.Standalone).Episode(ctx, 7, catalog.EpisodeKey{})
	require.NoError(t, err)
	assert.Zero(t, rec.Views)
}
