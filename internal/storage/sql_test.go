package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/catalog/catalogtest"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func setupSQLite(t *testing.T) catalog.Store {
	t.Helper()
	s, err := OpenSQLite(":memory:", quietLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSQLiteConformance(t *testing.T) {
	catalogtest.Run(t, setupSQLite)
}

func TestSQLiteFileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")

	s, err := OpenSQLite(path, quietLog())
	require.NoError(t, err)
	require.NoError(t, s.Repo(catalog.Standalone).Create(ctx, catalogtest.Film(1, "Persisted")))
	require.NoError(t, s.Close(ctx))

	reopened, err := OpenSQLite(path, quietLog())
	require.NoError(t, err)
	defer reopened.Close(ctx)
	item, err := reopened.Lookup(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Persisted", item.Title())
}

func TestSQLiteStoresSerializedGenres(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(":memory:", quietLog())
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.Repo(catalog.Standalone).Create(ctx, catalogtest.Film(5, "Film", "Драма", "Комедия")))
	var raw string
	require.NoError(t, s.db.Table("feature_films").Select("genres").Where("code = ?", 5).Scan(&raw).Error)
	assert.Equal(t, `["Драма","Комедия"]`, raw)
}

func TestOpenUnknownType(t *testing.T) {
	_, err := Open(context.Background(), Options{Type: "redis"}, quietLog())
	assert.Error(t, err)
}

func TestMatchTitles(t *testing.T) {
	recs := []catalog.Record{
		{Code: 1, Title: "Avatar"},
		{Code: 1, Title: "Avatar"},
		{Code: 2, Title: "AVATAR 2"},
		{Code: 3, Title: "Titanic"},
	}
	got := matchTitles(recs, "avatar", 0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[1].Code)
	assert.Len(t, matchTitles(recs, "avatar", 1), 1)
}
