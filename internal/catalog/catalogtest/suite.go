// Package catalogtest is a behavioral test suite shared by every
// catalog.Store implementation.
package catalogtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinokod-bot/internal/catalog"
)

// Factory returns an empty store and registers its cleanup on t.
type Factory func(t *testing.T) catalog.Store

// Film builds a standalone record.
func Film(code int64, title string, genres ...string) catalog.Record {
	return catalog.Record{Shape: catalog.Standalone, Code: code, Title: title, MediaRef: "file-film", Genres: genres}
}

// SeasonEp builds a seasoned episode.
func SeasonEp(code int64, season, episode int, title string, genres ...string) catalog.Record {
	return catalog.Record{
		Shape: catalog.Seasoned, Code: code,
		Key:   catalog.EpisodeKey{Season: season, Episode: episode},
		Title: title, MediaRef: "file-season", Genres: genres,
	}
}

// FlatEp builds a flat episode.
func FlatEp(code int64, episode int, title string, genres ...string) catalog.Record {
	return catalog.Record{
		Shape: catalog.Flat, Code: code,
		Key:   catalog.EpisodeKey{Episode: episode},
		Title: title, MediaRef: "file-flat", Genres: genres,
	}
}

func ptr[T any](v T) *T { return &v }

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s catalog.Store)
	}{
		{"CreateAndRead", testCreateAndRead},
		{"DuplicateKey", testDuplicateKey},
		{"DuplicateKeyKeepsGenres", testDuplicateKeyKeepsGenres},
		{"CrossShapeConflict", testCrossShapeConflict},
		{"CreateValidation", testCreateValidation},
		{"GenrePropagation", testGenrePropagation},
		{"Lookup", testLookup},
		{"UpdateGlobal", testUpdateGlobal},
		{"UpdateEpisode", testUpdateEpisode},
		{"RenameSeason", testRenameSeason},
		{"Deletes", testDeletes},
		{"IncrementViews", testIncrementViews},
		{"RandomSample", testRandomSample},
		{"SearchTitle", testSearchTitle},
		{"Favorites", testFavorites},
		{"RenameCode", testRenameCode},
		{"MoveEpisodeToStandalone", testMoveEpisode},
		{"Rankings", testRankings},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func testCreateAndRead(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	films := s.Repo(catalog.Standalone)
	require.NoError(t, films.Create(ctx, Film(101, "Interstellar", "Фантастика")))

	rec, err := films.Episode(ctx, 101, catalog.EpisodeKey{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Interstellar", rec.Title)
	assert.Equal(t, []string{"Фантастика"}, rec.Genres)
	assert.Equal(t, catalog.Standalone, rec.Shape)

	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(200, 2, 1, "Dark S2")))
	require.NoError(t, series.Create(ctx, SeasonEp(200, 1, 2, "Dark E2")))
	require.NoError(t, series.Create(ctx, SeasonEp(200, 1, 1, "Dark E1")))

	eps, err := series.Episodes(ctx, 200)
	require.NoError(t, err)
	require.Len(t, eps, 3)
	assert.Equal(t, catalog.EpisodeKey{Season: 1, Episode: 1}, eps[0].Key)
	assert.Equal(t, catalog.EpisodeKey{Season: 1, Episode: 2}, eps[1].Key)
	assert.Equal(t, catalog.EpisodeKey{Season: 2, Episode: 1}, eps[2].Key)

	missing, err := series.Episode(ctx, 200, catalog.EpisodeKey{Season: 9, Episode: 9})
	require.NoError(t, err)
	assert.Nil(t, missing)

	none, err := s.Repo(catalog.Flat).Episodes(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDuplicateKey(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	require.NoError(t, s.Repo(catalog.Standalone).Create(ctx, Film(1, "A")))
	err := s.Repo(catalog.Standalone).Create(ctx, Film(1, "B"))
	assert.True(t, errors.Is(err, catalog.ErrDuplicateKey), "got %v", err)

	flat := s.Repo(catalog.Flat)
	require.NoError(t, flat.Create(ctx, FlatEp(2, 1, "Mini")))
	err = flat.Create(ctx, FlatEp(2, 1, "Mini again"))
	assert.True(t, errors.Is(err, catalog.ErrDuplicateKey), "got %v", err)
	require.NoError(t, flat.Create(ctx, FlatEp(2, 2, "Mini")))
}

func testDuplicateKeyKeepsGenres(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(500, 1, 1, "Show", "Драма")))
	require.NoError(t, series.Create(ctx, SeasonEp(500, 1, 3, "Show")))

	err := series.Create(ctx, SeasonEp(500, 1, 3, "Show", "Комедия"))
	assert.True(t, errors.Is(err, catalog.ErrDuplicateKey), "got %v", err)

	eps, err := series.Episodes(ctx, 500)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	for _, ep := range eps {
		assert.Equal(t, []string{"Драма"}, ep.Genres, ep.Key.String())
	}

	flat := s.Repo(catalog.Flat)
	require.NoError(t, flat.Create(ctx, FlatEp(501, 1, "Mini", "Ужасы")))
	err = flat.Create(ctx, FlatEp(501, 1, "Mini", "Мелодрама"))
	assert.True(t, errors.Is(err, catalog.ErrDuplicateKey), "got %v", err)
	genres, err := catalog.GenresOf(ctx, flat, 501)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ужасы"}, genres)
}

func testCrossShapeConflict(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	require.NoError(t, s.Repo(catalog.Seasoned).Create(ctx, SeasonEp(5, 1, 1, "Show")))

	err := s.Repo(catalog.Standalone).Create(ctx, Film(5, "Film"))
	assert.True(t, errors.Is(err, catalog.ErrCodeConflict), "got %v", err)
	err = s.Repo(catalog.Flat).Create(ctx, FlatEp(5, 1, "Mini"))
	assert.True(t, errors.Is(err, catalog.ErrCodeConflict), "got %v", err)

	item, err := s.Lookup(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, catalog.Seasoned, item.Shape)
}

func testCreateValidation(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	err := s.Repo(catalog.Seasoned).Create(ctx, SeasonEp(9, 0, 1, "Bad"))
	assert.True(t, errors.Is(err, catalog.ErrValidation), "got %v", err)
	err = s.Repo(catalog.Standalone).Create(ctx, Film(9, "Bad", "NotAGenre"))
	assert.True(t, errors.Is(err, catalog.ErrValidation), "got %v", err)
}

func testGenrePropagation(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(30, 1, 1, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(30, 1, 2, "Show", "Драма", "Триллер")))

	eps, err := series.Episodes(ctx, 30)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	for _, ep := range eps {
		assert.Equal(t, []string{"Драма", "Триллер"}, ep.Genres, ep.Key.String())
	}

	require.NoError(t, series.Create(ctx, SeasonEp(30, 1, 3, "Show")))
	genres, err := catalog.GenresOf(ctx, series, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"Драма", "Триллер"}, genres)
}

func testLookup(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	require.NoError(t, s.Repo(catalog.Flat).Create(ctx, FlatEp(40, 1, "Mini")))
	require.NoError(t, s.Repo(catalog.Flat).Create(ctx, FlatEp(40, 2, "Mini")))

	item, err := s.Lookup(ctx, 40)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, catalog.Flat, item.Shape)
	assert.Equal(t, int64(40), item.Code)
	assert.Len(t, item.Records, 2)
	assert.Equal(t, "Mini", item.Title())

	item, err = s.Lookup(ctx, 41)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func testUpdateGlobal(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(50, 1, 1, "Old")))
	require.NoError(t, series.Create(ctx, SeasonEp(50, 1, 2, "Old")))

	require.NoError(t, series.UpdateGlobal(ctx, 50, catalog.Patch{Title: ptr("New"), Genres: &[]string{"Комедия"}}))
	eps, err := series.Episodes(ctx, 50)
	require.NoError(t, err)
	for _, ep := range eps {
		assert.Equal(t, "New", ep.Title)
		assert.Equal(t, []string{"Комедия"}, ep.Genres)
	}

	err = series.UpdateGlobal(ctx, 999, catalog.Patch{Title: ptr("x")})
	assert.True(t, errors.Is(err, catalog.ErrNotFound), "got %v", err)
	err = series.UpdateGlobal(ctx, 50, catalog.Patch{Genres: &[]string{"Nope"}})
	assert.True(t, errors.Is(err, catalog.ErrValidation), "got %v", err)
	err = series.UpdateGlobal(ctx, 50, catalog.Patch{Season: ptr(3)})
	assert.True(t, errors.Is(err, catalog.ErrValidation), "got %v", err)
}

func testUpdateEpisode(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(60, 1, 1, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(60, 1, 2, "Show")))

	k11 := catalog.EpisodeKey{Season: 1, Episode: 1}
	require.NoError(t, series.UpdateEpisode(ctx, 60, k11, catalog.Patch{MediaRef: ptr("new-file"), Caption: ptr("<b>hi</b>")}))
	ep, err := series.Episode(ctx, 60, k11)
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Equal(t, "new-file", ep.MediaRef)
	assert.Equal(t, "<b>hi</b>", ep.Caption)

	other, err := series.Episode(ctx, 60, catalog.EpisodeKey{Season: 1, Episode: 2})
	require.NoError(t, err)
	assert.Equal(t, "file-season", other.MediaRef)

	err = series.UpdateEpisode(ctx, 60, k11, catalog.Patch{Episode: ptr(2)})
	assert.True(t, errors.Is(err, catalog.ErrDuplicateKey), "got %v", err)

	require.NoError(t, series.UpdateEpisode(ctx, 60, k11, catalog.Patch{Season: ptr(2), Episode: ptr(5)}))
	moved, err := series.Episode(ctx, 60, catalog.EpisodeKey{Season: 2, Episode: 5})
	require.NoError(t, err)
	require.NotNil(t, moved)
	assert.Equal(t, "new-file", moved.MediaRef)
	gone, err := series.Episode(ctx, 60, k11)
	require.NoError(t, err)
	assert.Nil(t, gone)

	err = series.UpdateEpisode(ctx, 60, catalog.EpisodeKey{Season: 7, Episode: 7}, catalog.Patch{Title: ptr("x")})
	assert.True(t, errors.Is(err, catalog.ErrNotFound), "got %v", err)

	flat := s.Repo(catalog.Flat)
	require.NoError(t, flat.Create(ctx, FlatEp(61, 1, "Mini")))
	err = flat.UpdateEpisode(ctx, 61, catalog.EpisodeKey{Episode: 1}, catalog.Patch{Season: ptr(2)})
	assert.True(t, errors.Is(err, catalog.ErrValidation), "got %v", err)
	require.NoError(t, flat.UpdateEpisode(ctx, 61, catalog.EpisodeKey{Episode: 1}, catalog.Patch{Episode: ptr(4)}))
	ep, err = flat.Episode(ctx, 61, catalog.EpisodeKey{Episode: 4})
	require.NoError(t, err)
	assert.NotNil(t, ep)
}

func testRenameSeason(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(70, 1, 1, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(70, 1, 2, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(70, 2, 1, "Show")))

	err := series.RenameSeason(ctx, 70, 1, 2)
	assert.True(t, errors.Is(err, catalog.ErrDuplicateKey), "got %v", err)

	require.NoError(t, series.RenameSeason(ctx, 70, 1, 3))
	eps, err := series.Episodes(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, catalog.Seasons(eps))
	assert.Len(t, catalog.InSeason(eps, 3), 2)

	err = series.RenameSeason(ctx, 70, 8, 9)
	assert.True(t, errors.Is(err, catalog.ErrNotFound), "got %v", err)

	err = s.Repo(catalog.Flat).RenameSeason(ctx, 70, 1, 2)
	assert.True(t, errors.Is(err, catalog.ErrUnsupported), "got %v", err)
}

func testDeletes(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(80, 1, 1, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(80, 1, 2, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(80, 2, 1, "Show")))

	require.NoError(t, series.DeleteEpisode(ctx, 80, catalog.EpisodeKey{Season: 1, Episode: 2}))
	eps, err := series.Episodes(ctx, 80)
	require.NoError(t, err)
	assert.Len(t, eps, 2)

	require.NoError(t, series.DeleteSeason(ctx, 80, 2))
	eps, err = series.Episodes(ctx, 80)
	require.NoError(t, err)
	require.Len(t, eps, 1)

	require.NoError(t, series.DeleteEpisode(ctx, 80, catalog.EpisodeKey{Season: 1, Episode: 1}))
	item, err := s.Lookup(ctx, 80)
	require.NoError(t, err)
	assert.Nil(t, item, "deleting the last episode removes the code")

	films := s.Repo(catalog.Standalone)
	require.NoError(t, films.Create(ctx, Film(81, "Film")))
	require.NoError(t, films.Delete(ctx, 81))
	require.NoError(t, films.Delete(ctx, 81))
	rec, err := films.Episode(ctx, 81, catalog.EpisodeKey{})
	require.NoError(t, err)
	assert.Nil(t, rec)

	err = s.Repo(catalog.Flat).DeleteSeason(ctx, 1, 1)
	assert.True(t, errors.Is(err, catalog.ErrUnsupported), "got %v", err)
}

func testIncrementViews(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	flat := s.Repo(catalog.Flat)
	require.NoError(t, flat.Create(ctx, FlatEp(90, 1, "Mini")))
	require.NoError(t, flat.Create(ctx, FlatEp(90, 2, "Mini")))

	k1 := catalog.EpisodeKey{Episode: 1}
	for i := 0; i < 3; i++ {
		require.NoError(t, flat.IncrementViews(ctx, 90, k1))
	}
	ep, err := flat.Episode(ctx, 90, k1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ep.Views)

	ep2, err := flat.Episode(ctx, 90, catalog.EpisodeKey{Episode: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(0), ep2.Views)

	films := s.Repo(catalog.Standalone)
	require.NoError(t, films.Create(ctx, Film(91, "Film")))
	require.NoError(t, films.IncrementViews(ctx, 91, catalog.EpisodeKey{}))
	rec, err := films.Episode(ctx, 91, catalog.EpisodeKey{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Views)

	err = films.IncrementViews(ctx, 999, catalog.EpisodeKey{})
	assert.True(t, errors.Is(err, catalog.ErrNotFound), "got %v", err)
}

func testRandomSample(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)

	rec, err := series.RandomSample(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, rec, "empty store has nothing to sample")

	require.NoError(t, series.Create(ctx, SeasonEp(100, 1, 2, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(100, 2, 1, "Show")))
	rec, err = series.RandomSample(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, rec, "no first episode yet")

	require.NoError(t, series.Create(ctx, SeasonEp(100, 1, 1, "Show")))
	for i := 0; i < 5; i++ {
		rec, err = series.RandomSample(ctx, true)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, catalog.EpisodeKey{Season: 1, Episode: 1}, rec.Key)
	}
	rec, err = series.RandomSample(ctx, false)
	require.NoError(t, err)
	assert.NotNil(t, rec)

	films := s.Repo(catalog.Standalone)
	require.NoError(t, films.Create(ctx, Film(101, "Film")))
	rec, err = films.RandomSample(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(101), rec.Code)
}

func testSearchTitle(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	films := s.Repo(catalog.Standalone)
	require.NoError(t, films.Create(ctx, Film(1, "The Matrix")))
	require.NoError(t, films.Create(ctx, Film(2, "Matrix Reloaded")))
	require.NoError(t, films.Create(ctx, Film(3, "Inception")))

	recs, err := films.SearchTitle(ctx, "MATRIX", 20)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = films.SearchTitle(ctx, "matrix", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(10, 1, 1, "Matrix Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(10, 1, 2, "Matrix Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(10, 2, 1, "Matrix Show")))
	recs, err = series.SearchTitle(ctx, "matrix", 20)
	require.NoError(t, err)
	require.Len(t, recs, 1, "one hit per code")
	assert.Equal(t, catalog.EpisodeKey{Season: 1, Episode: 1}, recs[0].Key)

	recs, err = films.SearchTitle(ctx, "nothing here", 20)
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, films.Create(ctx, Film(4, "Тёмный рыцарь")))
	recs, err = films.SearchTitle(ctx, "тёмный", 20)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "case folding works beyond ASCII")
}

func testFavorites(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	fav := s.Favorites()
	require.NoError(t, fav.Add(ctx, 7, 100))
	require.NoError(t, fav.Add(ctx, 7, 100))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, fav.Add(ctx, 7, 200))
	require.NoError(t, fav.Add(ctx, 8, 100))

	has, err := fav.Has(ctx, 7, 100)
	require.NoError(t, err)
	assert.True(t, has)

	list, err := fav.ListByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(200), list[0].Code, "newest first")
	assert.False(t, list[0].CreatedAt.IsZero())

	require.NoError(t, fav.Remove(ctx, 7, 100))
	has, err = fav.Has(ctx, 7, 100)
	require.NoError(t, err)
	assert.False(t, has)
	require.NoError(t, fav.Remove(ctx, 7, 100))

	list, err = fav.ListByUser(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testRenameCode(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(110, 1, 1, "Show")))
	require.NoError(t, series.Create(ctx, SeasonEp(110, 1, 2, "Show")))
	require.NoError(t, s.Repo(catalog.Flat).Create(ctx, FlatEp(111, 1, "Mini")))

	err := s.RenameCode(ctx, 110, 111)
	assert.True(t, errors.Is(err, catalog.ErrCodeConflict), "got %v", err)

	err = s.RenameCode(ctx, 999, 1000)
	assert.True(t, errors.Is(err, catalog.ErrNotFound), "got %v", err)

	require.NoError(t, s.RenameCode(ctx, 110, 120))
	old, err := s.Lookup(ctx, 110)
	require.NoError(t, err)
	assert.Nil(t, old)
	renamed, err := s.Lookup(ctx, 120)
	require.NoError(t, err)
	require.NotNil(t, renamed)
	assert.Equal(t, catalog.Seasoned, renamed.Shape)
	assert.Len(t, renamed.Records, 2)
}

func testMoveEpisode(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	series := s.Repo(catalog.Seasoned)
	require.NoError(t, series.Create(ctx, SeasonEp(130, 1, 1, "Show", "Драма")))
	key := catalog.EpisodeKey{Season: 1, Episode: 2}
	ep := SeasonEp(130, 1, 2, "Bonus")
	ep.Caption = "special"
	require.NoError(t, series.Create(ctx, ep))

	err := s.MoveEpisodeToStandalone(ctx, catalog.Seasoned, 130, catalog.EpisodeKey{Season: 5, Episode: 5}, 131)
	assert.True(t, errors.Is(err, catalog.ErrNotFound), "got %v", err)

	require.NoError(t, s.MoveEpisodeToStandalone(ctx, catalog.Seasoned, 130, key, 131))
	film, err := s.Repo(catalog.Standalone).Episode(ctx, 131, catalog.EpisodeKey{})
	require.NoError(t, err)
	require.NotNil(t, film)
	assert.Equal(t, "Bonus", film.Title)
	assert.Equal(t, "special", film.Caption)
	assert.Equal(t, "file-season", film.MediaRef)
	assert.Empty(t, film.Genres)

	gone, err := series.Episode(ctx, 130, key)
	require.NoError(t, err)
	assert.Nil(t, gone)
	rest, err := series.Episodes(ctx, 130)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func testRankings(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	require.NoError(t, s.Repo(catalog.Standalone).Create(ctx, Film(1, "Matrix", "Фантастика", "Боевик")))
	require.NoError(t, s.Repo(catalog.Standalone).Create(ctx, Film(2, "Love", "Мелодрама")))
	require.NoError(t, s.Repo(catalog.Seasoned).Create(ctx, SeasonEp(3, 1, 1, "Show", "Драма")))
	require.NoError(t, s.Repo(catalog.Seasoned).Create(ctx, SeasonEp(3, 1, 2, "Show")))
	require.NoError(t, s.Repo(catalog.Flat).Create(ctx, FlatEp(4, 1, "Mini")))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Repo(catalog.Standalone).IncrementViews(ctx, 1, catalog.EpisodeKey{}))
	}
	require.NoError(t, s.Repo(catalog.Seasoned).IncrementViews(ctx, 3, catalog.EpisodeKey{Season: 1, Episode: 1}))
	require.NoError(t, s.Repo(catalog.Seasoned).IncrementViews(ctx, 3, catalog.EpisodeKey{Season: 1, Episode: 2}))
	require.NoError(t, s.Favorites().Add(ctx, 10, 3))
	require.NoError(t, s.Favorites().Add(ctx, 11, 3))
	require.NoError(t, s.Favorites().Add(ctx, 10, 999))

	all, err := s.Rankings(ctx, catalog.RankQuery{})
	require.NoError(t, err)
	byCode := map[int64]catalog.Ranking{}
	for _, r := range all {
		byCode[r.Code] = r
	}
	require.Len(t, byCode, 4)
	assert.Equal(t, int64(3), byCode[1].Views)
	assert.Equal(t, int64(0), byCode[1].Favorites)
	assert.Equal(t, int64(2), byCode[3].Views, "episode views are summed per code")
	assert.Equal(t, int64(2), byCode[3].Favorites)
	assert.Equal(t, int64(22), byCode[3].Score())
	assert.Equal(t, catalog.Flat, byCode[4].Shape)
	assert.Equal(t, "Matrix", byCode[1].Title)
	assert.Equal(t, []string{"Фантастика", "Боевик"}, byCode[1].Genres)

	future, err := s.Rankings(ctx, catalog.RankQuery{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	for _, r := range future {
		assert.Zero(t, r.Favorites, "favorites outside the window are not counted")
		if r.Code == 3 {
			assert.Equal(t, int64(2), r.Views, "views are lifetime")
		}
	}

	drama, err := s.Rankings(ctx, catalog.RankQuery{Genres: []string{"Драма"}})
	require.NoError(t, err)
	require.Len(t, drama, 1, "Драма must not match Мелодрама")
	assert.Equal(t, int64(3), drama[0].Code)

	either, err := s.Rankings(ctx, catalog.RankQuery{Genres: []string{"Драма", "Боевик"}})
	require.NoError(t, err)
	assert.Len(t, either, 2)
}
